package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andreyvit/pkstore"
)

var rule = strings.Repeat("=", 50)

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Print all keys in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, func(st *pkstore.Store) error {
				return runKeys(st, rootOpts.formatter(cmd))
			})
		},
	}
}

// NewValuesCommand creates the values command.
func NewValuesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "values",
		Short: "Print the PK field of every record in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, func(st *pkstore.Store) error {
				return runValues(st, rootOpts.formatter(cmd))
			})
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every key with its record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(rootOpts, func(st *pkstore.Store) error {
				return runList(st, rootOpts.formatter(cmd))
			})
		},
	}
}

func withStore(opts *RootOptions, fn func(st *pkstore.Store) error) (err error) {
	st, err := opts.OpenStore()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); err == nil && closeErr != nil {
			err = WrapExitError(ExitFailure, "close failed", closeErr)
		}
	}()
	return fn(st)
}

// skipped counts entries that could not be decoded; any other error is fatal.
type skipped int

func (n *skipped) check(f *OutputFormatter, err error) error {
	var ike *pkstore.InvalidKeyError
	var cve *pkstore.CorruptValueError
	if errors.As(err, &ike) || errors.As(err, &cve) {
		*n++
		f.Warnf("skipped: %v", err)
		return nil
	}
	return WrapExitError(ExitCommandError, "iteration failed", err)
}

func (n skipped) err() error {
	if n == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d entries could not be decoded", int(n)))
}

func runKeys(st *pkstore.Store, f *OutputFormatter) error {
	var bad skipped
	f.Heading("ITERATE KEYS:")
	for key, err := range st.Keys() {
		if err != nil {
			if err := bad.check(f, err); err != nil {
				return err
			}
			continue
		}
		f.Emit(key.String(), key)
	}
	return bad.err()
}

func runValues(st *pkstore.Store, f *OutputFormatter) error {
	var bad skipped
	f.Heading("ITERATE VALUES:")
	for rec, err := range st.Values() {
		if err != nil {
			if err := bad.check(f, err); err != nil {
				return err
			}
			continue
		}
		pk := rec.Get("PK")
		text, ok := pk.String()
		if !ok {
			text = fmt.Sprintf("%#v", pk)
		}
		f.Emit(text, map[string]any{"PK": pk.Value()})
	}
	return bad.err()
}

func runList(st *pkstore.Store, f *OutputFormatter) error {
	var bad skipped
	f.Heading("ITERATE KEY VALUES:")
	for ent, err := range st.Entries() {
		if err != nil {
			if err := bad.check(f, err); err != nil {
				return err
			}
			continue
		}
		var text strings.Builder
		fmt.Fprintf(&text, "KEY %v\nITEM %v\n%s", ent.Key, ent.Record, rule)
		f.Emit(text.String(), map[string]any{"key": ent.Key, "item": ent.Record.Fields()})
	}
	return bad.err()
}
