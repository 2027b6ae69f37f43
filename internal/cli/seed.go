package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/andreyvit/pkstore"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <items.yaml>",
		Short: "Write records from a YAML file",
		Long: `Write records listed in a YAML file into the store.

The file holds a list of mappings. Every mapping is stored as one record
under the key made of its PK and SK fields; all fields, PK and SK included,
become the record's fields. Existing records with the same key are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

// ReadItems parses a YAML list of records.
func ReadItems(path string) ([]pkstore.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []map[string]any
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	recs := make([]pkstore.Record, 0, len(items))
	for _, item := range items {
		recs = append(recs, pkstore.NewRecord(item))
	}
	return recs, nil
}

// ItemKey derives a record's key from its PK and SK fields.
func ItemKey(rec pkstore.Record) pkstore.Key {
	pk, _ := rec.Get("PK").String()
	sk, _ := rec.Get("SK").String()
	return pkstore.Key{PK: pk, SK: sk}
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) (err error) {
	f := opts.formatter(cmd)

	recs, err := ReadItems(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read items", err)
	}
	f.VerboseLog("Read %d item(s) from %s", len(recs), path)

	st, err := opts.OpenStore()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); err == nil && closeErr != nil {
			err = WrapExitError(ExitFailure, "close failed", closeErr)
		}
	}()

	for i, rec := range recs {
		key := ItemKey(rec)
		if err := st.Put(key, rec); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("item %d", i+1), err)
		}
		if err := f.Emit(fmt.Sprintf("Created %d items.", i+1), map[string]any{"created": i + 1, "key": key}); err != nil {
			return err
		}
	}
	return nil
}
