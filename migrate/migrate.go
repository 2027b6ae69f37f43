// Package migrate relocates records of a given entity type to a suffixed
// partition, rewriting a store while iterating over it.
//
// The pass is idempotent: a record whose PK already carries the suffix is
// never moved again, so a rerun over its own output (or the pass running
// into the entries it has just written further down the key space) is a
// no-op.
package migrate

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/andreyvit/pkstore"
)

const (
	DefaultEntityType = "user"
	DefaultSuffix     = "_deleted"
)

type Options struct {
	EntityType      string // DefaultEntityType if empty
	EntityTypeField string // the store's EntityTypeField if empty
	Suffix          string // DefaultSuffix if empty

	// KeepOpen leaves the store open when the pass finishes. By default the
	// store is closed, which emits its closed event.
	KeepOpen bool

	// DryRun classifies and counts records without writing anything.
	DryRun bool

	Logger *slog.Logger
}

func (o *Options) setDefaults(st *pkstore.Store) {
	if o.EntityType == "" {
		o.EntityType = DefaultEntityType
	}
	if o.EntityTypeField == "" {
		o.EntityTypeField = st.EntityTypeField()
	}
	if o.Suffix == "" {
		o.Suffix = DefaultSuffix
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type Report struct {
	RunID uuid.UUID

	Scanned         int // entries read from the store
	Matched         int // entries moved (or that would be moved, on a dry run)
	AlreadyMigrated int // entries already under a suffixed PK
	Failed          int // entries skipped because they could not be decoded

	Changes Counter
}

func (r Report) String() string {
	return fmt.Sprintf("scanned=%d matched=%d already_migrated=%d failed=%d puts=%d deletes=%d", r.Scanned, r.Matched, r.AlreadyMigrated, r.Failed, r.Changes.Puts, r.Changes.Deletes)
}

// MigrationFailedError is returned when every entry the pass looked at failed
// to decode, i.e. the pass made no progress at all.
type MigrationFailedError struct {
	Report Report
	Err    error // the last decode error
}

func (e *MigrationFailedError) Unwrap() error {
	return e.Err
}

func (e *MigrationFailedError) Error() string {
	return fmt.Sprintf("migration failed: none of %d entries could be decoded: %v", e.Report.Failed, e.Err)
}

// MoveError is returned when a record was deleted from its old key but could
// not be written under the new one. Raw holds the stored bytes, which
// Store.PutRaw accepts as is.
type MoveError struct {
	From pkstore.Key
	To   pkstore.Key
	Raw  []byte
	Err  error
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %v to %v failed after delete (%d bytes, raw %x): %v", e.From, e.To, len(e.Raw), e.Raw, e.Err)
}

// Run moves every record whose entity type equals opt.EntityType from
// (PK, SK) to (PK+opt.Suffix, SK), keeping the stored bytes unchanged.
//
// Entries that cannot be decoded are logged and counted, not returned as
// errors, unless no entry at all could be decoded. Store errors abort the
// pass. Unless opt.KeepOpen is set, the store is closed at the end, even if
// the pass failed.
func Run(ctx context.Context, st *pkstore.Store, opt Options) (rep Report, err error) {
	opt.setDefaults(st)
	rep.RunID = newRunID()
	logger := opt.Logger.With("run", rep.RunID.String())

	sub := st.Subscribe(rep.Changes.Listen)
	defer sub.Unsubscribe()

	if !opt.KeepOpen {
		defer func() {
			closeErr := st.Close()
			if err == nil && closeErr != nil {
				err = closeErr
			}
		}()
	}

	logger.Info("migrate: starting", "entity_type", opt.EntityType, "suffix", opt.Suffix, "dry_run", opt.DryRun)

	var decoded int
	var lastDecodeErr error
	for ent, entErr := range st.Entries() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rep.Scanned++
		if entErr != nil {
			if !isEntryError(entErr) {
				return rep, entErr
			}
			rep.Failed++
			lastDecodeErr = entErr
			logger.Warn("migrate: skipping undecodable entry", "key", ent.Key.String(), "err", entErr)
			continue
		}
		decoded++

		if strings.HasSuffix(ent.Key.PK, opt.Suffix) {
			rep.AlreadyMigrated++
			continue
		}
		if !ent.Record.Get(opt.EntityTypeField).Is(opt.EntityType) {
			continue
		}

		newKey := ent.Key.WithPKSuffix(opt.Suffix)
		rep.Matched++
		if opt.DryRun {
			logger.Info("migrate: would move", "from", ent.Key.String(), "to", newKey.String())
			continue
		}
		if err := st.Delete(ent.Key); err != nil {
			return rep, err
		}
		if err := st.PutRaw(newKey, ent.Raw); err != nil {
			logger.Error("migrate: record deleted but not rewritten", "from", ent.Key.String(), "to", newKey.String(), "raw", hex.EncodeToString(ent.Raw), "err", err)
			return rep, &MoveError{From: ent.Key, To: newKey, Raw: ent.Raw, Err: err}
		}
	}

	if decoded == 0 && rep.Failed > 0 {
		logger.Error("migrate: no entry could be decoded", "failed", rep.Failed)
		return rep, &MigrationFailedError{Report: rep, Err: lastDecodeErr}
	}
	logger.Info("migrate: done", "scanned", rep.Scanned, "matched", rep.Matched, "already_migrated", rep.AlreadyMigrated, "failed", rep.Failed)
	return rep, nil
}

func isEntryError(err error) bool {
	var cve *pkstore.CorruptValueError
	var ike *pkstore.InvalidKeyError
	return errors.As(err, &cve) || errors.As(err, &ike)
}

func newRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
