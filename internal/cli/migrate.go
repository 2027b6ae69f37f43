package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andreyvit/pkstore"
	"github.com/andreyvit/pkstore/migrate"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	EntityType string
	Suffix     string
	DryRun     bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move records of an entity type to a suffixed partition",
		Long: `Move every record whose entity type field (ENTITYTYPE unless the config
sets entity_type_field) equals --entity-type from (PK, SK) to
(PK + --suffix, SK), keeping the stored value as is.

Records already under a suffixed PK are left alone, so the command can be
rerun safely. Entries that cannot be decoded are reported and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EntityType, "entity-type", migrate.DefaultEntityType, "entity type to move")
	cmd.Flags().StringVar(&opts.Suffix, "suffix", migrate.DefaultSuffix, "suffix appended to the PK of moved records")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would be moved without writing")

	return cmd
}

func runMigrate(ctx context.Context, rootOpts *RootOptions, opts *MigrateOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := rootOpts.formatter(cmd)

	st, err := rootOpts.OpenStore()
	if err != nil {
		return err
	}

	var moved migrate.Counter
	sub := st.Subscribe(func(chg pkstore.Change) {
		moved.Listen(chg)
		switch chg.Op {
		case pkstore.OpDelete:
			f.Textf("DELETING: %v", chg.Key)
		case pkstore.OpPut:
			f.Textf("CREATING: %v", chg.Key)
		case pkstore.OpClosed:
			f.Textf("MOVED: %d", moved.Moved())
		}
	})
	defer sub.Unsubscribe()

	f.Heading(fmt.Sprintf("MIGRATE %s -> *%s:", opts.EntityType, opts.Suffix))
	rep, err := migrate.Run(ctx, st, migrate.Options{
		EntityType: opts.EntityType,
		Suffix:     opts.Suffix,
		DryRun:     opts.DryRun,
		Logger:     rootOpts.Logger,
	})
	f.VerboseLog("run %s", rep.RunID)

	if err != nil {
		var mfe *migrate.MigrationFailedError
		if errors.As(err, &mfe) {
			return WrapExitError(ExitFailure, "migration failed", err)
		}
		return WrapExitError(ExitCommandError, "migration aborted", err)
	}

	if emitErr := f.Emit(rep.String(), rep); emitErr != nil {
		return emitErr
	}
	if rep.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d entries could not be decoded", rep.Failed))
	}
	return nil
}
