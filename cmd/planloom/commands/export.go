package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/planloom/planloom/pkg/cli"
	"github.com/planloom/planloom/pkg/plandoc"
	"github.com/planloom/planloom/pkg/storage"
	"github.com/planloom/planloom/pkg/workshop"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <session>",
	Short: "Export a session as a business plan document",
	Long: `Assemble the session's checkpointed module states into one plan
document, validate it, render markdown and write it to the export
target.

The target URL picks the store: a plain path or file: URL writes to the
local filesystem, s3://bucket/prefix writes to S3 with AWS credentials
from the environment. Without --out the context's export-url is used,
falling back to <user config dir>/planloom/exports.

Examples:
  planloom export 9f3c212e
  planloom export 9f3c212e --out file:./plans
  planloom export 9f3c212e --out s3://plans-bucket/exports`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := optionalContext()
		if err != nil {
			return err
		}
		if err := loadModules(cctx); err != nil {
			return err
		}
		host, closeStore, err := openHost(cctx)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx := context.Background()
		sess, err := host.Open(ctx, args[0])
		if err != nil {
			return err
		}
		mods, err := sess.Modules(ctx)
		if err != nil {
			return err
		}
		if len(mods) == 0 {
			return fmt.Errorf("session %s has no checkpointed modules", args[0])
		}

		states := make([]plandoc.ModuleState, 0, len(mods))
		for _, id := range mods {
			cp, err := sess.Resume(ctx, id)
			if err != nil {
				return err
			}
			if cp == nil {
				continue
			}
			ms := plandoc.ModuleState{
				Module: id,
				Phase:  cp.Phase,
				State:  cp.State,
			}
			if mod, ok := workshop.Get(id); ok {
				ms.Title = mod.Title
				if n := len(mod.Phases); n > 0 {
					ms.Complete = cp.Phase == mod.Phases[n-1].Name && cp.PhaseComplete
				}
			}
			states = append(states, ms)
		}

		doc := plandoc.Assemble(sess.ID(), time.Now(), states)

		out := exportOut
		if out == "" && cctx != nil {
			out = cctx.ResolvedExportURL()
		}
		if out == "" {
			paths, err := cli.NewPaths()
			if err != nil {
				return err
			}
			out = paths.ExportsDir()
		}
		store, err := storage.Open(out)
		if err != nil {
			return err
		}

		name := sess.ID() + ".md"
		if err := plandoc.Export(ctx, store, name, doc); err != nil {
			return err
		}
		cli.PrintSuccess("Exported %s to %s", name, out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "export target URL (file:... or s3://bucket/prefix)")
}
