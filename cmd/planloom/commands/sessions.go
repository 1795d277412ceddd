package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/planloom/planloom/pkg/cli"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
	Long: `Manage stored coaching sessions.

Examples:
  planloom sessions list
  planloom sessions show 9f3c212e
  planloom sessions revert 9f3c212e
  planloom sessions delete 9f3c212e`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionsListCmd.RunE(cmd, args)
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently used first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := optionalContext()
		if err != nil {
			return err
		}
		host, closeStore, err := openHost(cctx)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx := context.Background()
		infos, err := host.List(ctx)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No sessions stored")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tUPDATED\tMODULES")
		for _, info := range infos {
			sess, err := host.Open(ctx, info.ID)
			if err != nil {
				return err
			}
			mods, err := sess.Modules(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				info.ID,
				info.CreatedAt.Format("2006-01-02 15:04"),
				info.UpdatedAt.Format("2006-01-02 15:04"),
				strings.Join(mods, ","))
		}
		w.Flush()
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Show the message log of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := optionalContext()
		if err != nil {
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
		msgs, err := sess.Messages(ctx)
		if err != nil {
			return err
		}

		type messageView struct {
			Role   string   `json:"role" yaml:"role"`
			Time   string   `json:"time" yaml:"time"`
			Module string   `json:"module,omitempty" yaml:"module,omitempty"`
			Text   string   `json:"text" yaml:"text"`
			Hints  []string `json:"hints,omitempty" yaml:"hints,omitempty"`
		}
		views := make([]messageView, 0, len(msgs))
		for _, m := range msgs {
			v := messageView{
				Role:   string(m.Role),
				Time:   time.Unix(0, m.Timestamp).Format(time.RFC3339),
				Module: m.Module,
				Text:   m.Text,
			}
			for _, f := range m.Findings {
				v.Hints = append(v.Hints, f.Hint)
			}
			views = append(views, v)
		}
		return outputResult(views)
	},
}

var sessionsRevertCmd = &cobra.Command{
	Use:   "revert <session>",
	Short: "Drop the last user message and everything after it",
	Long: `Drop the most recent user message together with the replies and
checkpoints that followed it. Running revert again peels off the next
turn.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := optionalContext()
		if err != nil {
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
		if err := sess.Revert(ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Reverted session %s by one turn", args[0])
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session>",
	Short: "Delete a session and all its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := optionalContext()
		if err != nil {
			return err
		}
		host, closeStore, err := openHost(cctx)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := host.Delete(context.Background(), args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Session %s deleted", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsRevertCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
