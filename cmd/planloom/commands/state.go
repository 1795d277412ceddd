package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/planloom/planloom/pkg/planstate"
)

var stateQuery string

var stateCmd = &cobra.Command{
	Use:   "state <session> <module>",
	Short: "Inspect checkpointed plan state",
	Long: `Print the checkpointed state of one module in a session.

With --query, a jq expression runs against the state and its result is
printed instead.

Examples:
  planloom state 9f3c212e business_idea
  planloom state 9f3c212e finance --query '.forecast.revenue'
  planloom state 9f3c212e business_idea --query '.risks | length' --json`,
	Args: cobra.ExactArgs(2),
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
		cp, err := sess.Resume(ctx, args[1])
		if err != nil {
			return err
		}
		if cp == nil {
			return fmt.Errorf("no checkpoint for module %q in session %s", args[1], args[0])
		}

		if stateQuery != "" {
			out, err := cp.State.Query(stateQuery)
			if err != nil {
				return err
			}
			return outputResult(out)
		}

		type checkpointView struct {
			Module        string          `json:"module" yaml:"module"`
			Phase         string          `json:"phase" yaml:"phase"`
			PhaseComplete bool            `json:"phase_complete" yaml:"phase_complete"`
			UpdatedAt     string          `json:"updated_at" yaml:"updated_at"`
			State         planstate.State `json:"state" yaml:"state"`
		}
		return outputResult(checkpointView{
			Module:        args[1],
			Phase:         cp.Phase,
			PhaseComplete: cp.PhaseComplete,
			UpdatedAt:     time.Unix(0, cp.UpdatedAt).Format(time.RFC3339),
			State:         cp.State,
		})
	},
}

func init() {
	stateCmd.Flags().StringVar(&stateQuery, "query", "", "jq expression to run against the state")
}
