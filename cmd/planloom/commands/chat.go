package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/planloom/planloom/pkg/blockstream"
	"github.com/planloom/planloom/pkg/cli"
	"github.com/planloom/planloom/pkg/genkit"
	"github.com/planloom/planloom/pkg/genkit/generators"
	"github.com/planloom/planloom/pkg/heuristics"
	"github.com/planloom/planloom/pkg/planstate"
	"github.com/planloom/planloom/pkg/session"
	"github.com/planloom/planloom/pkg/workshop"
)

var (
	chatModule  string
	chatSession string
	chatModel   string
)

// chatHistory caps how many stored messages are replayed into the
// model context per turn.
const chatHistory = 20

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run an interactive coaching conversation",
	Long: `Run an interactive coaching conversation for one module.

Each of your answers triggers one assistant turn. Structured state
blocks embedded in the reply are merged into the plan state and
checkpointed, so a later 'planloom chat --session <id>' resumes where
the conversation left off.

Examples:
  planloom chat --module business_idea
  planloom chat --module finance --session 9f3c212e
  planloom chat --module market_analysis --model gemini:gemini-2.0-flash`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := getContext()
		if err != nil {
			return err
		}
		if err := loadModules(cctx); err != nil {
			return err
		}
		mod, ok := workshop.Get(chatModule)
		if !ok {
			return fmt.Errorf("unknown module %q, see 'planloom modules'", chatModule)
		}
		model := chatModel
		if model == "" {
			model = cctx.Model
		}
		if model == "" {
			return fmt.Errorf("no model configured, set --model or the context's model")
		}
		reg := newGenerators(cctx)

		host, closeStore, err := openHost(cctx)
		if err != nil {
			return err
		}
		defer closeStore()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var sess *session.Session
		if chatSession != "" {
			sess, err = host.Open(ctx, chatSession)
		} else {
			sess, err = host.Create(ctx)
		}
		if err != nil {
			return err
		}

		st := planstate.State{}
		phase := ""
		cp, err := sess.Resume(ctx, mod.ID)
		if err != nil {
			return err
		}
		if cp != nil {
			st, phase = cp.State, cp.Phase
		}

		styles := cli.NewStyles(cli.DefaultTheme)
		fmt.Println(styles.Banner.Render(mod.Title) + "  " + styles.Dim.Render("session "+sess.ID()))
		fmt.Println(styles.PhaseRule(phaseLabel(mod, phase), 0))
		fmt.Println(styles.Dim.Render("Answer in your own words. 'exit' or Ctrl-D ends the session."))

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for ctx.Err() == nil {
			fmt.Print(styles.Prompt.Render("you ▸") + " ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				break
			}

			findings := heuristics.Scan(line)
			for _, f := range findings {
				fmt.Println(styles.Finding.Render("⚠ " + f.Hint))
			}
			if err := sess.Append(ctx, session.Message{
				Role:     session.RoleUser,
				Text:     line,
				Module:   mod.ID,
				Findings: findings,
			}); err != nil {
				return err
			}

			start := time.Now()
			res, term, err := chatTurn(ctx, reg, model, sess, mod, st, phase)
			if err != nil {
				return err
			}

			if res.Transcript != "" {
				if err := sess.Append(ctx, session.Message{
					Role:   session.RoleModel,
					Text:   res.Transcript,
					Module: mod.ID,
				}); err != nil {
					return err
				}
			}
			if err := sess.SaveCheckpoint(ctx, mod.ID, session.Checkpoint{
				State:         res.State,
				Phase:         res.Phase,
				PhaseComplete: res.PhaseComplete,
			}); err != nil {
				return err
			}

			for _, d := range res.Diagnostics {
				fmt.Println(styles.Err.Render("! " + d.String()))
			}
			if res.Phase != phase {
				fmt.Println(styles.PhaseRule(phaseLabel(mod, res.Phase), 0))
			}
			st, phase = res.State, res.Phase
			for _, l := range stateLines(st) {
				fmt.Println("  " + styles.State.Render(l))
			}
			fmt.Println(styles.Dim.Render(turnStatus(time.Since(start), term)))

			if res.Err != nil && ctx.Err() != nil {
				fmt.Println(styles.Dim.Render("turn aborted, merged data kept"))
				break
			}
			if res.Err != nil {
				cli.PrintError("%v", res.Err)
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		fmt.Println(styles.Dim.Render("session " + sess.ID() + " saved"))
		return nil
	},
}

// chatTurn runs one assistant turn: system prompt from the module and
// accumulated state, recent history as context, chunks printed as they
// stream. Transport failures ride in the result, not the error.
func chatTurn(ctx context.Context, reg *generators.Registry, model string, sess *session.Session, mod *workshop.Module, st planstate.State, phase string) (*workshop.TurnResult, *genkit.State, error) {
	turn, err := workshop.NewTurn(mod, workshop.WithState(st), workshop.WithPhase(phase))
	if err != nil {
		return nil, nil, err
	}
	prompt, err := workshop.SystemPrompt(mod, phase, st, blockstream.Default)
	if err != nil {
		return nil, nil, err
	}
	history, err := sess.Recent(ctx, chatHistory)
	if err != nil {
		return nil, nil, err
	}

	mcb := &genkit.ModelContextBuilder{}
	mcb.PromptText("coach", prompt)
	for _, m := range history {
		switch m.Role {
		case session.RoleUser:
			mcb.UserText("", m.Text)
		case session.RoleModel:
			mcb.ModelText("", m.Text)
		}
	}

	stream, err := reg.GenerateStream(ctx, model, mcb.Build())
	if err != nil {
		return nil, nil, err
	}
	cs := &captureStream{Stream: stream}

	res, _ := workshop.Pull(cs, turn, workshop.WithObserver(func(chunk string, _ *workshop.FeedResult) {
		fmt.Print(chunk)
	}))
	fmt.Println()
	return res, cs.state, nil
}

func init() {
	chatCmd.Flags().StringVar(&chatModule, "module", "", "coaching module id (required)")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "resume an existing session")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "override the context's model URI")
	_ = chatCmd.MarkFlagRequired("module")
}
