package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/planloom/planloom/pkg/blockstream"
	"github.com/planloom/planloom/pkg/genkit"
	"github.com/planloom/planloom/pkg/genkit/generators"
	"github.com/planloom/planloom/pkg/heuristics"
	"github.com/planloom/planloom/pkg/planstate"
	"github.com/planloom/planloom/pkg/session"
	"github.com/planloom/planloom/pkg/workshop"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve coaching turns over WebSocket",
	Long: `Serve coaching turns over a WebSocket endpoint.

Clients connect to /chat?module=<id>[&session=<id>] and send
{"type":"user","text":...} frames; the server streams back chunk,
finding, merge and diagnostic frames while the turn runs, then a done
frame with the final phase and token usage. {"type":"abort"} cancels
the in-flight turn, merged data is kept. One turn runs at a time per
connection.

Example:
  planloom serve --addr :8489`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cctx, err := getContext()
		if err != nil {
			return err
		}
		if err := loadModules(cctx); err != nil {
			return err
		}
		if cctx.Model == "" {
			return fmt.Errorf("no model configured for context %q", cctx.Name)
		}

		host, closeStore, err := openHost(cctx)
		if err != nil {
			return err
		}
		defer closeStore()

		srv := &chatServer{
			host:  host,
			reg:   newGenerators(cctx),
			model: cctx.Model,
			upgrader: websocket.Upgrader{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/chat", srv.handleChat)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "ok\n")
		})

		server := &http.Server{Addr: serveAddr, Handler: mux}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		go func() {
			<-ctx.Done()
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shCtx)
		}()

		slog.Info("planloom: serving", "addr", serveAddr, "model", srv.model)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// chatServer runs coaching turns for WebSocket clients.
type chatServer struct {
	host     *session.Host
	reg      *generators.Registry
	model    string
	upgrader websocket.Upgrader
}

// clientFrame is one message from the client.
type clientFrame struct {
	Type string `json:"type"` // "user" or "abort"
	Text string `json:"text,omitempty"`
}

// serverFrame is one message to the client. Type selects the fields:
// "session" announces the session and seed state, "chunk" carries
// streamed text, "finding" a heuristic hit on the user text, "merge" a
// state snapshot after a merged block, "diagnostic" a turn anomaly,
// "done" the final snapshot, "error" a failed turn or bad frame.
type serverFrame struct {
	Type string `json:"type"`

	Session string `json:"session,omitempty"`
	Module  string `json:"module,omitempty"`

	Text string `json:"text,omitempty"`

	State         planstate.State `json:"state,omitempty"`
	Phase         string          `json:"phase,omitempty"`
	PhaseComplete bool            `json:"phase_complete,omitempty"`

	Finding    *heuristics.Finding  `json:"finding,omitempty"`
	Diagnostic *workshop.Diagnostic `json:"diagnostic,omitempty"`

	Usage *usageView `json:"usage,omitempty"`
	Error string     `json:"error,omitempty"`
}

type usageView struct {
	Prompt    int64 `json:"prompt"`
	Cached    int64 `json:"cached,omitempty"`
	Generated int64 `json:"generated"`
}

func (s *chatServer) handleChat(w http.ResponseWriter, r *http.Request) {
	mod, ok := workshop.Get(r.URL.Query().Get("module"))
	if !ok {
		http.Error(w, "unknown module", http.StatusBadRequest)
		return
	}

	ctx := context.Background()
	var sess *session.Session
	var err error
	if id := r.URL.Query().Get("session"); id != "" {
		sess, err = s.host.Open(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	} else {
		sess, err = s.host.Create(ctx)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	st := planstate.State{}
	phase := ""
	cp, err := sess.Resume(ctx, mod.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cp != nil {
		st, phase = cp.State, cp.Phase
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	c := &wsConn{
		ws:    ws,
		srv:   s,
		sess:  sess,
		mod:   mod,
		st:    st,
		phase: phase,
	}
	slog.Info("planloom: client connected", "session", sess.ID(), "module", mod.ID)
	c.send(&serverFrame{
		Type:    "session",
		Session: sess.ID(),
		Module:  mod.ID,
		Phase:   phase,
		State:   st,
	})
	c.readLoop()
	slog.Info("planloom: client disconnected", "session", sess.ID())
}

// wsConn is one client connection. The read loop owns incoming frames;
// at most one turn goroutine runs at a time and owns st and phase while
// it does.
type wsConn struct {
	ws   *websocket.Conn
	srv  *chatServer
	sess *session.Session
	mod  *workshop.Module

	st    planstate.State
	phase string

	writeMu sync.Mutex
	mu      sync.Mutex
	cancel  context.CancelFunc // non-nil while a turn is in flight
	done    sync.WaitGroup
}

func (c *wsConn) send(f *serverFrame) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(f); err != nil {
		slog.Debug("planloom: write failed", "session", c.sess.ID(), "err", err)
	}
}

func (c *wsConn) sendError(msg string) {
	c.send(&serverFrame{Type: "error", Error: msg})
}

func (c *wsConn) readLoop() {
	defer func() {
		c.abort()
		c.done.Wait()
	}()

	for {
		var f clientFrame
		if err := c.ws.ReadJSON(&f); err != nil {
			return
		}
		switch f.Type {
		case "user":
			if f.Text == "" {
				c.sendError("empty user text")
				continue
			}
			ctx, ok := c.begin()
			if !ok {
				c.sendError("turn already in flight")
				continue
			}
			c.done.Add(1)
			go func() {
				defer c.done.Done()
				defer c.end()
				c.runTurn(ctx, f.Text)
			}()
		case "abort":
			c.abort()
		default:
			c.sendError(fmt.Sprintf("unknown frame type %q", f.Type))
		}
	}
}

func (c *wsConn) begin() (context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	return ctx, true
}

func (c *wsConn) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *wsConn) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// runTurn feeds one user message through the engine, streaming effects
// to the client as frames.
func (c *wsConn) runTurn(ctx context.Context, text string) {
	findings := heuristics.Scan(text)
	for i := range findings {
		c.send(&serverFrame{Type: "finding", Finding: &findings[i]})
	}
	if err := c.sess.Append(ctx, session.Message{
		Role:     session.RoleUser,
		Text:     text,
		Module:   c.mod.ID,
		Findings: findings,
	}); err != nil {
		c.sendError(err.Error())
		return
	}

	turn, err := workshop.NewTurn(c.mod, workshop.WithState(c.st), workshop.WithPhase(c.phase))
	if err != nil {
		c.sendError(err.Error())
		return
	}
	prompt, err := workshop.SystemPrompt(c.mod, c.phase, c.st, blockstream.Default)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	history, err := c.sess.Recent(ctx, chatHistory)
	if err != nil {
		c.sendError(err.Error())
		return
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

	stream, err := c.srv.reg.GenerateStream(ctx, c.srv.model, mcb.Build())
	if err != nil {
		c.sendError(err.Error())
		return
	}
	cs := &captureStream{Stream: stream}

	res, _ := workshop.Pull(cs, turn, workshop.WithObserver(func(chunk string, fr *workshop.FeedResult) {
		c.send(&serverFrame{Type: "chunk", Text: chunk})
		for _, m := range fr.Merges {
			c.send(&serverFrame{
				Type:          "merge",
				State:         m.State,
				Phase:         m.Phase,
				PhaseComplete: m.PhaseComplete,
			})
		}
		for i := range fr.Diagnostics {
			c.send(&serverFrame{Type: "diagnostic", Diagnostic: &fr.Diagnostics[i]})
		}
	}))

	if res.Transcript != "" {
		if err := c.sess.Append(ctx, session.Message{
			Role:   session.RoleModel,
			Text:   res.Transcript,
			Module: c.mod.ID,
		}); err != nil {
			c.sendError(err.Error())
			return
		}
	}
	if err := c.sess.SaveCheckpoint(ctx, c.mod.ID, session.Checkpoint{
		State:         res.State,
		Phase:         res.Phase,
		PhaseComplete: res.PhaseComplete,
	}); err != nil {
		c.sendError(err.Error())
		return
	}
	c.st, c.phase = res.State, res.Phase

	if res.Err != nil {
		c.sendError(res.Err.Error())
		return
	}
	done := &serverFrame{
		Type:          "done",
		State:         res.State,
		Phase:         res.Phase,
		PhaseComplete: res.PhaseComplete,
	}
	if cs.state != nil {
		u := cs.state.Usage()
		done.Usage = &usageView{
			Prompt:    u.PromptTokenCount,
			Cached:    u.CachedContentTokenCount,
			Generated: u.GeneratedTokenCount,
		}
	}
	c.send(done)
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8489", "listen address")
}
