package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/njchilds90/descent"
)

const writeTimeout = 5 * time.Second

// wsCommand is a client message on /ws/descent.
type wsCommand struct {
	// Type is one of "reset", "start", "stop" and "step".
	Type string `json:"type"`
	// Request configures the run on "reset".
	Request *descent.Request `json:"request,omitempty"`
	// DelayMS overrides the step delay on "start".
	DelayMS int `json:"delay_ms,omitempty"`
}

// wsFrame is a server message on /ws/descent.
type wsFrame struct {
	// Type is one of "ready", "step", "stopped", "halted" and "error".
	Type      string              `json:"type"`
	SessionID string              `json:"session_id,omitempty"`
	Step      *descent.StepRecord `json:"step,omitempty"`
	Result    *descent.Result     `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// animation is the per-connection state. It is owned by the connection's
// loop goroutine.
type animation struct {
	id      string
	req     descent.Request
	region  descent.Region
	seeds   []descent.Point
	sess    *descent.Session
	playing bool
	limiter *rate.Limiter
}

func (s *Server) serveDescent(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cmds := make(chan wsCommand)
	go func() {
		defer close(cmds)
		for {
			var cmd wsCommand
			if err := wsjson.Read(ctx, conn, &cmd); err != nil {
				if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	a := &animation{limiter: rate.NewLimiter(every(s.opts.StepDelay), 1)}
	if err := s.loop(ctx, conn, cmds, a); err != nil {
		slog.Debug("websocket session ended", "session_id", a.id, "error", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func every(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// loop multiplexes client commands with paced steps. A step is taken when
// the limiter's reservation matures; a command arriving first cancels the
// reservation so pacing is not skewed.
func (s *Server) loop(ctx context.Context, conn *websocket.Conn, cmds <-chan wsCommand, a *animation) error {
	for {
		var (
			timer *time.Timer
			tick  <-chan time.Time
			res   *rate.Reservation
		)
		if a.playing {
			res = a.limiter.Reserve()
			timer = time.NewTimer(res.Delay())
			tick = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()

		case cmd, ok := <-cmds:
			if res != nil {
				res.Cancel()
			}
			stopTimer(timer)
			if !ok {
				return nil
			}
			if err := s.handleCommand(ctx, conn, a, cmd); err != nil {
				return err
			}

		case <-tick:
			if err := s.advance(ctx, conn, a); err != nil {
				return err
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (s *Server) handleCommand(ctx context.Context, conn *websocket.Conn, a *animation, cmd wsCommand) error {
	switch cmd.Type {
	case "reset":
		req := descent.Request{Preset: "convex"}
		if cmd.Request != nil {
			req = *cmd.Request
		}
		if err := s.reset(a, req); err != nil {
			return send(ctx, conn, wsFrame{Type: "error", Error: err.Error()})
		}
		return send(ctx, conn, wsFrame{Type: "ready", SessionID: a.id, Result: descent.NewResult(a.sess, a.region)})

	case "start":
		if a.sess == nil {
			return send(ctx, conn, wsFrame{Type: "error", Error: "send reset before start"})
		}
		if a.sess.State().Halted() {
			return s.halted(ctx, conn, a)
		}
		if cmd.DelayMS > 0 {
			a.limiter.SetLimit(every(time.Duration(cmd.DelayMS) * time.Millisecond))
		}
		a.playing = true
		return nil

	case "stop":
		a.playing = false
		return send(ctx, conn, wsFrame{Type: "stopped", SessionID: a.id})

	case "step":
		if a.sess == nil {
			return send(ctx, conn, wsFrame{Type: "error", Error: "send reset before step"})
		}
		a.playing = false
		return s.advance(ctx, conn, a)
	}
	return send(ctx, conn, wsFrame{Type: "error", Error: "unknown command " + cmd.Type})
}

// reset builds a fresh session for req.
func (s *Server) reset(a *animation, req descent.Request) error {
	req.Catalog = s.opts.Presets()
	req.Reference = s.opts.Reference
	expr, region, params, seeds, err := req.Resolve()
	if err != nil {
		return err
	}
	fn, err := descent.Compile(expr)
	if err != nil {
		return err
	}
	sess, err := descent.NewSession(fn, params)
	if err != nil {
		return err
	}
	a.id = uuid.NewString()
	a.req, a.region, a.seeds, a.sess = req, region, seeds, sess
	a.playing = false
	slog.Debug("websocket session reset", "session_id", a.id, "expr", expr)
	return nil
}

// advance takes one step and reports it, followed by the final result if
// the session halted.
func (s *Server) advance(ctx context.Context, conn *websocket.Conn, a *animation) error {
	outcome := a.sess.Step()
	if outcome == descent.CannotProceed {
		a.playing = false
		return s.halted(ctx, conn, a)
	}
	if last := a.sess.LastStep(); last != nil {
		rec := descent.NewStepRecord(*last, a.sess.Params().LearningRate)
		if err := send(ctx, conn, wsFrame{Type: "step", SessionID: a.id, Step: &rec}); err != nil {
			return err
		}
	}
	if a.sess.State().Halted() {
		a.playing = false
		return s.halted(ctx, conn, a)
	}
	return nil
}

func (s *Server) halted(ctx context.Context, conn *websocket.Conn, a *animation) error {
	res := descent.NewResult(a.sess, a.region)
	if !a.req.SkipReference {
		ref := descent.FindReference(a.sess.Function(), a.region,
			descent.DefaultSeeds(a.sess.Params().Start, a.seeds...), a.req.Reference)
		res.SetReference(ref, a.sess.Current())
	}
	return send(ctx, conn, wsFrame{Type: "halted", SessionID: a.id, Result: res})
}

func send(ctx context.Context, conn *websocket.Conn, f wsFrame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, f)
}
