// Package console serves a websocket terminal whose lines are evaluated
// against the script registry on the frame loop.
package console

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/orbis/internal/script"
)

// Request is one line typed into a terminal.
type Request struct {
	Line string `json:"line"`
}

// Response is the outcome of a Request.
type Response struct {
	Line   string `json:"line"`
	OK     bool   `json:"ok"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type pending struct {
	line  string
	reply chan Response
}

// Server accepts terminal connections and queues their lines until the
// frame loop calls Drain.
type Server struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	queue    chan pending

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	srv   *http.Server
	ln    net.Listener
}

// New returns a server with room for queueSize outstanding lines.
func New(log *zap.Logger, queueSize int) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Server{
		log: log,
		upgrader: websocket.Upgrader{
			// Any origin may connect; bind to loopback.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		queue: make(chan pending, queueSize),
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Listen starts serving on addr in the background.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	srv := s.srv
	s.mu.Unlock()

	s.log.Info("console listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("console stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops the listener and drops every terminal.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("console upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	s.log.Debug("console connected", zap.String("remote", r.RemoteAddr))
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("console read", zap.Error(err))
			}
			return
		}
		line := strings.TrimSpace(req.Line)
		if line == "" {
			continue
		}

		p := pending{line: line, reply: make(chan Response, 1)}
		select {
		case s.queue <- p:
		case <-r.Context().Done():
			return
		}

		var resp Response
		select {
		case resp = <-p.reply:
		case <-r.Context().Done():
			return
		}
		if err := conn.WriteJSON(resp); err != nil {
			s.log.Debug("console write", zap.Error(err))
			return
		}
	}
}

// Drain evaluates up to max queued lines and replies to their terminals.
// It never blocks and returns the number of lines run.
func (s *Server) Drain(reg *script.Registry, max int) int {
	n := 0
	for n < max {
		select {
		case p := <-s.queue:
			p.reply <- Evaluate(reg, p.line)
			n++
		default:
			return n
		}
	}
	return n
}

// Evaluate runs one line. The built-in "help" lists every method.
func Evaluate(reg *script.Registry, line string) Response {
	if line == "help" {
		var b strings.Builder
		for i, m := range reg.Methods() {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(m.Name)
			if m.Doc != "" {
				b.WriteString(" - ")
				b.WriteString(m.Doc)
			}
		}
		return Response{Line: line, OK: true, Result: b.String()}
	}
	v, err := reg.Eval(line, nil)
	if err != nil {
		return Response{Line: line, Error: err.Error()}
	}
	resp := Response{Line: line, OK: true}
	if !v.IsNil() {
		resp.Result = v.String()
	}
	return resp
}
