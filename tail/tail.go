// Package tail serves the live record stream of a logstream Registry over TCP.
// A client first receives a banner and the retained history as JSON lines,
// then every new record as it is published. Clients may send line commands:
//
//	level=<all|debug|info|warn|error>   only stream records at or above level
//	stats                               reply with bus counters
//	quit                                close the connection
package tail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/lixenwraith/logstream"
	"github.com/lixenwraith/logstream/compat"
	"github.com/panjf2000/gnet/v2"
)

// LoggerName is the registry logger the server reports through
const LoggerName = "Tail"

// maxCommandLength bounds the unterminated input kept per connection
const maxCommandLength = 1024

// Server streams bus records to TCP clients
type Server struct {
	gnet.BuiltinEventEngine

	addr      string
	bus       *logstream.Bus
	logger    *logstream.Logger
	multicore bool
	tsFormat  string

	mu          sync.Mutex
	clients     map[string]*client
	eng         gnet.Engine
	unsubscribe func()
	done        chan error
	booted      chan struct{}

	running atomic.Bool
}

// client is the per-connection state, owned by the connection's event loop
// except for level which the broadcaster reads
type client struct {
	id      string
	conn    gnet.Conn
	level   atomic.Int64
	pending []byte
}

// Option configures a Server
type Option func(*Server)

// WithMulticore runs one event loop per CPU
func WithMulticore(enable bool) Option {
	return func(s *Server) {
		s.multicore = enable
	}
}

// WithTimestampFormat sets the time layout of streamed records
func WithTimestampFormat(layout string) Option {
	return func(s *Server) {
		s.tsFormat = layout
	}
}

// New creates a server for reg's bus listening on addr (host:port)
func New(reg *logstream.Registry, addr string, opts ...Option) *Server {
	s := &Server{
		addr:    addr,
		bus:     reg.Bus(),
		logger:  reg.Get(LoggerName),
		clients: make(map[string]*client),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the event loops and returns once the listener is up
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("tail: server already running")
	}

	s.booted = make(chan struct{})
	s.done = make(chan error, 1)
	s.unsubscribe = s.bus.Subscribe(s.broadcast)

	go func() {
		s.done <- gnet.Run(s, "tcp://"+s.addr,
			gnet.WithMulticore(s.multicore),
			gnet.WithReusePort(true),
			gnet.WithLogger(compat.NewGnetAdapter(s.logger, compat.WithFatalHandler(func(string) {}))),
		)
	}()

	select {
	case <-s.booted:
		s.logger.Info("tail server started", "addr", s.addr)
		return nil
	case err := <-s.done:
		s.reset()
		return fmt.Errorf("tail: failed to start on %s: %w", s.addr, err)
	case <-ctx.Done():
		// The engine may still boot; stop it once it does
		go func() {
			select {
			case <-s.booted:
				s.mu.Lock()
				eng := s.eng
				s.mu.Unlock()
				_ = eng.Stop(context.Background())
				<-s.done
			case <-s.done:
			}
			s.reset()
		}()
		return ctx.Err()
	}
}

// Stop closes all connections and waits for the event loops to exit
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}

	s.mu.Lock()
	eng := s.eng
	s.mu.Unlock()

	if err := eng.Stop(ctx); err != nil {
		return fmt.Errorf("tail: stop failed: %w", err)
	}

	select {
	case err := <-s.done:
		s.reset()
		s.logger.Info("tail server stopped", "addr", s.addr)
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clients returns the number of connected clients
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) reset() {
	s.unsubscribe()
	s.mu.Lock()
	s.clients = make(map[string]*client)
	s.eng = gnet.Engine{}
	s.mu.Unlock()
	s.running.Store(false)
}

// OnBoot records the engine so Stop can reach it
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.mu.Lock()
	s.eng = eng
	s.mu.Unlock()
	close(s.booted)
	return gnet.None
}

// OnOpen replays the history and registers the client atomically with
// respect to publishing, so no record is lost or sent twice.
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	cl := &client{id: uuid.NewString(), conn: c}
	cl.level.Store(logstream.LevelAll)
	c.SetContext(cl)

	var out []byte
	s.bus.Replay(func(history []logstream.Record) {
		out = s.banner(cl.id)
		for _, r := range history {
			out = logstream.AppendJSON(out, r, s.tsFormat)
		}
		s.mu.Lock()
		s.clients[cl.id] = cl
		s.mu.Unlock()
	})

	s.logger.Info("client connected", "id", cl.id, "remote", c.RemoteAddr().String())
	return out, gnet.None
}

// OnClose drops the client
func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	cl, ok := c.Context().(*client)
	if !ok {
		return gnet.None
	}
	s.mu.Lock()
	delete(s.clients, cl.id)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("client disconnected", "id", cl.id, "error", err)
	} else {
		s.logger.Info("client disconnected", "id", cl.id)
	}
	return gnet.None
}

// OnTraffic handles newline-terminated commands
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	cl, ok := c.Context().(*client)
	if !ok {
		return gnet.Close
	}
	buf, err := c.Next(-1)
	if err != nil {
		return gnet.Close
	}
	cl.pending = append(cl.pending, buf...)

	for {
		idx := bytes.IndexByte(cl.pending, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(string(cl.pending[:idx]))
		cl.pending = cl.pending[idx+1:]
		if line == "" {
			continue
		}

		reply, action := s.handleCommand(cl, line)
		if reply != "" {
			if _, err := c.Write([]byte(reply)); err != nil {
				return gnet.Close
			}
		}
		if action != gnet.None {
			return action
		}
	}

	if len(cl.pending) > maxCommandLength {
		s.logger.Warn("client command too long", "id", cl.id)
		return gnet.Close
	}
	return gnet.None
}

func (s *Server) handleCommand(cl *client, line string) (string, gnet.Action) {
	switch {
	case strings.HasPrefix(line, "level="):
		level, err := logstream.Level(strings.TrimPrefix(line, "level="))
		if err != nil {
			return fmt.Sprintf("error: %v\n", err), gnet.None
		}
		cl.level.Store(level)
		s.logger.Debug("client filter changed", "id", cl.id, "level", logstream.LevelName(level))
		return fmt.Sprintf("ok level=%s\n", logstream.LevelName(level)), gnet.None
	case line == "stats":
		st := s.bus.Stats()
		return fmt.Sprintf("ok published=%d subscribers=%d history=%d/%d clients=%d\n",
			st.Published, st.Subscribers, st.HistoryLen, st.HistoryCap, s.Clients()), gnet.None
	case line == "quit":
		return "bye\n", gnet.Close
	default:
		return fmt.Sprintf("error: unknown command %q\n", line), gnet.None
	}
}

// broadcast runs on the publishing goroutine under the bus lock and must not log
func (s *Server) broadcast(r logstream.Record) {
	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for _, cl := range s.clients {
		if r.Level >= cl.level.Load() {
			targets = append(targets, cl)
		}
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return
	}
	line := logstream.AppendJSON(nil, r, s.tsFormat)
	for _, cl := range targets {
		_ = cl.conn.AsyncWrite(line, nil)
	}
}

func (s *Server) banner(id string) []byte {
	st := s.bus.Stats()
	return fmt.Appendf(nil, `{"connection":"%s","published":%d,"history_len":%d,"history_cap":%d}`+"\n",
		id, st.Published, st.HistoryLen, st.HistoryCap)
}
