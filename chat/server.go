package chat

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/Perronef5/IRC-Chat-App/chat/config"
)

// Server owns the TCP listener, the session set and the registry. One
// Server instance serves one network; a /restart tears it down and the
// launcher builds a fresh one.
type Server struct {
	config   *config.Config
	registry *Registry
	store    TranscriptStore
	log      zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]*Client
	restart  bool

	shutdown chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	stats *ServerStats
}

// ServerStats holds real-time server statistics.
type ServerStats struct {
	sync.RWMutex
	StartTime        time.Time
	TotalConnections int
	PeakSessions     int
}

// StatsSnapshot is a point-in-time copy of the server counters, shaped
// for the admin portal's JSON endpoints.
type StatsSnapshot struct {
	StartTime        time.Time `json:"start_time"`
	Uptime           string    `json:"uptime"`
	TotalConnections int       `json:"total_connections"`
	CurrentSessions  int       `json:"current_sessions"`
	PeakSessions     int       `json:"peak_sessions"`
	Users            int       `json:"users"`
	Channels         int       `json:"channels"`
}

// NewServer builds a server from configuration. The transcript backend
// is chosen here: sqlite via gorm, or the plain per-channel text files
// the network started with.
func NewServer(cfg *config.Config) (*Server, error) {
	logger := zlog.With().Str("component", "chatd").Logger()

	var store TranscriptStore
	var err error
	switch cfg.Transcript.Backend {
	case "sqlite":
		store, err = NewGormStore(cfg.Transcript.DSN)
	default:
		store, err = NewFileStore(cfg.Transcript.Dir)
	}
	if err != nil {
		return nil, fmt.Errorf("transcript store: %w", err)
	}

	s := &Server{
		config:   cfg,
		store:    store,
		log:      logger,
		sessions: make(map[string]*Client),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		stats:    &ServerStats{StartTime: time.Now()},
	}
	s.registry = NewRegistry(store, logger.With().Str("component", "registry").Logger())
	return s, nil
}

// Start binds the chat listener and begins accepting connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.ListenAddr())
	if err != nil {
		return fmt.Errorf("failed to start chat listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info().Str("addr", listener.Addr().String()).Msg("chat server started")

	go s.acceptConnections(listener)
	return nil
}

// Addr returns the bound listener address, for callers that started the
// server on port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// acceptConnections accepts incoming client connections until the
// listener closes.
func (s *Server) acceptConnections(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				s.log.Error().Err(err).Msg("accept failed")
				continue
			}
		}

		metricConnections.Inc()

		client := newClient(s, conn)
		s.addSession(client)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			client.handleConnection()
		}()
	}
}

func (s *Server) addSession(c *Client) {
	s.mu.Lock()
	s.sessions[c.ID()] = c
	current := len(s.sessions)
	s.mu.Unlock()

	s.stats.Lock()
	s.stats.TotalConnections++
	if current > s.stats.PeakSessions {
		s.stats.PeakSessions = current
	}
	s.stats.Unlock()
}

func (s *Server) removeSession(c *Client) {
	s.mu.Lock()
	delete(s.sessions, c.ID())
	s.mu.Unlock()
}

// SessionCount reports how many connections are currently open,
// registered or not.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ShuttingDown reports whether Shutdown has begun.
func (s *Server) ShuttingDown() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

// RequestRestart marks the server for restart; the launcher consults
// RestartRequested after Done closes and decides whether to come back up.
func (s *Server) RequestRestart() {
	s.mu.Lock()
	s.restart = true
	s.mu.Unlock()
}

// RestartRequested reports whether a /restart triggered this shutdown.
func (s *Server) RestartRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restart
}

// Done closes once shutdown has fully completed.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Registry exposes the session and channel registry, mainly for the
// admin portal and tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Config returns the active server configuration.
func (s *Server) Config() *config.Config {
	return s.config
}

// Shutdown disconnects every client and stops the listener. Safe to call
// more than once and from session goroutines; the blocking wait runs here,
// so command handlers must invoke it on a fresh goroutine.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() {
		s.log.Info().Msg("stopping chat server")

		close(s.shutdown)

		// Forced-disconnect sentinel; clients close their side on
		// receipt.
		s.registry.Broadcast("/squit")

		s.mu.Lock()
		listener := s.listener
		s.listener = nil
		clients := make([]*Client, 0, len(s.sessions))
		for _, c := range s.sessions {
			clients = append(clients, c)
		}
		s.mu.Unlock()

		if listener != nil {
			listener.Close()
		}
		for _, c := range clients {
			c.close()
		}

		s.wg.Wait()
		s.log.Info().Msg("chat server stopped")
		close(s.done)
	})
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() StatsSnapshot {
	s.stats.RLock()
	snap := StatsSnapshot{
		StartTime:        s.stats.StartTime,
		Uptime:           time.Since(s.stats.StartTime).Round(time.Second).String(),
		TotalConnections: s.stats.TotalConnections,
		PeakSessions:     s.stats.PeakSessions,
	}
	s.stats.RUnlock()

	snap.CurrentSessions = s.SessionCount()
	snap.Users = s.registry.UserCount()
	snap.Channels = s.registry.ChannelCount()
	return snap
}

// checkOperatorPassword validates an /oper secret. When a bcrypt hash is
// configured it wins over the plaintext setting.
func (s *Server) checkOperatorPassword(password string) bool {
	return s.config.CheckOperatorPassword(password)
}
