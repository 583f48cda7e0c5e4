package chat

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Perronef5/IRC-Chat-App/chat/config"
)

const waitShort = 2 * time.Second

// newTestServer builds a server that is never started; tests drive its
// registry and sessions directly over net.Pipe connections.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Chat.OperatorPassword = "hunter2"
	cfg.Chat.MessageRate = 1000
	cfg.Chat.MessageBurst = 1000
	cfg.Chat.WriteTimeoutSeconds = 2
	cfg.Transcript.Dir = t.TempDir()

	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	s.log = zerolog.Nop()
	s.registry.log = zerolog.Nop()
	return s
}

// recorder drains one side of a pipe so server-side writes never block,
// and keeps everything read for assertions.
type recorder struct {
	mu  sync.Mutex
	buf strings.Builder
}

func record(conn net.Conn) *recorder {
	r := &recorder{}
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				r.mu.Lock()
				r.buf.Write(buf[:n])
				r.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	return r
}

func (r *recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

// waitFor polls until substr shows up in the recorded output, returning
// everything recorded so far.
func (r *recorder) waitFor(t *testing.T, substr string, timeout time.Duration) string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s := r.String(); strings.Contains(s, substr) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, output so far:\n%s", substr, r.String())
	return ""
}

// newSession hooks a registered client up to the server over a pipe. Pass
// an empty fullName to get an unregistered session.
func newSession(t *testing.T, s *Server, fullName string) (*Client, *recorder) {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() {
		serverSide.Close()
		clientSide.Close()
	})

	rec := record(clientSide)
	c := newClient(s, serverSide)
	if fullName != "" {
		c.SetFullName(fullName)
		s.registry.Register(c, deriveUsername(fullName))
		c.mu.Lock()
		c.registered = true
		c.mu.Unlock()
	}
	return c, rec
}
