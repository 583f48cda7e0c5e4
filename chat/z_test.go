package chat_test

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Perronef5/IRC-Chat-App/chat"
	"github.com/Perronef5/IRC-Chat-App/chat/config"
)

// testClient drives a live TCP connection the way the desktop client
// does: lines out, raw frames in. Server frames embed newlines, so the
// reader accumulates bytes instead of splitting lines.
type testClient struct {
	t    *testing.T
	conn net.Conn

	mu  sync.Mutex
	buf strings.Builder
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("failed to connect to %s: %v", addr, err)
	}
	tc := &testClient{t: t, conn: conn}
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				tc.mu.Lock()
				tc.buf.Write(buf[:n])
				tc.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	t.Cleanup(tc.Close)
	return tc
}

func (tc *testClient) SendLine(line string) {
	tc.t.Helper()
	if _, err := tc.conn.Write([]byte(line + "\n")); err != nil {
		tc.t.Fatalf("failed to send %q: %v", line, err)
	}
}

func (tc *testClient) Received() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.buf.String()
}

// WaitFor blocks until substr arrives, returning everything received so far.
func (tc *testClient) WaitFor(substr string, timeout time.Duration) string {
	tc.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s := tc.Received(); strings.Contains(s, substr) {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	tc.t.Fatalf("timed out waiting for %q, received so far:\n%s", substr, tc.Received())
	return ""
}

func (tc *testClient) Close() {
	tc.conn.Close()
}

const waitFrame = 2 * time.Second

func TestChatServerIntegration(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Chat.OperatorPassword = "secret"
	cfg.Chat.MessageRate = 1000
	cfg.Chat.MessageBurst = 1000
	cfg.Chat.WriteTimeoutSeconds = 2
	cfg.Transcript.Dir = t.TempDir()

	server, err := chat.NewServer(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown()
	addr := server.Addr().String()

	// STEP 1: alice connects; a one-word name is re-prompted, a full name
	// registers.
	alice := dialTestClient(t, addr)
	alice.WaitFor("What is your full name?", waitFrame)
	alice.SendLine("Alice")
	alice.WaitFor("Please enter your full name(first and last. middle optional).", waitFrame)
	alice.SendLine("Alice Smith")
	alice.WaitFor("Welcome alices, type /help for a list of helpful commands.", waitFrame)

	// STEP 2: bob connects and registers.
	bob := dialTestClient(t, addr)
	bob.WaitFor("What is your full name?", waitFrame)
	bob.SendLine("Bob Jones")
	bob.WaitFor("Welcome bobj, type /help for a list of helpful commands.", waitFrame)

	// STEP 3: both join the same channel.
	alice.SendLine("/join general")
	alice.WaitFor("You have joined the channel general!", waitFrame)

	bob.SendLine("/join general")
	bob.WaitFor("You have joined the channel general!", waitFrame)
	joined := alice.WaitFor("bobj has joined the channel general!", waitFrame)
	if !strings.Contains(joined, "|alices bobj|") {
		t.Errorf("join frame missing roster, got:\n%s", joined)
	}

	// STEP 4: channel chat with sender-relative prefixes.
	alice.SendLine("hello bob")
	alice.WaitFor("You: hello bob", waitFrame)
	bob.WaitFor("alices: hello bob", waitFrame)

	// STEP 5: query commands.
	bob.SendLine("/whois alices")
	bob.WaitFor("<fullname>: Alice Smith, <username>: alices, <status>: Online", waitFrame)

	bob.SendLine("/list")
	bob.WaitFor("general: 2 user(s)", waitFrame)

	// STEP 6: a second Bob Jones gets a suffixed username.
	bob2 := dialTestClient(t, addr)
	bob2.WaitFor("What is your full name?", waitFrame)
	bob2.SendLine("Bob Jones")
	bob2.WaitFor("Welcome bobj2, type /help for a list of helpful commands.", waitFrame)

	// STEP 7: transcript replay on join.
	bob2.SendLine("/join general")
	frame := bob2.WaitFor("You have joined the channel general!", waitFrame)
	if !strings.Contains(frame, "alices: hello bob") {
		t.Errorf("join frame missing channel history, got:\n%s", frame)
	}

	// STEP 8: /oper then /kick.
	alice.SendLine("/oper alices secret")
	alice.WaitFor("Successfully changed from user to Channel Operator.", waitFrame)
	alice.SendLine("/kick general bobj2")
	bob2.WaitFor("You have been removed from channel general by alices.", waitFrame)
	alice.WaitFor("bobj2 has left the channel general", waitFrame)

	// STEP 9: alice quits; the channel hears about it.
	alice.SendLine("/quit")
	alice.WaitFor("/quit", waitFrame)
	alice.Close()
	bob.WaitFor("alices has left the channel general", waitFrame)

	stats := server.Stats()
	if stats.TotalConnections < 3 {
		t.Errorf("expected at least 3 connections, got %d", stats.TotalConnections)
	}

	// STEP 10: shutdown pushes the forced-disconnect sentinel.
	server.Shutdown()
	bob.WaitFor("/squit", waitFrame)

	select {
	case <-server.Done():
	case <-time.After(waitFrame):
		t.Fatal("server did not finish shutting down")
	}
}
