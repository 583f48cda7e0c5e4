package chat

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	welcomeMessage     = "\n> Welcome to our chat app!!! What is your full name?\n"
	fullNamePrompt     = "\n> Please enter your full name(first and last. middle optional).\n"
	floodNotice        = "<||> You are sending messages too quickly. The last line was dropped. <||>\n"
	notInChannelNotice = "\n> You are currently not in any channels:\n\n" +
		"Use /list to see a list of available channels.\n" +
		"Use /join [channel name] to join a channel.\n\n"
)

// Client is the server side of one connection: the session state machine
// plus the identity record of the user behind it. It moves through
// connecting, negotiating (until a usable full name arrives), active (the
// command loop), and closing. Every path out of the loop runs the same
// teardown, so a session can never exit without unregistering.
type Client struct {
	conn    net.Conn
	server  *Server
	id      string
	limiter *rate.Limiter
	log     zerolog.Logger

	// identity, guarded by mu
	mu          sync.RWMutex
	fullName    string
	username    string
	nickname    string
	status      Status
	awayMessage string
	role        Role
	registered  bool
	quitting    bool
	closed      bool

	writer  *bufio.Writer
	writeMu sync.Mutex
}

// newClient wraps an accepted connection in a session.
func newClient(server *Server, conn net.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		conn:    conn,
		server:  server,
		id:      id,
		status:  StatusOnline,
		role:    RoleMember,
		writer:  bufio.NewWriter(conn),
		limiter: rate.NewLimiter(rate.Limit(server.config.Chat.MessageRate), server.config.Chat.MessageBurst),
		log: server.log.With().
			Str("session", id).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

// handleConnection runs the session from greeting to teardown. It is the
// goroutine started by the accept loop.
func (c *Client) handleConnection() {
	defer c.close()

	c.log.Info().Msg("client connected")
	c.send(welcomeMessage)

	reader := textproto.NewReader(bufio.NewReader(c.conn))

	if !c.negotiate(reader) {
		return
	}

	for {
		line, err := reader.ReadLine()
		if err != nil {
			if err != io.EOF {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if c.server.ShuttingDown() {
			return
		}
		if line == "" {
			continue
		}
		if !c.limiter.Allow() {
			metricDroppedLines.Inc()
			c.send(floodNotice)
			continue
		}

		c.dispatch(line)

		if c.isQuitting() {
			return
		}
	}
}

// negotiate prompts until the client supplies a full name that yields a
// username, then registers the identity. Returns false when the peer went
// away first.
func (c *Client) negotiate(reader *textproto.Reader) bool {
	for {
		line, err := reader.ReadLine()
		if err != nil {
			c.log.Debug().Err(err).Msg("disconnected during negotiation")
			return false
		}
		base := deriveUsername(line)
		if base == "" {
			c.send(fullNamePrompt)
			continue
		}

		c.mu.Lock()
		c.fullName = strings.TrimSpace(line)
		c.mu.Unlock()

		username := c.server.registry.Register(c, base)
		c.mu.Lock()
		c.registered = true
		c.mu.Unlock()

		c.log.Info().Str("username", username).Msg("negotiation complete")
		c.send(fmt.Sprintf("\n> Welcome %s, type /help for a list of helpful commands.\n\n", username))
		return true
	}
}

// close is the single teardown path: unregister from the registries, drop
// the session from the server, close the socket. Idempotent.
func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.quitting = true
	c.mu.Unlock()

	c.server.registry.Unregister(c)
	c.server.removeSession(c)
	c.conn.Close()
	c.log.Info().Str("username", c.Username()).Msg("client disconnected")
}

// Kill force-disconnects the session: the /squit token tells the client
// this was not a graceful quit, then the socket closes, which unblocks the
// session's read loop and drives it through the normal teardown.
func (c *Client) Kill() {
	c.send("/squit")
	c.conn.Close()
}

// send writes text to the peer. Writes are bounded by the configured
// deadline so one dead connection cannot stall a channel broadcast held
// behind the same lock.
func (c *Client) send(text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	timeout := c.server.config.WriteTimeout()
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	defer c.conn.SetWriteDeadline(time.Time{})

	if _, err := c.writer.WriteString(text); err != nil {
		c.log.Debug().Err(err).Msg("write failed")
		return
	}
	if err := c.writer.Flush(); err != nil {
		c.log.Debug().Err(err).Msg("flush failed")
	}
}

// markQuit flags the session so the read loop exits after the current
// command.
func (c *Client) markQuit() {
	c.mu.Lock()
	c.quitting = true
	c.mu.Unlock()
}

func (c *Client) isQuitting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quitting
}

// setNames is called by the Registry while it holds the registry lock.
func (c *Client) setNames(username, nickname string) {
	c.mu.Lock()
	c.username = username
	c.nickname = nickname
	c.mu.Unlock()
}

// ID returns the session's UUID.
func (c *Client) ID() string { return c.id }

// RemoteAddr returns the peer address as accepted.
func (c *Client) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Username returns the unique primary key of the identity, "" before
// negotiation finishes.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// Nickname returns the display alias.
func (c *Client) Nickname() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nickname
}

// FullName returns the name given at negotiation (or via /setname).
func (c *Client) FullName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fullName
}

// SetFullName replaces the full name and returns the previous one.
func (c *Client) SetFullName(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.fullName
	c.fullName = name
	return old
}

// Status returns Online or Away.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// AwayMessage returns the message shown to users messaging an away user.
func (c *Client) AwayMessage() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.awayMessage
}

// SetStatus updates availability and the away message together.
func (c *Client) SetStatus(status Status, awayMessage string) {
	c.mu.Lock()
	c.status = status
	c.awayMessage = awayMessage
	c.mu.Unlock()
}

// Role returns the user's role.
func (c *Client) Role() Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// SetRole updates the user's role.
func (c *Client) SetRole(role Role) {
	c.mu.Lock()
	c.role = role
	c.mu.Unlock()
}

// Registered reports whether negotiation completed.
func (c *Client) Registered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

// Info returns an identity snapshot. The channel field is filled in by the
// Registry, which owns that mapping.
func (c *Client) Info() UserInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return UserInfo{
		SessionID:   c.id,
		Username:    c.username,
		Nickname:    c.nickname,
		FullName:    c.fullName,
		Status:      c.status,
		AwayMessage: c.awayMessage,
		Role:        c.role,
		RemoteAddr:  c.conn.RemoteAddr().String(),
	}
}
