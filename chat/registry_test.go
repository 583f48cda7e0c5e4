package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSuffixesCollidingUsernames(t *testing.T) {
	s := newTestServer(t)

	a, _ := newSession(t, s, "Alice Smith")
	b, _ := newSession(t, s, "Alice Smith")
	c, _ := newSession(t, s, "Alice Smith")

	assert.Equal(t, "alices", a.Username())
	assert.Equal(t, "alices2", b.Username())
	assert.Equal(t, "alices3", c.Username())
	assert.Equal(t, 3, s.registry.UserCount())
}

func TestUnregisterFreesUsername(t *testing.T) {
	s := newTestServer(t)

	a, _ := newSession(t, s, "Alice Smith")
	s.registry.Unregister(a)
	assert.Equal(t, 0, s.registry.UserCount())

	// Double unregister is a no-op.
	s.registry.Unregister(a)

	b, _ := newSession(t, s, "Alice Smith")
	assert.Equal(t, "alices", b.Username())
}

func TestRenameRekeysRegistryAndChannel(t *testing.T) {
	s := newTestServer(t)

	a, _ := newSession(t, s, "Alice Smith")
	require.NoError(t, s.registry.JoinChannel(a, "general"))

	old, err := s.registry.Rename(a, "ace")
	require.NoError(t, err)
	assert.Equal(t, "alices", old)
	assert.Equal(t, "ace", a.Username())
	assert.Equal(t, "ace", a.Nickname())

	_, err = s.registry.FindByUsername("alices")
	assert.ErrorIs(t, err, ErrUserNotFound)
	found, err := s.registry.FindByUsername("ace")
	require.NoError(t, err)
	assert.Same(t, a, found)

	// Channel membership follows the renamed identity.
	channel, ok := s.registry.CurrentChannel(a)
	require.True(t, ok)
	assert.Equal(t, "general", channel.Name())
	assert.True(t, channel.Has(a))
}

func TestRenameConflictChangesNothing(t *testing.T) {
	s := newTestServer(t)

	a, _ := newSession(t, s, "Alice Smith")
	newSession(t, s, "Bob Jones")

	_, err := s.registry.Rename(a, "bobj")
	assert.ErrorIs(t, err, ErrNicknameTaken)
	assert.Equal(t, "alices", a.Username())

	found, err := s.registry.FindByUsername("alices")
	require.NoError(t, err)
	assert.Same(t, a, found)
}

func TestJoinChannelMovesBetweenChannels(t *testing.T) {
	s := newTestServer(t)

	a, _ := newSession(t, s, "Alice Smith")
	require.NoError(t, s.registry.JoinChannel(a, "general"))

	assert.ErrorIs(t, s.registry.JoinChannel(a, "general"), ErrAlreadyInChannel)

	require.NoError(t, s.registry.JoinChannel(a, "random"))
	channel, ok := s.registry.CurrentChannel(a)
	require.True(t, ok)
	assert.Equal(t, "random", channel.Name())

	// The vacated channel persists, empty.
	general, ok := s.registry.Channel("general")
	require.True(t, ok)
	assert.Equal(t, 0, general.Size())
	assert.False(t, general.Has(a))

	require.NoError(t, s.registry.LeaveChannel(a))
	assert.ErrorIs(t, s.registry.LeaveChannel(a), ErrNotInChannel)
}

func TestJoinReplaysTranscript(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.store.Append("general", "bobj: hello there\n"))

	_, rec := newSession(t, s, "Alice Smith")
	a, _ := s.registry.FindByUsername("alices")
	require.NoError(t, s.registry.JoinChannel(a, "general"))

	out := rec.waitFor(t, "joined the channel general", waitShort)
	assert.Contains(t, out, "bobj: hello there")
}

func TestKickClearsChannelMapping(t *testing.T) {
	s := newTestServer(t)

	a, _ := newSession(t, s, "Alice Smith")
	require.NoError(t, s.registry.JoinChannel(a, "general"))

	require.NoError(t, s.registry.KickFromChannel("general", a))
	_, ok := s.registry.CurrentChannel(a)
	assert.False(t, ok)

	// Kicked users can rejoin immediately.
	require.NoError(t, s.registry.JoinChannel(a, "general"))

	assert.ErrorIs(t, s.registry.KickFromChannel("nowhere", a), ErrChannelNotFound)
}

func TestConcurrentJoinsCreateOneChannel(t *testing.T) {
	s := newTestServer(t)

	const n = 16
	clients := make([]*Client, n)
	for i := range clients {
		clients[i], _ = newSession(t, s, fmt.Sprintf("User Number%d", i))
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			s.registry.JoinChannel(c, "general")
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 1, s.registry.ChannelCount())
	channel, ok := s.registry.Channel("general")
	require.True(t, ok)
	assert.Equal(t, n, channel.Size())
	for _, c := range clients {
		current, ok := s.registry.CurrentChannel(c)
		require.True(t, ok)
		assert.Same(t, channel, current)
	}
}
