package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMemberSendsPersonalizedJoinFrames(t *testing.T) {
	s := newTestServer(t)
	a, recA := newSession(t, s, "Alice Smith")
	b, recB := newSession(t, s, "Bob Jones")

	ch := NewChannel("general")
	ch.AddMember(a, "\n")
	recA.waitFor(t, "You have joined the channel general!", waitShort)

	ch.AddMember(b, "\n")
	outB := recB.waitFor(t, "You have joined the channel general!", waitShort)
	outA := recA.waitFor(t, "bobj has joined the channel general!", waitShort)

	// The join frame carries the roster between the first pair of pipes.
	assert.Contains(t, outB, "|alices bobj|")
	assert.Contains(t, outA, "|alices bobj|")

	// Rejoining is a silent no-op.
	ch.AddMember(b, "\n")
	assert.Equal(t, 2, ch.Size())
}

func TestBroadcastPrefixes(t *testing.T) {
	s := newTestServer(t)
	a, recA := newSession(t, s, "Alice Smith")
	b, recB := newSession(t, s, "Bob Jones")

	ch := NewChannel("general")
	ch.AddMember(a, "\n")
	ch.AddMember(b, "\n")

	ch.Broadcast("hello world\n", "alices")
	recA.waitFor(t, "You: hello world", waitShort)
	out := recB.waitFor(t, "alices: hello world", waitShort)
	assert.NotContains(t, out, "You: hello world")

	ch.BroadcastRaw("<|*|> maintenance soon <|*|>\n")
	recA.waitFor(t, "<|*|> maintenance soon <|*|>", waitShort)
	recB.waitFor(t, "<|*|> maintenance soon <|*|>", waitShort)
}

func TestRemoveMemberAnnouncesLeave(t *testing.T) {
	s := newTestServer(t)
	a, _ := newSession(t, s, "Alice Smith")
	b, recB := newSession(t, s, "Bob Jones")

	ch := NewChannel("general")
	ch.AddMember(a, "\n")
	ch.AddMember(b, "\n")

	ch.RemoveMember(a)
	recB.waitFor(t, "> alices has left the channel general", waitShort)
	assert.Equal(t, 1, ch.Size())
	assert.False(t, ch.Has(a))

	// Removing a non-member announces nothing.
	before := recB.String()
	ch.RemoveMember(a)
	assert.Equal(t, strings.Count(before, "has left"), strings.Count(recB.String(), "has left"))
}

func TestRosterUpdateFrame(t *testing.T) {
	s := newTestServer(t)
	a, recA := newSession(t, s, "Alice Smith")

	ch := NewChannel("general")
	ch.AddMember(a, "\n")

	ch.RosterUpdate()
	recA.waitFor(t, "/supdate|alices", waitShort)
}

func TestSetTopicBroadcastsNotice(t *testing.T) {
	s := newTestServer(t)
	a, recA := newSession(t, s, "Alice Smith")

	ch := NewChannel("general")
	ch.AddMember(a, "\n")

	ch.SetTopic("all things golang")
	require.Equal(t, "all things golang", ch.Topic())
	recA.waitFor(t, "<||> Channel Topic has been changed to all things golang. <||>", waitShort)
}
