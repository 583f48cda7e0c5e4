package chat

import (
	"fmt"
	"strings"
	"sync"
)

// Channel is a named chat room. Members are kept in join order so the
// roster reads the way the original client displays it. A Channel never
// owns its members; the Server owns the connection and identity, the
// channel only holds back-references for fan-out.
type Channel struct {
	mu      sync.Mutex
	name    string
	topic   string
	members []*Client
}

// NewChannel creates an empty channel. Channels are created lazily on the
// first join of an unknown name and are never destroyed.
func NewChannel(name string) *Channel {
	return &Channel{name: name}
}

// Name returns the channel name.
func (ch *Channel) Name() string { return ch.name }

// Topic returns the current topic, "" when unset.
func (ch *Channel) Topic() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.topic
}

// SetTopic replaces the topic and announces the change to every member.
func (ch *Channel) SetTopic(topic string) {
	ch.mu.Lock()
	ch.topic = topic
	members := ch.membersLocked()
	ch.mu.Unlock()

	notice := fmt.Sprintf("<||> Channel Topic has been changed to %s. <||>\n", topic)
	for _, member := range members {
		member.send(notice)
	}
}

// AddMember appends the user to the roster and sends the join frame to
// every member, exactly once each: "You have joined" to the joiner,
// "<name> has joined" to everyone else. The frame carries the roster and
// the channel's transcript history so the client can rebuild its view.
func (ch *Channel) AddMember(joiner *Client, history string) {
	ch.mu.Lock()
	if ch.hasLocked(joiner) {
		ch.mu.Unlock()
		return
	}
	ch.members = append(ch.members, joiner)
	members := ch.membersLocked()
	roster := ch.rosterLocked()
	ch.mu.Unlock()

	joinerName := joiner.Username()
	for _, member := range members {
		who := joinerName + " has"
		if member == joiner {
			who = "You have"
		}
		member.send(fmt.Sprintf("\n\n> %s joined the channel %s!\n|%s|%s", who, ch.name, roster, history))
	}
	metricBroadcasts.Add(float64(len(members)))
}

// RemoveMember drops the user from the roster, a no-op when absent, and
// tells the remaining members that the user left.
func (ch *Channel) RemoveMember(user *Client) {
	ch.mu.Lock()
	found := false
	for i, member := range ch.members {
		if member == user {
			ch.members = append(ch.members[:i], ch.members[i+1:]...)
			found = true
			break
		}
	}
	members := ch.membersLocked()
	ch.mu.Unlock()

	if !found {
		return
	}
	notice := fmt.Sprintf("\n> %s has left the channel %s\n", user.Username(), ch.name)
	for _, member := range members {
		member.send(notice)
	}
}

// Broadcast delivers text to every member. The member whose username
// matches senderUsername sees it as "You: ", everyone else sees the
// sender's username as the prefix. An empty senderUsername delivers the
// text unprefixed (equivalent to BroadcastRaw).
func (ch *Channel) Broadcast(text, senderUsername string) {
	ch.mu.Lock()
	members := ch.membersLocked()
	ch.mu.Unlock()

	for _, member := range members {
		switch {
		case senderUsername == "":
			member.send(text)
		case member.Username() == senderUsername:
			member.send("You: " + text)
		default:
			member.send(senderUsername + ": " + text)
		}
	}
	metricBroadcasts.Add(float64(len(members)))
}

// BroadcastRaw sends identical bytes to every member, no prefixing.
func (ch *Channel) BroadcastRaw(text string) {
	ch.Broadcast(text, "")
}

// RosterUpdate sends every member a roster-replacement frame. The client
// swaps its user list instead of appending a chat line.
func (ch *Channel) RosterUpdate() {
	ch.mu.Lock()
	roster := ch.rosterLocked()
	members := ch.membersLocked()
	ch.mu.Unlock()

	frame := "/supdate|" + roster
	for _, member := range members {
		member.send(frame)
	}
}

// Roster returns the space-joined usernames of the members, in join order.
func (ch *Channel) Roster() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.rosterLocked()
}

// Size returns the member count.
func (ch *Channel) Size() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return len(ch.members)
}

// Has reports whether the user is a member.
func (ch *Channel) Has(user *Client) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.hasLocked(user)
}

// Members returns a copy of the member list.
func (ch *Channel) Members() []*Client {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.membersLocked()
}

// Info returns a point-in-time snapshot for listings.
func (ch *Channel) Info() ChannelInfo {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ChannelInfo{
		Name:    ch.name,
		Topic:   ch.topic,
		Members: len(ch.members),
		Roster:  ch.rosterLocked(),
	}
}

func (ch *Channel) hasLocked(user *Client) bool {
	for _, member := range ch.members {
		if member == user {
			return true
		}
	}
	return false
}

func (ch *Channel) membersLocked() []*Client {
	out := make([]*Client, len(ch.members))
	copy(out, ch.members)
	return out
}

func (ch *Channel) rosterLocked() string {
	names := make([]string, 0, len(ch.members))
	for _, member := range ch.members {
		names = append(names, member.Username())
	}
	return strings.Join(names, " ")
}
