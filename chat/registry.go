package chat

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry owns every piece of state shared between connection handlers:
// the connected users keyed by username, the channels keyed by name, and
// the at-most-one channel each user occupies. One mutex guards the lot.
// The user map and the channel map can never disagree because every
// logical operation (register, unregister, rename, join, leave, kick)
// runs as a single critical section over both.
type Registry struct {
	mu              sync.RWMutex
	usersByUsername map[string]*Client
	channelsByName  map[string]*Channel
	userToChannel   map[string]string

	store TranscriptStore
	log   zerolog.Logger
}

// NewRegistry returns an empty registry persisting channel history to store.
func NewRegistry(store TranscriptStore, log zerolog.Logger) *Registry {
	return &Registry{
		usersByUsername: make(map[string]*Client),
		channelsByName:  make(map[string]*Channel),
		userToChannel:   make(map[string]string),
		store:           store,
		log:             log,
	}
}

// Register claims a username for the client, starting from base and
// suffixing a counter until the name collides with neither a username nor
// a nickname already in use. The assigned name doubles as the initial
// nickname. Returns the assigned username.
func (r *Registry) Register(c *Client, base string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	username := base
	for i := 2; r.takenLocked(username); i++ {
		username = fmt.Sprintf("%s%d", base, i)
	}

	c.setNames(username, username)
	r.usersByUsername[username] = c
	metricUsers.Set(float64(len(r.usersByUsername)))
	r.log.Info().Str("username", username).Str("session", c.ID()).Msg("user registered")
	return username
}

// Unregister removes the client from the registry and from its channel,
// announcing the leave to the remaining members. Safe to call for clients
// that never completed registration and safe to call twice.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username := c.Username()
	if username == "" {
		return
	}
	if registered, ok := r.usersByUsername[username]; !ok || registered != c {
		return
	}

	r.leaveLocked(c)
	delete(r.usersByUsername, username)
	metricUsers.Set(float64(len(r.usersByUsername)))
	r.log.Info().Str("username", username).Msg("user unregistered")
}

// FindByUsername looks a user up by exact username. Callers fold case
// before calling; the registry does not.
func (r *Registry) FindByUsername(name string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.usersByUsername[name]
	if !ok {
		return nil, ErrUserNotFound
	}
	return c, nil
}

// FindByNickname looks a user up by exact nickname.
func (r *Registry) FindByNickname(name string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.usersByUsername {
		if c.Nickname() == name {
			return c, nil
		}
	}
	return nil, ErrUserNotFound
}

// Rename changes the client's nickname, and with it the username key the
// registry and the channel mapping are indexed by. Fails with
// ErrNicknameTaken when another user holds the name; in that case nothing
// changes. On success both maps are re-keyed in the same critical section,
// so no observer ever sees the old key resolve alongside the new one, and
// channel membership follows the renamed identity.
func (r *Registry) Rename(c *Client, newNick string) (string, error) {
	r.mu.Lock()

	for _, other := range r.usersByUsername {
		if other == c {
			continue
		}
		if other.Nickname() == newNick || other.Username() == newNick {
			r.mu.Unlock()
			return "", ErrNicknameTaken
		}
	}

	oldUsername := c.Username()
	delete(r.usersByUsername, oldUsername)
	c.setNames(newNick, newNick)
	r.usersByUsername[newNick] = c

	var channel *Channel
	if channelName, ok := r.userToChannel[oldUsername]; ok {
		delete(r.userToChannel, oldUsername)
		r.userToChannel[newNick] = channelName
		channel = r.channelsByName[channelName]
	}
	r.mu.Unlock()

	// The member list holds the same *Client, so the roster text is
	// already correct; the members just need a refresh frame.
	if channel != nil {
		channel.RosterUpdate()
	}
	r.log.Info().Str("old", oldUsername).Str("new", newNick).Msg("user renamed")
	return oldUsername, nil
}

// JoinChannel moves the user into the named channel: leaves the current
// channel if any (announcing it), lazily creates the target, replays its
// transcript into the join frame, and records the new mapping. The whole
// sequence is one critical section; no concurrent observer can catch the
// user in zero or two channels. Joining the channel the user is already
// in returns ErrAlreadyInChannel and changes nothing.
func (r *Registry) JoinChannel(c *Client, channelName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	username := c.Username()
	if current, ok := r.userToChannel[username]; ok {
		if current == channelName {
			return ErrAlreadyInChannel
		}
		r.leaveLocked(c)
	}

	channel, ok := r.channelsByName[channelName]
	if !ok {
		channel = NewChannel(channelName)
		r.channelsByName[channelName] = channel
		metricChannels.Set(float64(len(r.channelsByName)))
		r.log.Info().Str("channel", channelName).Msg("channel created")
	}

	history, err := r.store.ReadAll(channelName)
	if err != nil {
		// History is best effort; the join still has to happen.
		r.log.Error().Err(err).Str("channel", channelName).Msg("failed to load transcript")
		history = ""
	}

	channel.AddMember(c, "\n"+history)
	r.userToChannel[username] = channelName
	return nil
}

// LeaveChannel removes the user from their current channel.
func (r *Registry) LeaveChannel(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.userToChannel[c.Username()]; !ok {
		return ErrNotInChannel
	}
	r.leaveLocked(c)
	return nil
}

// KickFromChannel forcibly removes target from the named channel and
// clears the mapping if it pointed there. The membership removal is a
// silent no-op if the target is not a member.
func (r *Registry) KickFromChannel(channelName string, target *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	channel, ok := r.channelsByName[channelName]
	if !ok {
		return ErrChannelNotFound
	}
	if current, ok := r.userToChannel[target.Username()]; ok && current == channelName {
		delete(r.userToChannel, target.Username())
	}
	channel.RemoveMember(target)
	return nil
}

// CurrentChannel returns the channel the user occupies, if any.
func (r *Registry) CurrentChannel(c *Client) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channelName, ok := r.userToChannel[c.Username()]
	if !ok {
		return nil, false
	}
	channel, ok := r.channelsByName[channelName]
	return channel, ok
}

// Channel returns the channel with the given name, if it exists.
func (r *Registry) Channel(name string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channel, ok := r.channelsByName[name]
	return channel, ok
}

// Channels returns snapshots of every channel, sorted by name. Empty
// channels are included: they persist along with their transcripts.
func (r *Registry) Channels() []ChannelInfo {
	r.mu.RLock()
	channels := make([]*Channel, 0, len(r.channelsByName))
	for _, channel := range r.channelsByName {
		channels = append(channels, channel)
	}
	r.mu.RUnlock()

	infos := make([]ChannelInfo, 0, len(channels))
	for _, channel := range channels {
		infos = append(infos, channel.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Users returns the connected users, sorted by username.
func (r *Registry) Users() []*Client {
	r.mu.RLock()
	users := make([]*Client, 0, len(r.usersByUsername))
	for _, c := range r.usersByUsername {
		users = append(users, c)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i].Username() < users[j].Username() })
	return users
}

// UserInfos returns user snapshots including the channel mapping.
func (r *Registry) UserInfos() []UserInfo {
	r.mu.RLock()
	infos := make([]UserInfo, 0, len(r.usersByUsername))
	for username, c := range r.usersByUsername {
		info := c.Info()
		info.Channel = r.userToChannel[username]
		infos = append(infos, info)
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Username < infos[j].Username })
	return infos
}

// UserCount returns the number of registered users.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.usersByUsername)
}

// ChannelCount returns the number of channels ever created.
func (r *Registry) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channelsByName)
}

// Broadcast sends identical bytes to every registered user, channel or not.
func (r *Registry) Broadcast(text string) {
	for _, c := range r.Users() {
		c.send(text)
	}
}

// BroadcastToOperators sends text to every user holding the
// ChannelOperator role.
func (r *Registry) BroadcastToOperators(text string) {
	for _, c := range r.Users() {
		if c.Role() == RoleChannelOperator {
			c.send(text)
		}
	}
}

// leaveLocked removes the client from its current channel under the
// registry lock, broadcasting the leave.
func (r *Registry) leaveLocked(c *Client) {
	username := c.Username()
	channelName, ok := r.userToChannel[username]
	if !ok {
		return
	}
	delete(r.userToChannel, username)
	if channel, ok := r.channelsByName[channelName]; ok {
		channel.RemoveMember(c)
	}
}

// takenLocked reports whether name collides with any username or nickname.
func (r *Registry) takenLocked(name string) bool {
	if _, ok := r.usersByUsername[name]; ok {
		return true
	}
	for _, c := range r.usersByUsername {
		if c.Nickname() == name {
			return true
		}
	}
	return false
}
