package chat

import "strings"

// Status is a user's availability on the network.
type Status string

const (
	StatusOnline Status = "Online"
	StatusAway   Status = "Away"
)

// Role controls access to moderation commands.
type Role string

const (
	RoleMember          Role = "member"
	RoleChannelOperator Role = "operator"
)

// deriveUsername builds a username from a full name: first name plus the
// initial of the last name, lower-cased. Returns "" when the input does not
// contain at least a first and a last name, which makes the session re-prompt.
func deriveUsername(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) < 2 {
		return ""
	}
	first := fields[0]
	last := []rune(fields[len(fields)-1])
	return strings.ToLower(first + string(last[0]))
}

// UserInfo is a read-only snapshot of a connected user, served by the
// read-only query commands and the admin portal.
type UserInfo struct {
	SessionID   string `json:"session_id"`
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
	FullName    string `json:"full_name"`
	Status      Status `json:"status"`
	AwayMessage string `json:"away_message,omitempty"`
	Role        Role   `json:"role"`
	Channel     string `json:"channel,omitempty"`
	RemoteAddr  string `json:"remote_addr"`
}

// ChannelInfo is a read-only snapshot of a channel.
type ChannelInfo struct {
	Name    string `json:"name"`
	Topic   string `json:"topic,omitempty"`
	Members int    `json:"members"`
	Roster  string `json:"roster"`
}
