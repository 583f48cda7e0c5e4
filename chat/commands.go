package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const serverVersion = "1.0"

const helpMessage = `
<||> The list of commands available are: <||>

/away                       - Set status to Away with an away message, or back to Online.
/clear                      - Clear the chat window.
/connect [server] [port]    - Request a connection to another server.
/die                        - Instructs the server to shut down.
/help                       - Show the instructions.
/info                       - Returns information about the server.
/invite [name] [channel]    - Invite a user to a channel.
/ison [nickname]            - Check to see if users are online.
/join [channel_name]        - To create or switch to a channel.
/kick [channel] [user]      - Kick a user from a channel.
/kill [client]              - Forcibly removes a client from the network.
/knock [channel] [message]  - Sends a message to the target channel.
/list                       - Lists all available channels.
/nick [nickname]            - Changes your nickname.
/notice [nickname] [msg]    - Similar to /privmsg, except no automatic replies.
/oper [username] [password] - Authenticates a user as a Channel Operator.
/ping                       - A Ping message results in a Pong reply.
/pong                       - A Pong message results in a Ping reply.
/privmsg [nickname] [msg]   - Send a private message to a user.
/quit                       - Exits the program.
/restart                    - Restart the server.
/rules                      - Requests the server rules.
/setname [fullname]         - Change the real name specified when registering.
/time                       - Returns the local time on the server.
/topic [channel] [topic]    - Returns or sets the channel topic.
/userhost [nicknames]       - Returns information about the nicknames specified.
/userip [nickname]          - Returns the address of the user with the specified nickname.
/users                      - Returns a list of the users on the network.
/version                    - Returns the version of the server.
/wallops [message]          - Sends a message to all Channel Operators.
/who [fullname]             - Returns the users matching the full name.
/whois [username]           - Returns information about the given username.

`

type command struct {
	name string
	run  func(c *Client, line string)
}

// commandTable is the dispatch table. Order matters twice over: dispatch
// is first-match, and a command token is recognized anywhere in the line,
// not only as a prefix (the documented client contract). /whois therefore
// sits before /who, which every /whois line contains.
var commandTable = []command{
	{"/away", (*Client).cmdAway},
	{"/clear", (*Client).cmdClear},
	{"/connect", (*Client).cmdConnect},
	{"/die", (*Client).cmdDie},
	{"/help", (*Client).cmdHelp},
	{"/info", (*Client).cmdInfo},
	{"/invite", (*Client).cmdInvite},
	{"/ison", (*Client).cmdIson},
	{"/join", (*Client).cmdJoin},
	{"/kick", (*Client).cmdKick},
	{"/kill", (*Client).cmdKill},
	{"/knock", (*Client).cmdKnock},
	{"/list", (*Client).cmdList},
	{"/nick", (*Client).cmdNick},
	{"/notice", (*Client).cmdNotice},
	{"/oper", (*Client).cmdOper},
	{"/ping", (*Client).cmdPing},
	{"/pong", (*Client).cmdPong},
	{"/privmsg", (*Client).cmdPrivmsg},
	{"/quit", (*Client).cmdQuit},
	{"/restart", (*Client).cmdRestart},
	{"/rules", (*Client).cmdRules},
	{"/setname", (*Client).cmdSetname},
	{"/time", (*Client).cmdTime},
	{"/topic", (*Client).cmdTopic},
	{"/userhost", (*Client).cmdUserhost},
	{"/userip", (*Client).cmdUserip},
	{"/users", (*Client).cmdUsers},
	{"/version", (*Client).cmdVersion},
	{"/wallops", (*Client).cmdWallops},
	{"/whois", (*Client).cmdWhois},
	{"/who", (*Client).cmdWho},
}

// dispatch routes one received line: the first known command token found
// in the line wins, anything else is a chat message for the current
// channel.
func (c *Client) dispatch(line string) {
	lower := strings.ToLower(line)
	for _, cmd := range commandTable {
		if strings.Contains(lower, cmd.name) {
			metricCommands.WithLabelValues(cmd.name[1:]).Inc()
			cmd.run(c, line)
			return
		}
	}
	metricCommands.WithLabelValues("chat").Inc()
	c.chat(line)
}

// chat broadcasts a plain message to the sender's channel and appends it
// to the channel transcript.
func (c *Client) chat(message string) {
	channel, ok := c.server.registry.CurrentChannel(c)
	if !ok {
		c.send(notInChannelNotice)
		return
	}
	channel.Broadcast(message+"\n", c.Username())
	if err := c.server.store.Append(channel.Name(), c.Username()+": "+message+"\n"); err != nil {
		c.log.Error().Err(err).Str("channel", channel.Name()).Msg("transcript append failed")
	}
}

func (c *Client) cmdAway(line string) {
	if len(strings.Fields(line)) > 1 {
		c.SetStatus(StatusAway, argTail(line, 1))
		c.send("<||> Status changed to Away. <||>\n")
		return
	}
	c.SetStatus(StatusOnline, "")
	c.send("<||> Status changed to Online. <||>\n")
}

func (c *Client) cmdClear(_ string) {
	c.send("/clear")
}

func (c *Client) cmdConnect(_ string) {
	// Single-server network; the original rebound its own live listener
	// here, which could never work.
	c.send("<||> Server-to-server connections are not supported on this network. <||>\n")
}

func (c *Client) cmdDie(_ string) {
	c.log.Warn().Msg("shutdown requested over the wire")
	go c.server.Shutdown()
	c.markQuit()
}

func (c *Client) cmdHelp(_ string) {
	c.send(helpMessage)
}

func (c *Client) cmdInfo(_ string) {
	c.send(fmt.Sprintf("<||> This is %s, a chat server that follows the IRC protocol. <||>\n",
		c.server.config.Server.Name))
}

func (c *Client) cmdInvite(line string) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		c.send("\n<||>  Must provide a target name and a channel to invite. <||>\n")
		return
	}
	targetName := strings.ToLower(fields[1])
	channelName := strings.ToLower(fields[2])

	target, err := c.server.registry.FindByUsername(targetName)
	if err != nil {
		c.send("\n<||> No user with that username found. <||>\n")
		return
	}

	// Inviting into an existing channel requires membership; inviting
	// into a channel that does not exist yet is always allowed.
	if channel, ok := c.server.registry.Channel(channelName); ok && !channel.Has(c) {
		c.send("<||>  Must be a member of the channel to invite. <||>\n")
		return
	}

	c.send(fmt.Sprintf("<||> Invitation to %s to join %s sent. <||>\n", targetName, channelName))
	target.send(fmt.Sprintf("<||> %s has invited you to join %s. <||>\n", c.Username(), channelName))
}

func (c *Client) cmdIson(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.send("\n<||>  Must provide at least one nickname. <||>\n")
		return
	}

	var online []string
	for _, name := range fields[1:] {
		target, err := c.server.registry.FindByUsername(strings.ToLower(name))
		if err != nil {
			target, err = c.server.registry.FindByNickname(strings.ToLower(name))
		}
		if err == nil && target.Status() == StatusOnline {
			online = append(online, target.Username())
		}
	}
	if len(online) == 0 {
		c.send("\n<||>  None of the specified users are currently online. <||>\n")
		return
	}
	c.send(fmt.Sprintf("\n<||>  Online Users: %s <||>\n", strings.Join(online, " ")))
}

func (c *Client) cmdJoin(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.cmdHelp(line)
		return
	}
	channelName := strings.ToLower(fields[1])

	err := c.server.registry.JoinChannel(c, channelName)
	if errors.Is(err, ErrAlreadyInChannel) {
		c.send(fmt.Sprintf("\n<||>  You are already in channel: %s", channelName))
	}
}

func (c *Client) cmdKick(line string) {
	if c.Role() != RoleChannelOperator {
		c.send("\n<||>  Must be a Channel Operator or Admin to kick. <||>\n")
		return
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		c.send("\n<||>  Must provide a channel name and a client to kick. <||>\n")
		return
	}
	channelName := strings.ToLower(fields[1])
	targetName := strings.ToLower(fields[2])

	target, err := c.server.registry.FindByUsername(targetName)
	if err != nil {
		c.send("\n<||> Please choose a client that is on the network. <||>\n")
		return
	}
	if err := c.server.registry.KickFromChannel(channelName, target); err != nil {
		c.send("\n<||> Please choose a channel that exists. <||>\n")
		return
	}
	target.send(fmt.Sprintf("<|*|>  You have been removed from channel %s by %s. <|*|>\n",
		channelName, c.Username()))
	c.log.Info().Str("target", targetName).Str("channel", channelName).Msg("user kicked")
}

func (c *Client) cmdKill(line string) {
	if c.Role() != RoleChannelOperator {
		c.send("\n<||>  Must be a Channel Operator or Admin to kill. <||>\n")
		return
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.send("\n<||> Must provide a client name. <||>\n")
		return
	}
	targetName := strings.ToLower(fields[1])

	target, err := c.server.registry.FindByUsername(targetName)
	if err != nil {
		c.send("\n<||> Please choose a client that is on the network. <||>\n")
		return
	}
	target.Kill()
	c.send("\n<||> Client was removed from the network <||>\n")
	c.log.Warn().Str("target", targetName).Msg("user killed")
}

func (c *Client) cmdKnock(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.send("\n> Must provide a target channel and message to the channel.\n")
		return
	}
	channelName := strings.ToLower(fields[1])

	channel, ok := c.server.registry.Channel(channelName)
	if !ok {
		c.send("\n> Channel does not exist.\n")
		return
	}
	message := argTail(line, 2)
	if message == "" {
		message = "Requesting Invite"
	}
	channel.Broadcast(message+"\n", c.Username())
}

func (c *Client) cmdList(_ string) {
	infos := c.server.registry.Channels()
	if len(infos) == 0 {
		c.send("\n<||> No rooms available. Create your own by typing /join [channel_name] <||>\n")
		return
	}
	var sb strings.Builder
	sb.WriteString("\n\n<||> Current channels available are: <||>\n")
	for _, info := range infos {
		sb.WriteString(fmt.Sprintf("    \n%s: %d user(s)", info.Name, info.Members))
	}
	sb.WriteString("\n")
	c.send(sb.String())
}

func (c *Client) cmdNick(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.send("\n<||> Must provide a nickname. <||>\n")
		return
	}
	newNick := strings.ToLower(fields[1])

	old, err := c.server.registry.Rename(c, newNick)
	if err != nil {
		c.send("<||> Nickname is taken! Try again. <||> \n")
		return
	}
	c.send(fmt.Sprintf("<||> You have changed your nickname to %s from %s. <||> \n", newNick, old))
}

func (c *Client) cmdNotice(line string) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		c.send("\n <||> Must provide a target name and a message to send a notice. <||> \n")
		return
	}
	targetName := strings.ToLower(fields[1])
	message := argTail(line, 2)

	target, err := c.server.registry.FindByUsername(targetName)
	if err != nil {
		target, err = c.server.registry.FindByNickname(targetName)
	}
	if err != nil {
		c.send("\n<||> No user with that username found. <||>\n")
		return
	}
	c.send(fmt.Sprintf("<||> Notice to %s: %s <||>\n", target.Username(), message))
	target.send(fmt.Sprintf("<||> Notice from %s: %s <||>\n", c.Username(), message))
}

func (c *Client) cmdOper(line string) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		c.send("\n <||> Must provide a username and password to become a Channel OP. <||> \n")
		return
	}
	password := fields[2]

	if !c.server.checkOperatorPassword(password) {
		c.send("\n <||> Please use a valid Channel Operator Username and Password. <||> \n")
		return
	}
	c.SetRole(RoleChannelOperator)
	c.send("\n <||> Successfully changed from user to Channel Operator. <||> \n")
	c.log.Info().Msg("user promoted to channel operator")
}

func (c *Client) cmdPing(_ string) {
	c.send("\n<||> Pong\n")
}

func (c *Client) cmdPong(_ string) {
	c.send("\n<||> Ping\n")
}

func (c *Client) cmdPrivmsg(line string) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		c.send("\n <||> Must provide a target name and a message to send. <||> \n")
		return
	}
	targetName := strings.ToLower(fields[1])
	message := argTail(line, 2)

	target, err := c.server.registry.FindByUsername(targetName)
	if err != nil {
		target, err = c.server.registry.FindByNickname(targetName)
	}
	if err != nil {
		c.send("\n<||> No user with that username found. <||>\n")
		return
	}
	c.send(fmt.Sprintf("<||> PrivMsg to %s: %s <||>\n", target.Username(), message))
	target.send(fmt.Sprintf("<||> PrivMsg from %s: %s <||>\n", c.Username(), message))
	if target.Status() == StatusAway {
		c.send(fmt.Sprintf("<||> Current Status Away: %s\n", target.AwayMessage()))
	}
}

func (c *Client) cmdQuit(_ string) {
	c.send("/quit")
	c.markQuit()
}

func (c *Client) cmdRestart(_ string) {
	c.log.Warn().Msg("restart requested over the wire")
	c.server.registry.Broadcast("\n <||> Restarting Server! <||> \n")
	c.server.RequestRestart()
	go c.server.Shutdown()
	c.markQuit()
}

func (c *Client) cmdRules(_ string) {
	c.send("<||> The Rules in this server are simple. Chat away! <||>\n")
}

func (c *Client) cmdSetname(line string) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		c.send("<||> Please enter your full name(first and last. middle optional). <||>\n")
		return
	}
	newName := argTail(line, 1)
	old := c.SetFullName(newName)
	c.send(fmt.Sprintf("<||> Successfully changed name to %s from %s. <||>\n", newName, old))
}

func (c *Client) cmdTime(_ string) {
	c.send(time.Now().UTC().Format("\n<||> Mon, 02 Jan 2006 15:04:05 +0000 <||>\n"))
}

func (c *Client) cmdTopic(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.send("<||> Must provide a channel name to view channel topic. <||>\n")
		return
	}
	channelName := strings.ToLower(fields[1])

	channel, ok := c.server.registry.Channel(channelName)
	if !ok {
		c.send("<||> No channel with that name exists. <||>\n")
		return
	}
	if len(fields) > 2 {
		channel.SetTopic(argTail(line, 2))
		return
	}
	if channel.Topic() == "" {
		c.send("<||> No channel topic has been set yet. <||>\n")
		return
	}
	c.send(fmt.Sprintf("<||> Channel %s topic: %s <||>\n", channelName, channel.Topic()))
}

func (c *Client) cmdUserhost(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.send("<||> Must provide a nickname or list of nicknames. <||>\n")
		return
	}

	var sb strings.Builder
	for _, name := range fields[1:] {
		target, err := c.server.registry.FindByUsername(strings.ToLower(name))
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("<fullname>: %s, <username>: %s, <status>: %s\n",
			target.FullName(), target.Username(), target.Status()))
	}
	if sb.Len() == 0 {
		c.send("<||> No user information found for users with those nicknames. <||>\n")
		return
	}
	c.send("\n<||> List of user information <||>\n\n" + sb.String())
}

func (c *Client) cmdUserip(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.send("<||> Must provide a nickname. <||>\n")
		return
	}
	target, err := c.server.registry.FindByUsername(strings.ToLower(fields[1]))
	if err != nil {
		c.send("<||> User not in the network. <||>\n")
		return
	}
	c.send(fmt.Sprintf("<||> %s IP Address: %s. <||>\n", target.Username(), target.RemoteAddr()))
}

func (c *Client) cmdUsers(_ string) {
	var sb strings.Builder
	sb.WriteString("\n<||> List of users: <||>\n\n")
	for _, user := range c.server.registry.Users() {
		sb.WriteString(fmt.Sprintf("<fullname>: %s, <username>: %s, <status>: %s\n",
			user.FullName(), user.Username(), user.Status()))
	}
	c.send(sb.String())
}

func (c *Client) cmdVersion(_ string) {
	c.send(fmt.Sprintf("\n<||> Version: %s <||>\n", serverVersion))
}

func (c *Client) cmdWallops(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.send("<||> Must provide a message to be sent. <||>\n")
		return
	}
	c.server.registry.BroadcastToOperators(argTail(line, 1) + "\n")
	c.send("\n<||> Message sent to all Channel Operators. <||>\n")
}

func (c *Client) cmdWho(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.send("\n<||> Please enter your full name(first and last. middle optional) <||>\n")
		return
	}
	targetFullName := argTail(line, 1)

	found := false
	for _, user := range c.server.registry.Users() {
		if strings.EqualFold(user.FullName(), targetFullName) {
			found = true
			c.send(fmt.Sprintf("\n<||> <fullname>: %s, <username>: %s, <status>: %s <||>\n",
				user.FullName(), user.Username(), user.Status()))
		}
	}
	if !found {
		c.send("\n<||> No User with that name found. <||>\n")
	}
}

func (c *Client) cmdWhois(line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		c.send("\n<||> Must provide a username. <||>\n")
		return
	}
	targetName := strings.ToLower(fields[1])

	var sb strings.Builder
	for _, user := range c.server.registry.Users() {
		if strings.ToLower(user.Username()) == targetName {
			sb.WriteString(fmt.Sprintf("\n<||> <fullname>: %s, <username>: %s, <status>: %s <||>\n",
				user.FullName(), user.Username(), user.Status()))
		}
	}
	if sb.Len() == 0 {
		c.send("\n<||> No User with that username found. <||>\n")
		return
	}
	c.send(sb.String())
}

// argTail returns what remains of line after the first skip
// whitespace-separated tokens, with surrounding space trimmed.
func argTail(line string, skip int) string {
	rest := strings.TrimSpace(line)
	for i := 0; i < skip; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[idx:], " \t")
	}
	return rest
}
