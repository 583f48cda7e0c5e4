/*
Package chat implements an IRC-style text chat server speaking a
line-oriented slash-command protocol over plain TCP.

# Protocol

Clients connect, answer the full-name prompt, and are assigned a username
derived from the name. After that every newline-terminated line is either a
recognized slash-command or a chat message broadcast to the sender's
current channel. A user occupies at most one channel at a time; /join
switches channels, leaving the previous one.

Server-to-client traffic reuses the control tokens the graphical client
understands:

	/quit               graceful disconnect acknowledgement
	/squit              forced disconnect, server going down
	/supdate|<names>    roster replacement (space-joined usernames)
	/clear              clear the transcript view
	<||> ... <||>       system notice
	<|*|> ... <|*|>     moderation notice
	<banner>|<roster>|<history>   join frame (banner contains "joined")

# Components

Server owns the listener, the live session set and a Registry. The
Registry guards all shared state (users by username, channels by name, the
user-to-channel mapping) behind a single mutex so that every registry
operation, including the multi-step join sequence, is one critical
section. Each accepted connection runs in its own goroutine (Client);
channel fan-out is serialized per channel and every socket write carries a
deadline so a dead peer cannot stall a broadcast.

Channel history is persisted through the TranscriptStore interface with a
flat-file and a SQLite-backed implementation.

# Usage

	cfg := config.Default()
	server, err := chat.NewServer(cfg)
	if err != nil {
	    log.Fatal().Err(err).Msg("failed to create server")
	}
	if err := server.Start(); err != nil {
	    log.Fatal().Err(err).Msg("failed to start server")
	}
	<-server.Done()
*/
package chat
