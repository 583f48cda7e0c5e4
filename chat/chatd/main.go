package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Perronef5/IRC-Chat-App/chat"
	"github.com/Perronef5/IRC-Chat-App/chat/admind"
	"github.com/Perronef5/IRC-Chat-App/chat/config"
)

func main() {
	configPath := flag.String("config", "", "Path or URL of a YAML/TOML/JSON config file")
	chatAddr := flag.String("addr", "", "Chat server bind address (overrides config)")
	adminAddr := flag.String("admin", "", "Admin HTTP server bind address (overrides config)")
	transcriptDir := flag.String("transcripts", "", "Transcript directory (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	applyFlagOverrides(cfg, *chatAddr, *adminAddr, *transcriptDir, *debug)

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().
		Str("addr", cfg.ListenAddr()).
		Str("transcript_backend", cfg.Transcript.Backend).
		Bool("admin", cfg.Admin.Enabled).
		Msg("starting chat server")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// A /restart tears the server down and loops back here; anything else
	// exits.
	for {
		if !runOnce(cfg, sigChan) {
			return
		}
		log.Info().Msg("restarting chat server")
	}
}

// runOnce runs one server lifetime and reports whether a restart was
// requested.
func runOnce(cfg *config.Config, sigChan chan os.Signal) bool {
	server, err := chat.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	var admin *admind.Server
	if cfg.Admin.Enabled {
		admin = admind.New(server)
		go func() {
			if err := admin.StartAdminServer(); err != nil {
				log.Warn().Err(err).Msg("admin server stopped")
			}
		}()
	}

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		server.Shutdown()
	case <-server.Done():
		// /die or /restart over the wire.
	}
	<-server.Done()

	if admin != nil {
		admin.StopAdminServer()
	}
	return server.RestartRequested()
}

func applyFlagOverrides(cfg *config.Config, chatAddr, adminAddr, transcriptDir string, debug bool) {
	if chatAddr != "" {
		host, port, err := config.SplitHostPort(chatAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", chatAddr).Msg("invalid chat bind address")
		}
		cfg.Server.Host, cfg.Server.Port = host, port
	}
	if adminAddr != "" {
		host, port, err := config.SplitHostPort(adminAddr)
		if err != nil {
			log.Fatal().Err(err).Str("addr", adminAddr).Msg("invalid admin bind address")
		}
		cfg.Admin.Host, cfg.Admin.Port = host, port
		cfg.Admin.Enabled = true
	}
	if transcriptDir != "" {
		cfg.Transcript.Backend = "file"
		cfg.Transcript.Dir = transcriptDir
	}
	if debug {
		cfg.Debug = true
	}
}
