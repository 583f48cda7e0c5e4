// Package admind serves the admin portal: health, stats and roster
// endpoints plus the Prometheus scrape target, on a separate HTTP
// listener from the chat protocol.
package admind

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Perronef5/IRC-Chat-App/chat"
)

type Server struct {
	*chat.Server

	echoServer *echo.Echo
	onceSetup  sync.Once
}

// New wraps a running chat server with the admin portal.
func New(cs *chat.Server) *Server {
	return &Server{Server: cs}
}

func (s *Server) setup() {
	s.onceSetup.Do(func() {
		e := echo.New()
		e.HideBanner = true
		e.Use(middleware.Recover())
		s.route(e)
		s.echoServer = e
	})
}

// StartAdminServer starts the HTTP server for admin analytics. It blocks
// until the listener closes.
func (s *Server) StartAdminServer() error {
	s.setup()
	return s.echoServer.Start(s.Config().AdminListenAddr())
}

// StopAdminServer closes the admin listener.
func (s *Server) StopAdminServer() error {
	if s.echoServer == nil {
		return nil
	}
	return s.echoServer.Close()
}

func (s *Server) route(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/api/stats", s.handleStats)
	e.GET("/api/channels", s.handleChannels)
	e.GET("/api/users", s.handleUsers)
	e.POST("/api/broadcast", s.handleBroadcast)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
		chat.MetricsRegistry,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	)))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Stats())
}

func (s *Server) handleChannels(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Registry().Channels())
}

func (s *Server) handleUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Registry().UserInfos())
}

type broadcastRequest struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

// handleBroadcast relays a message to one channel, or to every connected
// user when no channel is named.
func (s *Server) handleBroadcast(c echo.Context) error {
	var req broadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	notice := "\n<|*|> " + req.Message + " <|*|>\n"
	if req.Channel == "" {
		s.Registry().Broadcast(notice)
		return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
	}

	channel, ok := s.Registry().Channel(req.Channel)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "channel does not exist")
	}
	channel.BroadcastRaw(notice)
	return c.JSON(http.StatusOK, map[string]string{"status": "sent", "channel": channel.Name()})
}
