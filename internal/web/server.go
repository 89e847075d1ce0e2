// Package web serves the invitation page, the RSVP form and the guest list.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"

	"invitation-site/internal/config"
	"invitation-site/internal/guestlist"
	"invitation-site/internal/handler"
	"invitation-site/internal/locale"
	"invitation-site/internal/models"
	"invitation-site/internal/render"
)

//go:embed templates/page.html static
var assets embed.FS

const shutdownTimeout = 5 * time.Second

// Deps are the collaborators of the web server
type Deps struct {
	RSVP       *handler.RSVPHandler
	Guests     *guestlist.Sync
	Renderer   *render.Renderer
	Translator *locale.Translator
	Lang       string
	Event      config.Event
	Logger     zerolog.Logger
}

// Server is the HTTP face of the invitation site
type Server struct {
	rsvp     *handler.RSVPHandler
	guests   *guestlist.Sync
	renderer *render.Renderer
	tr       *locale.Translator
	lang     string
	event    config.Event
	page     *template.Template
	live     *liveHub
	log      zerolog.Logger
}

// NewServer creates the web server
func NewServer(deps Deps) *Server {
	return &Server{
		rsvp:     deps.RSVP,
		guests:   deps.Guests,
		renderer: deps.Renderer,
		tr:       deps.Translator,
		lang:     deps.Lang,
		event:    deps.Event,
		page:     template.Must(template.ParseFS(assets, "templates/page.html")),
		live:     newLiveHub(),
		log:      deps.Logger.With().Str("component", "web").Logger(),
	}
}

// Publish renders a guest list snapshot and pushes it to live clients.
// It is the render callback of the guest list subscription.
func (s *Server) Publish(guests []models.Guest) {
	view, err := s.renderer.Render(guests)
	if err != nil {
		s.log.Error().Err(err).Msg("Error rendering guest list")
		return
	}
	s.live.publish(view)
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))
	r.Use(requestMetrics())
	r.SetHTMLTemplate(s.page)

	static, _ := fs.Sub(assets, "static")
	r.StaticFS("/static", http.FS(static))

	r.GET("/", s.index)
	r.POST("/rsvp", s.submit)
	r.GET("/guests", s.guestList)
	r.GET("/guests/live", gin.WrapH(websocket.Handler(s.serveLive)))
	r.GET("/api/guests", s.apiGuests)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// Run serves HTTP on addr until ctx is done
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.live.close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	case err := <-srvErr:
		return fmt.Errorf("failed to serve: %w", err)
	}
}

// currentView is the latest published view, or one rendered from the cache
// when nothing was published yet
func (s *Server) currentView() render.View {
	if view, ok := s.live.current(); ok {
		return view
	}
	view, err := s.renderer.Render(s.guests.Guests())
	if err != nil {
		s.log.Error().Err(err).Msg("Error rendering guest list")
	}
	return view
}
