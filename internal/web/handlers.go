package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"invitation-site/internal/config"
	"invitation-site/internal/handler"
	"invitation-site/internal/locale"
	"invitation-site/internal/models"
	"invitation-site/internal/render"
)

type labels struct {
	NamePlaceholder string
	ButtonYes       string
	ButtonNo        string
	ButtonGuests    string
	GuestsTitle     string
	ConfirmedLabel  string
	ButtonClose     string
	OpenMap         string
}

type pageData struct {
	Lang      string
	Event     config.Event
	Labels    labels
	Name      string
	Highlight models.Response
	Message   string
	Kind      handler.Kind
	View      render.View
}

type rsvpResponse struct {
	Message string       `json:"message"`
	Kind    handler.Kind `json:"kind"`
	GuestID string       `json:"guest_id,omitempty"`
}

type guestJSON struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

func (s *Server) newPage() pageData {
	return pageData{
		Lang:  s.lang,
		Event: s.event,
		Labels: labels{
			NamePlaceholder: s.tr.Msg(locale.MsgNamePlaceholder),
			ButtonYes:       s.tr.Msg(locale.MsgButtonYes),
			ButtonNo:        s.tr.Msg(locale.MsgButtonNo),
			ButtonGuests:    s.tr.Msg(locale.MsgButtonGuests),
			GuestsTitle:     s.tr.Msg(locale.MsgGuestsTitle),
			ConfirmedLabel:  s.tr.Msg(locale.MsgConfirmedLabel),
			ButtonClose:     s.tr.Msg(locale.MsgButtonClose),
			OpenMap:         s.tr.Msg(locale.MsgOpenMap),
		},
		View: s.currentView(),
	}
}

func (s *Server) index(c *gin.Context) {
	page := s.newPage()

	if raw, err := c.Cookie(ChoiceCookie); err == nil {
		if restored, ok := s.rsvp.Restore(raw); ok {
			page.Name = restored.Name
			page.Highlight = restored.Response
			page.Message = restored.Message
			page.Kind = restored.Kind
		}
	}

	c.HTML(http.StatusOK, "page", page)
}

func (s *Server) submit(c *gin.Context) {
	res := s.rsvp.Submit(
		c.Request.Context(),
		c.PostForm("name"),
		models.Response(c.PostForm("response")),
		cookieChoices{c: c},
	)

	status := http.StatusOK
	switch {
	case res.Err == nil:
	case errors.Is(res.Err, handler.ErrStoreWrite):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusBadRequest
	}

	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		body := rsvpResponse{Message: res.Message, Kind: res.Kind}
		if res.Guest != nil {
			body.GuestID = res.Guest.ID
		}
		c.JSON(status, body)
		return
	}

	page := s.newPage()
	page.Message = res.Message
	page.Kind = res.Kind
	if res.Choice != nil {
		page.Highlight = res.Choice.Response
	}
	c.HTML(status, "page", page)
}

// guestList serves the guest list fragment, fetching once when the
// subscription has not delivered yet
func (s *Server) guestList(c *gin.Context) {
	guests := s.guests.Guests()
	if !s.guests.Loaded() {
		guests = s.guests.FetchOnce(c.Request.Context())
	}

	view, err := s.renderer.Render(guests)
	if err != nil {
		s.log.Error().Err(err).Msg("Error rendering guest list")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(view.HTML))
}

func (s *Server) apiGuests(c *gin.Context) {
	guests := s.guests.Guests()
	if !s.guests.Loaded() {
		guests = s.guests.FetchOnce(c.Request.Context())
	}

	out := make([]guestJSON, 0, len(guests))
	for _, g := range guests {
		out = append(out, guestJSON{ID: g.ID, Name: g.Name, Date: g.Date})
	}
	c.JSON(http.StatusOK, gin.H{"total": len(out), "guests": out})
}
