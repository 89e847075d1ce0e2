// Package render turns the guest list into the HTML fragment and counters
// shown on the invitation page.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"invitation-site/internal/locale"
	"invitation-site/internal/models"
)

//go:embed templates/guests.html
var templateFS embed.FS

// View is everything the page needs to display one guest list state.
// Total, Confirmed and Stats always hold the same value.
type View struct {
	Total     int           `json:"total"`
	Confirmed int           `json:"confirmed"`
	Stats     int           `json:"stats"`
	Empty     bool          `json:"empty"`
	Rows      []Row         `json:"-"`
	HTML      template.HTML `json:"html"`
}

// Row is one rendered guest
type Row struct {
	Initials string
	Name     string
	TimeAgo  string
}

// Renderer builds views in one language
type Renderer struct {
	tr       *locale.Translator
	tmpl     *template.Template
	now      func() time.Time
	location *time.Location
}

// Option configures a Renderer
type Option func(*Renderer)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithLocation sets the zone absolute dates are shown in
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) { r.location = loc }
}

// New creates a renderer using tr for every text
func New(tr *locale.Translator, opts ...Option) *Renderer {
	r := &Renderer{
		tr:       tr,
		tmpl:     template.Must(template.ParseFS(templateFS, "templates/guests.html")),
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render builds the view for an already ordered guest list
func (r *Renderer) Render(guests []models.Guest) (View, error) {
	view := View{
		Total:     len(guests),
		Confirmed: len(guests),
		Stats:     len(guests),
		Empty:     len(guests) == 0,
		Rows:      make([]Row, 0, len(guests)),
	}
	for _, g := range guests {
		view.Rows = append(view.Rows, Row{
			Initials: Initials(g.Name),
			Name:     g.Name,
			TimeAgo:  r.TimeAgo(g.Date),
		})
	}

	var buf bytes.Buffer
	err := r.tmpl.ExecuteTemplate(&buf, "guests", struct {
		View
		Placeholder string
	}{view, r.tr.Msg(locale.MsgNoGuests)})
	if err != nil {
		return View{}, fmt.Errorf("failed to render guest list: %w", err)
	}
	view.HTML = template.HTML(buf.String())
	return view, nil
}

// Initials returns the uppercased first letters of the first two words
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		_, size := utf8.DecodeRuneInString(word)
		b.WriteString(strings.ToUpper(word[:size]))
	}
	initials := b.String()
	if utf8.RuneCountInString(initials) > 2 {
		runes := []rune(initials)
		initials = string(runes[:2])
	}
	return initials
}

// TimeAgo describes how long ago date was, switching to an absolute date
// after a week
func (r *Renderer) TimeAgo(date time.Time) string {
	minutes := int(r.now().Sub(date) / time.Minute)
	if minutes < 1 {
		return r.tr.Msg(locale.MsgJustNow)
	}
	if minutes < 60 {
		return r.tr.Format(locale.MsgMinutesAgo, map[string]any{"Count": minutes})
	}
	hours := minutes / 60
	if hours < 24 {
		return r.tr.Format(locale.MsgHoursAgo, map[string]any{"Count": hours})
	}
	days := hours / 24
	if days < 7 {
		return r.tr.Format(locale.MsgDaysAgo, map[string]any{"Count": days})
	}
	return date.In(r.location).Format(r.tr.Msg(locale.MsgFormatDate))
}
