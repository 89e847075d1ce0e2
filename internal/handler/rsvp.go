package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"invitation-site/internal/locale"
	"invitation-site/internal/metrics"
	"invitation-site/internal/models"
)

var (
	// ErrEmptyName is reported when the submitted name is blank
	ErrEmptyName = errors.New("guest name is required")
	// ErrStoreWrite is reported when the shared store rejected the guest
	ErrStoreWrite = errors.New("failed to save guest")
)

// Kind is the style of the message shown to the visitor
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
)

// GuestWriter appends confirmed guests to the shared store
type GuestWriter interface {
	Push(ctx context.Context, guest models.Guest) (models.Guest, error)
}

// ChoiceStore remembers the visitor's last answer in their own browser
type ChoiceStore interface {
	SaveChoice(choice models.Choice) error
}

// Notifier is told about every confirmed guest
type Notifier interface {
	NotifyGuestConfirmed(ctx context.Context, guest models.Guest) error
}

// Result is the outcome of one submission
type Result struct {
	Message string
	Kind    Kind
	// Choice is what was remembered locally, nil when nothing was
	Choice *models.Choice
	// Guest is the stored record, nil unless a yes was stored
	Guest *models.Guest
	Err   error
}

// DefaultNotifyTimeout bounds one host notification when Config leaves it unset
const DefaultNotifyTimeout = 30 * time.Second

// Config holds the handler settings
type Config struct {
	// ChoiceTTL is how long a remembered answer is shown again
	ChoiceTTL time.Duration
	// NotifyTimeout bounds the background host notification
	NotifyTimeout time.Duration
}

type RSVPHandler struct {
	store    GuestWriter
	tr       *locale.Translator
	notifier Notifier
	config   *Config
	log      zerolog.Logger
	now      func() time.Time
}

// NewRSVPHandler creates a new RSVP handler
func NewRSVPHandler(store GuestWriter, tr *locale.Translator, cfg *Config, logger zerolog.Logger) *RSVPHandler {
	return &RSVPHandler{
		store:  store,
		tr:     tr,
		config: cfg,
		log:    logger.With().Str("component", "rsvp").Logger(),
		now:    time.Now,
	}
}

// SetNotifier sets who is told about confirmed guests
func (h *RSVPHandler) SetNotifier(notifier Notifier) {
	h.notifier = notifier
}

// SetClock replaces time.Now
func (h *RSVPHandler) SetClock(now func() time.Time) {
	h.now = now
}

// Submit processes one RSVP form submission.
//
// A yes is written to the shared store and remembered locally only once the
// store accepted it. A no is only remembered locally.
func (h *RSVPHandler) Submit(ctx context.Context, name string, response models.Response, local ChoiceStore) Result {
	name = strings.TrimSpace(name)
	if name == "" {
		metrics.RSVPSubmissions.WithLabelValues(string(response), metrics.OutcomeInvalid).Inc()
		return Result{
			Message: h.tr.Msg(locale.MsgNameRequired),
			Kind:    KindInfo,
			Err:     ErrEmptyName,
		}
	}

	switch response {
	case models.ResponseYes:
		return h.confirm(ctx, name, local)
	case models.ResponseNo:
		return h.decline(name, local)
	}

	metrics.RSVPSubmissions.WithLabelValues(metrics.ResponseUnknown, metrics.OutcomeInvalid).Inc()
	return Result{
		Message: h.tr.Msg(locale.MsgResponseRequired),
		Kind:    KindInfo,
		Err:     fmt.Errorf("unknown rsvp response %q", response),
	}
}

func (h *RSVPHandler) confirm(ctx context.Context, name string, local ChoiceStore) Result {
	guest, err := h.store.Push(ctx, models.Guest{
		Name: name,
		Date: h.now(),
	})
	if err != nil {
		h.log.Error().Err(err).Str("name", name).Msg("Error saving guest")
		metrics.RSVPSubmissions.WithLabelValues(string(models.ResponseYes), metrics.OutcomeFailed).Inc()
		return Result{
			Message: h.tr.Msg(locale.MsgSaveFailed),
			Kind:    KindInfo,
			Err:     fmt.Errorf("%w: %w", ErrStoreWrite, err),
		}
	}

	choice := models.Choice{
		Name:     name,
		Response: models.ResponseYes,
		Date:     guest.Date,
		ID:       guest.ID,
	}
	h.remember(local, choice)
	metrics.RSVPSubmissions.WithLabelValues(string(models.ResponseYes), metrics.OutcomeStored).Inc()
	h.log.Info().Str("guest_id", guest.ID).Str("name", name).Msg("Guest confirmed")

	if h.notifier != nil {
		go h.notify(context.WithoutCancel(ctx), guest)
	}

	return Result{
		Message: h.tr.Format(locale.MsgConfirmed, map[string]any{"Name": name}),
		Kind:    KindSuccess,
		Choice:  &choice,
		Guest:   &guest,
	}
}

// notify tells the hosts about a stored guest without holding up the visitor
func (h *RSVPHandler) notify(ctx context.Context, guest models.Guest) {
	timeout := h.config.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := h.notifier.NotifyGuestConfirmed(ctx, guest); err != nil {
		h.log.Warn().Err(err).Str("guest_id", guest.ID).Msg("Failed to notify hosts")
	}
}

func (h *RSVPHandler) decline(name string, local ChoiceStore) Result {
	choice := models.Choice{
		Name:     name,
		Response: models.ResponseNo,
		Date:     h.now().UTC(),
	}
	h.remember(local, choice)
	metrics.RSVPSubmissions.WithLabelValues(string(models.ResponseNo), metrics.OutcomeLocal).Inc()

	return Result{
		Message: h.tr.Format(locale.MsgDeclined, map[string]any{"Name": name}),
		Kind:    KindInfo,
		Choice:  &choice,
	}
}

// remember stores the choice locally; a failure only costs the visitor the
// reminder on their next visit
func (h *RSVPHandler) remember(local ChoiceStore, choice models.Choice) {
	if local == nil {
		return
	}
	if err := local.SaveChoice(choice); err != nil {
		h.log.Warn().Err(err).Msg("Failed to remember choice")
	}
}
