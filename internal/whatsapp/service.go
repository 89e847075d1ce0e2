package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"invitation-site/internal/models"
)

// MessageHandler is a callback function for handling messages
type MessageHandler func(*events.Message) error

type Config struct {
	DataDir string
	// HostPhones receive a message for every confirmed guest
	HostPhones []string
}

// Service notifies the hosts over WhatsApp
type Service struct {
	client         *whatsmeow.Client
	cfg            *Config
	hosts          map[string]bool
	log            zerolog.Logger
	handlerMu      sync.RWMutex
	messageHandler MessageHandler
}

// NewService creates a new WhatsApp service
func NewService(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Service, error) {
	// Use nil logger - sqlstore will use a no-op logger by default
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s/whatsmeow.db?_foreign_keys=on", cfg.DataDir), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	hosts := make(map[string]bool, len(cfg.HostPhones))
	for _, phone := range cfg.HostPhones {
		hosts[NormalizePhoneNumber(phone)] = true
	}

	service := &Service{
		client: client,
		cfg:    cfg,
		hosts:  hosts,
		log:    logger.With().Str("component", "WhatsApp").Logger(),
	}

	client.AddEventHandler(func(evt interface{}) {
		service.eventHandler(evt)
	})

	return service, nil
}

// NormalizePhoneNumber reduces a phone number to its international digits.
// Kazakh numbers dialled with the 8 trunk prefix are converted to +7.
func NormalizePhoneNumber(phoneNumber string) string {
	phoneNumber = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phoneNumber)

	// 8 7XX XXX XX XX -> 7 7XX XXX XX XX
	if strings.HasPrefix(phoneNumber, "8") && len(phoneNumber) == 11 {
		phoneNumber = "7" + phoneNumber[1:]
	}

	return phoneNumber
}

// Connect connects to WhatsApp, printing a pairing QR code on first use
func (s *Service) Connect(ctx context.Context) error {
	if s.client.Store.ID != nil {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	qrChan, _ := s.client.GetQRChannel(ctx)
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			s.log.Info().Str("event", evt.Event).Msg("Login event")
			continue
		}
		q, err := qrcode.New(evt.Code, qrcode.Medium)
		if err != nil {
			fmt.Printf("QR Code: %s\n", evt.Code)
			continue
		}
		fmt.Println("\n" + q.ToSmallString(false))
		fmt.Println("📱 Scan the QR code above in WhatsApp > Settings > Linked Devices")
	}
	return nil
}

// Disconnect disconnects from WhatsApp
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// NotifyGuestConfirmed tells every host about a new guest
func (s *Service) NotifyGuestConfirmed(ctx context.Context, guest models.Guest) error {
	message := fmt.Sprintf("🎉 *%s* confirmed attendance (%s)", guest.Name, guest.Date.Format("02.01.2006 15:04"))

	var errs []error
	for _, phone := range s.cfg.HostPhones {
		if err := s.SendMessage(ctx, phone, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendMessage sends a simple text message
func (s *Service) SendMessage(ctx context.Context, phoneNumber, message string) error {
	phoneNumber = NormalizePhoneNumber(phoneNumber)

	// Verify the number is on WhatsApp before sending
	resp, err := s.client.IsOnWhatsApp(ctx, []string{"+" + phoneNumber})
	if err != nil {
		return fmt.Errorf("failed to verify number on WhatsApp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return fmt.Errorf("number %s is not registered on WhatsApp", phoneNumber)
	}
	jid := resp[0].JID

	s.log.Debug().Str("jid", jid.String()).Str("phone", phoneNumber).Msg("Attempting to send message")

	sent, err := s.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: &message,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", phoneNumber, err)
	}

	s.log.Debug().Str("message_id", sent.ID).Time("timestamp", sent.Timestamp).Msg("Message sent")
	return nil
}

// ServeGuestQueries answers hosts asking for the guest list
func (s *Service) ServeGuestQueries(ctx context.Context, guests func() []models.Guest) {
	s.SetMessageHandler(func(msg *events.Message) error {
		reply, ok := GuestSummary(msg.Message.GetConversation(), guests())
		if !ok {
			return nil
		}
		return s.SendMessage(ctx, msg.Info.Sender.User, reply)
	})
}

// SetMessageHandler sets a custom handler for messages sent by hosts
func (s *Service) SetMessageHandler(handler MessageHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.messageHandler = handler
}

// eventHandler handles incoming WhatsApp events
func (s *Service) eventHandler(evt interface{}) {
	if evt == nil {
		return
	}
	switch evt := evt.(type) {
	case *events.Message:
		s.handleMessage(evt)
	case *events.Connected:
		s.log.Info().Msg("Connected to WhatsApp")
	case *events.Disconnected:
		s.log.Info().Msg("Disconnected from WhatsApp")
	case *events.LoggedOut:
		s.log.Info().Msg("Logged out from WhatsApp")
	}
}

// handleMessage passes messages from hosts to the message handler
func (s *Service) handleMessage(msg *events.Message) {
	if msg.Info.IsFromMe || msg.Message == nil {
		return
	}
	if !s.isHost(msg.Info.Sender) {
		return
	}

	s.handlerMu.RLock()
	handler := s.messageHandler
	s.handlerMu.RUnlock()

	if handler != nil {
		if err := handler(msg); err != nil {
			s.log.Error().Err(err).Msg("Error handling message")
		}
	}
}

func (s *Service) isHost(sender types.JID) bool {
	return s.hosts[NormalizePhoneNumber(sender.User)]
}
