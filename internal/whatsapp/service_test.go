package whatsapp

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"invitation-site/internal/models"
)

func TestNormalizePhoneNumber(t *testing.T) {
	cases := map[string]string{
		"+7 (701) 123-45-67": "77011234567",
		"8 701 123 45 67":    "77011234567",
		"77011234567":        "77011234567",
		"+972 50-123-4567":   "972501234567",
		"":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhoneNumber(in), in)
	}
}

func TestGuestSummary(t *testing.T) {
	guests := []models.Guest{{Name: "Aigerim"}, {Name: "Dana"}}

	reply, ok := GuestSummary("  Список гостей?", guests)
	assert.True(t, ok)
	assert.Equal(t, "📋 Confirmed guests: 2\n1. Aigerim\n2. Dana", reply)

	_, ok = GuestSummary("hello", guests)
	assert.False(t, ok)

	_, ok = GuestSummary("", guests)
	assert.False(t, ok)
}

func TestGuestSummary_Truncates(t *testing.T) {
	guests := make([]models.Guest, summaryLimit+5)
	for i := range guests {
		guests[i] = models.Guest{Name: fmt.Sprintf("Guest %d", i)}
	}

	reply, ok := GuestSummary("guests", guests)
	assert.True(t, ok)
	assert.Equal(t, summaryLimit+2, strings.Count(reply, "\n")+1)
	assert.True(t, strings.HasSuffix(reply, "… and 5 more"))
}

func hostMessage(user, text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Sender: types.JID{User: user, Server: types.DefaultUserServer},
			},
		},
		Message: &waE2E.Message{Conversation: &text},
	}
}

func TestService_MessageHandlerSwapDuringDelivery(t *testing.T) {
	s := &Service{
		hosts: map[string]bool{"77011234567": true},
		log:   zerolog.Nop(),
	}

	var handled atomic.Int32
	count := func(*events.Message) error {
		handled.Add(1)
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.SetMessageHandler(count)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.handleMessage(hostMessage("77011234567", "guests"))
		}
	}()
	wg.Wait()

	s.handleMessage(hostMessage("77011234567", "guests"))
	assert.Positive(t, handled.Load())
}

func TestService_IgnoresStrangers(t *testing.T) {
	s := &Service{
		hosts: map[string]bool{"77011234567": true},
		log:   zerolog.Nop(),
	}
	called := false
	s.SetMessageHandler(func(*events.Message) error {
		called = true
		return nil
	})

	s.handleMessage(hostMessage("77019999999", "guests"))
	assert.False(t, called)
}
