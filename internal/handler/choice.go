package handler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"invitation-site/internal/locale"
	"invitation-site/internal/models"
)

// Restored is a remembered answer that is still fresh enough to show
type Restored struct {
	Name     string
	Response models.Response
	Message  string
	Kind     Kind
}

// EncodeChoice serializes a choice for browser storage
func EncodeChoice(choice models.Choice) (string, error) {
	data, err := json.Marshal(choice)
	if err != nil {
		return "", fmt.Errorf("failed to marshal choice: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeChoice parses a value written by EncodeChoice
func DecodeChoice(raw string) (models.Choice, error) {
	var choice models.Choice
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return choice, fmt.Errorf("failed to decode choice: %w", err)
	}
	if err := json.Unmarshal(data, &choice); err != nil {
		return choice, fmt.Errorf("failed to unmarshal choice: %w", err)
	}
	if _, err := models.ParseResponse(string(choice.Response)); err != nil {
		return choice, err
	}
	if choice.Date.IsZero() {
		return choice, fmt.Errorf("choice has no date")
	}
	return choice, nil
}

// Restore turns the remembered answer back into the message and highlight
// shown on page load. Corrupt or stale values are ignored.
func (h *RSVPHandler) Restore(raw string) (Restored, bool) {
	if raw == "" {
		return Restored{}, false
	}

	choice, err := DecodeChoice(raw)
	if err != nil {
		h.log.Warn().Err(err).Msg("Ignoring saved choice")
		return Restored{}, false
	}

	if h.now().Sub(choice.Date) >= h.config.ChoiceTTL {
		return Restored{}, false
	}

	restored := Restored{
		Name:     choice.Name,
		Response: choice.Response,
	}
	data := map[string]any{"Name": choice.Name}
	if choice.Response == models.ResponseYes {
		restored.Message = h.tr.Format(locale.MsgAlreadyConfirmed, data)
		restored.Kind = KindSuccess
	} else {
		restored.Message = h.tr.Format(locale.MsgAlreadyDeclined, data)
		restored.Kind = KindInfo
	}
	return restored, true
}
