package models

import (
	"fmt"
	"strings"
	"time"
)

// Guest represents a confirmed attendee in the shared guest list
type Guest struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// Response represents the attendance answer given in the RSVP form
type Response string

const (
	ResponseYes Response = "yes"
	ResponseNo  Response = "no"
)

// ParseResponse converts a form value into a Response
func ParseResponse(value string) (Response, error) {
	switch Response(strings.ToLower(strings.TrimSpace(value))) {
	case ResponseYes:
		return ResponseYes, nil
	case ResponseNo:
		return ResponseNo, nil
	}
	return "", fmt.Errorf("unknown rsvp response %q", value)
}

// Choice is the answer remembered by a single browser.
// ID is only set when the response is yes and the guest was stored.
type Choice struct {
	Name     string    `json:"name"`
	Response Response  `json:"response"`
	Date     time.Time `json:"date"`
	ID       string    `json:"id,omitempty"`
}
