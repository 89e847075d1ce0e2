package whatsapp

import (
	"fmt"
	"strings"

	"invitation-site/internal/models"
)

// summaryLimit caps how many names a summary lists
const summaryLimit = 50

var guestKeywords = []string{"guests", "list", "гости", "список", "қонақ", "тізім"}

// GuestSummary answers a host message asking for the guest list.
// ok is false when the message is not such a question.
func GuestSummary(text string, guests []models.Guest) (reply string, ok bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" || !containsAny(text, guestKeywords...) {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Confirmed guests: %d", len(guests))
	for i, g := range guests {
		if i == summaryLimit {
			fmt.Fprintf(&b, "\n… and %d more", len(guests)-summaryLimit)
			break
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, g.Name)
	}
	return b.String(), true
}

// containsAny checks if the text contains any of the given keywords
func containsAny(text string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
