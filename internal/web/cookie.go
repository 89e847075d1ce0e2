package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invitation-site/internal/handler"
	"invitation-site/internal/models"
)

// ChoiceCookie holds the visitor's last RSVP answer
const ChoiceCookie = "rsvpResponse"

// choiceCookieMaxAge is 400 days, the longest lifetime browsers accept
const choiceCookieMaxAge = 400 * 24 * 60 * 60

// cookieChoices remembers choices in the visitor's browser
type cookieChoices struct {
	c *gin.Context
}

func (cc cookieChoices) SaveChoice(choice models.Choice) error {
	raw, err := handler.EncodeChoice(choice)
	if err != nil {
		return err
	}
	cc.c.SetSameSite(http.SameSiteLaxMode)
	cc.c.SetCookie(ChoiceCookie, raw, choiceCookieMaxAge, "/", "", cc.c.Request.TLS != nil, true)
	return nil
}
