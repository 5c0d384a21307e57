package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/zepulhq/meetings/pkg/internal/services"
)

func receiveProviderEvent(c *fiber.Ctx) error {
	body := c.Body()

	if secret := viper.GetString("webhook.secret"); secret != "" {
		signature := c.Get("X-Webhook-Signature")
		if !services.VerifyWebhookSignature(secret, body, signature) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid webhook signature")
		}
	}

	event, err := services.ParseProviderEvent(body)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	meeting, ack, err := services.ReconcileProviderEvent(event)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			log.Warn().Str("session", event.SessionID).Str("agent", event.AgentID).
				Str("kind", string(event.Kind)).Msg("Unable to match provider event to a meeting...")
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	log.Debug().Uint("meeting", meeting.ID).Str("kind", string(event.Kind)).
		Msg("Reconciled provider event.")

	return c.JSON(fiber.Map{
		"received": true,
		"result":   ack,
	})
}
