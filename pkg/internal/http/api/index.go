package api

import (
	"github.com/gofiber/fiber/v2"
)

func MapAPIs(app *fiber.App, baseURL string) {
	api := app.Group(baseURL).Name("API")
	{
		meetings := api.Group("/meetings").Name("Meetings API")
		{
			meetings.Get("/", authMiddleware, listMeeting)
			meetings.Post("/", authMiddleware, createMeeting)

			meetings.Post("/webhook/provider", receiveProviderEvent)

			meetings.Get("/:token", getMeetingContext)
			meetings.Post("/:token/start", startMeeting)
			meetings.Post("/:token/end", endMeeting)
			meetings.Post("/:token/cancel", authMiddleware, cancelMeeting)
			meetings.Post("/:token/reschedule", authMiddleware, rescheduleMeeting)
			meetings.Post("/:token/resend-invite", authMiddleware, resendMeetingInvite)
		}
	}
}
