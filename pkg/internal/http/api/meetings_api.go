package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/zepulhq/meetings/pkg/internal/http/exts"
	"github.com/zepulhq/meetings/pkg/internal/models"
	"github.com/zepulhq/meetings/pkg/internal/services"
)

func remapMeetingError(err error) error {
	var vErr services.ValidationError
	var aErr services.AuthorizationError
	var sErr services.StateError
	var wErr services.WindowError
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrGone):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case errors.As(err, &vErr):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &aErr):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.As(err, &sErr):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &wErr):
		if wErr.TooLate {
			return fiber.NewError(fiber.StatusGone, err.Error())
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

func createMeeting(c *fiber.Ctx) error {
	user := c.Locals("user").(models.Account)

	var data struct {
		JobID          uint      `json:"job_id" validate:"required"`
		ResumeID       uint      `json:"resume_id" validate:"required"`
		CandidateEmail string    `json:"candidate_email" validate:"required,email"`
		ScheduledAt    time.Time `json:"scheduled_at" validate:"required"`
		Duration       int       `json:"duration"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	meeting, err := services.CreateMeeting(user, services.CreateMeetingOptions{
		JobID:          data.JobID,
		ResumeID:       data.ResumeID,
		CandidateEmail: data.CandidateEmail,
		ScheduledAt:    data.ScheduledAt,
		Duration:       data.Duration,
	})
	if err != nil {
		return remapMeetingError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"meeting_id":  meeting.ID,
		"token":       meeting.Token,
		"invite_link": services.MeetingInviteLink(meeting),
	})
}

func listMeeting(c *fiber.Ctx) error {
	user := c.Locals("user").(models.Account)

	var filter services.MeetingFilter
	if id := c.QueryInt("job_id", 0); id > 0 {
		filter.JobID = lo.ToPtr(uint(id))
	}
	if id := c.QueryInt("resume_id", 0); id > 0 {
		filter.ResumeID = lo.ToPtr(uint(id))
	}
	filter.Status = c.Query("status")

	meetings, err := services.ListMeetings(user, filter)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	summaries := lo.Map(meetings, func(item models.Meeting, _ int) models.MeetingSummary {
		var summary models.MeetingSummary
		models.FitStruct(item, &summary)
		return summary
	})

	return c.JSON(fiber.Map{
		"meetings": summaries,
	})
}

func getMeetingContext(c *fiber.Ctx) error {
	meeting, err := services.GetMeetingByToken(c.Params("token"))
	if err != nil {
		return remapMeetingError(err)
	}

	context, err := services.MeetingContext(meeting)
	if err != nil {
		return remapMeetingError(err)
	}

	return c.JSON(fiber.Map{
		"meeting": context,
	})
}

func startMeeting(c *fiber.Ctx) error {
	meeting, err := services.GetMeetingByToken(c.Params("token"))
	if err != nil {
		return remapMeetingError(err)
	}

	session, joinConfig, err := services.StartMeeting(&meeting)
	if err != nil {
		return remapMeetingError(err)
	}

	return c.JSON(fiber.Map{
		"call_id":     session.ID,
		"join_config": joinConfig,
	})
}

func endMeeting(c *fiber.Ctx) error {
	meeting, err := services.GetMeetingByToken(c.Params("token"))
	if err != nil {
		return remapMeetingError(err)
	}

	if err := services.EndMeeting(&meeting); err != nil {
		return remapMeetingError(err)
	}

	// The full transcript stays server-side, the response only carries its
	// size.
	return c.JSON(fiber.Map{
		"message": "interview completed",
		"meeting": fiber.Map{
			"id":                meeting.ID,
			"status":            meeting.Status,
			"transcript_length": len(meeting.Transcript),
		},
	})
}

func cancelMeeting(c *fiber.Ctx) error {
	user := c.Locals("user").(models.Account)

	meeting, err := services.GetMeetingByToken(c.Params("token"))
	if err != nil {
		return remapMeetingError(err)
	}

	if err := services.CancelMeeting(user, &meeting); err != nil {
		return remapMeetingError(err)
	}

	return c.JSON(fiber.Map{
		"message": "meeting canceled",
	})
}

func rescheduleMeeting(c *fiber.Ctx) error {
	user := c.Locals("user").(models.Account)

	var data struct {
		ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
		Duration    int       `json:"duration"`
	}
	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	meeting, err := services.GetMeetingByToken(c.Params("token"))
	if err != nil {
		return remapMeetingError(err)
	}

	if err := services.RescheduleMeeting(user, &meeting, data.ScheduledAt, data.Duration); err != nil {
		return remapMeetingError(err)
	}

	return c.JSON(fiber.Map{
		"message": "meeting rescheduled",
		"meeting": meeting,
	})
}

func resendMeetingInvite(c *fiber.Ctx) error {
	user := c.Locals("user").(models.Account)

	meeting, err := services.GetMeetingByToken(c.Params("token"))
	if err != nil {
		return remapMeetingError(err)
	}

	if err := services.ResendMeetingInvite(user, meeting); err != nil {
		return remapMeetingError(err)
	}

	return c.JSON(fiber.Map{
		"message": "invite resent",
	})
}
