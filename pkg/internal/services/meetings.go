package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/zepulhq/meetings/pkg/internal/database"
	"github.com/zepulhq/meetings/pkg/internal/models"
	"github.com/zepulhq/meetings/pkg/internal/provider"
)

// contextFieldLimit caps text fields on the candidate-facing landing
// payload so one oversized job description cannot blow up the response.
const contextFieldLimit = 2500

type CreateMeetingOptions struct {
	JobID          uint
	ResumeID       uint
	CandidateEmail string
	ScheduledAt    time.Time
	Duration       int
}

func CreateMeeting(recruiter models.Account, opts CreateMeetingOptions) (models.Meeting, error) {
	var meeting models.Meeting

	if opts.Duration == 0 {
		opts.Duration = models.MeetingDefaultDuration
	}
	if opts.Duration < models.MeetingMinDuration || opts.Duration > models.MeetingMaxDuration {
		return meeting, ValidationError{Message: fmt.Sprintf(
			"duration must be between %d and %d minutes",
			models.MeetingMinDuration, models.MeetingMaxDuration,
		)}
	}
	if opts.ScheduledAt.IsZero() {
		return meeting, ValidationError{Message: "scheduled time is required"}
	}

	var job models.Job
	if err := database.C.First(&job, opts.JobID).Error; err != nil {
		return meeting, fmt.Errorf("unable to find job: %w", ErrNotFound)
	}
	var resume models.Resume
	if err := database.C.First(&resume, opts.ResumeID).Error; err != nil {
		return meeting, fmt.Errorf("unable to find resume: %w", ErrNotFound)
	}

	if job.RecruiterID != recruiter.ID {
		return meeting, AuthorizationError{Message: "you are not assigned to this job"}
	}
	if resume.RecruiterID != recruiter.ID {
		return meeting, AuthorizationError{Message: "you do not own this resume"}
	}

	meeting = models.Meeting{
		JobID:          job.ID,
		ResumeID:       resume.ID,
		RecruiterID:    recruiter.ID,
		CandidateEmail: strings.ToLower(strings.TrimSpace(opts.CandidateEmail)),
		ScheduledAt:    opts.ScheduledAt,
		Duration:       opts.Duration,
		Status:         models.MeetingStatusScheduled,
		Meta:           map[string]any{},
	}

	// The token column is uniquely indexed; regenerate on the off chance
	// two tokens ever collide.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		meeting.Token = NewMeetingToken()
		if err = database.C.Create(&meeting).Error; err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return meeting, err
		}
	}
	if err != nil {
		return meeting, err
	}

	meeting.Job = job
	meeting.Resume = resume
	meeting.Recruiter = recruiter

	if err := SendMeetingMail(meetingMail("meeting-invite", meeting)); err != nil {
		log.Warn().Err(err).Uint("meeting", meeting.ID).Msg("Unable to send interview invite notification...")
	}

	return meeting, nil
}

func MeetingInviteLink(meeting models.Meeting) string {
	return fmt.Sprintf("%s/meeting/%s", strings.TrimSuffix(viper.GetString("frontend"), "/"), meeting.Token)
}

func GetMeeting(id uint) (models.Meeting, error) {
	var meeting models.Meeting
	if err := database.C.
		Preload("Job").
		Preload("Resume").
		Preload("Recruiter").
		First(&meeting, id).Error; err != nil {
		return meeting, ErrNotFound
	}
	return meeting, nil
}

func GetMeetingByToken(token string) (models.Meeting, error) {
	var meeting models.Meeting
	if err := database.C.
		Where(models.Meeting{Token: token}).
		Preload("Job").
		Preload("Resume").
		Preload("Recruiter").
		First(&meeting).Error; err != nil {
		return meeting, ErrNotFound
	}
	return meeting, nil
}

type MeetingFilter struct {
	JobID    *uint
	ResumeID *uint
	Status   string
}

func ListMeetings(recruiter models.Account, filter MeetingFilter) ([]models.Meeting, error) {
	tx := database.C.Where(models.Meeting{RecruiterID: recruiter.ID})
	if filter.JobID != nil {
		tx = tx.Where("job_id = ?", *filter.JobID)
	}
	if filter.ResumeID != nil {
		tx = tx.Where("resume_id = ?", *filter.ResumeID)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", filter.Status)
	}

	var meetings []models.Meeting
	if err := tx.
		Preload("Job").
		Preload("Resume").
		Order("created_at DESC").
		Limit(100).
		Find(&meetings).Error; err != nil {
		return meetings, err
	}
	return meetings, nil
}

// MeetingContext is the redacted payload for the pre-call landing screen.
// Text fields are truncated and internal ids of unrelated entities are
// left out on purpose.
func MeetingContext(meeting models.Meeting) (map[string]any, error) {
	switch meeting.Status {
	case models.MeetingStatusCanceled, models.MeetingStatusCompleted:
		return nil, ErrGone
	}

	return map[string]any{
		"token":        meeting.Token,
		"status":       meeting.Status,
		"scheduled_at": meeting.ScheduledAt,
		"duration":     meeting.Duration,
		"job": map[string]any{
			"title":       meeting.Job.Title,
			"location":    meeting.Job.Location,
			"company":     meeting.Job.CompanyName,
			"skills":      meeting.Job.Skills,
			"description": truncate(meeting.Job.Description, contextFieldLimit),
		},
		"candidate": map[string]any{
			"name":    meeting.Resume.CandidateName,
			"summary": truncate(meeting.Resume.Summary, contextFieldLimit),
			"skills":  meeting.Resume.Skills,
		},
	}, nil
}

// StartMeeting moves a scheduled meeting into active and opens the live
// session. The timing window is re-checked here against the wall clock; the
// background sweep is only a safety net, never an authority for this path.
func StartMeeting(meeting *models.Meeting) (provider.SessionRef, map[string]any, error) {
	now := time.Now()

	switch meeting.Status {
	case models.MeetingStatusScheduled:
	case models.MeetingStatusActive:
		return provider.SessionRef{}, nil, StateError{Current: "already in progress", Expected: models.MeetingStatusScheduled}
	default:
		return provider.SessionRef{}, nil, StateError{Current: meeting.Status, Expected: models.MeetingStatusScheduled}
	}

	if now.Before(meeting.EarliestJoinTime()) {
		return provider.SessionRef{}, nil, WindowError{TooLate: false}
	}
	if now.After(meeting.ExpireDeadline()) {
		meeting.Status = models.MeetingStatusExpired
		if err := database.C.Save(meeting).Error; err != nil {
			log.Warn().Err(err).Uint("meeting", meeting.ID).Msg("Unable to mark overdue meeting as expired...")
		}
		return provider.SessionRef{}, nil, WindowError{TooLate: true}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	agentID := meeting.AgentID
	if agentID == "" {
		agentID = provider.Agent.EnsureAgent(ctx, provider.AgentContext{
			Job:            meeting.Job,
			Resume:         meeting.Resume,
			CandidateEmail: meeting.CandidateEmail,
		})
		if agentID != provider.PlaceholderAgentID {
			meeting.AgentID = agentID
		}
	}

	roomName := fmt.Sprintf("interview-%s", meeting.Token[:16])
	session, joinConfig, err := provider.StartSession(ctx, agentID, roomName, meeting.CandidateEmail)
	if err != nil {
		return session, nil, err
	}

	// Synthetic session ids stay out of the database so a later provider
	// pull can never be issued against a local stand-in.
	if session.Confirmed {
		meeting.SessionID = session.ID
	}
	meeting.SessionJoinConfig = joinConfig
	meeting.Status = models.MeetingStatusActive

	if err := database.C.Save(meeting).Error; err != nil {
		return session, nil, err
	}

	return session, joinConfig, nil
}

// EndMeeting finalizes an active meeting. If no transcript arrived through
// webhooks but a confirmed provider session exists, it is pulled
// synchronously before the record goes terminal.
func EndMeeting(meeting *models.Meeting) error {
	if meeting.Status != models.MeetingStatusActive {
		return StateError{Current: meeting.Status, Expected: models.MeetingStatusActive}
	}

	if meeting.Transcript == "" && meeting.SessionID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if transcript, err := provider.Agent.PullTranscript(ctx, meeting.SessionID); err != nil {
			log.Warn().Err(err).Uint("meeting", meeting.ID).Msg("Unable to backfill transcript from provider...")
		} else if transcript != "" {
			meeting.Transcript = transcript
		}
	}

	meeting.Status = models.MeetingStatusCompleted
	return database.C.Save(meeting).Error
}

func CancelMeeting(recruiter models.Account, meeting *models.Meeting) error {
	if meeting.RecruiterID != recruiter.ID {
		return AuthorizationError{Message: "only the meeting's recruiter can cancel it"}
	}
	switch meeting.Status {
	case models.MeetingStatusScheduled, models.MeetingStatusActive:
	default:
		return StateError{Current: meeting.Status, Expected: "scheduled or active"}
	}

	meeting.Status = models.MeetingStatusCanceled
	if err := database.C.Save(meeting).Error; err != nil {
		return err
	}

	if err := SendMeetingMail(meetingMail("meeting-canceled", *meeting)); err != nil {
		log.Warn().Err(err).Uint("meeting", meeting.ID).Msg("Unable to send cancellation notification...")
	}
	return nil
}

// RescheduleMeeting re-arms the timing window; it intentionally pulls a
// meeting that drifted into expired back to scheduled.
func RescheduleMeeting(recruiter models.Account, meeting *models.Meeting, scheduledAt time.Time, duration int) error {
	if meeting.RecruiterID != recruiter.ID {
		return AuthorizationError{Message: "only the meeting's recruiter can reschedule it"}
	}
	switch meeting.Status {
	case models.MeetingStatusCompleted, models.MeetingStatusCanceled:
		return StateError{Current: meeting.Status, Expected: "any non-final status"}
	}
	if scheduledAt.IsZero() {
		return ValidationError{Message: "scheduled time is required"}
	}
	if duration == 0 {
		duration = meeting.Duration
	}
	if duration < models.MeetingMinDuration || duration > models.MeetingMaxDuration {
		return ValidationError{Message: fmt.Sprintf(
			"duration must be between %d and %d minutes",
			models.MeetingMinDuration, models.MeetingMaxDuration,
		)}
	}

	meeting.ScheduledAt = scheduledAt
	meeting.Duration = duration
	meeting.Status = models.MeetingStatusScheduled
	if err := database.C.Save(meeting).Error; err != nil {
		return err
	}

	if err := SendMeetingMail(meetingMail("meeting-rescheduled", *meeting)); err != nil {
		log.Warn().Err(err).Uint("meeting", meeting.ID).Msg("Unable to send reschedule notification...")
	}
	return nil
}

func ResendMeetingInvite(recruiter models.Account, meeting models.Meeting) error {
	if meeting.RecruiterID != recruiter.ID {
		return AuthorizationError{Message: "only the meeting's recruiter can resend the invite"}
	}
	if meeting.Status != models.MeetingStatusScheduled {
		return StateError{Current: meeting.Status, Expected: models.MeetingStatusScheduled}
	}

	return SendMeetingMail(meetingMail("meeting-invite", meeting))
}

func meetingMail(template string, meeting models.Meeting) MeetingMail {
	return MeetingMail{
		Template:      template,
		Recipient:     meeting.CandidateEmail,
		JobTitle:      meeting.Job.Title,
		CompanyName:   meeting.Job.CompanyName,
		CandidateName: meeting.Resume.CandidateName,
		ScheduledAt:   meeting.ScheduledAt.Format(time.RFC1123),
		Duration:      meeting.Duration,
		InviteLink:    MeetingInviteLink(meeting),
		Recruiter:     meeting.Recruiter.Name,
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
