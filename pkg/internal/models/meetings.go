package models

import (
	"time"

	"gorm.io/datatypes"
)

type MeetingStatus = string

const (
	MeetingStatusScheduled = MeetingStatus("scheduled")
	MeetingStatusActive    = MeetingStatus("active")
	MeetingStatusCompleted = MeetingStatus("completed")
	MeetingStatusExpired   = MeetingStatus("expired")
	MeetingStatusCanceled  = MeetingStatus("canceled")
)

const (
	MeetingEarlyJoinWindow = 15 * time.Minute
	MeetingGraceWindow     = 30 * time.Minute
	MeetingMinDuration     = 10
	MeetingMaxDuration     = 120
	MeetingDefaultDuration = 40
)

// Meeting is one scheduled AI-led interview tying a job, a resume and a
// recruiter together. The candidate side is anonymous: the capability token
// is the only credential the invite link carries.
type Meeting struct {
	BaseModel

	JobID       uint    `json:"job_id"`
	ResumeID    uint    `json:"resume_id"`
	RecruiterID uint    `json:"recruiter_id"`
	Job         Job     `json:"job"`
	Resume      Resume  `json:"resume"`
	Recruiter   Account `json:"recruiter"`

	CandidateEmail string        `json:"candidate_email"`
	ScheduledAt    time.Time     `json:"scheduled_at"`
	Duration       int           `json:"duration"`
	Status         MeetingStatus `json:"status" gorm:"index"`
	Token          string        `json:"token" gorm:"uniqueIndex"`

	AgentID           string            `json:"agent_id"`
	SessionID         string            `json:"session_id" gorm:"index"`
	SessionJoinConfig datatypes.JSONMap `json:"session_join_config"`

	Transcript   string `json:"transcript" gorm:"type:text"`
	RecordingURL string `json:"recording_url"`

	ReportSummary        string                      `json:"report_summary" gorm:"type:text"`
	ReportRecommendation string                      `json:"report_recommendation"`
	ReportRisks          datatypes.JSONSlice[string] `json:"report_risks"`
	ReportScores         datatypes.JSONMap           `json:"report_scores"`

	ToolOutputs datatypes.JSON    `json:"tool_outputs"`
	Meta        datatypes.JSONMap `json:"meta"`
}

// MeetingSummary is the dashboard listing view: scheduling facts and the
// final recommendation, without the heavy transcript or report payloads.
type MeetingSummary struct {
	ID                   uint          `json:"id"`
	JobID                uint          `json:"job_id"`
	ResumeID             uint          `json:"resume_id"`
	CandidateEmail       string        `json:"candidate_email"`
	ScheduledAt          time.Time     `json:"scheduled_at"`
	Duration             int           `json:"duration"`
	Status               MeetingStatus `json:"status"`
	Token                string        `json:"token"`
	RecordingURL         string        `json:"recording_url"`
	ReportRecommendation string        `json:"report_recommendation"`
	Job                  Job           `json:"job"`
}

func (v Meeting) IsTerminal() bool {
	switch v.Status {
	case MeetingStatusCompleted, MeetingStatusExpired, MeetingStatusCanceled:
		return true
	default:
		return false
	}
}

// ExpireDeadline is the instant after which nobody can join the meeting
// anymore, duration capped so a bad record cannot stay joinable forever.
func (v Meeting) ExpireDeadline() time.Time {
	duration := min(v.Duration, MeetingMaxDuration)
	return v.ScheduledAt.Add(time.Duration(duration)*time.Minute + MeetingGraceWindow)
}

func (v Meeting) EarliestJoinTime() time.Time {
	return v.ScheduledAt.Add(-MeetingEarlyJoinWindow)
}
