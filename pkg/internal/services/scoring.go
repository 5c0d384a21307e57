package services

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zepulhq/meetings/pkg/internal/database"
	"github.com/zepulhq/meetings/pkg/internal/models"
)

// PushResumeScorecard writes the interview outcome onto the resume record.
// One-way and fire-and-forget from the meeting's perspective: failures are
// logged, never retried.
func PushResumeScorecard(meeting models.Meeting, score int) {
	var resume models.Resume
	if err := database.C.First(&resume, meeting.ResumeID).Error; err != nil {
		log.Warn().Err(err).Uint("resume", meeting.ResumeID).Msg("Unable to load resume for interview scorecard...")
		return
	}

	if resume.AiScorecard == nil {
		resume.AiScorecard = map[string]any{}
	}
	resume.AiScorecard["interview_score"] = score
	resume.AiScorecard["recommendation"] = meeting.ReportRecommendation
	resume.AiScorecard["breakdown"] = map[string]any(meeting.ReportScores)
	resume.AiScorecard["scored_at"] = time.Now().Format(time.RFC3339)

	if err := database.C.Save(&resume).Error; err != nil {
		log.Warn().Err(err).Uint("resume", resume.ID).Msg("Unable to save interview scorecard...")
	}
}
