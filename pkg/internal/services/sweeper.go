package services

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zepulhq/meetings/pkg/internal/database"
	"github.com/zepulhq/meetings/pkg/internal/models"
)

const sweepBatchSize = 500

// DoSweepOverdueMeetings expires any scheduled or active meeting whose join
// window has unambiguously passed. It only covers meetings nobody explicitly
// closed; live start/end handlers re-check the clock themselves, so running
// the sweep concurrently with them is fine.
func DoSweepOverdueMeetings() {
	now := time.Now()

	// Coarse pre-filter in SQL, exact deadline checked in Go because the
	// deadline depends on each row's duration.
	cutoff := now.Add(-models.MeetingGraceWindow)

	var candidates []models.Meeting
	if err := database.C.
		Where("status IN ?", []string{models.MeetingStatusScheduled, models.MeetingStatusActive}).
		Where("scheduled_at < ?", cutoff).
		Limit(sweepBatchSize).
		Find(&candidates).Error; err != nil {
		log.Error().Err(err).Msg("An error occurred when scanning for overdue meetings...")
		return
	}

	var affected int64
	for _, meeting := range candidates {
		if now.Before(meeting.ExpireDeadline()) {
			continue
		}
		tx := database.C.Model(&models.Meeting{}).
			Where("id = ? AND status IN ?", meeting.ID, []string{
				models.MeetingStatusScheduled,
				models.MeetingStatusActive,
			}).
			Update("status", models.MeetingStatusExpired)
		if tx.Error != nil {
			log.Error().Err(tx.Error).Uint("meeting", meeting.ID).Msg("An error occurred when expiring meeting...")
			continue
		}
		affected += tx.RowsAffected
	}

	if affected > 0 {
		log.Debug().Int64("affected", affected).Msg("Expired overdue meetings.")
	}
}
