package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/viper"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zepulhq/meetings/pkg/internal/database"
	"github.com/zepulhq/meetings/pkg/internal/models"
	"github.com/zepulhq/meetings/pkg/internal/provider"
)

func setupTestDatabase(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	raw, err := db.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	raw.SetMaxOpenConns(1)

	if err := database.RunMigration(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database.C = db

	viper.Set("frontend", "http://localhost:5173")
	viper.Set("agent.endpoint", "")
	viper.Set("agent.id", "")
	viper.Set("agent.prompt_path", "")
	viper.Set("calling.public_key", "")
	viper.Set("calling.api_key", "")
	viper.Set("mailer.endpoint", "")
	viper.Set("webhook.secret", "")
	provider.SetupAgentClient()
}

func seedRecruiter(t *testing.T, email string) models.Account {
	t.Helper()
	account := models.Account{Name: "Recruiter", Email: email}
	if err := database.C.Create(&account).Error; err != nil {
		t.Fatalf("seed recruiter: %v", err)
	}
	return account
}

func seedJob(t *testing.T, recruiter models.Account) models.Job {
	t.Helper()
	job := models.Job{
		Title:       "Backend Engineer",
		Description: "Design and run distributed services.",
		Location:    "Remote",
		CompanyName: "Zepul",
		Skills:      []string{"go", "postgres"},
		RecruiterID: recruiter.ID,
	}
	if err := database.C.Create(&job).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func seedResume(t *testing.T, recruiter models.Account) models.Resume {
	t.Helper()
	resume := models.Resume{
		CandidateName:   "Jordan Doe",
		Email:           "jordan@example.com",
		Summary:         "Seven years building APIs.",
		Skills:          []string{"go", "kubernetes"},
		ExperienceYears: 7,
		RecruiterID:     recruiter.ID,
	}
	if err := database.C.Create(&resume).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	return resume
}

func seedMeeting(t *testing.T, recruiter models.Account, scheduledAt time.Time, status models.MeetingStatus) models.Meeting {
	t.Helper()
	job := seedJob(t, recruiter)
	resume := seedResume(t, recruiter)
	meeting := models.Meeting{
		JobID:          job.ID,
		ResumeID:       resume.ID,
		RecruiterID:    recruiter.ID,
		CandidateEmail: "jordan@example.com",
		ScheduledAt:    scheduledAt,
		Duration:       models.MeetingDefaultDuration,
		Status:         status,
		Token:          NewMeetingToken(),
	}
	if err := database.C.Create(&meeting).Error; err != nil {
		t.Fatalf("seed meeting: %v", err)
	}
	meeting.Job = job
	meeting.Resume = resume
	meeting.Recruiter = recruiter
	return meeting
}
