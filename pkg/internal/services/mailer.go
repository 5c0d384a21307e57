package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var mailerClient = &http.Client{Timeout: 10 * time.Second}

// MeetingMail is the fixed parameter set the external notification service
// renders its templates from. This core never builds email bodies itself.
type MeetingMail struct {
	Template      string `json:"template"`
	Recipient     string `json:"recipient"`
	JobTitle      string `json:"job_title"`
	CompanyName   string `json:"company_name"`
	CandidateName string `json:"candidate_name"`
	ScheduledAt   string `json:"scheduled_at"`
	Duration      int    `json:"duration"`
	InviteLink    string `json:"invite_link"`
	Recruiter     string `json:"recruiter"`
	Website       string `json:"website"`
}

func SendMeetingMail(mail MeetingMail) error {
	endpoint := viper.GetString("mailer.endpoint")
	if endpoint == "" {
		log.Debug().Str("template", mail.Template).Str("recipient", mail.Recipient).
			Msg("Mailer endpoint is not configured, skipped sending notification...")
		return nil
	}

	mail.Website = viper.GetString("company.website")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload, _ := jsoniter.Marshal(mail)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+viper.GetString("mailer.api_key"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := mailerClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("mailer returned status %d", resp.StatusCode)
	}

	return nil
}
