package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/zepulhq/meetings/pkg/internal/models"
)

// PlaceholderAgentID is returned when the conversational agent could not be
// created. Callers can keep going in degraded mode and must never hand this
// id to a real provider call.
const PlaceholderAgentID = "placeholder-agent"

const fallbackInstructions = "You are a professional technical interviewer. " +
	"Conduct a structured interview for the given role: ask one question at a time, " +
	"follow up on vague answers, cover the listed skills, and keep a neutral, " +
	"encouraging tone. When you have enough signal, call the end_interview function."

type AgentClient struct {
	endpoint     string
	apiKey       string
	staticID     string
	model        string
	voice        string
	instructions string

	client *http.Client
}

var Agent *AgentClient

func SetupAgentClient() {
	Agent = NewAgentClient()
}

func NewAgentClient() *AgentClient {
	instructions := fallbackInstructions
	if path := viper.GetString("agent.prompt_path"); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Unable to load interview prompt template, using built-in fallback...")
		} else {
			instructions = string(raw)
		}
	}

	return &AgentClient{
		endpoint:     strings.TrimSuffix(viper.GetString("agent.endpoint"), "/"),
		apiKey:       viper.GetString("agent.api_key"),
		staticID:     viper.GetString("agent.id"),
		model:        viper.GetString("agent.model"),
		voice:        viper.GetString("agent.voice"),
		instructions: instructions,
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

// AgentContext is the job/candidate material the interview prompt is built
// from.
type AgentContext struct {
	Job            models.Job
	Resume         models.Resume
	CandidateEmail string
}

func (v AgentContext) Instructions(template string) string {
	var sb strings.Builder
	sb.WriteString(template)
	sb.WriteString("\n\n## Role\n")
	sb.WriteString(fmt.Sprintf("Title: %s\nLocation: %s\nCompany: %s\n", v.Job.Title, v.Job.Location, v.Job.CompanyName))
	if len(v.Job.Skills) > 0 {
		sb.WriteString("Skills: " + strings.Join(v.Job.Skills, ", ") + "\n")
	}
	if v.Job.Description != "" {
		sb.WriteString("Description: " + v.Job.Description + "\n")
	}
	sb.WriteString("\n## Candidate\n")
	sb.WriteString(fmt.Sprintf("Name: %s\nEmail: %s\n", v.Resume.CandidateName, v.CandidateEmail))
	if v.Resume.Summary != "" {
		sb.WriteString("Summary: " + v.Resume.Summary + "\n")
	}
	if len(v.Resume.Skills) > 0 {
		sb.WriteString("Skills: " + strings.Join(v.Resume.Skills, ", ") + "\n")
	}
	if v.Resume.ExperienceYears > 0 {
		sb.WriteString(fmt.Sprintf("Experience: %.1f years\n", v.Resume.ExperienceYears))
	}
	for _, key := range []string{"strengths", "concerns"} {
		if val, ok := v.Resume.Analysis[key]; ok {
			raw, _ := jsoniter.MarshalToString(val)
			sb.WriteString(fmt.Sprintf("%s: %s\n", lo.Capitalize(key), raw))
		}
	}
	return sb.String()
}

// EnsureAgent resolves the conversational agent to run the interview with.
// A statically configured agent id wins; otherwise a fresh agent is created
// from the prompt template plus context. Provider failures never propagate,
// they degrade to PlaceholderAgentID.
func (c *AgentClient) EnsureAgent(ctx context.Context, agentCtx AgentContext) string {
	if c.staticID != "" {
		return c.staticID
	}
	if c.endpoint == "" {
		return PlaceholderAgentID
	}

	payload, _ := jsoniter.Marshal(map[string]any{
		"name":         fmt.Sprintf("interviewer-%s", agentCtx.Job.Title),
		"model":        c.model,
		"voice":        c.voice,
		"instructions": agentCtx.Instructions(c.instructions),
		"functions": []map[string]any{
			{
				"name":        "end_interview",
				"description": "Signal that the interview should be wrapped up.",
			},
		},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/assistants", bytes.NewReader(payload))
	if err != nil {
		return PlaceholderAgentID
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Unable to create conversational agent, falling back to placeholder...")
		return PlaceholderAgentID
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		log.Warn().Int("status", resp.StatusCode).Bytes("body", body).Msg("Agent creation rejected, falling back to placeholder...")
		return PlaceholderAgentID
	}

	var data struct {
		ID string `json:"id"`
	}
	if err := jsoniter.Unmarshal(body, &data); err != nil || data.ID == "" {
		log.Warn().Err(err).Msg("Unable to parse agent creation response, falling back to placeholder...")
		return PlaceholderAgentID
	}

	return data.ID
}

// PullTranscript fetches the transcript of a finished call directly from
// the provider. Used as fallback when no end-of-call webhook arrived.
func (c *AgentClient) PullTranscript(ctx context.Context, sessionID string) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("agent endpoint is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/calls/"+sessionID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(body))
	}

	var data struct {
		Transcript string `json:"transcript"`
		Artifact   struct {
			Transcript string `json:"transcript"`
		} `json:"artifact"`
		Messages []callMessage `json:"messages"`
	}
	if err := jsoniter.Unmarshal(body, &data); err != nil {
		return "", err
	}

	if data.Transcript != "" {
		return data.Transcript, nil
	}
	if data.Artifact.Transcript != "" {
		return data.Artifact.Transcript, nil
	}
	lines := lo.FilterMap(data.Messages, func(item callMessage, _ int) (string, bool) {
		if item.Message == "" {
			return "", false
		}
		return fmt.Sprintf("%s: %s", item.Role, item.Message), true
	})
	return strings.Join(lines, "\n"), nil
}

type callMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}
