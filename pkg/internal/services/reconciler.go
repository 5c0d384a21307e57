package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gorm.io/datatypes"

	"github.com/zepulhq/meetings/pkg/internal/database"
	"github.com/zepulhq/meetings/pkg/internal/models"
)

type ProviderEventKind string

const (
	EventKindStatus       = ProviderEventKind("status-update")
	EventKindTranscript   = ProviderEventKind("transcript")
	EventKindToolCalls    = ProviderEventKind("tool-calls")
	EventKindFunctionCall = ProviderEventKind("function-call")
	EventKindEndOfCall    = ProviderEventKind("end-of-call-report")
	EventKindError        = ProviderEventKind("error")
	EventKindUnknown      = ProviderEventKind("unknown")
)

// ProviderEvent is one provider callback, normalized into a tagged shape.
// Providers are inconsistent about payload placement, so ParseProviderEvent
// checks an ordered list of candidate locations per field and takes the
// first non-empty one.
type ProviderEvent struct {
	Kind      ProviderEventKind
	SessionID string
	AgentID   string

	Status       string
	EndedReason  string
	Transcript   string
	RecordingURL string

	Summary        string
	Recommendation string
	Risks          []string
	Scores         map[string]any

	ToolOutputs  any
	FunctionName string
	FunctionArgs map[string]any
}

type rawProviderEvent struct {
	Type        string `json:"type"`
	Status      string `json:"status"`
	EndedReason string `json:"endedReason"`

	Call struct {
		ID          string `json:"id"`
		AssistantID string `json:"assistantId"`
	} `json:"call"`
	CallID      string `json:"callId"`
	AssistantID string `json:"assistantId"`

	Transcript string `json:"transcript"`
	Artifact   struct {
		Transcript   string `json:"transcript"`
		RecordingURL string `json:"recordingUrl"`
	} `json:"artifact"`
	RecordingURL string `json:"recordingUrl"`

	Analysis struct {
		Summary           string         `json:"summary"`
		Recommendation    string         `json:"recommendation"`
		Risks             []string       `json:"risks"`
		SuccessEvaluation map[string]any `json:"successEvaluation"`
		StructuredData    map[string]any `json:"structuredData"`
	} `json:"analysis"`
	Summary string         `json:"summary"`
	Scores  map[string]any `json:"scores"`

	ToolCalls    any `json:"toolCalls"`
	ToolCallList any `json:"toolCallList"`

	FunctionCall struct {
		Name       string         `json:"name"`
		Parameters map[string]any `json:"parameters"`
	} `json:"functionCall"`
}

type providerEnvelope struct {
	Message *rawProviderEvent `json:"message"`
	rawProviderEvent
}

// ParseProviderEvent accepts both enveloped ({"message": {...}}) and bare
// event payloads.
func ParseProviderEvent(body []byte) (ProviderEvent, error) {
	var envelope providerEnvelope
	if err := jsoniter.Unmarshal(body, &envelope); err != nil {
		return ProviderEvent{}, fmt.Errorf("malformed event payload: %w", err)
	}

	raw := envelope.rawProviderEvent
	if envelope.Message != nil {
		raw = *envelope.Message
	}

	event := ProviderEvent{
		Status:         raw.Status,
		EndedReason:    raw.EndedReason,
		SessionID:      firstNonEmpty(raw.Call.ID, raw.CallID),
		AgentID:        firstNonEmpty(raw.Call.AssistantID, raw.AssistantID),
		Transcript:     firstNonEmpty(raw.Transcript, raw.Artifact.Transcript),
		RecordingURL:   firstNonEmpty(raw.RecordingURL, raw.Artifact.RecordingURL),
		Summary:        firstNonEmpty(raw.Analysis.Summary, raw.Summary),
		Recommendation: raw.Analysis.Recommendation,
		Risks:          raw.Analysis.Risks,
		FunctionName:   raw.FunctionCall.Name,
		FunctionArgs:   raw.FunctionCall.Parameters,
	}

	if raw.ToolCalls != nil {
		event.ToolOutputs = raw.ToolCalls
	} else if raw.ToolCallList != nil {
		event.ToolOutputs = raw.ToolCallList
	}

	if len(raw.Scores) > 0 {
		event.Scores = raw.Scores
	} else if len(raw.Analysis.SuccessEvaluation) > 0 {
		event.Scores = raw.Analysis.SuccessEvaluation
	} else if len(raw.Analysis.StructuredData) > 0 {
		event.Scores = raw.Analysis.StructuredData
	}

	switch raw.Type {
	case "status-update", "speech-update":
		event.Kind = EventKindStatus
	case "transcript", "transcript-update":
		event.Kind = EventKindTranscript
	case "tool-calls", "tool-call-result":
		event.Kind = EventKindToolCalls
	case "function-call":
		event.Kind = EventKindFunctionCall
	case "end-of-call-report", "call-ended":
		event.Kind = EventKindEndOfCall
	case "error", "ejected", "hang":
		event.Kind = EventKindError
	default:
		event.Kind = EventKindUnknown
	}

	return event, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature over the raw
// request body. Constant-time compare; an empty configured secret disables
// the check at the caller.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, "sha256=")))
}

// MatchMeeting associates an event with its meeting. Primary key is the
// provider session id; when that misses (some providers call back before
// the start response echoed the id) the most recently touched meeting for
// the same agent is taken and the session id adopted onto it.
func MatchMeeting(event ProviderEvent) (models.Meeting, error) {
	var meeting models.Meeting

	if event.SessionID != "" {
		if err := database.C.
			Where(models.Meeting{SessionID: event.SessionID}).
			First(&meeting).Error; err == nil {
			return meeting, nil
		}
	}

	if event.AgentID == "" {
		return meeting, fmt.Errorf("unable to match event to a meeting: %w", ErrNotFound)
	}

	if err := database.C.
		Where(models.Meeting{AgentID: event.AgentID}).
		Where("status IN ?", []string{
			models.MeetingStatusScheduled,
			models.MeetingStatusActive,
			models.MeetingStatusCompleted,
		}).
		Order("updated_at DESC").
		First(&meeting).Error; err != nil {
		return meeting, fmt.Errorf("unable to match event to a meeting: %w", ErrNotFound)
	}

	// Adopt the provider-confirmed session id for future lookups.
	if event.SessionID != "" && meeting.SessionID == "" {
		meeting.SessionID = event.SessionID
	}

	return meeting, nil
}

// ApplyProviderEvent folds one event into the meeting record. Pure over the
// record: no database access, so each tag is unit-testable in isolation.
// Mutations are append-or-preserve / first-write-wins, which keeps replayed
// deliveries safe (duplicated transcript fragments excepted).
func ApplyProviderEvent(meeting *models.Meeting, event ProviderEvent) (ack string) {
	ack = "received"

	switch event.Kind {
	case EventKindStatus:
		if !meeting.IsTerminal() {
			meeting.Status = models.MeetingStatusActive
		}
		appendTranscript(meeting, event.Transcript)

	case EventKindTranscript:
		appendTranscript(meeting, event.Transcript)

	case EventKindToolCalls:
		if event.ToolOutputs != nil {
			raw, _ := jsoniter.Marshal(event.ToolOutputs)
			meeting.ToolOutputs = datatypes.JSON(raw)
		}

	case EventKindFunctionCall:
		// The agent asking to wrap up is a mid-call signal, not a
		// completion: the authoritative report is still on its way.
		if event.FunctionName == "end_interview" {
			if meeting.Meta == nil {
				meeting.Meta = map[string]any{}
			}
			meeting.Meta["end_interview_requested"] = true
			meeting.Meta["end_interview_requested_at"] = time.Now().Format(time.RFC3339)
			if reason, ok := event.FunctionArgs["reason"].(string); ok && reason != "" {
				meeting.Meta["end_interview_reason"] = reason
			}
			ack = "The interview is being wrapped up, thank the candidate and say goodbye."
		}

	case EventKindEndOfCall:
		meeting.Status = models.MeetingStatusCompleted
		applyTranscriptReplace(meeting, event.Transcript)
		if meeting.RecordingURL == "" && event.RecordingURL != "" {
			meeting.RecordingURL = event.RecordingURL
		}
		if event.ToolOutputs != nil {
			raw, _ := jsoniter.Marshal(event.ToolOutputs)
			meeting.ToolOutputs = datatypes.JSON(raw)
		}
		if meeting.ReportSummary == "" {
			meeting.ReportSummary = event.Summary
		}
		if meeting.ReportRecommendation == "" {
			meeting.ReportRecommendation = event.Recommendation
		}
		if len(meeting.ReportRisks) == 0 && len(event.Risks) > 0 {
			meeting.ReportRisks = event.Risks
		}
		if len(meeting.ReportScores) == 0 && len(event.Scores) > 0 {
			meeting.ReportScores = event.Scores
		}

	case EventKindError:
		appendTranscript(meeting, event.Transcript)
		if meeting.Status == models.MeetingStatusActive && strings.Contains(event.EndedReason, "ejected") {
			meeting.Status = models.MeetingStatusCompleted
		}

	default:
		if meeting.Transcript == "" && event.Transcript != "" {
			meeting.Transcript = event.Transcript
		}
	}

	return ack
}

// ReconcileProviderEvent matches, applies and persists one inbound event,
// then pushes the derived interview score once the report lands.
func ReconcileProviderEvent(event ProviderEvent) (models.Meeting, string, error) {
	meeting, err := MatchMeeting(event)
	if err != nil {
		return meeting, "", err
	}

	hadScores := len(meeting.ReportScores) > 0
	ack := ApplyProviderEvent(&meeting, event)

	if err := database.C.Save(&meeting).Error; err != nil {
		return meeting, ack, err
	}

	if !hadScores && len(meeting.ReportScores) > 0 {
		if score, ok := NormalizeScore(meeting.ReportScores); ok {
			PushResumeScorecard(meeting, score)
		}
	}

	return meeting, ack, nil
}

// NormalizeScore derives a 0-100 integer from an opaque scoring payload:
// average of every numeric sub-score, upscaled by 10 when the average looks
// like a 0-10 scale, clamped.
func NormalizeScore(scores map[string]any) (int, bool) {
	values := collectNumbers(scores)
	if len(values) == 0 {
		return 0, false
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	avg := sum / float64(len(values))
	if avg <= 10 {
		avg *= 10
	}

	return int(math.Round(math.Min(100, math.Max(0, avg)))), true
}

func collectNumbers(value any) []float64 {
	switch v := value.(type) {
	case float64:
		return []float64{v}
	case float32:
		return []float64{float64(v)}
	case int:
		return []float64{float64(v)}
	case int64:
		return []float64{float64(v)}
	case map[string]any:
		var out []float64
		for _, item := range v {
			out = append(out, collectNumbers(item)...)
		}
		return out
	case []any:
		var out []float64
		for _, item := range v {
			out = append(out, collectNumbers(item)...)
		}
		return out
	default:
		return nil
	}
}

func appendTranscript(meeting *models.Meeting, fragment string) {
	if fragment == "" {
		return
	}
	if meeting.Transcript == "" {
		meeting.Transcript = fragment
		return
	}
	meeting.Transcript = meeting.Transcript + "\n" + fragment
}

// applyTranscriptReplace takes a full transcript from an authoritative
// event, but never swaps a stored transcript for a shorter or empty one.
func applyTranscriptReplace(meeting *models.Meeting, transcript string) {
	if len(transcript) > len(meeting.Transcript) {
		meeting.Transcript = transcript
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
