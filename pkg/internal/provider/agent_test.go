package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"

	"github.com/zepulhq/meetings/pkg/internal/models"
)

func jsonDecode(r *http.Request, out any) error {
	body, _ := io.ReadAll(r.Body)
	return jsoniter.Unmarshal(body, out)
}

func testAgentContext() AgentContext {
	return AgentContext{
		Job: models.Job{
			Title:       "Backend Engineer",
			Location:    "Remote",
			CompanyName: "Zepul",
			Skills:      []string{"go", "postgres"},
			Description: "Own the meeting orchestration stack.",
		},
		Resume: models.Resume{
			CandidateName:   "Jordan Doe",
			Summary:         "Seven years of API work.",
			Skills:          []string{"go"},
			ExperienceYears: 7,
			Analysis:        map[string]any{"strengths": []any{"systems design"}},
		},
		CandidateEmail: "jordan@example.com",
	}
}

func resetAgentConfig() {
	viper.Set("agent.endpoint", "")
	viper.Set("agent.api_key", "")
	viper.Set("agent.id", "")
	viper.Set("agent.model", "gpt-4o")
	viper.Set("agent.voice", "alloy")
	viper.Set("agent.prompt_path", "")
}

func TestEnsureAgentStaticOverride(t *testing.T) {
	resetAgentConfig()
	viper.Set("agent.id", "agent-static")
	client := NewAgentClient()

	if got := client.EnsureAgent(context.Background(), testAgentContext()); got != "agent-static" {
		t.Fatalf("EnsureAgent = %q, want static override", got)
	}
}

func TestEnsureAgentCreatesViaProvider(t *testing.T) {
	resetAgentConfig()

	var receivedInstructions string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assistants" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var payload struct {
			Instructions string `json:"instructions"`
		}
		_ = jsonDecode(r, &payload)
		receivedInstructions = payload.Instructions
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"agent-123"}`))
	}))
	defer server.Close()
	viper.Set("agent.endpoint", server.URL)

	client := NewAgentClient()
	got := client.EnsureAgent(context.Background(), testAgentContext())
	if got != "agent-123" {
		t.Fatalf("EnsureAgent = %q, want agent-123", got)
	}
	for _, fragment := range []string{"Backend Engineer", "Jordan Doe", "go, postgres"} {
		if !strings.Contains(receivedInstructions, fragment) {
			t.Fatalf("instructions missing %q:\n%s", fragment, receivedInstructions)
		}
	}
}

func TestEnsureAgentDegradesToPlaceholder(t *testing.T) {
	resetAgentConfig()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	viper.Set("agent.endpoint", server.URL)

	client := NewAgentClient()
	if got := client.EnsureAgent(context.Background(), testAgentContext()); got != PlaceholderAgentID {
		t.Fatalf("EnsureAgent = %q, want placeholder on provider failure", got)
	}

	// Unconfigured endpoint degrades the same way without any network call.
	viper.Set("agent.endpoint", "")
	client = NewAgentClient()
	if got := client.EnsureAgent(context.Background(), testAgentContext()); got != PlaceholderAgentID {
		t.Fatalf("EnsureAgent = %q, want placeholder when unconfigured", got)
	}
}

func TestPullTranscriptFieldFallback(t *testing.T) {
	resetAgentConfig()

	responses := []string{
		`{"transcript":"top level"}`,
		`{"artifact":{"transcript":"nested"}}`,
		`{"messages":[{"role":"assistant","message":"hi"},{"role":"user","message":"hello"}]}`,
	}
	wants := []string{"top level", "nested", "assistant: hi\nuser: hello"}

	var idx int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/calls/") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responses[idx]))
	}))
	defer server.Close()
	viper.Set("agent.endpoint", server.URL)
	client := NewAgentClient()

	for idx = range responses {
		got, err := client.PullTranscript(context.Background(), "call-1")
		if err != nil {
			t.Fatalf("pull %d: %v", idx, err)
		}
		if got != wants[idx] {
			t.Fatalf("pull %d = %q, want %q", idx, got, wants[idx])
		}
	}
}

func TestPullTranscriptErrors(t *testing.T) {
	resetAgentConfig()
	client := NewAgentClient()
	if _, err := client.PullTranscript(context.Background(), "call-1"); err == nil {
		t.Fatalf("expected error when endpoint unconfigured")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	viper.Set("agent.endpoint", server.URL)
	client = NewAgentClient()
	if _, err := client.PullTranscript(context.Background(), "call-1"); err == nil {
		t.Fatalf("expected error on provider 404")
	}
}
