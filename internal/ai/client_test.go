package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"foliogen/internal/config"
)

func configWithoutKey() config.AIConfig {
	return config.AIConfig{Provider: "groq", GroqModel: "llama-3.3-70b-versatile"}
}

const validResumeJSON = `{
	"name": "Jane Doe",
	"headline": "Backend Engineer",
	"summary": "Builds services.",
	"skills": ["Go", "Postgres"],
	"experience": [{"company": "Acme", "role": "Engineer", "start": "2020", "end": "2023", "highlights": ["Shipped things"]}],
	"education": [{"school": "State University", "degree": "BSc", "start": "2016", "end": "2020"}],
	"projects": [],
	"links": [{"label": "GitHub", "url": "https://github.com/janedoe"}]
}`

type scriptedCompleter struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (s *scriptedCompleter) Ask(_ context.Context, _ string, userPrompt string) (string, error) {
	idx := s.calls
	s.calls++
	s.prompts = append(s.prompts, userPrompt)
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	if err != nil {
		return "", err
	}
	return s.replies[idx], nil
}

func TestExtractStructuredFirstAttemptSucceeds(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{validResumeJSON}}
	client := NewClient(completer, nil)

	parsed, err := client.ExtractStructured(context.Background(), "resume text")
	if err != nil {
		t.Fatalf("ExtractStructured: %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("expected 1 completion call, got %d", completer.calls)
	}
	if parsed.Name != "Jane Doe" || len(parsed.Skills) != 2 {
		t.Fatalf("unexpected parse result: %+v", parsed)
	}
}

func TestExtractStructuredSlicesSurroundingText(t *testing.T) {
	reply := "Sure, here is the JSON you asked for:\n```json\n" + validResumeJSON + "\n```\nLet me know if you need anything else."
	completer := &scriptedCompleter{replies: []string{reply}}
	client := NewClient(completer, nil)

	parsed, err := client.ExtractStructured(context.Background(), "resume text")
	if err != nil {
		t.Fatalf("ExtractStructured: %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("chatter around the object should not trigger repair, got %d calls", completer.calls)
	}
	if parsed.Headline != "Backend Engineer" {
		t.Fatalf("unexpected headline %q", parsed.Headline)
	}
}

func TestExtractStructuredRepairRoundTrip(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		`{"name": "Jane Doe", "skills": "not-an-array"}`,
		validResumeJSON,
	}}
	client := NewClient(completer, nil)

	parsed, err := client.ExtractStructured(context.Background(), "resume text")
	if err != nil {
		t.Fatalf("ExtractStructured after repair: %v", err)
	}
	if completer.calls != 2 {
		t.Fatalf("expected exactly 2 completion calls, got %d", completer.calls)
	}
	if !strings.Contains(completer.prompts[1], "not a valid JSON document") {
		t.Fatalf("second prompt should be a repair prompt, got %q", completer.prompts[1])
	}
	if parsed.Name != "Jane Doe" {
		t.Fatalf("unexpected name %q", parsed.Name)
	}
}

func TestExtractStructuredUnrecoverableAfterOneRepair(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		"no json here at all",
		"still { broken",
	}}
	client := NewClient(completer, nil)

	_, err := client.ExtractStructured(context.Background(), "resume text")
	if !errors.Is(err, ErrUnrecoverable) {
		t.Fatalf("expected ErrUnrecoverable, got %v", err)
	}
	if completer.calls != 2 {
		t.Fatalf("expected exactly 2 completion calls, got %d", completer.calls)
	}
}

func TestExtractStructuredProviderErrorPassesThrough(t *testing.T) {
	providerErr := &ProviderError{Status: 503, Body: "overloaded"}
	completer := &scriptedCompleter{replies: []string{""}, errs: []error{providerErr}}
	client := NewClient(completer, nil)

	_, err := client.ExtractStructured(context.Background(), "resume text")
	var got *ProviderError
	if !errors.As(err, &got) || got.Status != 503 {
		t.Fatalf("expected provider error to pass through, got %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("provider failure must not trigger repair, got %d calls", completer.calls)
	}
}

func TestExtractStructuredMissingKeyFailsFast(t *testing.T) {
	client := NewClient(NewCompleter(configWithoutKey(), nil), nil)
	_, err := client.ExtractStructured(context.Background(), "resume text")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
