package ai

import (
	"strings"
	"testing"
)

func sampleSpec() DecisionSpec {
	return DecisionSpec{
		Title:       "Pick a message broker",
		Description: "For the event pipeline rebuild",
		Criteria: []Criterion{
			{ID: "c1", Name: "Throughput", Weight: 8},
			{ID: "c2", Name: "Operational cost", Weight: 5},
		},
		Options: []Option{
			{ID: "o1", Name: "Kafka", Description: "managed cluster"},
			{
				ID: "o2", Name: "NATS", Description: "self hosted",
				Attachments: []Attachment{
					{ID: "a1", Name: "benchmark.pdf", MIMEType: "application/pdf", Data: "aGVsbG8="},
				},
			},
		},
	}
}

func TestBuildSystemPromptContract(t *testing.T) {
	prompt := BuildSystemPrompt()
	for _, required := range []string{ResultMarker, "criteriaAnalysis", "winnerId", "0-100", "recommendation"} {
		if !strings.Contains(prompt, required) {
			t.Fatalf("system prompt missing %q", required)
		}
	}
}

func TestBuildUserPromptDeterministic(t *testing.T) {
	spec := sampleSpec()
	first := BuildUserPrompt(spec)
	second := BuildUserPrompt(spec)
	if first != second {
		t.Fatal("prompt not deterministic for identical input")
	}
}

func TestBuildUserPromptContents(t *testing.T) {
	prompt := BuildUserPrompt(sampleSpec())

	for _, required := range []string{
		"Pick a message broker",
		"For the event pipeline rebuild",
		"c1 | Throughput | 8",
		"c2 | Operational cost | 5",
		"id: o1",
		"id: o2",
		"benchmark.pdf (application/pdf)",
	} {
		if !strings.Contains(prompt, required) {
			t.Fatalf("user prompt missing %q in:\n%s", required, prompt)
		}
	}

	// The attachment payload travels as an inline part, never as text.
	if strings.Contains(prompt, "aGVsbG8=") {
		t.Fatal("attachment payload leaked into prompt text")
	}
}

func TestBuildUserPromptPreservesOrder(t *testing.T) {
	prompt := BuildUserPrompt(sampleSpec())
	if strings.Index(prompt, "id: o1") > strings.Index(prompt, "id: o2") {
		t.Fatal("options out of input order")
	}
	if strings.Index(prompt, "c1 |") > strings.Index(prompt, "c2 |") {
		t.Fatal("criteria out of input order")
	}
}
