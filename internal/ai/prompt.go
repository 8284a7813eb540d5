package ai

import (
	"fmt"
	"strings"
)

// ResultMarker is the sentinel token the model is instructed to emit on its
// own line immediately before the JSON payload. The pipeline treats it as a
// plain-text boundary, not parsed structure.
const ResultMarker = "###RESULT_JSON###"

// systemPrompt advertises the output contract: the sentinel marker, the
// exact schema, the scoring range, and the prohibition on extra text.
const systemPrompt = `You are a rigorous decision analyst. You will receive a decision problem with weighted criteria and competing options, possibly with supporting files attached.

Score every option against every criterion on a 0-100 scale and justify each score. Then deliver an overall verdict, pick a winner, and give a concrete recommendation.

Respond with the literal marker ` + ResultMarker + ` on its own line, followed immediately by a single JSON object with exactly this shape:
{
  "analysis": [
    {
      "optionId": "<option id>",
      "criteriaAnalysis": [
        {"criteriaId": "<criterion id>", "score": <integer 0-100>, "reasoning": "<why>", "confidence": <integer 0-100, optional>}
      ],
      "pros": ["<string>"],
      "cons": ["<string>"]
    }
  ],
  "verdict": "<overall comparison>",
  "winnerId": "<option id of the best option>",
  "recommendation": "<actionable next step>"
}

Emit nothing before the marker and nothing after the JSON object. Do not wrap the JSON in code fences.`

// BuildSystemPrompt returns the fixed system instruction for an analysis
// request. It is constant so the provider can cache it.
func BuildSystemPrompt() string {
	return systemPrompt
}

// BuildUserPrompt renders the decision spec as the user instruction. The
// output is deterministic for a given spec: criteria and options appear in
// input order and attachments are referenced by a short note only.
func BuildUserPrompt(spec DecisionSpec) string {
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "Decision: %s\n", strings.TrimSpace(spec.Title))
	if desc := strings.TrimSpace(spec.Description); desc != "" {
		fmt.Fprintf(builder, "Context: %s\n", desc)
	}

	builder.WriteString("\nCriteria (id | name | weight 1-10):\n")
	for _, criterion := range spec.Criteria {
		fmt.Fprintf(builder, "- %s | %s | %d\n", criterion.ID, criterion.Name, criterion.Weight)
	}

	builder.WriteString("\nOptions:\n")
	for _, option := range spec.Options {
		fmt.Fprintf(builder, "- id: %s\n  name: %s\n", option.ID, option.Name)
		if desc := strings.TrimSpace(option.Description); desc != "" {
			fmt.Fprintf(builder, "  description: %s\n", desc)
		}
		for _, attachment := range option.Attachments {
			fmt.Fprintf(builder, "  attachment: %s (%s) is provided as an inline file for this option\n",
				attachment.Name, attachment.MIMEType)
		}
	}

	builder.WriteString("\nScore every option against every criterion, then respond using the required marker and JSON schema.\n")
	return builder.String()
}
