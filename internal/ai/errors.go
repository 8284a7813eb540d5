package ai

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrDisabled indicates the analyzer has no usable credentials.
var ErrDisabled = errors.New("ai analyzer disabled")

// previewLimit bounds diagnostic text carried inside errors so that a large
// model response never ends up in logs or API payloads verbatim.
const previewLimit = 240

// NoJSONFoundError reports that neither the sentinel marker nor a fallback
// brace block could be located in the extracted response text.
type NoJSONFoundError struct {
	Preview string
}

func (e *NoJSONFoundError) Error() string {
	if e.Preview == "" {
		return "no result JSON found in model response"
	}
	return fmt.Sprintf("no result JSON found in model response (text: %s)", e.Preview)
}

// InvalidJSONError reports that a JSON-looking candidate failed every
// leniency tier of the parser.
type InvalidJSONError struct {
	Preview string
	Cause   error
}

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("model response JSON is invalid: %v (candidate: %s)", e.Cause, e.Preview)
}

func (e *InvalidJSONError) Unwrap() error {
	return e.Cause
}

// IsNoJSONFound reports whether err stems from a missing JSON payload.
func IsNoJSONFound(err error) bool {
	var target *NoJSONFoundError
	return errors.As(err, &target)
}

// IsInvalidJSON reports whether err stems from an unparseable JSON payload.
func IsInvalidJSON(err error) bool {
	var target *InvalidJSONError
	return errors.As(err, &target)
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= previewLimit {
		return text
	}
	// Back up to a rune boundary so the cut never splits a multi-byte rune.
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
