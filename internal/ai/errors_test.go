package ai

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPreviewTruncation(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"short text untouched", "no result here"},
		{"long ascii", strings.Repeat("a", previewLimit*2)},
		{"long multi-byte", strings.Repeat("日本語のテキスト", 40)},
		{"boundary straddling rune", strings.Repeat("x", previewLimit-1) + "é" + strings.Repeat("y", 50)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := preview(tc.text)
			if !utf8.ValidString(got) {
				t.Fatalf("preview is not valid UTF-8: %q", got)
			}
			if len(tc.text) <= previewLimit {
				if got != strings.TrimSpace(tc.text) {
					t.Fatalf("short text altered: %q", got)
				}
				return
			}
			if !strings.HasSuffix(got, "...") {
				t.Fatalf("truncated preview missing ellipsis: %q", got)
			}
			if len(got) > previewLimit+len("...") {
				t.Fatalf("preview too long: %d bytes", len(got))
			}
		})
	}
}
