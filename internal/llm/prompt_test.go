package llm

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateOCRPreservesHead(t *testing.T) {
	head := "Nome: Mario Rossi\n"
	long := head + strings.Repeat("x", MaxOCRPromptBytes*2)

	got := TruncateOCR(long)
	if !strings.HasPrefix(got, head) {
		t.Fatalf("truncation must preserve the beginning of the text")
	}
	if len(got) > MaxOCRPromptBytes+len("\n…(truncated)") {
		t.Fatalf("truncated text too long: %d bytes", len(got))
	}
}

func TestTruncateOCRCutsOnRuneBoundary(t *testing.T) {
	// OCR of Italian documents is full of accented characters; place one so the
	// byte cap lands mid-rune.
	long := strings.Repeat("a", MaxOCRPromptBytes-1) + "è" + strings.Repeat("b", 50)

	got := TruncateOCR(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text contains a broken rune: %q", got[MaxOCRPromptBytes-5:])
	}
	if !strings.HasSuffix(got, "\n…(truncated)") {
		t.Fatalf("missing truncation marker: %q", got[len(got)-20:])
	}
	if strings.ContainsRune(got, 'b') {
		t.Fatalf("tail beyond the cap leaked into the prompt")
	}
}

func TestTruncateOCRShortTextUntouched(t *testing.T) {
	in := "Attestato antincendio del 01/02/2024"
	if got := TruncateOCR(in); got != in {
		t.Fatalf("short text must pass through unchanged, got %q", got)
	}
}

func TestBuildUserPromptIncludesHints(t *testing.T) {
	p := BuildUserPrompt(ExtractRequest{
		OCRText:      "testo",
		FilenameHint: "visita_rossi.pdf",
		SiteHint:     "Cantiere Via Roma",
	})
	for _, want := range []string{"visita_rossi.pdf", "Cantiere Via Roma", "testo"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
}
