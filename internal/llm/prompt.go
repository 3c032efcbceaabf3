package llm

import (
	"strings"
	"unicode/utf8"
)

// MaxOCRPromptBytes caps how much raw text is sent to the model. The head of
// the text is kept: identity and header fields sit at the top of these
// documents.
const MaxOCRPromptBytes = 3000

// TruncateOCR bounds raw text for the prompt, preserving the beginning. The
// cut backs up to a rune boundary so no mangled partial character reaches the
// model.
func TruncateOCR(s string) string {
	if len(s) <= MaxOCRPromptBytes {
		return s
	}
	cut := MaxOCRPromptBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n…(truncated)"
}

// BuildSystemPrompt composes the system message: classification enum,
// date formatting rules, and strict-but-practical output hygiene.
func BuildSystemPrompt(allowedTypes []string) string {
	parts := []string{
		"You are a parser for Italian construction-site safety documents (documenti di sicurezza per cantieri).",
		"Return ONLY JSON that matches the provided JSON Schema.",
		"'doc_type' MUST be exactly one of the allowed enum: " + strings.Join(allowedTypes, ", ") + ". If uncertain, choose 'altro'.",
		"Classification rubric: certificato di idoneità / visita medica → 'visita_medica'; " +
			"attestato formazione generale → 'formazione_generale'; formazione specifica → 'formazione_specifica'; " +
			"rischio alto / ponteggi / spazi confinati → 'alto_rischio'; addetto antincendio → 'antincendio'; " +
			"addetto primo soccorso → 'primo_soccorso'; verbale consegna DPI → 'dpi'; tesserino di riconoscimento → 'tesserino'; " +
			"nomina preposto → 'preposto'; elezione/nomina RLS → 'rls'; otherwise → 'altro'.",
		"Use ISO-8601 dates (YYYY-MM-DD). 'issue_date' is the date of issue or of the visit/course; 'expiry_date' is the validity end (scadenza).",
		"'holder_name' is the worker the document certifies, not the doctor, trainer, or company.",
		"'tax_code' is the 16-character codice fiscale, uppercase, only if printed on the document.",
		"Include a 'confidence' number between 0 and 1 reflecting how certain you are of the extracted values overall.",
		"Never output null. If a field is not readable, omit it. Never guess values.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the filename hint and the (bounded) OCR text.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	if s := strings.TrimSpace(req.SiteHint); s != "" {
		b.WriteString("Site: ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("\nOCR text (first ~3k chars):\n")
	b.WriteString(TruncateOCR(req.OCRText))
	return b.String()
}
