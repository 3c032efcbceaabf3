package constants

import (
	"strings"
)

// DocType is the canonical classification for a safety document.
type DocType string

const (
	VisitaMedica        DocType = "visita_medica"
	FormazioneGenerale  DocType = "formazione_generale"
	FormazioneSpecifica DocType = "formazione_specifica"
	AltoRischio         DocType = "alto_rischio"
	Antincendio         DocType = "antincendio"
	PrimoSoccorso       DocType = "primo_soccorso"
	DPI                 DocType = "dpi"
	Tesserino           DocType = "tesserino"
	Preposto            DocType = "preposto"
	RLS                 DocType = "rls"
	Altro               DocType = "altro"
)

var allDocTypes = []DocType{
	VisitaMedica,
	FormazioneGenerale,
	FormazioneSpecifica,
	AltoRischio,
	Antincendio,
	PrimoSoccorso,
	DPI,
	Tesserino,
	Preposto,
	RLS,
	Altro,
}

func DocTypesAsStringSlice() []string {
	result := make([]string, len(allDocTypes))
	for i, dt := range allDocTypes {
		result[i] = string(dt)
	}
	return result
}

// Canonicalize maps a free-form label to a canonical DocType.
// Anything unrecognized resolves to Altro with ok=false.
func Canonicalize(input string) (DocType, bool) {
	if input == "" {
		return Altro, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, " ", "_")

	// synonyms map
	synonyms := map[string]DocType{
		"visita":               VisitaMedica,
		"idoneita":             VisitaMedica,
		"idoneità":             VisitaMedica,
		"idoneita_sanitaria":   VisitaMedica,
		"medical":              VisitaMedica,
		"formazione":           FormazioneGenerale,
		"formazione_base":      FormazioneGenerale,
		"sicurezza_generale":   FormazioneGenerale,
		"sicurezza_specifica":  FormazioneSpecifica,
		"rischio_alto":         AltoRischio,
		"fire":                 Antincendio,
		"first_aid":            PrimoSoccorso,
		"pronto_soccorso":      PrimoSoccorso,
		"dispositivi":          DPI,
		"consegna_dpi":         DPI,
		"badge":                Tesserino,
		"tesserino_cantiere":   Tesserino,
		"rappresentante":       RLS,
		"other":                Altro,
		"sconosciuto":          Altro,
	}

	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	// check if it matches any doc type string
	for _, dt := range allDocTypes {
		if normalized == string(dt) {
			return dt, true
		}
	}

	return Altro, false
}
