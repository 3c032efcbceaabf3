package llm

import (
	"encoding/json"
	"testing"
)

func mustSanitize(t *testing.T, in string) map[string]any {
	t.Helper()
	out, _, err := NormalizeAndSanitizeJSON([]byte(in), nil)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("decode sanitized: %v", err)
	}
	return m
}

func TestSanitizeRenamesSynonyms(t *testing.T) {
	m := mustSanitize(t, `{"document_type":"visita medica","worker_name":"Mario Rossi","data_scadenza":"2027-01-10"}`)
	if m["doc_type"] != "visita_medica" {
		t.Fatalf("doc_type = %v", m["doc_type"])
	}
	if m["holder_name"] != "Mario Rossi" {
		t.Fatalf("holder_name = %v", m["holder_name"])
	}
	if m["expiry_date"] != "2027-01-10" {
		t.Fatalf("expiry_date = %v", m["expiry_date"])
	}
}

func TestSanitizeRewritesItalianDates(t *testing.T) {
	m := mustSanitize(t, `{"doc_type":"antincendio","issue_date":"10/01/2025","expiry_date":"not a date"}`)
	if m["issue_date"] != "2025-01-10" {
		t.Fatalf("issue_date = %v", m["issue_date"])
	}
	if _, ok := m["expiry_date"]; ok {
		t.Fatalf("expected malformed expiry_date dropped, got %v", m["expiry_date"])
	}
}

func TestSanitizeTaxCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string // "" means dropped
	}{
		{name: "lowercase with spaces", in: "rss mra 80a01 h501u", want: "RSSMRA80A01H501U"},
		{name: "too short", in: "RSSMRA80", want: ""},
		{name: "valid", in: "RSSMRA80A01H501U", want: "RSSMRA80A01H501U"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := mustSanitize(t, `{"doc_type":"dpi","tax_code":"`+tt.in+`"}`)
			got, ok := m["tax_code"].(string)
			if tt.want == "" {
				if ok {
					t.Fatalf("expected tax_code dropped, got %q", got)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("tax_code = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeCoercesUnknownDocType(t *testing.T) {
	m := mustSanitize(t, `{"doc_type":"patente nautica"}`)
	if m["doc_type"] != "altro" {
		t.Fatalf("doc_type = %v, want altro", m["doc_type"])
	}
}

func TestSanitizeMissingDocTypeDefaultsToAltro(t *testing.T) {
	m := mustSanitize(t, `{"holder_name":"Mario Rossi"}`)
	if m["doc_type"] != "altro" {
		t.Fatalf("doc_type = %v, want altro", m["doc_type"])
	}
}

func TestSanitizeConfidence(t *testing.T) {
	m := mustSanitize(t, `{"doc_type":"rls","confidence":1.7}`)
	if m["confidence"] != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", m["confidence"])
	}
	m = mustSanitize(t, `{"doc_type":"rls","confidence":"high"}`)
	if _, ok := m["confidence"]; ok {
		t.Fatalf("expected non-numeric confidence dropped")
	}
}

func TestSanitizeRemovesUnknownKeys(t *testing.T) {
	m := mustSanitize(t, `{"doc_type":"tesserino","company":"ACME srl","notes":"x"}`)
	if _, ok := m["company"]; ok {
		t.Fatalf("expected unknown key removed")
	}
	if _, ok := m["notes"]; ok {
		t.Fatalf("expected unknown key removed")
	}
}
