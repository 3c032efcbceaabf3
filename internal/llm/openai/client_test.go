package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sgaravatti/cantieri-docs/internal/common"
	"github.com/sgaravatti/cantieri-docs/internal/llm"
)

func fakeCompletions(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(baseURL string) *Client {
	return NewClient(Config{APIKey: "test", BaseURL: baseURL, Model: "gpt-4o-mini"}, nil)
}

func TestExtractFieldsParsesSchemaConformantOutput(t *testing.T) {
	srv := fakeCompletions(t, `{"doc_type":"visita_medica","holder_name":"Mario Rossi","issue_date":"2025-01-10","confidence":0.9}`, http.StatusOK)
	defer srv.Close()

	out, _, err := newTestClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "Visita medica"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.DocType != "visita_medica" || out.HolderName != "Mario Rossi" || out.IssueDate != "2025-01-10" {
		t.Fatalf("unexpected fields: %+v", out)
	}
	if out.ModelConfidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", out.ModelConfidence)
	}
}

func TestExtractFieldsDefaultsConfidenceWhenUnscored(t *testing.T) {
	srv := fakeCompletions(t, `{"doc_type":"antincendio"}`, http.StatusOK)
	defer srv.Close()

	out, _, err := newTestClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.ModelConfidence != llm.DefaultConfidence {
		t.Fatalf("confidence = %v, want default %v", out.ModelConfidence, llm.DefaultConfidence)
	}
}

func TestExtractFieldsKeepsReportedZeroConfidence(t *testing.T) {
	srv := fakeCompletions(t, `{"doc_type":"dpi","confidence":0.0}`, http.StatusOK)
	defer srv.Close()

	out, _, err := newTestClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	// 0.0 is a reported score, not a missing one; it must not become the default.
	if out.ModelConfidence != 0 {
		t.Fatalf("confidence = %v, want 0", out.ModelConfidence)
	}
}

func TestExtractFieldsLenientSanitizeRescuesSynonyms(t *testing.T) {
	srv := fakeCompletions(t, `{"document_type":"visita medica","issue_date":"10/01/2025","extra":"noise"}`, http.StatusOK)
	defer srv.Close()

	out, _, err := newTestClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out.DocType != "visita_medica" {
		t.Fatalf("doc_type = %q", out.DocType)
	}
	if out.IssueDate != "2025-01-10" {
		t.Fatalf("issue_date = %q", out.IssueDate)
	}
}

func TestExtractFieldsFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		status  int
		wantErr error
	}{
		{name: "provider error", content: "", status: http.StatusInternalServerError, wantErr: common.ErrProviderCallFailed},
		{name: "not json", content: "sorry, I cannot help", status: http.StatusOK, wantErr: common.ErrMalformedResponse},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeCompletions(t, tt.content, tt.status)
			defer srv.Close()

			_, _, err := newTestClient(srv.URL).ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractFieldsWithoutAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	c := NewClient(Config{Model: "gpt-4o-mini"}, nil)
	_, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
	if !errors.Is(err, common.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want %v", err, common.ErrProviderUnavailable)
	}
}

func TestExtractFieldsStrictOnlyRejectsNearMiss(t *testing.T) {
	// The same synonym output the lenient default rescues must fail hard when
	// the sanitize pass is disabled.
	srv := fakeCompletions(t, `{"document_type":"visita medica","issue_date":"10/01/2025"}`, http.StatusOK)
	defer srv.Close()

	c := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Model: "gpt-4o-mini", StrictOnly: true}, nil)
	_, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{OCRText: "x"})
	if !errors.Is(err, common.ErrMalformedResponse) {
		t.Fatalf("err = %v, want %v", err, common.ErrMalformedResponse)
	}
}
