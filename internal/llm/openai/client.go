package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sgaravatti/cantieri-docs/constants"
	"github.com/sgaravatti/cantieri-docs/internal/common"
	"github.com/sgaravatti/cantieri-docs/internal/llm"
)

// ExtractFields implements llm.FieldExtractor using text-only chat/completions.
// Output is validated strictly against the document schema; unless StrictOnly
// is set, a sanitize pass may rescue near-misses before giving up.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.DocumentFields, []byte, error) {
	if c.cfg.APIKey == "" {
		return llm.DocumentFields{}, nil, fmt.Errorf("%w: missing API key", common.ErrProviderUnavailable)
	}

	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.OCRText),
		"filename_hint", req.FilenameHint,
	)

	schema := llm.BuildDocumentJSONSchema()
	sys := llm.BuildSystemPrompt(constants.DocTypesAsStringSlice())
	user := llm.BuildUserPrompt(req)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": sys},
			{"role": "user", "content": user + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.DocumentFields{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.DocumentFields{}, raw, fmt.Errorf("%w: decode openai response: %v", common.ErrMalformedResponse, err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.DocumentFields{}, raw, fmt.Errorf("%w: no choices in openai response", common.ErrMalformedResponse)
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	rawContent := []byte(content)

	// Validate strictly first.
	if err := llm.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		if c.cfg.StrictOnly {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", err, "content", content,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.DocumentFields{}, rawContent, fmt.Errorf("%w: schema validation failed: %v", common.ErrMalformedResponse, err)
		}
		// Lenient path: normalize synonyms/dates and re-validate.
		cleaned, droppedKeys, sErr := llm.NormalizeAndSanitizeJSON(rawContent, c.log)
		if sErr != nil {
			c.log.Error("llm.extract.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.DocumentFields{}, rawContent, fmt.Errorf("%w: sanitize failed: %v", common.ErrMalformedResponse, sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", string(cleaned),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.DocumentFields{}, rawContent, fmt.Errorf("%w: schema validation failed: %v", common.ErrMalformedResponse, vErr)
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", droppedKeys,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	var out llm.DocumentFields
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.log.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.DocumentFields{}, rawContent, fmt.Errorf("%w: unmarshal fields: %v", common.ErrMalformedResponse, err)
	}

	// The schema already constrains doc_type; coerce anyway so a lenient pass
	// can never leak a non-enum value downstream.
	canon, _ := constants.Canonicalize(out.DocType)
	out.DocType = string(canon)

	// The model's self-score drives confidence. Only a genuinely absent score
	// gets the fixed "extraction worked, unscored" default: a reported 0.0 is
	// a score, not an omission, and must survive as 0.0.
	var scored struct {
		Confidence *float64 `json:"confidence"`
	}
	_ = json.Unmarshal(rawContent, &scored)
	if scored.Confidence == nil {
		out.ModelConfidence = llm.DefaultConfidence
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"doc_type", out.DocType,
		"holder", out.HolderName,
		"issue_date", out.IssueDate,
		"expiry_date", out.ExpiryDate,
		"confidence", out.ModelConfidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrProviderCallFailed, err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", common.ErrProviderCallFailed, resp.StatusCode, string(raw))
	}
	return raw, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
