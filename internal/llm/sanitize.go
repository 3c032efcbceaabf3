package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"github.com/sgaravatti/cantieri-docs/constants"
)

var (
	reTaxCode = regexp.MustCompile(`^[A-Z0-9]{16}$`)
	reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	reDMYDate = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (document_type -> doc_type, confidence_overall -> confidence, ...)
// - Drops null/empty optionals; never fabricates a value
// - Rewrites DD/MM/YYYY dates to ISO, drops anything else non-ISO
// - Coerces doc_type onto the closed enum (unknown -> altro)
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to the schema
	renamed("type", "doc_type")
	renamed("document_type", "doc_type")
	renamed("holder", "holder_name")
	renamed("name", "holder_name")
	renamed("worker_name", "holder_name")
	renamed("codice_fiscale", "tax_code")
	renamed("fiscal_code", "tax_code")
	renamed("release_date", "issue_date")
	renamed("issued_on", "issue_date")
	renamed("data_rilascio", "issue_date")
	renamed("expiration_date", "expiry_date")
	renamed("valid_until", "expiry_date")
	renamed("data_scadenza", "expiry_date")
	renamed("confidence_overall", "confidence")

	// 2) drop null / "" for string optionals
	trimKeys := []string{"doc_type", "holder_name", "tax_code", "issue_date", "expiry_date"}
	for _, k := range trimKeys {
		switch v := m[k].(type) {
		case nil:
			if _, ok := m[k]; ok {
				delete(m, k)
				dropped = append(dropped, k+"(null)")
			}
		case string:
			s := strings.TrimSpace(v)
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	// 3) dates: accept ISO, rewrite DD/MM/YYYY, drop the rest
	for _, k := range []string{"issue_date", "expiry_date"} {
		s, ok := m[k].(string)
		if !ok {
			if _, present := m[k]; present {
				delete(m, k)
				dropped = append(dropped, k+"(type)")
			}
			continue
		}
		switch {
		case reISODate.MatchString(s):
			// keep as-is
		case reDMYDate.MatchString(s):
			g := reDMYDate.FindStringSubmatch(s)
			m[k] = g[3] + "-" + g[2] + "-" + g[1]
		default:
			delete(m, k)
			dropped = append(dropped, k+"(format)")
		}
	}

	// 4) tax code: uppercase, must look like a codice fiscale or go away
	if v, ok := m["tax_code"].(string); ok {
		s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), " ", ""))
		if reTaxCode.MatchString(s) {
			m["tax_code"] = s
		} else {
			delete(m, "tax_code")
			dropped = append(dropped, "tax_code(shape)")
		}
	}

	// 5) doc_type onto the closed enum
	if v, ok := m["doc_type"].(string); ok {
		canon, known := constants.Canonicalize(v)
		if !known {
			dropped = append(dropped, "doc_type("+v+"->altro)")
		}
		m["doc_type"] = string(canon)
	} else {
		m["doc_type"] = string(constants.Altro)
	}

	// 6) confidence must be numeric in [0,1]
	if v, ok := m["confidence"]; ok {
		f, isNum := v.(float64)
		switch {
		case !isNum:
			delete(m, "confidence")
			dropped = append(dropped, "confidence(type)")
		case f < 0:
			m["confidence"] = 0.0
			dropped = append(dropped, "confidence(clamped)")
		case f > 1:
			m["confidence"] = 1.0
			dropped = append(dropped, "confidence(clamped)")
		}
	}

	// 7) remove unknown keys
	allowed := map[string]struct{}{
		"doc_type": {}, "holder_name": {}, "tax_code": {},
		"issue_date": {}, "expiry_date": {}, "confidence": {},
	}
	for k := range maps.Clone(m) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}
