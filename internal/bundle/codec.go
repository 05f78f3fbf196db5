package bundle

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Bundles travel as passively-loaded script resources: the JSON document is
// base64-encoded (standard alphabet over the UTF-8 bytes, so full Unicode
// survives) and wrapped as an assignment to a well-known global constant.
// One constant exists per bundle.
const (
	ConstSystem       = "AZUMINT_SYSTEM"
	ConstInteractions = "AZUMINT_INTERACTIONS"
	ConstUsers        = "AZUMINT_USERS"
)

// EncodeScript serializes v to JSON, base64-encodes it and wraps it as a
// script assignment to the named global constant.
func EncodeScript(constName string, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling bundle: %w", err)
	}
	b64 := base64.StdEncoding.EncodeToString(raw)
	return fmt.Sprintf("window.%s = %q;", constName, b64), nil
}

// DecodeScript reverses EncodeScript: it accepts either the full script
// wrapper or a bare base64 payload and returns the decoded JSON bytes.
func DecodeScript(constName, script string) ([]byte, error) {
	b64 := strings.TrimSpace(script)
	if strings.HasPrefix(b64, "window.") {
		prefix := fmt.Sprintf("window.%s = \"", constName)
		if !strings.HasPrefix(b64, prefix) {
			return nil, fmt.Errorf("script does not assign %s", constName)
		}
		b64 = strings.TrimPrefix(b64, prefix)
		end := strings.LastIndex(b64, `"`)
		if end < 0 {
			return nil, fmt.Errorf("unterminated assignment for %s", constName)
		}
		b64 = b64[:end]
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", constName, err)
	}
	return raw, nil
}

// The legacy interactions document is a flat object: numeric-string post ids
// map to their stats, and a single reserved "messages" key holds the
// guestbook. The custom codec keeps that shape on the wire while the Go side
// works with a typed map.

func (b InteractionsBundle) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(b.PerPost)+1)
	for id, stats := range b.PerPost {
		flat[strconv.FormatInt(id, 10)] = stats
	}
	msgs := b.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	flat["messages"] = msgs
	return json.Marshal(flat)
}

func (b *InteractionsBundle) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("interactions document is not an object: %w", err)
	}
	b.PerPost = make(map[int64]*PostStats)
	b.Messages = nil
	for key, raw := range flat {
		if key == "messages" {
			if err := json.Unmarshal(raw, &b.Messages); err != nil {
				return fmt.Errorf("decoding messages: %w", err)
			}
			continue
		}
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			// Unknown non-numeric keys are tolerated, matching the
			// permissive legacy loader.
			continue
		}
		var stats PostStats
		if err := json.Unmarshal(raw, &stats); err != nil {
			return fmt.Errorf("decoding stats for post %d: %w", id, err)
		}
		// Legacy writers always emit a comments array and the legacy
		// reader chokes on null; keep the shape on round trips.
		if stats.Comments == nil {
			stats.Comments = []Comment{}
		}
		b.PerPost[id] = &stats
	}
	if b.Messages == nil {
		b.Messages = []Message{}
	}
	return nil
}
