// internal/vision/parser.go
package vision

import (
	"encoding/json"
	"strings"
)

// FallbackDescription is used whenever the model response cannot be parsed.
// Callers must treat it as "no description available", not as a success.
const FallbackDescription = "Optimized image"

// SingleResult is the parsed single-image response.
type SingleResult struct {
	Description string
	Filename    string
}

// ParseSingle extracts {"alt": ..., "name": ...} from raw model text. Models
// sometimes wrap the JSON in prose or code fences, so the outermost object is
// located first. On any failure it returns the fallback result and false;
// parse failures never abort the enclosing task.
func ParseSingle(raw string) (SingleResult, bool) {
	fallback := SingleResult{Description: FallbackDescription}

	var parsed struct {
		Alt  string `json:"alt"`
		Name string `json:"name"`
	}
	s, ok := extractObject(raw)
	if !ok {
		return fallback, false
	}
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return fallback, false
	}
	if strings.TrimSpace(parsed.Alt) == "" {
		return fallback, false
	}
	return SingleResult{Description: parsed.Alt, Filename: parsed.Name}, true
}

// ParseBulk extracts a {"<imageID>": "<description>", ...} object from raw
// model text. On failure it returns an empty mapping and false; images without
// an entry keep a default description.
func ParseBulk(raw string) (map[string]string, bool) {
	s, ok := extractObject(raw)
	if !ok {
		return map[string]string{}, false
	}
	var mapping map[string]string
	if err := json.Unmarshal([]byte(s), &mapping); err != nil {
		return map[string]string{}, false
	}
	return mapping, true
}

func extractObject(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
