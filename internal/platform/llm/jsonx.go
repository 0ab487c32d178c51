package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeObject unmarshals a model response into out. Models routinely wrap
// JSON in markdown fences or prose, so on a direct parse failure the text is
// narrowed to the first '{' through the last '}' and reparsed once.
func DecodeObject(s string, out any) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("empty response")
	}

	if err := json.Unmarshal([]byte(s), out); err == nil {
		return nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(s[start:end+1]), out); err != nil {
		return fmt.Errorf("parse recovered JSON: %w", err)
	}
	return nil
}
