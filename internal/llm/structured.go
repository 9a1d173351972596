package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ParseStructured decodes a model response into target. Responses
// frequently arrive wrapped in markdown code fences or with minor
// syntax damage (trailing commas, truncated arrays); those are
// stripped and repaired before decoding.
func ParseStructured(raw string, target any) error {
	cleaned := stripCodeFences(raw)

	if err := json.Unmarshal([]byte(cleaned), target); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return fmt.Errorf("response is not repairable JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("repaired response still failed to decode: %w", err)
	}
	log.Debug().Int("original_bytes", len(cleaned)).Int("repaired_bytes", len(repaired)).Msg("repaired model JSON output")
	return nil
}

func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
