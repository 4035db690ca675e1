package openaichat

import (
	"strings"
)

// passthroughPrefixes identify names that already belong to a backend model family.
var passthroughPrefixes = []string{
	"gpt-",
	"o1-",
	"o3-",
	"o4-",
	"ep-",
	"doubao-",
	"deepseek-",
}

// ModelMapper routes Claude model names to configured backend models by tier.
// The zero value maps every Claude name to the empty string; callers configure all tiers.
type ModelMapper struct {
	Big    string
	Middle string
	Small  string
}

// Map returns the backend model for a requested model name. It never fails: names without a
// recognized tier marker go to the big model.
func (m ModelMapper) Map(model string) string {
	for _, prefix := range passthroughPrefixes {
		if strings.HasPrefix(model, prefix) {
			return model
		}
	}

	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "haiku"):
		return m.Small
	case strings.Contains(lower, "sonnet"):
		return m.middle()
	case strings.Contains(lower, "opus"):
		return m.Big
	default:
		return m.Big
	}
}

func (m ModelMapper) middle() string {
	if m.Middle == "" {
		return m.Big
	}
	return m.Middle
}
