package scoring

import (
	"encoding/json"
	"strings"

	"partimatch/internal/models"
)

// ParseClaims turns raw claim-extractor output into structured claims. The
// extractor sits behind an LLM, so its output is untrusted: malformed or
// empty JSON maps to an empty claim list, never an error. Accepts either a
// bare array or a {"claims": [...]} wrapper, with or without markdown fences.
func ParseClaims(raw string) []models.Claim {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return nil
	}

	var wrapped struct {
		Claims []models.Claim `json:"claims"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Claims != nil {
		return sanitizeClaims(wrapped.Claims)
	}

	var bare []models.Claim
	if err := json.Unmarshal([]byte(raw), &bare); err == nil {
		return sanitizeClaims(bare)
	}

	return nil
}

// sanitizeClaims drops unusable entries and normalizes topic casing so
// claims line up with the closed topic set.
func sanitizeClaims(claims []models.Claim) []models.Claim {
	out := make([]models.Claim, 0, len(claims))
	for _, claim := range claims {
		if claim.Topic == "" || claim.Dimension == "" || claim.Strength <= 0 {
			continue
		}
		claim.Topic = strings.ToLower(strings.TrimSpace(claim.Topic))
		out = append(out, claim)
	}
	return out
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseProfiles decodes externally built party profiles. Same boundary rule
// as ParseClaims: anything unreadable becomes an empty map.
func ParseProfiles(raw string) map[string]map[string]models.TopicProfile {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return map[string]map[string]models.TopicProfile{}
	}

	var wrapped struct {
		Profiles map[string]map[string]models.TopicProfile `json:"profiles"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Profiles != nil {
		return wrapped.Profiles
	}

	var bare map[string]map[string]models.TopicProfile
	if err := json.Unmarshal([]byte(raw), &bare); err == nil && bare != nil {
		return bare
	}

	return map[string]map[string]models.TopicProfile{}
}
