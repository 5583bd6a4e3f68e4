package service

import (
	"regexp"
	"strings"
)

// ComposeCaption appends hashtags derived from the post topics, skipping any
// topic the author already wrote inline as a hashtag ("#NewYork"), as the
// space-stripped word ("newyork"), or as the literal words ("new york").
// Matching is case-insensitive and bounded on word edges, so "art" inside
// "party" does not count as a mention.
func ComposeCaption(content string, topics []string) string {
	lowerContent := strings.ToLower(content)

	var tags []string
	seen := make(map[string]struct{}, len(topics))

	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}

		compact := strings.ToLower(strings.ReplaceAll(topic, " ", ""))
		if _, dup := seen[compact]; dup {
			continue
		}
		seen[compact] = struct{}{}

		if topicMentioned(lowerContent, strings.ToLower(topic), compact) {
			continue
		}

		tags = append(tags, "#"+strings.ReplaceAll(topic, " ", ""))
	}

	if len(tags) == 0 {
		return content
	}
	if content == "" {
		return strings.Join(tags, " ")
	}
	return content + "\n\n" + strings.Join(tags, " ")
}

func topicMentioned(lowerContent, topic, compact string) bool {
	return containsTerm(lowerContent, "#"+compact) ||
		containsTerm(lowerContent, compact) ||
		containsTerm(lowerContent, topic)
}

func containsTerm(content, term string) bool {
	pattern := `(^|[^\pL\pN_])` + regexp.QuoteMeta(term) + `($|[^\pL\pN_])`
	matched, err := regexp.MatchString(pattern, content)
	if err != nil {
		return false
	}
	return matched
}
