package messaging

import (
	"regexp"
	"strings"
)

// StripMention removes every <@botUserID> tag from text and reports whether
// one was present. With no bot id nothing is stripped.
func StripMention(text, botUserID string) (string, bool) {
	if botUserID == "" {
		return strings.TrimSpace(text), false
	}
	re := regexp.MustCompile(`<@` + regexp.QuoteMeta(botUserID) + `(\|[^>]*)?>`)
	if !re.MatchString(text) {
		return strings.TrimSpace(text), false
	}
	return strings.TrimSpace(re.ReplaceAllString(text, "")), true
}
