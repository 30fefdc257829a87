package riverbank

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinMessageLength     = 15
	MaxMessageLength     = 300
	MaxNicknameLength    = 30
	MaxEmojiBytes        = 16
	MaxFalsePositiveSize = 2000
)

// linkPatterns match anything that looks like a URL or a bare domain.
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://`),
	regexp.MustCompile(`(?i)www\.`),
	regexp.MustCompile(`(?i)\.(com|org|net|edu|gov|io|co|app|dev|xyz|info|biz|me|ai|tech|online|site|store|shop|blog|tv|cc|link|click|ly|gl|bit|tinyurl)\b`),
}

// Validate checks a bottle submission. Checks run in a fixed order and the
// first failure wins: empty, too short, too long, link, nickname too long.
// Both inputs are trimmed before measuring; lengths are counted in runes.
func Validate(message, nickname string) error {
	message = strings.TrimSpace(message)
	nickname = strings.TrimSpace(nickname)

	n := utf8.RuneCountInString(message)
	switch {
	case n == 0:
		return invalid(ReasonEmptyMessage, "Message is required")
	case n < MinMessageLength:
		return invalid(ReasonTooShort, "Message must be at least 15 characters")
	case n > MaxMessageLength:
		return invalid(ReasonTooLong, "Message must be 300 characters or less")
	}

	if ContainsLink(message) {
		return invalid(ReasonContainsLink, "Messages with links are not allowed")
	}

	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return invalid(ReasonNicknameTooLong, "Nickname must be 30 characters or less")
	}

	return nil
}

// ContainsLink reports whether text contains a URL scheme, a www. prefix, or
// a known top-level domain suffix.
func ContainsLink(text string) bool {
	for _, re := range linkPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// BottlesToReceive returns how many bottles a sender gets back for a message
// of the given trimmed length. Longer messages earn more bottles.
func BottlesToReceive(length int) int {
	switch {
	case length <= 60:
		return 1
	case length <= 150:
		return 2
	default:
		return 3
	}
}

func validateEmoji(emoji string) error {
	if emoji == "" || len(emoji) > MaxEmojiBytes {
		return invalid(ReasonInvalidEmoji, "Invalid emoji")
	}
	return nil
}

func validateBottleID(id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid(ReasonInvalidBottleID, "Invalid bottle ID")
	}
	return nil
}
