package utils

// Token estimates for prompt-size logging and context-window warnings.
// Providers tokenize differently; these only need to be in the right range.

// CountTokens approximates tokens as one per four runes, with a floor of 1
// for any non-empty text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly limit tokens, appending an
// ellipsis when anything was dropped.
func TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	charLimit := limit * 4
	if charLimit >= len(runes) {
		return text
	}
	if charLimit > 3 {
		return string(runes[:charLimit-3]) + "..."
	}
	return string(runes[:charLimit])
}

// ExceedsContext reports whether text likely overflows a model context of
// contextTokens, reserving reserve tokens for the reply. Unknown windows
// (contextTokens <= 0) never overflow.
func ExceedsContext(text string, contextTokens, reserve int) bool {
	if contextTokens <= 0 {
		return false
	}
	return CountTokens(text)+reserve > contextTokens
}
