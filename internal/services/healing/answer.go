package healing

import "strings"

const (
	notFoundMarker = "NOT_FOUND"
	quoteChars     = "\"'`“”‘’"
	trailingPunct  = ".,;:!?"
)

// NormalizeAnswer cleans an oracle reply into search text.
// Replies containing NOT_FOUND, or nothing after cleaning, are not usable.
func NormalizeAnswer(answer string) (string, bool) {
	text := strings.TrimSpace(answer)
	if text == "" || strings.Contains(text, notFoundMarker) {
		return "", false
	}

	for {
		cleaned := strings.Trim(text, quoteChars+" \t\r\n")
		cleaned = strings.TrimRight(cleaned, trailingPunct+" \t\r\n")
		if cleaned == text {
			break
		}
		text = cleaned
	}

	return text, text != ""
}
