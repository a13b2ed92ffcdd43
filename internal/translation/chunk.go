package translation

import "strings"

// splitChunks breaks long text into chunks of at most maxChunk code points,
// preferring sentence and line boundaries. Text at or under the limit comes
// back as a single chunk.
func splitChunks(text string, maxChunk int) []string {
	if len([]rune(text)) <= maxChunk {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, sentence := range splitSentences(text) {
		sentenceLen := len([]rune(sentence))
		if currentLen+sentenceLen > maxChunk && currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		current.WriteString(sentence)
		currentLen += sentenceLen
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitSentences splits after sentence-ending punctuation followed by space,
// and after newlines. The separators stay attached to the preceding piece so
// rejoining chunks reproduces the original text.
func splitSentences(text string) []string {
	var parts []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '\n':
			parts = append(parts, string(runes[start:i+1]))
			start = i + 1
		case '.', '!', '?':
			if i+1 < len(runes) && runes[i+1] == ' ' {
				parts = append(parts, string(runes[start:i+2]))
				i++
				start = i + 1
			}
		}
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}
