package knowledge

import (
	"strings"
	"unicode"
)

// Chunker splits page text into overlapping rune windows.
type Chunker struct {
	Size    int
	Overlap int
}

// Split cuts text into chunks of at most Size runes. Consecutive chunks share
// Overlap runes. Cuts prefer the last whitespace in the window.
func (c Chunker) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	size := c.Size
	if size <= 0 {
		size = len(runes)
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}
		// Back off to a word boundary, but never below half a window.
		for cut := end; cut > start+size/2; cut-- {
			if unicode.IsSpace(runes[cut]) {
				end = cut
				break
			}
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[start:end])))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}
