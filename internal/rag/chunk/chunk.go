// Package chunk implements the RAG ingestion pipeline's chunk step
// (spec §4.5 step 6): splitting a document's content by paragraphs,
// sentences, or characters, honouring chunk_size and chunk_overlap.
package chunk

import (
	"regexp"
	"strings"
)

// Strategy names one of the three splitting strategies a parser config
// may choose (spec §4.5/§4.7).
type Strategy string

const (
	Paragraphs Strategy = "paragraphs"
	Sentences  Strategy = "sentences"
	Characters Strategy = "characters"
)

var sentenceBoundary = regexp.MustCompile(`(?s)([.!?])\s+`)

// Split breaks content into overlapping chunks no longer than size
// (measured in runes), according to strategy. overlap is the number of
// trailing runes of one chunk repeated at the start of the next.
func Split(content string, strategy Strategy, size, overlap int) []string {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var units []string
	switch strategy {
	case Sentences:
		units = splitSentences(content)
	case Characters:
		return splitByRunes(content, size, overlap)
	default: // Paragraphs
		units = splitParagraphs(content)
	}
	return packUnits(units, size, overlap)
}

func splitParagraphs(content string) []string {
	parts := strings.Split(content, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 && strings.TrimSpace(content) != "" {
		out = append(out, content)
	}
	return out
}

func splitSentences(content string) []string {
	marked := sentenceBoundary.ReplaceAllString(content, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 && strings.TrimSpace(content) != "" {
		out = append(out, content)
	}
	return out
}

// packUnits greedily fills chunks up to size runes from consecutive
// units, repeating the trailing overlap runes of one chunk as the
// start of the next.
func packUnits(units []string, size, overlap int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		text := current.String()
		chunks = append(chunks, text)
		current.Reset()
		if overlap > 0 {
			current.WriteString(lastRunes(text, overlap))
		}
	}

	for _, u := range units {
		if current.Len() > 0 && runeLen(current.String())+runeLen(u) > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(u)
		for runeLen(current.String()) > size {
			// A single unit longer than size on its own: hard-split it.
			text := current.String()
			runes := []rune(text)
			chunks = append(chunks, string(runes[:size]))
			rest := runes[size:]
			if overlap > 0 && len(runes) >= overlap {
				rest = append([]rune(lastRunes(string(runes[:size]), overlap)), rest...)
			}
			current.Reset()
			current.WriteString(string(rest))
		}
	}
	flush()
	return chunks
}

func splitByRunes(content string, size, overlap int) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func runeLen(s string) int { return len([]rune(s)) }

func lastRunes(s string, n int) string {
	runes := []rune(s)
	if n >= len(runes) {
		return s
	}
	return string(runes[len(runes)-n:])
}
