// Package summarize implements context compaction for an over-budget
// conversation history (spec §4.10): older turns are replaced by one
// summary message produced by a caller-supplied Summarizer.
package summarize

import (
	"context"
	"strings"

	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// Summarizer produces a natural-language summary of transcript. This
// module ships no implementation: Compact calls whichever Summarizer its
// caller passes, and no code in the module constructs one or obtains a
// summarization model from the model cache.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

const summaryPrefix = "[Conversation Summary]\n"

// Compact splits history into system messages, messages to summarize,
// and recent messages to keep verbatim, then replaces the
// to-summarize portion with one system message carrying the summary.
// keepRecent counts *pairs* of recent messages (e.g. keepRecent=2 keeps
// the last 4 non-system messages). If compaction is unnecessary
// (nothing to summarize), history is returned unchanged.
func Compact(ctx context.Context, history []types.ChatMessage, keepRecent int, summarizer Summarizer) ([]types.ChatMessage, error) {
	systemMessages, rest := splitSystem(history)
	toSummarize, toKeep := splitRecent(rest, keepRecent)

	if len(toSummarize) < 1 {
		return history, nil
	}

	summary, err := summarizer.Summarize(ctx, formatTranscript(toSummarize))
	if err != nil {
		return nil, err
	}

	out := make([]types.ChatMessage, 0, len(systemMessages)+1+len(toKeep))
	out = append(out, systemMessages...)
	out = append(out, types.ChatMessage{Role: "system", Content: summaryPrefix + summary})
	out = append(out, toKeep...)
	return out, nil
}

func splitSystem(history []types.ChatMessage) (systemMessages, rest []types.ChatMessage) {
	for _, m := range history {
		if m.Role == "system" {
			systemMessages = append(systemMessages, m)
		} else {
			rest = append(rest, m)
		}
	}
	return systemMessages, rest
}

// splitRecent divides non-system messages into the older portion to
// summarize and the most recent 2*keepRecent to keep, computing the
// split index explicitly rather than via negative-slice idioms: Go's
// slicing has no "[:-n]" form, but the boundary math itself has the
// same off-by-one trap when keepRecent is 0 (a naive
// "len(rest)-keepRecent*2" without clamping would be correct here only
// by accident; this makes the zero case an explicit branch instead).
func splitRecent(rest []types.ChatMessage, keepRecent int) (toSummarize, toKeep []types.ChatMessage) {
	if keepRecent <= 0 {
		return rest, nil
	}
	keepCount := keepRecent * 2
	if keepCount >= len(rest) {
		return nil, rest
	}
	splitAt := len(rest) - keepCount
	return rest[:splitAt], rest[splitAt:]
}

func formatTranscript(messages []types.ChatMessage) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
