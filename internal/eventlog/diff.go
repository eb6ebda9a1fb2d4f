package eventlog

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ConfigDiff is a line-level added/removed summary between two project
// config snapshots.
type ConfigDiff struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// DiffConfigs computes a line-based diff between a project config's YAML
// before and after a PUT, grounded on the teacher's session tools.go
// computeDiff (diffmatchpatch's line-mode diff, counted per line rather
// than per character so the summary reads like a code review diffstat).
func DiffConfigs(before, after string) ConfigDiff {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var d ConfigDiff
	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			d.Additions += countLines(diff.Text)
		case diffmatchpatch.DiffDelete:
			d.Deletions += countLines(diff.Text)
		}
	}
	return d
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	lines := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		lines++
	}
	return lines
}
