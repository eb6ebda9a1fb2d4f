package modeladapter

import "testing"

func TestThinkingBudgetProcessor_NoThinkTag(t *testing.T) {
	p := newThinkingBudgetProcessor(5)
	out := p.process("just a plain answer, no thinking at all")
	if out != "just a plain answer, no thinking at all" {
		t.Fatalf("expected passthrough, got %q", out)
	}
}

func TestThinkingBudgetProcessor_WithinBudget(t *testing.T) {
	p := newThinkingBudgetProcessor(10)
	out := p.process("<think>one two three</think>answer")
	if out != "<think>one two three</think>answer" {
		t.Fatalf("expected passthrough within budget, got %q", out)
	}
}

func TestThinkingBudgetProcessor_ExceedsBudgetMidBlock(t *testing.T) {
	p := newThinkingBudgetProcessor(3)
	out := p.process("<think>one two three four five</think>answer")

	if got := out[:len("<think>")]; got != "<think>" {
		t.Fatalf("expected opening tag preserved, got %q", out)
	}
	if !containsOnce(out, thinkClose) {
		t.Fatalf("expected exactly one forced close, got %q", out)
	}
	if containsOnce(out, "four") || containsOnce(out, "five") {
		t.Fatalf("expected content past the budget to be dropped, got %q", out)
	}
	if !containsOnce(out, "answer") {
		t.Fatalf("expected content after the forced close to still flow through, got %q", out)
	}
}

func TestThinkingBudgetProcessor_SpansMultipleChunks(t *testing.T) {
	p := newThinkingBudgetProcessor(2)
	first := p.process("<think>one two")
	second := p.process(" three four</think>answer")

	if containsOnce(first, thinkClose) {
		t.Fatalf("budget not yet exhausted in first chunk, should not close early: %q", first)
	}
	if !containsOnce(second, thinkClose) {
		t.Fatalf("expected forced close once budget is exhausted in second chunk: %q", second)
	}
	if containsOnce(second, "four") {
		t.Fatalf("expected tokens past budget dropped: %q", second)
	}
}

func TestThinkingBudgetProcessor_BudgetNeverReached(t *testing.T) {
	p := newThinkingBudgetProcessor(100)
	out := p.process("<think>small thought</think>answer")
	if out != "<think>small thought</think>answer" {
		t.Fatalf("expected passthrough when budget never exhausted, got %q", out)
	}
}

func TestThinkingBudgetProcessor_MultipleThinkBlocks(t *testing.T) {
	p := newThinkingBudgetProcessor(100)
	out := p.process("<think>a</think>mid<think>b</think>end")
	if out != "<think>a</think>mid<think>b</think>end" {
		t.Fatalf("expected both blocks passed through under budget, got %q", out)
	}
}

func TestThinkingBudgetProcessor_ClosedStaysClosed(t *testing.T) {
	p := newThinkingBudgetProcessor(1)
	_ = p.process("<think>one two three</think>")
	out := p.process("<think>more thinking here</think>tail")
	if out != "<think>more thinking here</think>tail" {
		t.Fatalf("once closed, subsequent chunks should pass through unmodified, got %q", out)
	}
}

func TestKeepTokens(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"one two three", 0, ""},
		{"one two three", 2, "one two "},
		{"one two three", 10, "one two three"},
	}
	for _, c := range cases {
		if got := keepTokens(c.in, c.n); got != c.want {
			t.Fatalf("keepTokens(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}

func containsOnce(s, substr string) bool {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
		}
	}
	return count == 1
}
