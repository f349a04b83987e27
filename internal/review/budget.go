package review

import "strings"

// Tokenizer counts model tokens in text.
type Tokenizer interface {
	Count(text string) int
}

// EstimateTokenizer approximates tokens as one per four bytes, rounded up
// per line (terminator included). The count of a text is the sum of its
// lines, so splitting text at line boundaries never changes the total.
type EstimateTokenizer struct{}

func (EstimateTokenizer) Count(text string) int {
	n := 0
	for _, line := range splitLines(text) {
		n += lineTokens(line)
	}
	return n
}

func lineTokens(line string) int {
	return (len(line) + 3) / 4
}

// TokenBudget bounds the size of one review unit: context fragments plus the
// target slice. Prompt scaffolding is not counted.
type TokenBudget struct {
	PerUnit int
	// ContextShare is the fraction of PerUnit available to context fragments.
	ContextShare float64
	// Depth is how many dependency hops to gather context from.
	Depth     int
	Tokenizer Tokenizer
}

// DefaultBudget returns a budget with typical settings for perUnit tokens.
func DefaultBudget(perUnit int) TokenBudget {
	return TokenBudget{PerUnit: perUnit, ContextShare: 0.4, Depth: 1, Tokenizer: EstimateTokenizer{}}
}

// ContextAllotment is the number of tokens available to context fragments.
func (b TokenBudget) ContextAllotment() int {
	if b.ContextShare <= 0 || b.PerUnit <= 0 {
		return 0
	}
	share := b.ContextShare
	if share > 1 {
		share = 1
	}
	return int(float64(b.PerUnit) * share)
}

func (b TokenBudget) tokenizer() Tokenizer {
	if b.Tokenizer == nil {
		return EstimateTokenizer{}
	}
	return b.Tokenizer
}

// splitLines splits text after each newline; the final line may lack one.
// Joining the result reproduces text exactly.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
