package redact

import (
	"regexp"
	"strings"

	"github.com/dshills/lens/internal/corpus"
)

const placeholder = "[REDACTED]"

// secretPatterns are regex heuristics for common secret types. None of them
// match across a newline.
var secretPatterns = []*regexp.Regexp{
	// API keys in assignments
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)[ \t]*[:=][ \t]*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// AWS secret access keys
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)[ \t]*[:=][ \t]*["']?([A-Za-z0-9/+=]{40})["']?`),
	// secrets, tokens and passwords in quoted assignments
	regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)[ \t]*[:=][ \t]*["']([^"'\n]{8,})["']`),
	regexp.MustCompile(`(?i)Bearer[ \t]+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN[ \t]+(RSA[ \t]+|EC[ \t]+|OPENSSH[ \t]+)?PRIVATE KEY-----`),
	// connection strings with inline credentials
	regexp.MustCompile(`(?i)\b(postgres(ql)?|mysql|mongodb(\+srv)?|redis|amqp)://[^\s:/@]+:[^\s@]+@`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	// Slack tokens
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	// Anthropic API keys
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	// OpenAI API keys
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	// long hex strings assigned to key-like names
	regexp.MustCompile(`(?i)(key|secret|token)[ \t]*[:=][ \t]*["']?[0-9a-f]{32,}["']?`),
}

// Secrets replaces detected secrets in text with [REDACTED]. Replacement
// happens within lines, so the line count and line numbering of text are
// unchanged.
func Secrets(text string) string {
	lines := strings.SplitAfter(text, "\n")
	for i, line := range lines {
		lines[i] = secretsInLine(line)
	}
	return strings.Join(lines, "")
}

func secretsInLine(line string) string {
	for _, pat := range secretPatterns {
		line = pat.ReplaceAllLiteralString(line, placeholder)
	}
	return line
}

// Count returns how many lines of text contain a detected secret.
func Count(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if secretsInLine(line) != line {
			n++
		}
	}
	return n
}

// ShouldRedactPath reports whether path matches any of the glob patterns.
// Patterns support "**" segments; a pattern without a slash matches the base
// name.
func ShouldRedactPath(path string, patterns []string) bool {
	return corpus.MatchesAny(path, patterns)
}

// Policy decides what file text may leave the machine.
type Policy struct {
	RedactSecrets bool
	Paths         []string
}

// Content returns text as it may be sent for path. ok is false when the path
// is withheld entirely.
func (p Policy) Content(path, text string) (string, bool) {
	if ShouldRedactPath(path, p.Paths) {
		return "", false
	}
	if p.RedactSecrets {
		return Secrets(text), true
	}
	return text, true
}
