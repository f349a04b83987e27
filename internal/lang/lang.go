// Package lang maps file extensions to language tags and provides the
// per-language lexical rules lens needs: import extraction for the dependency
// graph and declaration boundaries for splitting oversized files.
//
// Import extraction is deliberately a pattern match, not a parse. The result
// is a structural hint; tokens are resolved (or dropped) by the graph
// builder. Declaration boundaries come from tree-sitter grammars where one is
// bundled, falling back to a line regex otherwise.
package lang

import (
	"path"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language tags.
const (
	Go         = "go"
	Python     = "python"
	JavaScript = "javascript"
	TypeScript = "typescript"
	TSX        = "tsx"
	Java       = "java"
	Kotlin     = "kotlin"
	Ruby       = "ruby"
	Rust       = "rust"
	C          = "c"
	CPP        = "cpp"
	CSharp     = "csharp"
	PHP        = "php"
	Swift      = "swift"
	Shell      = "shell"
)

// Language holds the lexical rules for one supported language.
type Language struct {
	Tag        string
	Display    string
	Extensions []string

	// imports returns raw import tokens in declaration order.
	imports func(content string) []string

	// grammar is nil for languages without a bundled tree-sitter grammar.
	grammar func() *sitter.Language
}

var registry = map[string]*Language{
	Go:         {Tag: Go, Display: "Go", Extensions: []string{".go"}, imports: goImports, grammar: golang.GetLanguage},
	Python:     {Tag: Python, Display: "Python", Extensions: []string{".py", ".pyi"}, imports: pythonImports, grammar: python.GetLanguage},
	JavaScript: {Tag: JavaScript, Display: "JavaScript", Extensions: []string{".js", ".jsx", ".mjs", ".cjs"}, imports: jsImports, grammar: javascript.GetLanguage},
	TypeScript: {Tag: TypeScript, Display: "TypeScript", Extensions: []string{".ts", ".mts", ".cts"}, imports: jsImports, grammar: typescript.GetLanguage},
	TSX:        {Tag: TSX, Display: "TypeScript/React", Extensions: []string{".tsx"}, imports: jsImports, grammar: tsx.GetLanguage},
	Java:       {Tag: Java, Display: "Java", Extensions: []string{".java"}, imports: javaImports, grammar: java.GetLanguage},
	Kotlin:     {Tag: Kotlin, Display: "Kotlin", Extensions: []string{".kt", ".kts"}, imports: kotlinImports},
	Ruby:       {Tag: Ruby, Display: "Ruby", Extensions: []string{".rb"}, imports: rubyImports, grammar: ruby.GetLanguage},
	Rust:       {Tag: Rust, Display: "Rust", Extensions: []string{".rs"}, imports: rustImports, grammar: rust.GetLanguage},
	C:          {Tag: C, Display: "C", Extensions: []string{".c", ".h"}, imports: includeImports, grammar: c.GetLanguage},
	CPP:        {Tag: CPP, Display: "C++", Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx"}, imports: includeImports, grammar: cpp.GetLanguage},
	CSharp:     {Tag: CSharp, Display: "C#", Extensions: []string{".cs"}, imports: csharpImports},
	PHP:        {Tag: PHP, Display: "PHP", Extensions: []string{".php"}, imports: phpImports},
	Swift:      {Tag: Swift, Display: "Swift", Extensions: []string{".swift"}, imports: swiftImports},
	Shell:      {Tag: Shell, Display: "Shell", Extensions: []string{".sh", ".bash"}, imports: shellImports},
}

var (
	extOnce sync.Once
	extMap  map[string]string
)

func extensionMap() map[string]string {
	extOnce.Do(func() {
		extMap = make(map[string]string)
		for _, l := range registry {
			for _, ext := range l.Extensions {
				extMap[ext] = l.Tag
			}
		}
	})
	return extMap
}

// ForPath returns the language tag for a file path, or "" if unsupported.
func ForPath(p string) string {
	return extensionMap()[strings.ToLower(path.Ext(p))]
}

// ForExtension returns the language tag for an extension such as ".py".
func ForExtension(ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return extensionMap()[strings.ToLower(ext)]
}

// Lookup returns the language for a tag.
func Lookup(tag string) (*Language, bool) {
	l, ok := registry[tag]
	return l, ok
}

// DisplayName returns a human-readable language name, or the tag itself.
func DisplayName(tag string) string {
	if l, ok := registry[tag]; ok {
		return l.Display
	}
	return tag
}

// Extensions returns every extension lens recognizes, sorted.
func Extensions() []string {
	m := extensionMap()
	exts := make([]string, 0, len(m))
	for ext := range m {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ExtractImports returns the raw import tokens declared in content, in
// declaration order with duplicates removed. Unknown tags yield nil.
func ExtractImports(tag, content string) []string {
	l, ok := registry[tag]
	if !ok || l.imports == nil || content == "" {
		return nil
	}
	return dedupe(l.imports(content))
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
