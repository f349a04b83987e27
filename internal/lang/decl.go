package lang

import (
	"context"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// declPatterns are used when a language has no grammar or parsing fails.
var declPatterns = map[string]*regexp.Regexp{
	Go:         regexp.MustCompile(`^(func|type|var|const)\b`),
	Python:     regexp.MustCompile(`^[ \t]{0,4}(@|def[ \t]|async[ \t]+def[ \t]|class[ \t])`),
	JavaScript: regexp.MustCompile(`^[ \t]{0,2}(export[ \t]+)?(default[ \t]+)?(async[ \t]+)?(function|class|const|let|var)\b`),
	TypeScript: regexp.MustCompile(`^[ \t]{0,2}(export[ \t]+)?(default[ \t]+)?(declare[ \t]+)?(async[ \t]+)?(function|class|const|let|var|interface|type|enum|namespace)\b`),
	TSX:        regexp.MustCompile(`^[ \t]{0,2}(export[ \t]+)?(default[ \t]+)?(async[ \t]+)?(function|class|const|let|var|interface|type|enum)\b`),
	Java:       regexp.MustCompile(`^[ \t]{0,4}(@\w+|(public|private|protected|static|final|abstract|class|interface|enum|record)\b)`),
	Kotlin:     regexp.MustCompile(`^[ \t]{0,4}(@\w+|(fun|class|object|interface|val|var|override|private|internal|data|sealed)\b)`),
	Ruby:       regexp.MustCompile(`^[ \t]{0,2}(def|class|module)[ \t]`),
	Rust:       regexp.MustCompile(`^[ \t]{0,4}(#\[|(pub(\([^)]*\))?[ \t]+)?(fn|struct|enum|impl|trait|mod|const|static|type|async[ \t]+fn)\b)`),
	C:          regexp.MustCompile(`^(struct|enum|union|typedef|static|extern|#define)\b`),
	CPP:        regexp.MustCompile(`^(struct|enum|union|typedef|static|extern|class|namespace|template|#define)\b`),
	CSharp:     regexp.MustCompile(`^[ \t]{0,8}(\[\w|(public|private|protected|internal|static|sealed|abstract|class|interface|enum|record|namespace)\b)`),
	PHP:        regexp.MustCompile(`^[ \t]{0,4}((public|private|protected|static|abstract|final)[ \t]+)*(function|class|interface|trait|enum)\b`),
	Swift:      regexp.MustCompile(`^[ \t]{0,4}((public|private|internal|open|fileprivate|static|final|override)[ \t]+)*(func|class|struct|enum|protocol|extension|let|var)\b`),
	Shell:      regexp.MustCompile(`^(function[ \t]+\w|\w[\w-]*[ \t]*\(\)[ \t]*\{)`),
}

// containerTypes are top-level nodes whose body members also count as
// declarations.
var containerTypes = map[string]struct{}{
	"class_definition":      {},
	"class_declaration":     {},
	"class":                 {},
	"module":                {},
	"interface_declaration": {},
	"enum_declaration":      {},
	"impl_item":             {},
	"trait_item":            {},
	"mod_item":              {},
	"class_specifier":       {},
	"struct_specifier":      {},
	"namespace_definition":  {},
}

// DeclarationLines returns the sorted, 0-based indexes of lines on which a
// declaration starts. Both top-level declarations and members of a top-level
// body (class methods, impl functions) count. A comment block directly above
// a declaration moves the boundary up to the comment. The result is nil for
// unknown languages.
func DeclarationLines(tag, content string) []int {
	l, ok := registry[tag]
	if !ok || content == "" {
		return nil
	}
	if l.grammar != nil {
		if lines, err := treeSitterDeclarations(l.grammar(), []byte(content)); err == nil && len(lines) > 0 {
			return lines
		}
	}
	return regexDeclarations(declPatterns[tag], content)
}

func treeSitterDeclarations(grammar *sitter.Language, source []byte) ([]int, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	seen := make(map[int]struct{})
	collectDeclarations(tree.RootNode(), seen)
	for i := 0; i < int(tree.RootNode().NamedChildCount()); i++ {
		child := tree.RootNode().NamedChild(i)
		if _, ok := containerTypes[child.Type()]; !ok {
			continue
		}
		if body := child.ChildByFieldName("body"); body != nil {
			collectDeclarations(body, seen)
		}
	}

	lines := make([]int, 0, len(seen))
	for line := range seen {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines, nil
}

// collectDeclarations records the start row of every named child of parent,
// except a child glued to a preceding comment, whose comment row stands in.
func collectDeclarations(parent *sitter.Node, seen map[int]struct{}) {
	var prev *sitter.Node
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		child := parent.NamedChild(i)
		row := int(child.StartPoint().Row)
		glued := prev != nil && isComment(prev) && int(prev.EndPoint().Row)+1 >= row
		if !glued {
			seen[row] = struct{}{}
		}
		prev = child
	}
}

func isComment(n *sitter.Node) bool {
	return strings.Contains(n.Type(), "comment")
}

func regexDeclarations(re *regexp.Regexp, content string) []int {
	if re == nil {
		return nil
	}
	var lines []int
	for i, line := range strings.Split(content, "\n") {
		if re.MatchString(line) {
			lines = append(lines, i)
		}
	}
	return lines
}
