package depgraph

import (
	"path"
	"sort"
	"strings"

	"github.com/dshills/lens/internal/corpus"
	"github.com/dshills/lens/internal/lang"
)

var (
	jsExts     = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".mts", ".cts"}
	pythonExts = []string{".py", ".pyi"}
)

// resolver maps raw import tokens to corpus paths.
type resolver struct {
	paths []string // sorted
	set   map[string]struct{}
	byDir map[string][]string
}

func newResolver(files []corpus.SourceFile) *resolver {
	r := &resolver{
		set:   make(map[string]struct{}, len(files)),
		byDir: make(map[string][]string),
	}
	for _, f := range files {
		r.paths = append(r.paths, f.Path)
		r.set[f.Path] = struct{}{}
		dir := path.Dir(f.Path)
		r.byDir[dir] = append(r.byDir[dir], f.Path)
	}
	sort.Strings(r.paths)
	return r
}

// resolve returns the corpus files a token refers to. Most languages yield
// at most one file; a Go import names a package and yields all of its
// non-test files.
func (r *resolver) resolve(f corpus.SourceFile, token string) []string {
	dir := path.Dir(f.Path)
	switch f.Language {
	case lang.Go:
		return r.goPackage(token)
	case lang.Python:
		return r.python(dir, token)
	case lang.JavaScript, lang.TypeScript, lang.TSX:
		if isRelative(token) {
			return r.first(withExts(path.Join(dir, token), jsExts, true), nil)
		}
		if !strings.Contains(token, "/") {
			return nil // bare package specifier
		}
		return r.first(nil, withExts(strings.TrimPrefix(token, "@/"), jsExts, true))
	case lang.Rust:
		return r.rust(dir, token)
	case lang.Java:
		return r.first(nil, []string{dottedPath(token) + ".java", dottedPath(token) + ".kt"})
	case lang.Kotlin:
		return r.first(nil, []string{dottedPath(token) + ".kt", dottedPath(token) + ".java"})
	case lang.CSharp:
		return r.first(nil, []string{dottedPath(token) + ".cs"})
	case lang.Ruby:
		return r.simple(dir, token, ".rb")
	case lang.PHP:
		return r.simple(dir, token, ".php")
	case lang.Swift:
		return r.first(nil, []string{token + ".swift"})
	default:
		return r.simple(dir, token, "")
	}
}

// first returns the first exact candidate present in the corpus, else the
// best suffix match for the suffix candidates.
func (r *resolver) first(exact, suffixes []string) []string {
	for _, c := range exact {
		if _, ok := r.set[path.Clean(c)]; ok {
			return []string{path.Clean(c)}
		}
	}
	for _, s := range suffixes {
		if p := r.suffixMatch(s); p != "" {
			return []string{p}
		}
	}
	return nil
}

// suffixMatch returns the shortest corpus path that equals suffix or ends
// with "/"+suffix. Ties break alphabetically.
func (r *resolver) suffixMatch(suffix string) string {
	suffix = strings.TrimPrefix(path.Clean(suffix), "/")
	if suffix == "." || suffix == "" || strings.HasPrefix(suffix, "../") {
		return ""
	}
	best := ""
	for _, p := range r.paths {
		if p != suffix && !strings.HasSuffix(p, "/"+suffix) {
			continue
		}
		if best == "" || len(p) < len(best) {
			best = p
		}
	}
	return best
}

// simple handles tokens that are file paths with an optional implied
// extension (ruby requires, C includes, shell sources, PHP includes).
func (r *resolver) simple(dir, token, ext string) []string {
	candidates := []string{token}
	if ext != "" && path.Ext(token) != ext {
		candidates = append(candidates, token+ext)
	}
	var exact []string
	for _, c := range candidates {
		exact = append(exact, path.Join(dir, c))
	}
	if isRelative(token) {
		return r.first(exact, nil)
	}
	return r.first(exact, candidates)
}

func (r *resolver) goPackage(importPath string) []string {
	bestDir := ""
	for dir := range r.byDir {
		if dir == "." {
			continue
		}
		if importPath != dir && !strings.HasSuffix(importPath, "/"+dir) {
			continue
		}
		if len(dir) > len(bestDir) {
			bestDir = dir
		}
	}
	if bestDir == "" {
		return nil
	}
	var files []string
	for _, p := range r.byDir[bestDir] {
		if path.Ext(p) == ".go" && !strings.HasSuffix(p, "_test.go") {
			files = append(files, p)
		}
	}
	sort.Strings(files)
	return files
}

func (r *resolver) rust(dir, token string) []string {
	if isRelative(token) {
		base := path.Join(dir, token)
		return r.first([]string{base + ".rs", base + "/mod.rs"}, nil)
	}
	// use crate::a::b may name module a/b or an item b inside module a.
	suffixes := []string{token + ".rs", token + "/mod.rs"}
	if parent := path.Dir(token); parent != "." {
		suffixes = append(suffixes, parent+".rs", parent+"/mod.rs")
	}
	exact := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		exact = append(exact, path.Join("src", s))
	}
	return r.first(exact, suffixes)
}

// python resolves a dotted module path. When the full path names nothing in
// the corpus the last segment is taken as an attribute of its parent module,
// so "from pkg import name" lands on pkg/name.py or else on pkg itself.
func (r *resolver) python(dir, token string) []string {
	if found := r.first(pythonCandidates(dir, token), pythonSuffixes(token)); found != nil {
		return found
	}
	if parent := pythonParent(token); parent != "" {
		return r.first(pythonCandidates(dir, parent), pythonSuffixes(parent))
	}
	return nil
}

// pythonParent drops the last segment of a dotted module path: "a.b.c"
// gives "a.b", ".b" gives "." and a bare "a" or "." gives "".
func pythonParent(token string) string {
	dots := len(token) - len(strings.TrimLeft(token, "."))
	rest := token[dots:]
	if i := strings.LastIndex(rest, "."); i >= 0 {
		return token[:dots+i]
	}
	if rest != "" && dots > 0 {
		return token[:dots]
	}
	return ""
}

func pythonCandidates(dir, token string) []string {
	if !strings.HasPrefix(token, ".") {
		return nil
	}
	dots := len(token) - len(strings.TrimLeft(token, "."))
	base := dir
	for i := 1; i < dots; i++ {
		base = path.Dir(base)
	}
	rest := dottedPath(token[dots:])
	if rest == "" {
		return []string{path.Join(base, "__init__.py")}
	}
	target := path.Join(base, rest)
	return append(withExts(target, pythonExts, false), path.Join(target, "__init__.py"))
}

func pythonSuffixes(token string) []string {
	if strings.HasPrefix(token, ".") {
		return nil
	}
	target := dottedPath(token)
	return append(withExts(target, pythonExts, false), path.Join(target, "__init__.py"))
}

// withExts lists base itself when it already carries an extension, then
// base with each extension, then index files when index is set.
func withExts(base string, exts []string, index bool) []string {
	var out []string
	if path.Ext(base) != "" {
		out = append(out, base)
	}
	for _, ext := range exts {
		out = append(out, base+ext)
	}
	if index {
		for _, ext := range exts {
			out = append(out, path.Join(base, "index"+ext))
		}
	}
	return out
}

func dottedPath(token string) string {
	return strings.ReplaceAll(token, ".", "/")
}

func isRelative(token string) bool {
	return strings.HasPrefix(token, "./") || strings.HasPrefix(token, "../") || token == "." || token == ".."
}
