package corpus

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/lens/internal/lang"
)

// SourceFile is one selected file. Path is repository-relative with forward
// slashes and is the file's identity. Values are immutable once built.
type SourceFile struct {
	Path     string   `json:"path"`
	Content  string   `json:"-"`
	Language string   `json:"language,omitempty"`
	Imports  []string `json:"imports,omitempty"`
}

// Pair is the inbound shape handed over by an ingestion collaborator.
type Pair struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewSourceFile normalizes path and derives the language tag and raw import
// tokens from content.
func NewSourceFile(p, content string) SourceFile {
	p = NormalizePath(p)
	tag := lang.ForPath(p)
	return SourceFile{
		Path:     p,
		Content:  content,
		Language: tag,
		Imports:  lang.ExtractImports(tag, content),
	}
}

// NormalizePath converts p to a clean, slash-separated relative path.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	return strings.TrimPrefix(p, "/")
}

// FromPairs builds the corpus from path/content pairs, keeping only files
// whose extension is in allow (every recognized extension when allow is
// empty). The result is sorted by path. Duplicate paths are an error.
func FromPairs(pairs []Pair, allow []string) ([]SourceFile, error) {
	allowed := allowSet(allow)
	seen := make(map[string]struct{}, len(pairs))
	files := make([]SourceFile, 0, len(pairs))
	for _, p := range pairs {
		f := NewSourceFile(p.Path, p.Content)
		if !allowed.has(f.Path) {
			continue
		}
		if _, dup := seen[f.Path]; dup {
			return nil, fmt.Errorf("duplicate corpus path %q", f.Path)
		}
		seen[f.Path] = struct{}{}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Index returns the corpus keyed by path.
func Index(files []SourceFile) map[string]SourceFile {
	m := make(map[string]SourceFile, len(files))
	for _, f := range files {
		m[f.Path] = f
	}
	return m
}

type extSet map[string]struct{}

func allowSet(allow []string) extSet {
	if len(allow) == 0 {
		allow = lang.Extensions()
	}
	s := make(extSet, len(allow))
	for _, ext := range allow {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s[ext] = struct{}{}
	}
	return s
}

func (s extSet) has(p string) bool {
	_, ok := s[strings.ToLower(path.Ext(p))]
	return ok
}

// MatchesAny reports whether p matches any of the glob patterns. Patterns
// use doublestar syntax, so "**" spans any number of segments. A pattern
// without a slash also matches against the base name.
func MatchesAny(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, p); err == nil && ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, err := doublestar.Match(pattern, path.Base(p)); err == nil && ok {
				return true
			}
		}
	}
	return false
}
