package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	ignore "github.com/sabhiram/go-gitignore"
	logger "github.com/sirupsen/logrus"
)

// DefaultMaxFileBytes skips generated or vendored blobs that would never fit
// a review budget anyway.
const DefaultMaxFileBytes = 512 * 1024

// Options controls which files Load selects.
type Options struct {
	Extensions   []string // allow-list; empty means every recognized extension
	Include      []string // globs; empty means everything
	Exclude      []string // globs
	Paths        []string // explicit selection: files or directories relative to root
	MaxFileBytes int
}

// RepoMeta describes the repository the corpus came from.
type RepoMeta struct {
	Root   string `json:"root"`
	Head   string `json:"head,omitempty"`
	Branch string `json:"branch,omitempty"`
}

var skipDirs = map[string]struct{}{
	".git":          {},
	".hg":           {},
	".svn":          {},
	"node_modules":  {},
	"vendor":        {},
	"__pycache__":   {},
	"venv":          {},
	".venv":         {},
	"dist":          {},
	"build":         {},
	"target":        {},
	".tox":          {},
	".mypy_cache":   {},
	".pytest_cache": {},
}

// Load reads the selected files under root. When root is inside a git
// repository only tracked files are considered; otherwise the tree is walked
// honoring root/.gitignore.
func Load(root string, opts Options) ([]SourceFile, RepoMeta, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, RepoMeta{}, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, RepoMeta{}, fmt.Errorf("reading root: %w", err)
	}
	if !info.IsDir() {
		return nil, RepoMeta{}, fmt.Errorf("root %s is not a directory", abs)
	}

	meta := ReadRepoMeta(abs)
	candidates, err := trackedFiles(abs)
	if err != nil {
		logger.Debugf("Falling back to directory walk: %v", err)
		candidates, err = walkFiles(abs)
		if err != nil {
			return nil, meta, err
		}
	}

	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	allowed := allowSet(opts.Extensions)
	selection := normalizeAll(opts.Paths)

	var files []SourceFile
	for _, rel := range candidates {
		if !allowed.has(rel) || !selected(rel, selection) {
			continue
		}
		if len(opts.Include) > 0 && !MatchesAny(rel, opts.Include) {
			continue
		}
		if MatchesAny(rel, opts.Exclude) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(abs, filepath.FromSlash(rel)))
		if err != nil {
			logger.Debugf("Skipping unreadable file %s: %v", rel, err)
			continue
		}
		if len(data) > maxBytes {
			logger.Infof("Skipping %s: %d bytes exceeds the %d byte limit", rel, len(data), maxBytes)
			continue
		}
		if isBinary(data) {
			continue
		}
		files = append(files, NewSourceFile(rel, string(data)))
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, meta, nil
}

// ReadRepoMeta returns repository metadata for dir. Outside a repository only
// Root is set.
func ReadRepoMeta(dir string) RepoMeta {
	meta := RepoMeta{Root: dir}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return meta
	}
	if wt, err := repo.Worktree(); err == nil {
		meta.Root = wt.Filesystem.Root()
	}
	head, err := repo.Head()
	if err != nil {
		return meta // no commits yet
	}
	meta.Head = head.Hash().String()
	if head.Name().IsBranch() {
		meta.Branch = head.Name().Short()
	}
	return meta
}

// trackedFiles lists index entries below dir, relative to dir.
func trackedFiles(dir string) ([]string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("reading git index: %w", err)
	}
	if len(idx.Entries) == 0 {
		return nil, errors.New("git index is empty")
	}

	prefix, err := filepath.Rel(wt.Filesystem.Root(), dir)
	if err != nil {
		return nil, err
	}
	prefix = filepath.ToSlash(prefix)
	if prefix == "." {
		prefix = ""
	} else {
		prefix += "/"
	}

	var files []string
	for _, e := range idx.Entries {
		if !strings.HasPrefix(e.Name, prefix) {
			continue
		}
		files = append(files, strings.TrimPrefix(e.Name, prefix))
	}
	return files, nil
}

func walkFiles(root string) ([]string, error) {
	var gi *ignore.GitIgnore
	if compiled, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		gi = compiled
	}

	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || strings.HasPrefix(name, ".") {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func normalizeAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if n := NormalizePath(p); n != "" && n != "." {
			out = append(out, n)
		}
	}
	return out
}

func selected(rel string, selection []string) bool {
	if len(selection) == 0 {
		return true
	}
	for _, s := range selection {
		if rel == s || strings.HasPrefix(rel, s+"/") {
			return true
		}
	}
	return false
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > 8000 {
		n = 8000
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}
