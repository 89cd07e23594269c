package main

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// DefaultExtensions is the candidate order when a specifier omits its file
// extension. Order matters: the first existing candidate wins.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx"}

// DefaultAliasPrefix maps the conventional `@/` prefix to <root>/src when no
// tsconfig paths are available.
const DefaultAliasPrefix = "@/"

type aliasRoot struct {
	prefix string
	dir    string
}

// ModuleResolver maps module specifiers to concrete files on disk. Only
// specifiers with a relative prefix (./ or ../) or a configured alias prefix
// are considered local; bare package names stay unresolved so external
// dependencies are never pulled into an audit.
//
// Resolution is pure: the same (root, currentFile, specifier) triple always
// yields the same answer within a run.
type ModuleResolver struct {
	root       string
	aliases    []aliasRoot
	extensions []string
}

// NewModuleResolver builds a resolver rooted at root. aliases maps prefixes
// to directories (absolute, or relative to root); nil picks the `@/` -> src
// default. extensions nil picks DefaultExtensions.
func NewModuleResolver(root string, aliases map[string]string, extensions []string) *ModuleResolver {
	rootOs := DenormalizePathForOS(root)

	if aliases == nil {
		aliases = map[string]string{DefaultAliasPrefix: filepath.Join(rootOs, "src")}
	}
	if extensions == nil {
		extensions = DefaultExtensions
	}

	roots := make([]aliasRoot, 0, len(aliases))
	for prefix, dir := range aliases {
		if prefix == "" {
			continue
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(rootOs, dir)
		}
		roots = append(roots, aliasRoot{prefix: prefix, dir: dir})
	}

	// Longest prefix first, so "@app/" wins over "@" for "@app/x".
	sort.Slice(roots, func(i, j int) bool {
		if len(roots[i].prefix) != len(roots[j].prefix) {
			return len(roots[i].prefix) > len(roots[j].prefix)
		}
		return roots[i].prefix < roots[j].prefix
	})

	return &ModuleResolver{
		root:       NormalizePathForInternal(rootOs),
		aliases:    roots,
		extensions: slices.Clone(extensions),
	}
}

// Resolve maps spec, as referenced from currentFile, to an existing file.
// Probe order: the literal path, the path with each candidate extension
// appended, then index files under the path as a directory. The first hit
// wins; a miss means the edge is simply not followed.
func (r *ModuleResolver) Resolve(currentFile string, spec string) (string, bool) {
	if spec == "" {
		return "", false
	}

	var base string
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		base = filepath.Join(filepath.Dir(DenormalizePathForOS(currentFile)), spec)
	} else {
		alias, matched := r.matchAlias(spec)
		if !matched {
			return "", false
		}
		base = filepath.Join(alias.dir, strings.TrimPrefix(spec, alias.prefix))
	}

	if isRegularFile(base) {
		return NormalizePathForInternal(base), true
	}

	for _, ext := range r.extensions {
		if candidate := base + ext; isRegularFile(candidate) {
			return NormalizePathForInternal(candidate), true
		}
	}

	for _, ext := range r.extensions {
		if candidate := filepath.Join(base, "index"+ext); isRegularFile(candidate) {
			return NormalizePathForInternal(candidate), true
		}
	}

	return "", false
}

func (r *ModuleResolver) matchAlias(spec string) (aliasRoot, bool) {
	for _, alias := range r.aliases {
		if strings.HasPrefix(spec, alias.prefix) {
			return alias, true
		}
	}
	return aliasRoot{}, false
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
