package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultMaxFiles caps how many files one closure may visit. Big enough for
// any sane page, small enough to stop a barrel explosion from scanning the
// whole repo.
const DefaultMaxFiles = 600

// Scanner bundles what one dependency analysis run needs: the tree root, the
// module resolver and the per-run scan cache. Create one per run; runs never
// share caches.
type Scanner struct {
	Root     string
	Resolver *ModuleResolver
	Cache    *scanCache
	MaxFiles int
}

// NewScanner validates root and builds a run-scoped scanner. A root that does
// not exist is caller misconfiguration and fails loudly, unlike everything
// downstream which degrades quietly.
func NewScanner(root string, aliases map[string]string, extensions []string, maxFiles int) (*Scanner, error) {
	rootOs := DenormalizePathForOS(root)
	info, err := os.Stat(rootOs)
	if err != nil {
		return nil, fmt.Errorf("scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	absRoot, err := filepath.Abs(rootOs)
	if err != nil {
		return nil, err
	}

	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	internalRoot := NormalizePathForInternal(absRoot)

	return &Scanner{
		Root:     internalRoot,
		Resolver: NewModuleResolver(internalRoot, aliases, extensions),
		Cache:    newScanCache(),
		MaxFiles: maxFiles,
	}, nil
}

type pendingFile struct {
	path      string
	requested []string
}

// Closure returns the set of local files transitively reachable from the
// entry files. The traversal is an explicit worklist, not recursion, so
// import cycles terminate without any extra bookkeeping. Entry files outside
// the scan root are a hard error; entry files that do not exist are skipped.
//
// When a file was reached by importing specific named bindings, only the
// re-export sources providing those bindings are followed, so a wide barrel
// module does not drag its whole surface into every page's closure. The
// file's own imports are always followed in full.
//
// The visited count is capped at MaxFiles; a capped result is a silently
// truncated lower bound of the true closure, never an error.
func (s *Scanner) Closure(entryFiles []string) (map[string]struct{}, error) {
	return s.closure(entryFiles, nil)
}

// closure optionally records, per discovered file, which file enqueued it
// first. The parent chain is what TracePathTo walks.
func (s *Scanner) closure(entryFiles []string, parents map[string]string) (map[string]struct{}, error) {
	visited := map[string]struct{}{}
	queue := make([]pendingFile, 0, len(entryFiles))

	for _, entry := range entryFiles {
		entryOs := DenormalizePathForOS(entry)
		if !filepath.IsAbs(entryOs) {
			entryOs = filepath.Join(DenormalizePathForOS(s.Root), entryOs)
		}
		abs, err := filepath.Abs(entryOs)
		if err != nil {
			return nil, err
		}
		internal := NormalizePathForInternal(abs)
		if !s.contains(internal) {
			return nil, fmt.Errorf("entry point %s is outside the scan root %s", entry, s.Root)
		}
		if isRegularFile(abs) {
			queue = append(queue, pendingFile{path: internal})
		}
	}

	for len(queue) > 0 {
		item := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		if _, done := visited[item.path]; done {
			continue
		}
		visited[item.path] = struct{}{}
		if len(visited) >= s.MaxFiles {
			break
		}

		// Barrel step: the importer told us which bindings it wanted, so
		// consult this file's re-export surface and follow only what can
		// provide them.
		if len(item.requested) > 0 {
			exports := s.Cache.ExportMapOf(item.path)
			follow := map[string]struct{}{}

			if slices.Contains(item.requested, "*") || slices.Contains(item.requested, "default") {
				// Namespace or default import: no provable subset exists,
				// take every source.
				for _, spec := range exports.Stars {
					follow[spec] = struct{}{}
				}
				for _, specs := range exports.ByName {
					for _, spec := range specs {
						follow[spec] = struct{}{}
					}
				}
			} else {
				for _, name := range item.requested {
					for _, spec := range exports.ByName[name] {
						follow[spec] = struct{}{}
					}
				}
				// Names we could not match may still be satisfied through a
				// wildcard chain.
				if len(follow) == 0 {
					for _, spec := range exports.Stars {
						follow[spec] = struct{}{}
					}
				}
			}

			specs := make([]string, 0, len(follow))
			for spec := range follow {
				specs = append(specs, spec)
			}
			slices.Sort(specs)
			for _, spec := range specs {
				if resolved, ok := s.Resolver.Resolve(item.path, spec); ok {
					recordParent(parents, resolved, item.path)
					queue = append(queue, pendingFile{path: resolved})
				}
			}
		}

		// Own imports are followed in full regardless of how this file was
		// reached.
		for _, edge := range s.Cache.ImportsOf(item.path) {
			if edge.TypeOnly {
				continue
			}
			if resolved, ok := s.Resolver.Resolve(item.path, edge.Source); ok {
				recordParent(parents, resolved, item.path)
				queue = append(queue, pendingFile{path: resolved, requested: edge.Imported})
			}
		}
	}

	return visited, nil
}

// ClosurePaths is Closure flattened to a sorted slice, handy for printing and
// for re-scanning the reachable set.
func (s *Scanner) ClosurePaths(entryFiles []string) ([]string, error) {
	closure, err := s.Closure(entryFiles)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(closure))
	for path := range closure {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths, nil
}

// TracePathTo explains why target ends up in the closure: the first
// discovered chain of files from an entry point down to target. Returns no
// chains when target is not reachable.
func (s *Scanner) TracePathTo(entryFiles []string, target string) ([][]string, error) {
	parents := map[string]string{}
	visited, err := s.closure(entryFiles, parents)
	if err != nil {
		return nil, err
	}

	targetOs := DenormalizePathForOS(target)
	if !filepath.IsAbs(targetOs) {
		targetOs = filepath.Join(DenormalizePathForOS(s.Root), targetOs)
	}
	abs, err := filepath.Abs(targetOs)
	if err != nil {
		return nil, err
	}
	internal := NormalizePathForInternal(abs)
	if _, ok := visited[internal]; !ok {
		return [][]string{}, nil
	}

	chain := []string{internal}
	seen := map[string]bool{internal: true}
	for {
		parent, ok := parents[chain[0]]
		if !ok || seen[parent] {
			break
		}
		seen[parent] = true
		chain = append([]string{parent}, chain...)
	}
	return [][]string{chain}, nil
}

func recordParent(parents map[string]string, child, parent string) {
	if parents == nil {
		return
	}
	if _, ok := parents[child]; !ok {
		parents[child] = parent
	}
}

func (s *Scanner) contains(path string) bool {
	rel, err := filepath.Rel(DenormalizePathForOS(s.Root), DenormalizePathForOS(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
