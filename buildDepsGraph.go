package main

import (
	"sync"
)

// GraphEdge is one resolved import relation: the internal-normalized path of
// the imported file plus the request string as written in the source.
type GraphEdge struct {
	Path     string `json:"path"`
	Request  string `json:"request"`
	TypeOnly bool   `json:"typeOnly,omitempty"`
}

// DependencyGraph maps every scanned file to the local files it imports.
// Requests that do not resolve to a file under the root (node modules, typos,
// asset loaders) carry no edge at all.
type DependencyGraph map[string][]GraphEdge

// BuildDependencyGraph resolves the imports of every file through the
// scanner's resolver and cache. Unlike closure traversal, the graph follows
// re-exports unconditionally: a barrel's whole surface counts as referenced,
// which is what entry point and cycle detection need. Scanning is IO bound so
// files are parsed concurrently; the graph itself is assembled under a lock.
func BuildDependencyGraph(scanner *Scanner, files []string) DependencyGraph {
	graph := make(DependencyGraph, len(files))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, filePath := range files {
		wg.Add(1)
		go func(filePath string) {
			defer wg.Done()

			var edges []GraphEdge
			seen := map[string]int{}
			add := func(request string, typeOnly bool) {
				if at, dup := seen[request]; dup {
					// A runtime mention outweighs an earlier type-only one.
					if at >= 0 && !typeOnly {
						edges[at].TypeOnly = false
					}
					return
				}
				seen[request] = -1
				if resolved, ok := scanner.Resolver.Resolve(filePath, request); ok {
					seen[request] = len(edges)
					edges = append(edges, GraphEdge{Path: resolved, Request: request, TypeOnly: typeOnly})
				}
			}

			for _, edge := range scanner.Cache.ImportsOf(filePath) {
				add(edge.Source, edge.TypeOnly)
			}
			// Sorted name order keeps the edge list stable across runs.
			exports := scanner.Cache.ExportMapOf(filePath)
			for _, entry := range GetSortedMap(exports.ByName) {
				for _, spec := range entry.v {
					add(spec, false)
				}
			}
			for _, spec := range exports.Stars {
				add(spec, false)
			}

			mu.Lock()
			graph[filePath] = edges
			mu.Unlock()
		}(filePath)
	}

	wg.Wait()
	return graph
}
