package main

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const scanCacheSize = 4096

// scanCache memoizes per-file scan results for the lifetime of one analysis
// run. It is owned by the run that created it, never shared between runs, so
// parallel report generation cannot see each other's entries. Entries are
// written once and never invalidated; the LRU bound keeps a pathological tree
// from growing the process without limit. Recomputing an evicted entry is
// only a cost, never a correctness issue.
type scanCache struct {
	text    *lru.Cache[string, string]
	edges   *lru.Cache[string, []ImportEdge]
	exports *lru.Cache[string, ExportMap]
}

func newScanCache() *scanCache {
	text, _ := lru.New[string, string](scanCacheSize)
	edges, _ := lru.New[string, []ImportEdge](scanCacheSize)
	exports, _ := lru.New[string, ExportMap](scanCacheSize)

	return &scanCache{text: text, edges: edges, exports: exports}
}

func (c *scanCache) TextOf(path string) string {
	if text, ok := c.text.Get(path); ok {
		return text
	}
	text := ReadFileText(path)
	c.text.Add(path, text)
	return text
}

func (c *scanCache) ImportsOf(path string) []ImportEdge {
	if cached, ok := c.edges.Get(path); ok {
		return cached
	}
	edges := ExtractImports(c.TextOf(path))
	c.edges.Add(path, edges)
	return edges
}

func (c *scanCache) ExportMapOf(path string) ExportMap {
	if cached, ok := c.exports.Get(path); ok {
		return cached
	}
	exports := ExtractExportMap(c.TextOf(path))
	c.exports.Add(path, exports)
	return exports
}
