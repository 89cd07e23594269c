package main

import "slices"

// GetEntryPoints returns the files in the graph that no other file imports,
// filtered through the include/exclude glob lists.
func GetEntryPoints(graph DependencyGraph, resultExclude []string, resultInclude []string, cwd string) []string {
	referencedFiles := map[string]byte{}

	for _, edges := range graph {
		for _, edge := range edges {
			referencedFiles[edge.Path] = 0
		}
	}

	notReferencedFiles := []string{}

	excludeGlobs := CreateGlobMatchers(resultExclude, cwd)
	includeGlobs := CreateGlobMatchers(resultInclude, cwd)

	for filePath := range graph {
		_, wasReferenced := referencedFiles[filePath]
		if !wasReferenced {
			if len(includeGlobs) == 0 || MatchesAnyGlobMatcher(filePath, includeGlobs, false) {
				isExcluded := MatchesAnyGlobMatcher(filePath, excludeGlobs, false)

				if !isExcluded {
					notReferencedFiles = append(notReferencedFiles, filePath)
				}
			}
		}
	}

	slices.Sort(notReferencedFiles)

	return notReferencedFiles
}
