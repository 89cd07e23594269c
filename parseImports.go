package main

import (
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ImportEdge is a single import declaration found in a file. Imported holds
// the binding names the importer asked for, sorted; nil means "unknown/all"
// (e.g. a bare side-effect import). The sentinel "*" marks a namespace
// import and "default" the default binding. TypeOnly edges have no runtime
// existence and are never followed when computing closures.
type ImportEdge struct {
	Source   string
	Imported []string
	TypeOnly bool
}

// ExportMap summarises what a file re-exports from other modules.
// ByName maps an exported binding name to the specifier(s) providing it.
// Stars lists specifiers reached through `export * from` declarations.
type ExportMap struct {
	ByName map[string][]string
	Stars  []string
}

// The extractor is deliberately pattern based, not a TS parser. Comments are
// stripped first so commented-out declarations do not produce edges; string
// literals are not tracked, which is an accepted precision limit.
var (
	blockCommentRe = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	lineCommentRe  = regexp.MustCompile(`(?m)(^|\s)//.*$`)

	importFromRe    = regexp.MustCompile(`\bimport\s+(type\s+)?([\s\S]*?)\s+from\s+["']([^"']+)["']`)
	importSideFxRe  = regexp.MustCompile(`\bimport\s+["']([^"']+)["']\s*;?`)
	exportNamedRe   = regexp.MustCompile(`\bexport\s+(type\s+)?\{\s*([\s\S]*?)\s*\}\s*from\s+["']([^"']+)["']`)
	exportStarRe    = regexp.MustCompile(`\bexport\s+\*\s+from\s+["']([^"']+)["']`)
	typeQualifierRe = regexp.MustCompile(`^type\s+`)
)

// StripComments removes block comments, then line comments. A `//` only
// starts a line comment when preceded by whitespace or line start, so
// protocol-ish substrings like `http://` survive outside strings.
func StripComments(text string) string {
	text = blockCommentRe.ReplaceAllString(text, "")
	return lineCommentRe.ReplaceAllString(text, "$1")
}

// ParseImportClause decodes the binding clause of one import declaration into
// the set of names requested from the source module.
//
//	""                      -> nil
//	"* as React"            -> ["*"]
//	"Foo"                   -> ["default"]
//	"Foo, { Bar as Baz }"   -> ["Bar", "default"]
//	"{ A, type B, C as D }" -> ["A", "C"]
//	"{ default as X }"      -> ["X"]
//
// Renamed bindings contribute the name as seen by the exporting module, since
// that is the name closure-following has to match against.
func ParseImportClause(clause string) []string {
	raw := strings.TrimSpace(clause)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "*") {
		return []string{"*"}
	}

	open := strings.Index(raw, "{")
	if open == -1 {
		return []string{"default"}
	}

	imported := map[string]struct{}{}

	// A default binding ahead of the braced list: import Foo, { Bar } from "..."
	head := strings.TrimSpace(raw[:open])
	head = strings.TrimSpace(strings.TrimSuffix(head, ","))
	if head != "" && isPlainIdentifier(head) {
		imported["default"] = struct{}{}
	}

	end := strings.LastIndex(raw, "}")
	if end > open {
		for _, part := range strings.Split(raw[open+1:end], ",") {
			token := strings.TrimSpace(part)
			if token == "" {
				continue
			}
			// `type B` bindings have no runtime existence at all
			if typeQualifierRe.MatchString(token) {
				continue
			}
			if rest, found := strings.CutPrefix(token, "default as "); found {
				if name := strings.TrimSpace(rest); name != "" {
					imported[name] = struct{}{}
				}
				continue
			}
			if left, _, found := strings.Cut(token, " as "); found {
				token = strings.TrimSpace(left)
			}
			if token != "" {
				imported[token] = struct{}{}
			}
		}
	}

	if len(imported) == 0 {
		return nil
	}

	names := make([]string, 0, len(imported))
	for name := range imported {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func isPlainIdentifier(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isValidIdentifierChar(s[i]) {
			return false
		}
	}
	return len(s) > 0
}

// ExtractImports collects every import edge declared in text. All matching is
// one pass per pattern over the whole (comment-stripped) text; clauses and
// specifiers may span lines. Duplicate declarations collapse into one edge.
func ExtractImports(text string) []ImportEdge {
	stripped := StripComments(text)

	var edges []ImportEdge

	for _, m := range importFromRe.FindAllStringSubmatch(stripped, -1) {
		edges = append(edges, ImportEdge{
			Source:   m[3],
			Imported: ParseImportClause(m[2]),
			TypeOnly: m[1] != "",
		})
	}

	// Side-effect imports are runtime deps with no binding information.
	for _, m := range importSideFxRe.FindAllStringSubmatch(stripped, -1) {
		edges = append(edges, ImportEdge{Source: m[1]})
	}

	seen := map[string]struct{}{}
	uniq := make([]ImportEdge, 0, len(edges))
	for _, edge := range edges {
		key := edgeKey(edge)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, edge)
	}
	return uniq
}

func edgeKey(edge ImportEdge) string {
	names := "<nil>"
	if edge.Imported != nil {
		names = strings.Join(edge.Imported, ",")
	}
	return edge.Source + "\x00" + names + "\x00" + strconv.FormatBool(edge.TypeOnly)
}

// ExtractExportMap collects the re-export surface of text. Type-only
// re-exports contribute nothing. In the export list the public name is the
// right side of `as`, the opposite of the import side.
func ExtractExportMap(text string) ExportMap {
	stripped := StripComments(text)

	byName := map[string][]string{}
	for _, m := range exportNamedRe.FindAllStringSubmatch(stripped, -1) {
		if m[1] != "" {
			continue
		}
		src := m[3]
		for _, part := range strings.Split(m[2], ",") {
			token := strings.TrimSpace(part)
			if token == "" {
				continue
			}
			if typeQualifierRe.MatchString(token) {
				continue
			}
			var exported string
			if rest, found := strings.CutPrefix(token, "default as "); found {
				exported = strings.TrimSpace(rest)
			} else if _, right, found := strings.Cut(token, " as "); found {
				exported = strings.TrimSpace(right)
			} else {
				exported = token
			}
			if exported == "" {
				continue
			}
			if !slices.Contains(byName[exported], src) {
				byName[exported] = append(byName[exported], src)
			}
		}
	}
	for name := range byName {
		slices.Sort(byName[name])
	}

	var stars []string
	for _, m := range exportStarRe.FindAllStringSubmatch(stripped, -1) {
		if !slices.Contains(stars, m[1]) {
			stars = append(stars, m[1])
		}
	}
	slices.Sort(stars)

	return ExportMap{ByName: byName, Stars: stars}
}

// ReadFileText reads a file for scanning. Unreadable files degrade to empty
// text so a permissions hiccup or a file deleted mid-scan never aborts an
// audit run.
func ReadFileText(path string) string {
	content, err := os.ReadFile(DenormalizePathForOS(path))
	if err != nil {
		return ""
	}
	return string(content)
}
