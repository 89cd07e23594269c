package main

import (
	"reflect"
	"strings"
	"testing"
)

func edgesToString(edges []ImportEdge) string {
	str := ""

	for _, edge := range edges {
		kind := "runtime"
		if edge.TypeOnly {
			kind = "type-only"
		}
		str = str + kind + "(" + edge.Source + " -> [" + strings.Join(edge.Imported, ", ") + "])" + "\n"
	}

	return str
}

func codeToString(code string) string {
	str := "\n\n"

	lines := strings.Split(code, "\n")

	for _, line := range lines {
		str += strings.TrimSpace(line) + "\n"
	}

	return str + "\n\n"
}

func TestExtractSideEffectImport(t *testing.T) {
	code := `import './module'`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
		return
	}

	if edges[0].Source != "./module" || edges[0].Imported != nil || edges[0].TypeOnly {
		t.Errorf(`Parse invalid %s -> %s`, codeToString(code), edgesToString(edges))
	}
}

func TestExtractDefaultImport(t *testing.T) {
	code := `import I from 'module'`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
		return
	}

	if edges[0].Source != "module" || !reflect.DeepEqual(edges[0].Imported, []string{"default"}) {
		t.Errorf(`Parse invalid %s -> %s`, codeToString(code), edgesToString(edges))
	}
}

func TestExtractNamedImports(t *testing.T) {
	code := `import { A, B as C } from "./m"`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
		return
	}

	// Renamed bindings keep the exporter-side name
	if edges[0].Source != "./m" || !reflect.DeepEqual(edges[0].Imported, []string{"A", "B"}) {
		t.Errorf(`Parse invalid %s -> %s`, codeToString(code), edgesToString(edges))
	}
}

func TestExtractNamespaceImport(t *testing.T) {
	code := `import * as everything from "./m"`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
		return
	}

	if !reflect.DeepEqual(edges[0].Imported, []string{"*"}) {
		t.Errorf(`Parse invalid %s -> %s`, codeToString(code), edgesToString(edges))
	}
}

func TestExtractTypeOnlyImport(t *testing.T) {
	code := `import type { Flags } from "./types"`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
		return
	}

	if !edges[0].TypeOnly || !reflect.DeepEqual(edges[0].Imported, []string{"Flags"}) {
		t.Errorf(`Parse invalid %s -> %s`, codeToString(code), edgesToString(edges))
	}
}

func TestExtractMixedDefaultAndNamed(t *testing.T) {
	code := `import Widget, { render } from "./widget"`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
		return
	}

	if !reflect.DeepEqual(edges[0].Imported, []string{"default", "render"}) {
		t.Errorf(`Parse invalid %s -> %s`, codeToString(code), edgesToString(edges))
	}
}

func TestExtractInlineTypeBindingDropped(t *testing.T) {
	code := `import { type Theme, useTheme } from "./theme"`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
		return
	}

	if edges[0].TypeOnly || !reflect.DeepEqual(edges[0].Imported, []string{"useTheme"}) {
		t.Errorf(`Parse invalid %s -> %s`, codeToString(code), edgesToString(edges))
	}
}

func TestExtractDefaultAsBinding(t *testing.T) {
	code := `import { default as Panel } from "./panel"`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
		return
	}

	if !reflect.DeepEqual(edges[0].Imported, []string{"Panel"}) {
		t.Errorf(`Parse invalid %s -> %s`, codeToString(code), edgesToString(edges))
	}
}

func TestExtractMultilineClause(t *testing.T) {
	code := `import {
		first,
		second,
	} from "./pair"`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
		return
	}

	if !reflect.DeepEqual(edges[0].Imported, []string{"first", "second"}) {
		t.Errorf(`Parse invalid %s -> %s`, codeToString(code), edgesToString(edges))
	}
}

func TestExtractCommentedOutImports(t *testing.T) {
	code := `// import { gone } from "./gone"
/* import { also } from "./also" */
import { kept } from "./kept"`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
		return
	}

	if edges[0].Source != "./kept" {
		t.Errorf(`Parse invalid %s -> %s`, codeToString(code), edgesToString(edges))
	}
}

func TestExtractDuplicateDeclarationsCollapse(t *testing.T) {
	code := `import { once } from "./dup"
import { once } from "./dup"`

	edges := ExtractImports(code)

	if len(edges) != 1 {
		t.Errorf(`Parse invalid %s -> length %d, should be 1`, codeToString(code), len(edges))
	}
}

func TestExportFromProducesNoImportEdge(t *testing.T) {
	code := `export { A } from "./m"
export * from "./n"`

	edges := ExtractImports(code)

	if len(edges) != 0 {
		t.Errorf(`Parse invalid %s -> length %d, should be 0: %s`, codeToString(code), len(edges), edgesToString(edges))
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no comments",
			input:    "const x = 5;\nconst y = 'hello';",
			expected: "const x = 5;\nconst y = 'hello';",
		},
		{
			name:     "line comments",
			input:    "// top comment\nconst x = 5; // inline",
			expected: "\nconst x = 5; ",
		},
		{
			name:     "block comments",
			input:    "someCode;/* a\n   multi-line comment */\nconst x = 5;",
			expected: "someCode;\nconst x = 5;",
		},
		{
			name:     "protocol substrings survive",
			input:    `const u = "http://example.com";`,
			expected: `const u = "http://example.com";`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripComments(tt.input)
			if result != tt.expected {
				t.Errorf("StripComments() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestParseImportClause(t *testing.T) {
	tests := []struct {
		clause   string
		expected []string
	}{
		{"", nil},
		{"* as React", []string{"*"}},
		{"Foo", []string{"default"}},
		{"Foo, { Bar as Baz }", []string{"Bar", "default"}},
		{"{ A, type B, C as D }", []string{"A", "C"}},
		{"{ default as X }", []string{"X"}},
		{"{ type A, type B }", nil},
	}

	for _, tt := range tests {
		t.Run(tt.clause, func(t *testing.T) {
			result := ParseImportClause(tt.clause)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ParseImportClause(%q) = %v, want %v", tt.clause, result, tt.expected)
			}
		})
	}
}

func TestExtractExportMapNamed(t *testing.T) {
	code := `export { A, B as C } from "./src"`

	exports := ExtractExportMap(code)

	expected := map[string][]string{"A": {"./src"}, "C": {"./src"}}
	if !reflect.DeepEqual(exports.ByName, expected) {
		t.Errorf("ExtractExportMap(%s).ByName = %v, want %v", codeToString(code), exports.ByName, expected)
	}
	if len(exports.Stars) != 0 {
		t.Errorf("ExtractExportMap(%s).Stars = %v, want none", codeToString(code), exports.Stars)
	}
}

func TestExtractExportMapDefaultAs(t *testing.T) {
	code := `export { default as Panel } from "./panel"`

	exports := ExtractExportMap(code)

	expected := map[string][]string{"Panel": {"./panel"}}
	if !reflect.DeepEqual(exports.ByName, expected) {
		t.Errorf("ExtractExportMap(%s).ByName = %v, want %v", codeToString(code), exports.ByName, expected)
	}
}

func TestExtractExportMapStars(t *testing.T) {
	code := `export * from "./z"
export * from "./a"
export * from "./z"`

	exports := ExtractExportMap(code)

	if !reflect.DeepEqual(exports.Stars, []string{"./a", "./z"}) {
		t.Errorf("ExtractExportMap(%s).Stars = %v, want [./a ./z]", codeToString(code), exports.Stars)
	}
}

func TestExtractExportMapIgnoresTypeReExports(t *testing.T) {
	code := `export type { T } from "./t"
export { type U, V } from "./u"`

	exports := ExtractExportMap(code)

	expected := map[string][]string{"V": {"./u"}}
	if !reflect.DeepEqual(exports.ByName, expected) {
		t.Errorf("ExtractExportMap(%s).ByName = %v, want %v", codeToString(code), exports.ByName, expected)
	}
}

func TestExtractExportMapLocalExportsHaveNoSource(t *testing.T) {
	code := `export function runSearch() {}
export const limit = 10`

	exports := ExtractExportMap(code)

	if len(exports.ByName) != 0 || len(exports.Stars) != 0 {
		t.Errorf("ExtractExportMap(%s) = %v, want an empty map", codeToString(code), exports)
	}
}
