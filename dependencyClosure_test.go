package main

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func mockProjectRoot(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("__fixtures__", "mockProject"))
	if err != nil {
		t.Fatal(err)
	}
	return NormalizePathForInternal(abs)
}

func pathsNotEqual(paths []string, expectedPaths []string) string {
	return fmt.Sprintf("\nPaths not equal; Given:\n%s\n----vs----\nExpected:\n%s", strings.Join(paths, "\n"), strings.Join(expectedPaths, "\n"))
}

func TestClosureOfCatalogPage(t *testing.T) {
	root := mockProjectRoot(t)
	scanner, err := NewScanner(root, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := scanner.ClosurePaths([]string{"src/app/staff/catalog/page.tsx"})
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		root + "/src/app/staff/catalog/page.tsx",
		root + "/src/components/catalog/SearchBar.tsx",
		root + "/src/components/catalog/index.ts",
		root + "/src/lib/api/catalog.ts",
		root + "/src/lib/api/client.ts",
		root + "/src/lib/util.ts",
	}

	if !reflect.DeepEqual(paths, expected) {
		t.Error(pathsNotEqual(paths, expected))
	}
}

func TestClosureOfCirculationPage(t *testing.T) {
	root := mockProjectRoot(t)
	scanner, err := NewScanner(root, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := scanner.ClosurePaths([]string{"src/app/staff/circulation/page.tsx"})
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		root + "/src/app/staff/circulation/page.tsx",
		root + "/src/components/circ/CheckoutForm.tsx",
		root + "/src/lib/api/circ.ts",
		root + "/src/lib/api/client.ts",
		root + "/src/lib/util.ts",
	}

	if !reflect.DeepEqual(paths, expected) {
		t.Error(pathsNotEqual(paths, expected))
	}
}

func TestClosureLeavesUnrequestedBarrelSourcesBehind(t *testing.T) {
	root := mockProjectRoot(t)
	scanner, err := NewScanner(root, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	closure, err := scanner.Closure([]string{"src/app/staff/catalog/page.tsx"})
	if err != nil {
		t.Fatal(err)
	}

	// The page imports only SearchBar from the barrel and its type import has
	// no runtime existence.
	notExpected := []string{
		root + "/src/components/catalog/FacetPanel.tsx",
		root + "/src/components/catalog/results.tsx",
		root + "/src/lib/types.ts",
	}
	for _, path := range notExpected {
		if _, found := closure[path]; found {
			t.Errorf("closure should not contain %s", path)
		}
	}
}

func TestClosureOfCycleTerminates(t *testing.T) {
	root := mockProjectRoot(t)
	scanner, err := NewScanner(root, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := scanner.ClosurePaths([]string{root + "/src/cycle/a.ts"})
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		root + "/src/cycle/a.ts",
		root + "/src/cycle/b.ts",
	}

	if !reflect.DeepEqual(paths, expected) {
		t.Error(pathsNotEqual(paths, expected))
	}
}

func TestClosureVisitCap(t *testing.T) {
	root := mockProjectRoot(t)

	for _, maxFiles := range []int{1, 2} {
		scanner, err := NewScanner(root, nil, nil, maxFiles)
		if err != nil {
			t.Fatal(err)
		}

		closure, err := scanner.Closure([]string{"src/app/staff/catalog/page.tsx"})
		if err != nil {
			t.Fatal(err)
		}

		if len(closure) != maxFiles {
			t.Errorf("Closure with MaxFiles=%d visited %d files, want %d", maxFiles, len(closure), maxFiles)
		}
	}
}

func TestClosureEntryOutsideRoot(t *testing.T) {
	root := mockProjectRoot(t)
	scanner, err := NewScanner(root, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	_, err = scanner.Closure([]string{"../outside.ts"})
	if err == nil {
		t.Fatal("expected an error for an entry point outside the scan root")
	}
	if !strings.Contains(err.Error(), "outside the scan root") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClosureSkipsMissingEntry(t *testing.T) {
	root := mockProjectRoot(t)
	scanner, err := NewScanner(root, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := scanner.ClosurePaths([]string{"src/app/missing.ts", "src/cycle/a.ts"})
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		root + "/src/cycle/a.ts",
		root + "/src/cycle/b.ts",
	}

	if !reflect.DeepEqual(paths, expected) {
		t.Error(pathsNotEqual(paths, expected))
	}
}

func TestNewScannerRejectsBadRoot(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-scanner-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	if _, err := NewScanner(filepath.Join(tempDir, "missing"), nil, nil, 0); err == nil {
		t.Error("expected an error for a missing scan root")
	}

	file := writeProjectFile(t, tempDir, "file.ts", "")
	if _, err := NewScanner(file, nil, nil, 0); err == nil {
		t.Error("expected an error for a file passed as scan root")
	}
}

func TestClosureDefaultImportTakesWholeBarrelSurface(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-closure-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	writeProjectFile(t, tempDir, "entry.ts", `import widget from "./barrel";`)
	writeProjectFile(t, tempDir, "barrel.ts", "export { x } from \"./x\";\nexport * from \"./star\";\n")
	writeProjectFile(t, tempDir, "x.ts", "export const x = 1;")
	writeProjectFile(t, tempDir, "star.ts", "export const s = 2;")

	scanner, err := NewScanner(tempDir, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := scanner.ClosurePaths([]string{"entry.ts"})
	if err != nil {
		t.Fatal(err)
	}

	root := NormalizePathForInternal(tempDir)
	expected := []string{
		root + "/barrel.ts",
		root + "/entry.ts",
		root + "/star.ts",
		root + "/x.ts",
	}

	if !reflect.DeepEqual(paths, expected) {
		t.Error(pathsNotEqual(paths, expected))
	}
}

func TestClosureNamespaceImportTakesWholeBarrelSurface(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-closure-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	writeProjectFile(t, tempDir, "entry.ts", `import * as all from "./barrel";`)
	writeProjectFile(t, tempDir, "barrel.ts", "export { x } from \"./x\";\nexport * from \"./star\";\n")
	writeProjectFile(t, tempDir, "x.ts", "export const x = 1;")
	writeProjectFile(t, tempDir, "star.ts", "export const s = 2;")

	scanner, err := NewScanner(tempDir, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := scanner.ClosurePaths([]string{"entry.ts"})
	if err != nil {
		t.Fatal(err)
	}

	root := NormalizePathForInternal(tempDir)
	expected := []string{
		root + "/barrel.ts",
		root + "/entry.ts",
		root + "/star.ts",
		root + "/x.ts",
	}

	if !reflect.DeepEqual(paths, expected) {
		t.Error(pathsNotEqual(paths, expected))
	}
}

func TestClosureStarFallbackForUnmatchedNames(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-closure-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	writeProjectFile(t, tempDir, "entry.ts", `import { somewhere } from "./barrel";`)
	writeProjectFile(t, tempDir, "barrel.ts", "export { known } from \"./known\";\nexport * from \"./wild\";\n")
	writeProjectFile(t, tempDir, "known.ts", "export const known = 1;")
	writeProjectFile(t, tempDir, "wild.ts", "export const somewhere = 2;")

	scanner, err := NewScanner(tempDir, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := scanner.ClosurePaths([]string{"entry.ts"})
	if err != nil {
		t.Fatal(err)
	}

	root := NormalizePathForInternal(tempDir)
	expected := []string{
		root + "/barrel.ts",
		root + "/entry.ts",
		root + "/wild.ts",
	}

	if !reflect.DeepEqual(paths, expected) {
		t.Error(pathsNotEqual(paths, expected))
	}
}

func TestClosureMatchedNameSkipsStarFallback(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-closure-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	writeProjectFile(t, tempDir, "entry.ts", `import { known } from "./barrel";`)
	writeProjectFile(t, tempDir, "barrel.ts", "export { known } from \"./known\";\nexport * from \"./wild\";\n")
	writeProjectFile(t, tempDir, "known.ts", "export const known = 1;")
	writeProjectFile(t, tempDir, "wild.ts", "export const somewhere = 2;")

	scanner, err := NewScanner(tempDir, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := scanner.ClosurePaths([]string{"entry.ts"})
	if err != nil {
		t.Fatal(err)
	}

	root := NormalizePathForInternal(tempDir)
	expected := []string{
		root + "/barrel.ts",
		root + "/entry.ts",
		root + "/known.ts",
	}

	if !reflect.DeepEqual(paths, expected) {
		t.Error(pathsNotEqual(paths, expected))
	}
}

func TestTracePathToTarget(t *testing.T) {
	root := mockProjectRoot(t)
	scanner, err := NewScanner(root, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := scanner.TracePathTo([]string{"src/app/staff/catalog/page.tsx"}, "src/lib/api/client.ts")
	if err != nil {
		t.Fatal(err)
	}

	expected := [][]string{{
		root + "/src/app/staff/catalog/page.tsx",
		root + "/src/lib/api/catalog.ts",
		root + "/src/lib/api/client.ts",
	}}

	if !reflect.DeepEqual(paths, expected) {
		t.Errorf("TracePathTo = %v, want %v", paths, expected)
	}
}

func TestTracePathToUnreachableTarget(t *testing.T) {
	root := mockProjectRoot(t)
	scanner, err := NewScanner(root, nil, nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	paths, err := scanner.TracePathTo([]string{"src/app/staff/catalog/page.tsx"}, "src/components/catalog/FacetPanel.tsx")
	if err != nil {
		t.Fatal(err)
	}

	if len(paths) != 0 {
		t.Errorf("TracePathTo to an unreachable file = %v, want no paths", paths)
	}
}
