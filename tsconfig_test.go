package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadTsConfigAliasesFromFixture(t *testing.T) {
	root := mockProjectRoot(t)

	aliases, err := LoadTsConfigAliases(filepath.Join(root, "tsconfig.json"))
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]string{"@/": filepath.Join(root, "src")}
	if !reflect.DeepEqual(aliases, expected) {
		t.Errorf("LoadTsConfigAliases() = %v, want %v", aliases, expected)
	}
}

func TestLoadTsConfigAliasesExtendsChain(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-tsconfig-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	writeProjectFile(t, tempDir, "base.json", `{
		"compilerOptions": {
			"baseUrl": ".",
			"paths": {
				"@/*": ["./base-src/*"],
				"#shared/*": ["./shared/*"]
			}
		}
	}`)
	tsconfig := writeProjectFile(t, tempDir, "tsconfig.json", `{
		"extends": "./base.json",
		"compilerOptions": {
			"baseUrl": ".",
			"paths": {
				"@/*": ["./src/*"]
			}
		}
	}`)

	aliases, err := LoadTsConfigAliases(tsconfig)
	if err != nil {
		t.Fatal(err)
	}

	// The child's "@/" wins; the base's "#shared/" is inherited.
	expected := map[string]string{
		"@/":       filepath.Join(tempDir, "src"),
		"#shared/": filepath.Join(tempDir, "shared"),
	}
	if !reflect.DeepEqual(aliases, expected) {
		t.Errorf("LoadTsConfigAliases() = %v, want %v", aliases, expected)
	}
}

func TestLoadTsConfigAliasesExtendsWithoutSuffix(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-tsconfig-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	writeProjectFile(t, tempDir, "base.json", `{
		"compilerOptions": {
			"baseUrl": ".",
			"paths": { "~/*": ["./lib/*"] }
		}
	}`)
	tsconfig := writeProjectFile(t, tempDir, "tsconfig.json", `{ "extends": "./base" }`)

	aliases, err := LoadTsConfigAliases(tsconfig)
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]string{"~/": filepath.Join(tempDir, "lib")}
	if !reflect.DeepEqual(aliases, expected) {
		t.Errorf("LoadTsConfigAliases() = %v, want %v", aliases, expected)
	}
}

func TestLoadTsConfigAliasesToleratesJSONC(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-tsconfig-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	tsconfig := writeProjectFile(t, tempDir, "tsconfig.json", `{
		// path aliases for the app tree
		"compilerOptions": {
			"baseUrl": ".",
			"paths": {
				"@/*": ["./src/*"], /* only the first value is honoured */
			},
		},
	}`)

	aliases, err := LoadTsConfigAliases(tsconfig)
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]string{"@/": filepath.Join(tempDir, "src")}
	if !reflect.DeepEqual(aliases, expected) {
		t.Errorf("LoadTsConfigAliases() = %v, want %v", aliases, expected)
	}
}

func TestLoadTsConfigAliasesExtendsCycleTerminates(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-tsconfig-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	a := writeProjectFile(t, tempDir, "a.json", `{
		"extends": "./b.json",
		"compilerOptions": { "baseUrl": ".", "paths": { "@a/*": ["./a-src/*"] } }
	}`)
	writeProjectFile(t, tempDir, "b.json", `{
		"extends": "./a.json",
		"compilerOptions": { "baseUrl": ".", "paths": { "@b/*": ["./b-src/*"] } }
	}`)

	aliases, err := LoadTsConfigAliases(a)
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]string{
		"@a/": filepath.Join(tempDir, "a-src"),
		"@b/": filepath.Join(tempDir, "b-src"),
	}
	if !reflect.DeepEqual(aliases, expected) {
		t.Errorf("LoadTsConfigAliases() = %v, want %v", aliases, expected)
	}
}

func TestLoadTsConfigAliasesMissingExtendsSkipped(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-tsconfig-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	tsconfig := writeProjectFile(t, tempDir, "tsconfig.json", `{
		"extends": "./missing.json",
		"compilerOptions": { "baseUrl": ".", "paths": { "@/*": ["./src/*"] } }
	}`)

	aliases, err := LoadTsConfigAliases(tsconfig)
	if err != nil {
		t.Fatal(err)
	}

	expected := map[string]string{"@/": filepath.Join(tempDir, "src")}
	if !reflect.DeepEqual(aliases, expected) {
		t.Errorf("LoadTsConfigAliases() = %v, want %v", aliases, expected)
	}
}

func TestLoadTsConfigAliasesErrors(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "dep-audit-tsconfig-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tempDir)

	if _, err := LoadTsConfigAliases(filepath.Join(tempDir, "none.json")); err == nil {
		t.Error("expected an error for a missing tsconfig")
	}

	broken := writeProjectFile(t, tempDir, "broken.json", `{not json at all`)
	if _, err := LoadTsConfigAliases(broken); err == nil {
		t.Error("expected an error for unparsable tsconfig")
	}
}
