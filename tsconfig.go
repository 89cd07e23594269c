package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
)

type tsConfigFile struct {
	Extends         string `json:"extends"`
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

type tsConfigLink struct {
	path string
	cfg  tsConfigFile
}

// LoadTsConfigAliases extracts alias prefix mappings from a tsconfig's
// compilerOptions.paths, following the extends chain (deepest base first,
// each child overriding its base). Wildcard entries like "@/*": ["./src/*"]
// become the prefix "@/" mapped to an absolute directory. Only the first
// value of each entry is honoured; the resolver does plain prefix
// substitution, not full pattern matching.
func LoadTsConfigAliases(tsconfigPath string) (map[string]string, error) {
	chain, err := readTsConfigChain(tsconfigPath, map[string]bool{})
	if err != nil {
		return nil, err
	}

	aliases := map[string]string{}
	for _, link := range chain {
		baseDir := filepath.Join(filepath.Dir(link.path), link.cfg.CompilerOptions.BaseURL)
		for key, values := range link.cfg.CompilerOptions.Paths {
			if len(values) == 0 {
				continue
			}
			prefix := strings.TrimSuffix(key, "*")
			if prefix == "" {
				continue
			}
			target := strings.TrimSuffix(values[0], "*")
			aliases[prefix] = filepath.Join(baseDir, target)
		}
	}
	return aliases, nil
}

// readTsConfigChain reads tsconfig files (JSONC tolerated) up the extends
// chain and returns them base-first. Cycles through extends terminate at the
// first repeated file. An extends target that cannot be located is skipped;
// the child config still stands on its own.
func readTsConfigChain(path string, seen map[string]bool) ([]tsConfigLink, error) {
	abs, err := filepath.Abs(DenormalizePathForOS(path))
	if err != nil {
		return nil, err
	}
	if seen[abs] {
		return nil, nil
	}
	seen[abs] = true

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	var cfg tsConfigFile
	if err := json.Unmarshal(jsonc.ToJSON(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var chain []tsConfigLink
	if cfg.Extends != "" {
		if basePath, found := locateExtendedConfig(cfg.Extends, filepath.Dir(abs)); found {
			base, baseErr := readTsConfigChain(basePath, seen)
			if baseErr == nil {
				chain = append(chain, base...)
			}
		}
	}

	return append(chain, tsConfigLink{path: abs, cfg: cfg}), nil
}

func locateExtendedConfig(extends string, baseDir string) (string, bool) {
	var candidates []string
	if filepath.IsAbs(extends) || strings.HasPrefix(extends, ".") || strings.Contains(extends, "/") {
		p := extends
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		candidates = []string{p, p + ".json"}
	} else {
		// shared configs published as npm packages
		candidates = []string{
			filepath.Join(baseDir, "node_modules", extends),
			filepath.Join(baseDir, "node_modules", extends, "tsconfig.json"),
			filepath.Join(baseDir, "node_modules", extends+".json"),
		}
	}

	for _, candidate := range candidates {
		if isRegularFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}
