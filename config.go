package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// AuditConfig is one audit profile. A config file may hold a single profile
// or an array of them, one per sub-project in a monorepo.
type AuditConfig struct {
	Path string `json:"path,omitempty"` // Working directory this profile applies to (default: ".")

	// Closure scanning
	Aliases    map[string]string `json:"aliases,omitempty"`    // Alias prefix -> directory, overrides tsconfig.json paths
	Extensions []string          `json:"extensions,omitempty"` // Resolution extension probe order
	MaxFiles   int               `json:"max_files,omitempty"`  // Closure visit cap

	// Entry point detection
	EntryPointsInclude []string `json:"entry_points_include,omitempty"`
	EntryPointsExclude []string `json:"entry_points_exclude,omitempty"`

	// Inventory
	StaffDir     string   `json:"staff_dir,omitempty"`     // Staff route tree, scanned for page.tsx files
	APIDir       string   `json:"api_dir,omitempty"`       // API proxy route tree, scanned for route.ts files
	SidebarFile  string   `json:"sidebar_file,omitempty"`  // Navigation source holding href entries
	Markers      []string `json:"markers,omitempty"`       // Source markers to count
	EnginesFloor string   `json:"engines_floor,omitempty"` // Minimum acceptable engines.node constraint

	// Report
	SummaryTSV  string `json:"summary_tsv,omitempty"`  // Endpoint probe summary produced by the API audit run
	FixturesDir string `json:"fixtures_dir,omitempty"` // Captured endpoint payloads, one JSON file per endpoint
	OutDir      string `json:"out_dir,omitempty"`      // Where generated reports land
}

var configFileName = "dep-audit.config.json"

// Layout defaults match the repository this tool audits. Everything is
// overridable per profile.
const (
	defaultStaffDir     = "src/app/staff"
	defaultAPIDir       = "src/app/api/evergreen"
	defaultSidebarFile  = "src/components/layout/sidebar.tsx"
	defaultSummaryTSV   = "audit/api/summary.tsv"
	defaultFixturesDir  = "audit/api"
	defaultOutDir       = "audit"
	defaultEnginesFloor = ">=18.0.0"
)

var defaultMarkers = []string{"TODO", "FIXME", "XXX"}

// ApplyDefaults fills the zero-valued fields with the standard repo layout.
func (c *AuditConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "."
	}
	if c.StaffDir == "" {
		c.StaffDir = defaultStaffDir
	}
	if c.APIDir == "" {
		c.APIDir = defaultAPIDir
	}
	if c.SidebarFile == "" {
		c.SidebarFile = defaultSidebarFile
	}
	if len(c.Markers) == 0 {
		c.Markers = defaultMarkers
	}
	if c.EnginesFloor == "" {
		c.EnginesFloor = defaultEnginesFloor
	}
	if c.SummaryTSV == "" {
		c.SummaryTSV = defaultSummaryTSV
	}
	if c.FixturesDir == "" {
		c.FixturesDir = defaultFixturesDir
	}
	if c.OutDir == "" {
		c.OutDir = defaultOutDir
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultMaxFiles
	}
}

// LoadConfig loads the audit configuration from the specified path.
// configPath can be a specific file path or a directory containing
// dep-audit.config.json. Returns a slice of AuditConfig, allowing multiple
// profiles in one file (array of objects).
func LoadConfig(configPath string) ([]AuditConfig, error) {
	fileInfo, err := os.Stat(configPath)
	if err != nil {
		return nil, err
	}

	actualPath := configPath
	if fileInfo.IsDir() {
		actualPath = filepath.Join(configPath, configFileName)
	}

	content, err := os.ReadFile(actualPath)
	if err != nil {
		return nil, err
	}

	// Try to unmarshal as a list first
	var configs []AuditConfig
	if err := json.Unmarshal(jsonc.ToJSON(content), &configs); err != nil {
		// If that fails, maybe it's a single object (backward compatibility or user error)?
		// Let's try single object
		var singleConfig AuditConfig
		if err2 := json.Unmarshal(jsonc.ToJSON(content), &singleConfig); err2 == nil {
			configs = []AuditConfig{singleConfig}
		} else {
			// If both fail, return original error
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	for i := range configs {
		config := &configs[i]
		for j, p := range config.EntryPointsInclude {
			if err := validatePattern(p); err != nil {
				return nil, fmt.Errorf("config[%d].entry_points_include[%d]: %w", i, j, err)
			}
		}
		for j, p := range config.EntryPointsExclude {
			if err := validatePattern(p); err != nil {
				return nil, fmt.Errorf("config[%d].entry_points_exclude[%d]: %w", i, j, err)
			}
		}
		config.ApplyDefaults()
	}

	return configs, nil
}

func validatePattern(pattern string) error {
	if len(pattern) >= 2 && pattern[0] == '.' && (pattern[1] == '/' || pattern[1] == '\\') {
		return fmt.Errorf("pattern '%s' starts with './' or '.\\', which is not allowed. Use paths that starts with file or directory name", pattern)
	}
	if len(pattern) >= 3 && pattern[0] == '.' && pattern[1] == '.' && (pattern[2] == '/' || pattern[2] == '\\') {
		return fmt.Errorf("pattern '%s' starts with '../' or '..\\', which is not allowed. Use paths that starts with file or directory name", pattern)
	}
	return nil
}
