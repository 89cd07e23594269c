package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var (
	currentDir, _ = os.Getwd()
	rootCmd       = &cobra.Command{
		Use:   "dep-audit",
		Short: "Static import analysis and audit reporting for TypeScript projects",
		Long: `A static analysis tool for TypeScript/TSX codebases.
Computes transitive import closures, finds entry points and circular imports, and
generates the repository audit artifacts: inventory, feature matrix, API contract
checks and the staff workflow performance harness.`,
		Version: Version,
	}
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Generate CLI documentation",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := doc.GenMarkdownTree(rootCmd, "./docs")
		if err != nil {
			log.Fatal(err)
		}
		return nil
	},
}

// ---------------- shared flags ----------------

var tsconfigJsonPath string

func addSharedFlags(command *cobra.Command) {
	command.Flags().StringVar(&tsconfigJsonPath, "tsconfig-json", "",
		"Path to tsconfig.json used for alias mappings (default: <cwd>/tsconfig.json)")
}

// ---------------- closure ----------------
var (
	closureCwd      string
	closureEntries  []string
	closureMaxFiles int
	closureJSON     bool
	closureCount    bool
	closureTrace    string
)

var closureCmd = &cobra.Command{
	Use:   "closure",
	Short: "Compute the transitive import closure of one or more entry files",
	Long: `Walk static imports from the given entry files and print every local file
that is reachable, relative to the working directory and sorted. Barrel
re-exports are followed selectively: when a file is imported for specific named
bindings, only the re-export sources that can provide those bindings join the
closure.`,
	Example: "dep-audit closure -c ./app -e src/app/staff/catalog/page.tsx",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd := ResolveAbsoluteCwd(closureCwd)
		scanner, err := NewScannerForCwd(cwd, tsconfigJsonPath, nil, nil, closureMaxFiles)
		if err != nil {
			return err
		}

		prefix := NormalizePathForInternal(cwd)

		if closureTrace != "" {
			paths, err := scanner.TracePathTo(closureEntries, closureTrace)
			if err != nil {
				return err
			}
			FormatPaths(paths, prefix)
			return nil
		}

		paths, err := scanner.ClosurePaths(closureEntries)
		if err != nil {
			return err
		}

		if closureCount {
			fmt.Println(len(paths))
			return nil
		}

		relativePaths := make([]string, 0, len(paths))
		for _, path := range paths {
			relativePaths = append(relativePaths, strings.TrimPrefix(path, prefix))
		}

		if closureJSON {
			out, err := json.MarshalIndent(relativePaths, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		for _, path := range relativePaths {
			fmt.Println(path)
		}
		return nil
	},
}

// ---------------- entry-points ----------------
var (
	entryPointsCwd               string
	entryPointsCount             bool
	entryPointsDependenciesCount bool
	entryPointsExclude           []string
	entryPointsInclude           []string
)

var entryPointsCmd = &cobra.Command{
	Use:   "entry-points",
	Short: "Find all files that no other file imports",
	Long: `Scan the working directory and list the files not imported by any other
file. These are the roots of the import graph: pages, scripts and dead code.`,
	Example: "dep-audit entry-points -c ./app --exclude '**/*.test.ts'",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd := ResolveAbsoluteCwd(entryPointsCwd)
		scanner, err := NewScannerForCwd(cwd, tsconfigJsonPath, nil, nil, 0)
		if err != nil {
			return err
		}

		files := projectFiles(cwd)
		graph := BuildDependencyGraph(scanner, files)
		entryPoints := GetEntryPoints(graph, entryPointsExclude, entryPointsInclude, cwd)

		if entryPointsCount {
			fmt.Println(len(entryPoints))
			return nil
		}

		prefix := NormalizePathForInternal(cwd)
		cleanPaths := make([]string, 0, len(entryPoints))
		maxLen := 0
		for _, entryPoint := range entryPoints {
			cleanPath := strings.TrimPrefix(entryPoint, prefix)
			cleanPaths = append(cleanPaths, cleanPath)
			if len(cleanPath) > maxLen {
				maxLen = len(cleanPath)
			}
		}

		for i, cleanPath := range cleanPaths {
			if entryPointsDependenciesCount {
				closure, err := scanner.Closure([]string{entryPoints[i]})
				if err != nil {
					return err
				}
				fmt.Println(PadRight(cleanPath, ' ', maxLen+2), len(closure)-1)
			} else {
				fmt.Println(cleanPath)
			}
		}
		return nil
	},
}

// ---------------- cycles ----------------
var (
	cyclesCwd        string
	cyclesEntries    []string
	cyclesIgnoreType bool
)

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Detect circular import chains",
	Long: `Find cycles in the import graph. The process exits with the number of
cycles found, so any non-zero exit code means circular imports exist.`,
	Example: "dep-audit cycles -c ./app",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd := ResolveAbsoluteCwd(cyclesCwd)
		scanner, err := NewScannerForCwd(cwd, tsconfigJsonPath, nil, nil, 0)
		if err != nil {
			return err
		}

		var files []string
		if len(cyclesEntries) > 0 {
			files, err = scanner.ClosurePaths(cyclesEntries)
			if err != nil {
				return err
			}
		} else {
			files = projectFiles(cwd)
		}

		graph := BuildDependencyGraph(scanner, files)
		cycles := FindCircularDependencies(graph, files, cyclesIgnoreType)

		fmt.Fprint(os.Stderr, FormatCircularDependencies(cycles, NormalizePathForInternal(cwd), graph))
		os.Exit(len(cycles))
		return nil
	},
}

// ---------------- inventory ----------------
var (
	inventoryCwd    string
	inventoryConfig string
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Generate the static repo inventory report",
	Long: `Cross-check staff pages against the sidebar navigation and the API adapter
layer, count source markers and check dependency hygiene. Writes
REPO_INVENTORY.md into the configured output directory.`,
	Example: "dep-audit inventory -c ./app",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd := ResolveAbsoluteCwd(inventoryCwd)
		profiles, err := loadAuditProfiles(cwd, inventoryConfig)
		if err != nil {
			return err
		}

		for _, config := range profiles {
			profileCwd := resolveProfileCwd(cwd, config)
			scanner, err := NewScannerForCwd(profileCwd, tsconfigJsonPath, config.Aliases, config.Extensions, config.MaxFiles)
			if err != nil {
				return err
			}
			inventory, err := BuildRepoInventory(profileCwd, config, scanner)
			if err != nil {
				return err
			}
			outPath, err := WriteRepoInventory(inventory, profileCwd, config)
			if err != nil {
				return err
			}
			fmt.Printf("\nWrote %s\n", outPath)
		}
		return nil
	},
}

// ---------------- report ----------------
var (
	reportCwd    string
	reportConfig string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the audit report and feature matrix",
	Long: `Combine the endpoint probe summary, the captured payloads and the static
page-to-API analysis into REPORT.md and FEATURE_MATRIX.md.`,
	Example: "dep-audit report -c ./app",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd := ResolveAbsoluteCwd(reportCwd)
		profiles, err := loadAuditProfiles(cwd, reportConfig)
		if err != nil {
			return err
		}

		for _, config := range profiles {
			profileCwd := resolveProfileCwd(cwd, config)
			scanner, err := NewScannerForCwd(profileCwd, tsconfigJsonPath, config.Aliases, config.Extensions, config.MaxFiles)
			if err != nil {
				return err
			}
			report, err := BuildAuditReport(profileCwd, config, scanner)
			if err != nil {
				return err
			}
			reportPath, featurePath, err := WriteAuditArtifacts(report, profileCwd, config)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", featurePath)
			fmt.Printf("Wrote %s\n", reportPath)
		}
		return nil
	},
}

// ---------------- contract ----------------
var (
	contractCwd      string
	contractConfig   string
	contractSpecPath string
)

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Check captured API fixtures against the endpoint contract",
	Long: `Validate every captured endpoint payload in the fixtures directory against
the expected response shape. Any failed assertion fails the command.`,
	Example: "dep-audit contract -c ./app --spec contract.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd := ResolveAbsoluteCwd(contractCwd)
		profiles, err := loadAuditProfiles(cwd, contractConfig)
		if err != nil {
			return err
		}

		spec := DefaultContractSpec()
		if contractSpecPath != "" {
			spec, err = LoadContractSpec(contractSpecPath)
			if err != nil {
				return err
			}
		}

		var failures []string
		for _, config := range profiles {
			profileFailures, err := RunContractChecks(resolveProfileCwd(cwd, config), config, spec, IncludeAIFromEnv())
			if err != nil {
				return err
			}
			failures = append(failures, profileFailures...)
		}

		if len(failures) > 0 {
			for _, failure := range failures {
				logFailure("[contract] FAIL: %s", failure)
			}
			os.Exit(1)
		}
		logSuccess("[contract] PASS")
		return nil
	},
}

// ---------------- perf ----------------
var (
	perfBaseURL    string
	perfIterations int
	perfOut        string
)

var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Run the staff workflow latency harness",
	Long: `Drive the core staff workflows against a running instance and compare p95
latencies against the configured budgets. Writes report.json and summary.tsv
into the output directory.`,
	Example: "dep-audit perf --base-url http://localhost:3000 --iterations 10",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := PerfOptionsFromEnv()
		if perfBaseURL != "" {
			opts.BaseURL = perfBaseURL
		}
		if perfIterations > 0 {
			opts.Iterations = perfIterations
		}
		if perfOut != "" {
			opts.OutDir = perfOut
		}

		ok, err := RunPerfHarness(opts)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", filepath.Join(opts.OutDir, "report.json"))
		fmt.Printf("Wrote %s\n", filepath.Join(opts.OutDir, "summary.tsv"))

		if !ok {
			logFailure("[perf] FAIL: p95 over budget, see summary.tsv")
			os.Exit(1)
		}
		logSuccess("[perf] PASS")
		return nil
	},
}

func init() {
	// closure flags
	addSharedFlags(closureCmd)
	closureCmd.Flags().StringVarP(&closureCwd, "cwd", "c", currentDir,
		"Working directory for the command")
	closureCmd.Flags().StringSliceVarP(&closureEntries, "entry-points", "e", []string{},
		"Entry point file(s) to start analysis from")
	closureCmd.Flags().IntVar(&closureMaxFiles, "max-files", 0,
		"Cap on the number of files one closure may visit (default 600)")
	closureCmd.Flags().BoolVar(&closureJSON, "json", false,
		"Print the closure as a JSON array")
	closureCmd.Flags().BoolVarP(&closureCount, "count", "n", false,
		"Only display the count of files in the closure")
	closureCmd.Flags().StringVar(&closureTrace, "trace", "",
		"Print the first import chain leading to this file instead of the closure")
	closureCmd.MarkFlagRequired("entry-points")

	// entry-points flags
	addSharedFlags(entryPointsCmd)
	entryPointsCmd.Flags().StringVarP(&entryPointsCwd, "cwd", "c", currentDir,
		"Working directory for the command")
	entryPointsCmd.Flags().BoolVarP(&entryPointsCount, "count", "n", false,
		"Only display the number of entry points found")
	entryPointsCmd.Flags().BoolVar(&entryPointsDependenciesCount, "print-deps-count", false,
		"Show the size of the import closure for each entry point")
	entryPointsCmd.Flags().StringSliceVar(&entryPointsExclude, "exclude", []string{},
		"Exclude files matching these glob patterns from results")
	entryPointsCmd.Flags().StringSliceVar(&entryPointsInclude, "include", []string{},
		"Only include files matching these glob patterns in results")

	// cycles flags
	addSharedFlags(cyclesCmd)
	cyclesCmd.Flags().StringVarP(&cyclesCwd, "cwd", "c", currentDir,
		"Working directory for the command")
	cyclesCmd.Flags().StringSliceVarP(&cyclesEntries, "entry-points", "e", []string{},
		"Restrict the search to the closure of these entry point file(s)")
	cyclesCmd.Flags().BoolVarP(&cyclesIgnoreType, "ignore-type-imports", "t", false,
		"Exclude type imports from the analysis")

	// inventory flags
	addSharedFlags(inventoryCmd)
	inventoryCmd.Flags().StringVarP(&inventoryCwd, "cwd", "c", currentDir,
		"Working directory for the command")
	inventoryCmd.Flags().StringVar(&inventoryConfig, "config", "",
		"Path to dep-audit.config.json (default: <cwd>/dep-audit.config.json)")

	// report flags
	addSharedFlags(reportCmd)
	reportCmd.Flags().StringVarP(&reportCwd, "cwd", "c", currentDir,
		"Working directory for the command")
	reportCmd.Flags().StringVar(&reportConfig, "config", "",
		"Path to dep-audit.config.json (default: <cwd>/dep-audit.config.json)")

	// contract flags
	contractCmd.Flags().StringVarP(&contractCwd, "cwd", "c", currentDir,
		"Working directory for the command")
	contractCmd.Flags().StringVar(&contractConfig, "config", "",
		"Path to dep-audit.config.json (default: <cwd>/dep-audit.config.json)")
	contractCmd.Flags().StringVar(&contractSpecPath, "spec", "",
		"Path to a YAML contract spec (default: built-in endpoint table)")

	// perf flags
	perfCmd.Flags().StringVar(&perfBaseURL, "base-url", "",
		"Base URL of the running instance (default: $BASE_URL)")
	perfCmd.Flags().IntVar(&perfIterations, "iterations", 0,
		"Number of timed iterations per workflow (default: $ITERATIONS)")
	perfCmd.Flags().StringVar(&perfOut, "out", "",
		"Directory for report.json and summary.tsv (default: $OUT_DIR)")

	// add commands
	rootCmd.AddCommand(closureCmd, entryPointsCmd, cyclesCmd, inventoryCmd, reportCmd, contractCmd, perfCmd, docsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}

// NewScannerForCwd builds the scanner the commands share. Alias mappings come
// from the explicit config when present, otherwise from the tsconfig.json
// paths section, otherwise the resolver default applies. A broken tsconfig is
// only a warning; scanning proceeds without aliases rather than failing the
// whole run.
func NewScannerForCwd(cwd string, tsconfigJson string, aliases map[string]string, extensions []string, maxFiles int) (*Scanner, error) {
	if aliases == nil {
		tsconfigPath := tsconfigJson
		if tsconfigPath == "" {
			tsconfigPath = filepath.Join(cwd, "tsconfig.json")
		}
		if isRegularFile(tsconfigPath) {
			loaded, err := LoadTsConfigAliases(tsconfigPath)
			if err != nil {
				logWarning("could not read alias mappings from %s: %v", tsconfigPath, err)
			} else {
				aliases = loaded
			}
		}
	}
	return NewScanner(cwd, aliases, extensions, maxFiles)
}

func projectFiles(cwd string) []string {
	gitIgnoreExcludePatterns := FindAndProcessGitIgnoreFilesUpToRepoRoot(cwd)
	files := GetFiles(cwd, []string{}, gitIgnoreExcludePatterns)
	slices.Sort(files)
	return files
}

func loadAuditProfiles(cwd string, configPath string) ([]AuditConfig, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(cwd, configFileName)
		if !isRegularFile(path) {
			// No config file: audit with the default layout.
			config := AuditConfig{}
			config.ApplyDefaults()
			return []AuditConfig{config}, nil
		}
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	return LoadConfig(path)
}

func resolveProfileCwd(cwd string, config AuditConfig) string {
	if config.Path == "" || config.Path == "." {
		return cwd
	}
	return ResolveAbsoluteCwd(filepath.Join(cwd, config.Path))
}
