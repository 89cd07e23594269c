package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/jsonc"
)

var (
	hrefRe     = regexp.MustCompile(`href:\s*"([^"]+)"`)
	apiUsageRe = regexp.MustCompile(`/api/evergreen/([a-z0-9-]+)`)
)

func markerRegexp(markers []string) *regexp.Regexp {
	quoted := make([]string, 0, len(markers))
	for _, marker := range markers {
		quoted = append(quoted, regexp.QuoteMeta(marker))
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}

// StaffRoute pairs a URL route with the page file that renders it.
type StaffRoute struct {
	Route string
	Page  string // internal-normalized absolute path
}

// RepoInventory is the static repo audit: route coverage, navigation health,
// adapter usage and source hygiene. Nothing here needs a running server.
type RepoInventory struct {
	SidebarHrefs     []string
	StaffRoutes      []StaffRoute
	MissingNavPages  []StaffRoute // Route is the dangling href, Page the expected file
	UnlinkedRoutes   []string
	UnconnectedPages []StaffRoute
	AdapterModules   []string
	UsedModules      []string
	UnusedModules    []string
	MarkerHits       []StaffRoute
	Hygiene          []string
	GeneratedAt      time.Time
}

// RouteFromPage maps <staffDir>/checkout/page.tsx to "/staff/checkout" and
// <staffDir>/page.tsx to "/staff".
func RouteFromPage(staffDir, pagePath string) string {
	rel, err := filepath.Rel(DenormalizePathForOS(staffDir), DenormalizePathForOS(pagePath))
	if err != nil {
		return ""
	}
	rel = filepath.ToSlash(rel)
	if rel == "page.tsx" {
		return "/staff"
	}
	return "/staff/" + strings.TrimSuffix(rel, "/page.tsx")
}

// PageForRoute is the inverse mapping: the page file a staff route should be
// rendered by.
func PageForRoute(staffDir, route string) (string, error) {
	route = strings.TrimSpace(route)
	if !strings.HasPrefix(route, "/staff") {
		return "", fmt.Errorf("not a staff route: %s", route)
	}
	suffix := strings.TrimLeft(route[len("/staff"):], "/")
	if suffix == "" {
		return NormalizePathForInternal(filepath.Join(staffDir, "page.tsx")), nil
	}
	return NormalizePathForInternal(filepath.Join(staffDir, suffix, "page.tsx")), nil
}

// BuildRepoInventory assembles the full inventory. Adapter usage is computed
// over each page's dependency closure, so an adapter referenced only from a
// shared hook or lib module still counts as used by the pages that pull that
// module in.
func BuildRepoInventory(cwd string, config AuditConfig, scanner *Scanner) (*RepoInventory, error) {
	inventory := &RepoInventory{GeneratedAt: time.Now().UTC()}

	staffDir := filepath.Join(cwd, config.StaffDir)
	apiDir := filepath.Join(cwd, config.APIDir)
	sidebarFile := filepath.Join(cwd, config.SidebarFile)

	pages := []string{}
	for _, filePath := range GetFiles(staffDir, []string{}, FindAndProcessGitIgnoreFilesUpToRepoRoot(StandardiseDirPath(cwd))) {
		if strings.HasSuffix(filePath, "/page.tsx") || filepath.Base(DenormalizePathForOS(filePath)) == "page.tsx" {
			pages = append(pages, filePath)
		}
	}
	slices.Sort(pages)

	for _, page := range pages {
		inventory.StaffRoutes = append(inventory.StaffRoutes, StaffRoute{Route: RouteFromPage(staffDir, page), Page: page})
	}

	// Sidebar hrefs
	hrefSet := map[string]struct{}{}
	if sidebarText := ReadFileText(NormalizePathForInternal(sidebarFile)); sidebarText != "" {
		for _, m := range hrefRe.FindAllStringSubmatch(sidebarText, -1) {
			if strings.HasPrefix(m[1], "/staff") {
				hrefSet[m[1]] = struct{}{}
			}
		}
	}
	for href := range hrefSet {
		inventory.SidebarHrefs = append(inventory.SidebarHrefs, href)
	}
	slices.Sort(inventory.SidebarHrefs)

	// Every sidebar link must land on a page file
	for _, href := range inventory.SidebarHrefs {
		page, err := PageForRoute(staffDir, href)
		if err != nil {
			continue
		}
		if !isRegularFile(DenormalizePathForOS(page)) {
			inventory.MissingNavPages = append(inventory.MissingNavPages, StaffRoute{Route: href, Page: page})
		}
	}

	// Routes that exist but are not linked anywhere
	for _, sr := range inventory.StaffRoutes {
		if _, linked := hrefSet[sr.Route]; !linked {
			inventory.UnlinkedRoutes = append(inventory.UnlinkedRoutes, sr.Route)
		}
	}
	slices.Sort(inventory.UnlinkedRoutes)

	// Adapter modules on disk
	if entries, err := os.ReadDir(apiDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				inventory.AdapterModules = append(inventory.AdapterModules, entry.Name())
			}
		}
	}
	slices.Sort(inventory.AdapterModules)

	// Adapter usage per page, over the page's whole import closure
	usage := AdapterUsage(scanner, inventory.StaffRoutes)
	usedModules := map[string]struct{}{}
	for _, sr := range inventory.StaffRoutes {
		pageModules := usage[sr.Page]
		for _, moduleName := range pageModules {
			usedModules[moduleName] = struct{}{}
		}
		if len(pageModules) == 0 {
			inventory.UnconnectedPages = append(inventory.UnconnectedPages, sr)
		}
	}
	for moduleName := range usedModules {
		inventory.UsedModules = append(inventory.UsedModules, moduleName)
	}
	slices.Sort(inventory.UsedModules)

	for _, moduleName := range inventory.AdapterModules {
		if _, used := usedModules[moduleName]; !used {
			inventory.UnusedModules = append(inventory.UnusedModules, moduleName)
		}
	}

	inventory.MarkerHits = scanForMarkers(inventory.StaffRoutes, markerRegexp(config.Markers))
	inventory.Hygiene = CheckDependencyHygiene(cwd, config.EnginesFloor)

	return inventory, nil
}

// AdapterUsage maps each staff page to the sorted adapter modules referenced
// anywhere in the page's import closure. Pages share most of their closures,
// so the scanner cache carries nearly all of the cost after the first page.
func AdapterUsage(scanner *Scanner, routes []StaffRoute) map[string][]string {
	usage := make(map[string][]string, len(routes))
	for _, sr := range routes {
		pageModules := map[string]struct{}{}
		closure, err := scanner.ClosurePaths([]string{sr.Page})
		if err != nil {
			logWarning("skipping closure of %s: %v", sr.Page, err)
			closure = []string{sr.Page}
		}
		for _, filePath := range closure {
			for _, m := range apiUsageRe.FindAllStringSubmatch(scanner.Cache.TextOf(filePath), -1) {
				pageModules[m[1]] = struct{}{}
			}
		}
		moduleNames := make([]string, 0, len(pageModules))
		for moduleName := range pageModules {
			moduleNames = append(moduleNames, moduleName)
		}
		slices.Sort(moduleNames)
		usage[sr.Page] = moduleNames
	}
	return usage
}

// scanForMarkers greps the page files themselves (not their closures) for
// leftover work markers. Pages are independent, so this fans out.
func scanForMarkers(routes []StaffRoute, markerRe *regexp.Regexp) []StaffRoute {
	var hits []StaffRoute

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, runtime.GOMAXPROCS(0)*2)

	for _, sr := range routes {
		wg.Add(1)
		sem <- struct{}{}
		go func(sr StaffRoute) {
			defer wg.Done()
			defer func() { <-sem }()

			if markerRe.MatchString(ReadFileText(sr.Page)) {
				mu.Lock()
				hits = append(hits, sr)
				mu.Unlock()
			}
		}(sr)
	}
	wg.Wait()

	slices.SortFunc(hits, func(a, b StaffRoute) int {
		return strings.Compare(a.Page, b.Page)
	})
	return hits
}

type packageManifest struct {
	Engines         map[string]string `json:"engines"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// CheckDependencyHygiene inspects package.json: the Node engines floor plus
// the shape of every declared version range. Findings are human-readable
// lines for the inventory report; an empty result means all clear.
func CheckDependencyHygiene(cwd string, enginesFloor string) []string {
	var findings []string

	content, err := os.ReadFile(filepath.Join(cwd, "package.json"))
	if err != nil {
		return []string{"package.json not found"}
	}

	var manifest packageManifest
	if err := json.Unmarshal(jsonc.ToJSON(content), &manifest); err != nil {
		return []string{fmt.Sprintf("package.json is not parsable: %v", err)}
	}

	floor, floorErr := semver.NewConstraint(enginesFloor)

	enginesNode := manifest.Engines["node"]
	if enginesNode == "" {
		findings = append(findings, "engines.node is not declared")
	} else if nodeRange, err := semver.NewConstraint(enginesNode); err != nil {
		findings = append(findings, fmt.Sprintf("engines.node %q is not a valid range: %v", enginesNode, err))
	} else if floorErr == nil {
		// Probe whether the declared range still admits a major that the
		// floor rules out.
		for major := uint64(4); major <= 40; major++ {
			probe := semver.New(major, 0, 0, "", "")
			if nodeRange.Check(probe) && !floor.Check(probe) {
				findings = append(findings, fmt.Sprintf("engines.node %q admits Node %d, below the required %s", enginesNode, major, enginesFloor))
				break
			}
		}
	}

	checkRanges := func(kind string, deps map[string]string) {
		for _, kv := range GetSortedMap(deps) {
			name, rangeStr := kv.k, kv.v
			if rangeStr == "" || rangeStr == "*" || rangeStr == "latest" {
				findings = append(findings, fmt.Sprintf("%s %s uses floating range %q", kind, name, rangeStr))
				continue
			}
			if strings.Contains(rangeStr, ":") {
				findings = append(findings, fmt.Sprintf("%s %s uses non-registry specifier %q", kind, name, rangeStr))
				continue
			}
			if _, err := semver.NewConstraint(rangeStr); err != nil {
				findings = append(findings, fmt.Sprintf("%s %s has unparsable range %q", kind, name, rangeStr))
			}
		}
	}
	checkRanges("dependency", manifest.Dependencies)
	checkRanges("devDependency", manifest.DevDependencies)

	return findings
}

// FormatRepoInventory renders the inventory as the REPO_INVENTORY.md
// document. pathPrefix (the cwd) is stripped from file paths.
func FormatRepoInventory(inventory *RepoInventory, pathPrefix string) string {
	rel := func(p string) string {
		return strings.TrimPrefix(p, pathPrefix)
	}

	var lines []string
	lines = append(lines, "# StacksOS Repo Inventory (Static)\n")
	lines = append(lines, fmt.Sprintf("Generated: %s\n", inventory.GeneratedAt.Format("2006-01-02T15:04:05.000000")+"Z"))
	lines = append(lines, "## Sidebar Route Coverage\n")
	lines = append(lines, fmt.Sprintf("- Sidebar routes found: %d", len(inventory.SidebarHrefs)))
	lines = append(lines, fmt.Sprintf("- Staff pages found: %d", len(inventory.StaffRoutes)))
	lines = append(lines, "")

	if len(inventory.MissingNavPages) > 0 {
		lines = append(lines, "### Missing page files for sidebar links (must fix or hide behind feature flags)\n")
		for _, sr := range inventory.MissingNavPages {
			lines = append(lines, fmt.Sprintf("- `%s` -> `%s` (missing)", sr.Route, rel(sr.Page)))
		}
		lines = append(lines, "")
	} else {
		lines = append(lines, "- Sidebar links: OK (every sidebar href has a page.tsx)\n")
	}

	lines = append(lines, "## Staff Pages Not Linked In Sidebar\n")
	lines = append(lines, "Note: some unlinked pages are expected (detail pages), but they should be intentional.\n")
	if len(inventory.UnlinkedRoutes) > 0 {
		for _, route := range inventory.UnlinkedRoutes {
			lines = append(lines, fmt.Sprintf("- `%s`", route))
		}
		lines = append(lines, "")
	} else {
		lines = append(lines, "- None\n")
	}

	lines = append(lines, "## Pages With No Adapter API Usage\n")
	lines = append(lines, "These pages do not reach `/api/evergreen/*` anywhere in their import closure. They are likely static or incomplete.\n")
	if len(inventory.UnconnectedPages) > 0 {
		for _, sr := range inventory.UnconnectedPages {
			lines = append(lines, fmt.Sprintf("- `%s` (`%s`)", sr.Route, rel(sr.Page)))
		}
		lines = append(lines, "")
	} else {
		lines = append(lines, "- None\n")
	}

	lines = append(lines, "## Adapter Module Usage\n")
	lines = append(lines, fmt.Sprintf("- Adapter modules found: %d", len(inventory.AdapterModules)))
	lines = append(lines, fmt.Sprintf("- Adapter modules referenced by staff pages: %d", len(inventory.UsedModules)))
	lines = append(lines, "")

	if len(inventory.UnusedModules) > 0 {
		lines = append(lines, "### Adapter modules with zero staff page references\n")
		lines = append(lines, "These may still be used indirectly, but should be reviewed.\n")
		for _, moduleName := range inventory.UnusedModules {
			lines = append(lines, fmt.Sprintf("- `%s`", moduleName))
		}
		lines = append(lines, "")
	} else {
		lines = append(lines, "- All adapter modules are referenced by at least one staff page.\n")
	}

	lines = append(lines, "## TODO/FIXME Markers\n")
	if len(inventory.MarkerHits) > 0 {
		for _, sr := range inventory.MarkerHits {
			lines = append(lines, fmt.Sprintf("- `%s` (`%s`)", sr.Route, rel(sr.Page)))
		}
		lines = append(lines, "")
	} else {
		lines = append(lines, "- None\n")
	}

	lines = append(lines, "## Dependency Hygiene\n")
	if len(inventory.Hygiene) > 0 {
		for _, finding := range inventory.Hygiene {
			lines = append(lines, fmt.Sprintf("- %s", finding))
		}
		lines = append(lines, "")
	} else {
		lines = append(lines, "- OK\n")
	}

	return strings.Join(lines, "\n") + "\n"
}

// WriteRepoInventory renders the report into <out dir>/REPO_INVENTORY.md and
// prints a short aligned summary to stdout.
func WriteRepoInventory(inventory *RepoInventory, cwd string, config AuditConfig) (string, error) {
	outPath := filepath.Join(cwd, config.OutDir, "REPO_INVENTORY.md")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(outPath, []byte(FormatRepoInventory(inventory, StandardiseDirPath(cwd))), 0o644); err != nil {
		return "", err
	}

	counts := []struct {
		label string
		value int
	}{
		{"Staff pages", len(inventory.StaffRoutes)},
		{"Sidebar routes", len(inventory.SidebarHrefs)},
		{"Missing nav pages", len(inventory.MissingNavPages)},
		{"Pages without adapter usage", len(inventory.UnconnectedPages)},
		{"Unused adapter modules", len(inventory.UnusedModules)},
		{"Marker hits", len(inventory.MarkerHits)},
		{"Hygiene findings", len(inventory.Hygiene)},
	}
	maxLabelLen := 0
	for _, c := range counts {
		if len(c.label) > maxLabelLen {
			maxLabelLen = len(c.label)
		}
	}
	for _, c := range counts {
		fmt.Println(PadRight(c.label, ' ', maxLabelLen+2), c.value)
	}

	return outPath, nil
}
