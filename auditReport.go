package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

var callOsrfRe = regexp.MustCompile(`callOpenSRF\(\s*"([^"]+)"`)

// SummaryRow is one line of the endpoint probe summary produced by the API
// audit run: endpoint name, HTTP status as captured, probed URL.
type SummaryRow struct {
	Name   string
	Status string
	URL    string
}

// LoadSummary reads the tab-separated probe summary. A missing or empty file
// yields no rows; the report then simply records zero endpoints checked.
func LoadSummary(tsvPath string) []SummaryRow {
	content, err := os.ReadFile(tsvPath)
	if err != nil {
		return nil
	}

	var rows []SummaryRow
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) == 0 {
		return rows
	}

	// First line is the header
	for _, line := range lines[1:] {
		parts := strings.Split(line, "\t")
		if len(parts) >= 3 {
			rows = append(rows, SummaryRow{Name: parts[0], Status: parts[1], URL: parts[2]})
		}
	}
	return rows
}

// Finding is a named observation extracted from a captured endpoint payload.
type Finding struct {
	Name    string
	Message string
}

// AuditReport aggregates endpoint health, empty-data signals and coverage
// gaps between the audit surface and the repo tree.
type AuditReport struct {
	Summary        []SummaryRow
	OKHTTP         []SummaryRow
	NonOKHTTP      []SummaryRow
	OKFalse        []Finding
	EmptySignals   []Finding
	MissingFromAPI []string     // adapter modules never probed
	MissingSidebar []StaffRoute // sidebar hrefs with no page file
	Services       []string     // OpenSRF services referenced by adapter routes
	GeneratedAt    time.Time

	PageRows   []FeatureRow
	APIModules []string
	Unused     []string
}

// FeatureRow is one staff page in the feature matrix.
type FeatureRow struct {
	Route string
	Page  string // cwd-relative
	APIs  []string
}

// inspectFixture pulls the health signals out of one captured payload.
// Malformed payloads report nothing; a broken fixture shows up as a non-200
// or missing row elsewhere.
func inspectFixture(name string, content []byte) (okFalse *Finding, empties []Finding) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, nil
	}

	if okRaw, ok := raw["ok"]; ok && strings.TrimSpace(string(okRaw)) == "false" {
		var errVal interface{}
		json.Unmarshal(raw["error"], &errVal)
		okFalse = &Finding{Name: name, Message: fmt.Sprintf("%v", errVal)}
	}

	if msgRaw, ok := raw["message"]; ok {
		var msg string
		if err := json.Unmarshal(msgRaw, &msg); err == nil {
			lower := strings.ToLower(msg)
			if strings.Contains(lower, "not configured") ||
				(strings.Contains(lower, "no") && (strings.Contains(lower, "configured") || strings.Contains(lower, "found"))) {
				empties = append(empties, Finding{Name: name, Message: msg})
			}
		}
	}

	for _, kv := range GetSortedMap(raw) {
		var arr []interface{}
		if err := json.Unmarshal(kv.v, &arr); err == nil && arr != nil && len(arr) == 0 {
			empties = append(empties, Finding{Name: name, Message: fmt.Sprintf("%s is empty", kv.k)})
		}
	}

	return okFalse, empties
}

// listAdapterRoutes returns the route.ts file of every adapter module
// directory, sorted by module name.
func listAdapterRoutes(apiDir string) []string {
	var routes []string
	entries, err := os.ReadDir(apiDir)
	if err != nil {
		return routes
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		routeFile := filepath.Join(apiDir, entry.Name(), "route.ts")
		if isRegularFile(routeFile) {
			routes = append(routes, NormalizePathForInternal(routeFile))
		}
	}
	slices.Sort(routes)
	return routes
}

// BuildAuditReport combines the probe summary, captured payloads and the
// repo tree into one report. The feature matrix rows are computed over each
// page's import closure through the shared scanner.
func BuildAuditReport(cwd string, config AuditConfig, scanner *Scanner) (*AuditReport, error) {
	report := &AuditReport{GeneratedAt: time.Now().UTC()}

	staffDir := filepath.Join(cwd, config.StaffDir)
	apiDir := filepath.Join(cwd, config.APIDir)
	sidebarFile := filepath.Join(cwd, config.SidebarFile)
	fixturesDir := filepath.Join(cwd, config.FixturesDir)

	report.Summary = LoadSummary(filepath.Join(cwd, config.SummaryTSV))

	auditedModules := map[string]struct{}{}
	for _, row := range report.Summary {
		if row.Status == "200" {
			report.OKHTTP = append(report.OKHTTP, row)
		} else {
			report.NonOKHTTP = append(report.NonOKHTTP, row)
		}
		if m := apiUsageRe.FindStringSubmatch(row.URL); m != nil {
			auditedModules[m[1]] = struct{}{}
		}

		content, err := os.ReadFile(filepath.Join(fixturesDir, row.Name+".json"))
		if err != nil {
			continue
		}
		okFalse, empties := inspectFixture(row.Name, content)
		if okFalse != nil {
			report.OKFalse = append(report.OKFalse, *okFalse)
		}
		report.EmptySignals = append(report.EmptySignals, empties...)
	}

	// Staff pages and their adapter usage
	var routes []StaffRoute
	for _, filePath := range GetFiles(staffDir, []string{}, FindAndProcessGitIgnoreFilesUpToRepoRoot(StandardiseDirPath(cwd))) {
		if strings.HasSuffix(filePath, "/page.tsx") || filepath.Base(DenormalizePathForOS(filePath)) == "page.tsx" {
			routes = append(routes, StaffRoute{Route: RouteFromPage(staffDir, filePath), Page: filePath})
		}
	}
	slices.SortFunc(routes, func(a, b StaffRoute) int {
		return strings.Compare(a.Page, b.Page)
	})

	usage := AdapterUsage(scanner, routes)
	usedModules := map[string]struct{}{}
	for _, sr := range routes {
		apis := usage[sr.Page]
		for _, moduleName := range apis {
			usedModules[moduleName] = struct{}{}
		}
		report.PageRows = append(report.PageRows, FeatureRow{
			Route: sr.Route,
			Page:  strings.TrimPrefix(sr.Page, StandardiseDirPath(cwd)),
			APIs:  apis,
		})
	}

	// Adapter module coverage vs audit surface
	adapterRoutes := listAdapterRoutes(apiDir)
	for _, routeFile := range adapterRoutes {
		report.APIModules = append(report.APIModules, filepath.Base(filepath.Dir(DenormalizePathForOS(routeFile))))
	}
	slices.Sort(report.APIModules)

	for _, moduleName := range report.APIModules {
		if _, used := usedModules[moduleName]; !used {
			report.Unused = append(report.Unused, moduleName)
		}
		if _, audited := auditedModules[moduleName]; !audited {
			report.MissingFromAPI = append(report.MissingFromAPI, moduleName)
		}
	}

	// Sidebar coverage vs page files
	hrefSet := map[string]struct{}{}
	if sidebarText := ReadFileText(NormalizePathForInternal(sidebarFile)); sidebarText != "" {
		for _, m := range hrefRe.FindAllStringSubmatch(sidebarText, -1) {
			if strings.HasPrefix(m[1], "/staff") {
				hrefSet[m[1]] = struct{}{}
			}
		}
	}
	hrefs := make([]string, 0, len(hrefSet))
	for href := range hrefSet {
		hrefs = append(hrefs, href)
	}
	slices.Sort(hrefs)
	for _, href := range hrefs {
		page, err := PageForRoute(staffDir, href)
		if err != nil {
			continue
		}
		if !isRegularFile(DenormalizePathForOS(page)) {
			report.MissingSidebar = append(report.MissingSidebar, StaffRoute{Route: href, Page: strings.TrimPrefix(page, StandardiseDirPath(cwd))})
		}
	}

	// OpenSRF services referenced by the adapter routes
	serviceSet := map[string]struct{}{}
	for _, routeFile := range adapterRoutes {
		for _, m := range callOsrfRe.FindAllStringSubmatch(scanner.Cache.TextOf(routeFile), -1) {
			serviceSet[m[1]] = struct{}{}
		}
	}
	for service := range serviceSet {
		report.Services = append(report.Services, service)
	}
	slices.Sort(report.Services)

	return report, nil
}

// FormatFeatureMatrix renders FEATURE_MATRIX.md.
func FormatFeatureMatrix(report *AuditReport) string {
	var b strings.Builder

	b.WriteString("# StacksOS Feature -> API Matrix\n\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02T15:04:05.000000")+"Z"))
	b.WriteString("## API Routes (adapter modules)\n\n")
	for _, moduleName := range report.APIModules {
		b.WriteString(fmt.Sprintf("- %s\n", moduleName))
	}

	b.WriteString("\n## Staff Pages\n\n")
	b.WriteString("| Route | Page | API usage |\n| --- | --- | --- |\n")
	for _, row := range report.PageRows {
		apis := "-"
		if len(row.APIs) > 0 {
			apis = strings.Join(row.APIs, ", ")
		}
		b.WriteString(fmt.Sprintf("| `%s` | `%s` | %s |\n", row.Route, row.Page, apis))
	}

	b.WriteString("\n## Unconnected Pages\n\n")
	unconnected := false
	for _, row := range report.PageRows {
		if len(row.APIs) == 0 {
			b.WriteString(fmt.Sprintf("- `%s` (`%s`)\n", row.Route, row.Page))
			unconnected = true
		}
	}
	if !unconnected {
		b.WriteString("- None\n")
	}

	b.WriteString("\n## Unused Adapter Modules\n\n")
	if len(report.Unused) > 0 {
		for _, moduleName := range report.Unused {
			b.WriteString(fmt.Sprintf("- `%s`\n", moduleName))
		}
	} else {
		b.WriteString("- None\n")
	}

	return b.String()
}

// FormatAuditReport renders REPORT.md. artifact paths are printed as given.
func FormatAuditReport(report *AuditReport, summaryTSV, fixturesDir, featureMD, inventoryMD string) string {
	var b strings.Builder

	b.WriteString("# StacksOS Audit Report\n\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02T15:04:05.000000")+"Z"))

	b.WriteString("## API Status\n\n")
	b.WriteString(fmt.Sprintf("- Total endpoints checked: %d\n", len(report.Summary)))
	b.WriteString(fmt.Sprintf("- OK (HTTP 200): %d\n", len(report.OKHTTP)))
	b.WriteString(fmt.Sprintf("- Non-200: %d\n", len(report.NonOKHTTP)))
	b.WriteString(fmt.Sprintf("- ok=false responses: %d\n\n", len(report.OKFalse)))

	if len(report.NonOKHTTP) > 0 {
		b.WriteString("### Non-200 endpoints\n\n")
		for _, row := range report.NonOKHTTP {
			b.WriteString(fmt.Sprintf("- %s (%s)\n", row.Name, row.Status))
		}
		b.WriteString("\n")
	}
	if len(report.OKFalse) > 0 {
		b.WriteString("### ok=false responses\n\n")
		for _, finding := range report.OKFalse {
			b.WriteString(fmt.Sprintf("- %s: %s\n", finding.Name, finding.Message))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Configuration/Empty-Data Signals\n\n")
	if len(report.EmptySignals) > 0 {
		for _, finding := range report.EmptySignals {
			b.WriteString(fmt.Sprintf("- %s: %s\n", finding.Name, finding.Message))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("- None detected\n\n")
	}

	b.WriteString("## Audit Coverage\n\n")
	if len(report.MissingFromAPI) > 0 {
		b.WriteString("### Adapter modules not exercised by API audit\n\n")
		for _, moduleName := range report.MissingFromAPI {
			b.WriteString(fmt.Sprintf("- `%s`\n", moduleName))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("- API audit touches every adapter module at least once.\n\n")
	}

	if len(report.MissingSidebar) > 0 {
		b.WriteString("### Sidebar links missing page files\n\n")
		for _, sr := range report.MissingSidebar {
			b.WriteString(fmt.Sprintf("- `%s` -> `%s`\n", sr.Route, sr.Page))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("- Sidebar link -> page.tsx coverage: OK\n\n")
	}

	b.WriteString("## OpenSRF Services in Use\n\n")
	for _, service := range report.Services {
		b.WriteString(fmt.Sprintf("- %s\n", service))
	}
	b.WriteString("\n")

	b.WriteString("## Artifacts\n\n")
	b.WriteString(fmt.Sprintf("- Summary TSV: `%s`\n", summaryTSV))
	b.WriteString(fmt.Sprintf("- Raw responses: `%s`\n", fixturesDir))
	b.WriteString(fmt.Sprintf("- Feature Matrix: `%s`\n", featureMD))
	b.WriteString(fmt.Sprintf("- Repo Inventory: `%s`\n", inventoryMD))

	return b.String()
}

// WriteAuditArtifacts writes REPORT.md and FEATURE_MATRIX.md under the
// configured out dir and returns their paths.
func WriteAuditArtifacts(report *AuditReport, cwd string, config AuditConfig) (string, string, error) {
	outDir := filepath.Join(cwd, config.OutDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", err
	}

	featurePath := filepath.Join(outDir, "FEATURE_MATRIX.md")
	reportPath := filepath.Join(outDir, "REPORT.md")

	if err := os.WriteFile(featurePath, []byte(FormatFeatureMatrix(report)), 0o644); err != nil {
		return "", "", err
	}

	reportText := FormatAuditReport(
		report,
		filepath.Join(cwd, config.SummaryTSV),
		filepath.Join(cwd, config.FixturesDir),
		featurePath,
		filepath.Join(outDir, "REPO_INVENTORY.md"),
	)
	if err := os.WriteFile(reportPath, []byte(reportText), 0o644); err != nil {
		return "", "", err
	}

	return reportPath, featurePath, nil
}
