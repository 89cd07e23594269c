package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PerfBudgets are p95 ceilings in milliseconds, keyed like the report.
type PerfBudgets map[string]int

// PerfMetric summarizes one latency series.
type PerfMetric struct {
	Samples int     `json:"samples"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// PerfReport is what lands in report.json.
type PerfReport struct {
	GeneratedAt string                `json:"generated_at"`
	BaseURL     string                `json:"base_url"`
	Iterations  int                   `json:"iterations"`
	BudgetsMs   PerfBudgets           `json:"budgets_ms"`
	Metrics     map[string]PerfMetric `json:"metrics"`
	ElapsedS    float64               `json:"elapsed_s"`
}

// PerfOptions are the harness knobs after env and flag resolution.
type PerfOptions struct {
	BaseURL       string
	OutDir        string
	Iterations    int
	PatronBarcode string
	ItemBarcode   string
	Workstation   string
	Budgets       PerfBudgets
}

// auditEnv exposes the environment the audit scripts have always been driven
// by, with their historical defaults.
func auditEnv() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("BASE_URL", "http://127.0.0.1:3000")
	v.SetDefault("OUT_DIR", filepath.Join("audit", "perf"))
	v.SetDefault("ITERATIONS", 30)
	v.SetDefault("PATRON_BARCODE", "29000000001234")
	v.SetDefault("ITEM_BARCODE", "39000000001235")
	v.SetDefault("WORKSTATION", "STACKSOS-PERF")
	v.SetDefault("PERF_CHECKOUT_P95_MS", 350)
	v.SetDefault("PERF_CHECKIN_P95_MS", 350)
	v.SetDefault("PERF_PATRON_SEARCH_P95_MS", 200)
	v.SetDefault("PERF_CATALOG_SEARCH_P95_MS", 200)
	v.SetDefault("PERF_HOLDS_PATRON_P95_MS", 250)
	v.SetDefault("PERF_BILLS_P95_MS", 400)
	v.SetDefault("STACKSOS_AUDIT_INCLUDE_AI", "1")
	return v
}

// PerfOptionsFromEnv resolves the harness options from the environment.
func PerfOptionsFromEnv() PerfOptions {
	v := auditEnv()
	return PerfOptions{
		BaseURL:       v.GetString("BASE_URL"),
		OutDir:        v.GetString("OUT_DIR"),
		Iterations:    v.GetInt("ITERATIONS"),
		PatronBarcode: v.GetString("PATRON_BARCODE"),
		ItemBarcode:   v.GetString("ITEM_BARCODE"),
		Workstation:   v.GetString("WORKSTATION"),
		Budgets: PerfBudgets{
			"checkout_p95_ms":       v.GetInt("PERF_CHECKOUT_P95_MS"),
			"checkin_p95_ms":        v.GetInt("PERF_CHECKIN_P95_MS"),
			"patron_search_p95_ms":  v.GetInt("PERF_PATRON_SEARCH_P95_MS"),
			"catalog_search_p95_ms": v.GetInt("PERF_CATALOG_SEARCH_P95_MS"),
			"holds_patron_p95_ms":   v.GetInt("PERF_HOLDS_PATRON_P95_MS"),
			"bills_p95_ms":          v.GetInt("PERF_BILLS_P95_MS"),
		},
	}
}

// IncludeAIFromEnv mirrors the switch the audit runner uses to skip the AI
// probe endpoints entirely.
func IncludeAIFromEnv() bool {
	return auditEnv().GetString("STACKSOS_AUDIT_INCLUDE_AI") == "1"
}

// Percentile interpolates linearly between the two closest ranks. An empty
// series yields 0.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	xs := make([]float64, len(values))
	copy(xs, values)
	slices.Sort(xs)

	k := float64(len(xs)-1) * p
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return xs[int(k)]
	}
	d0 := xs[int(f)] * (c - k)
	d1 := xs[int(c)] * (k - f)
	return d0 + d1
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SummarizeSamples turns latency samples (seconds) into a metric (ms).
func SummarizeSamples(samplesSeconds []float64) PerfMetric {
	ms := make([]float64, 0, len(samplesSeconds))
	for _, s := range samplesSeconds {
		ms = append(ms, s*1000.0)
	}

	metric := PerfMetric{
		Samples: len(ms),
		P50Ms:   round2(Percentile(ms, 0.50)),
		P95Ms:   round2(Percentile(ms, 0.95)),
	}
	if len(ms) > 0 {
		metric.MinMs = round2(slices.Min(ms))
		metric.MaxMs = round2(slices.Max(ms))
	}
	return metric
}

// perfClient is a cookie-aware HTTP client; the adapter session rides on
// cookies, so every request shares one jar.
type perfClient struct {
	http *http.Client
}

func newPerfClient() *perfClient {
	jar, _ := cookiejar.New(nil)
	return &perfClient{http: &http.Client{Jar: jar, Timeout: 30 * time.Second}}
}

func (c *perfClient) newRequest(method, url string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// timedRequest returns the total request time in seconds, including reading
// the whole body, which is what curl's time_total reports.
func (c *perfClient) timedRequest(method, url string, body interface{}) (float64, error) {
	req, err := c.newRequest(method, url, body)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed for %s %s: %w", method, url, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return time.Since(start).Seconds(), nil
}

func (c *perfClient) jsonRequest(method, url string, body interface{}) (map[string]interface{}, error) {
	req, err := c.newRequest(method, url, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed for %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("invalid JSON response for %s %s: %w", method, url, err)
	}
	return decoded, nil
}

func requireOK(obj map[string]interface{}, label string) error {
	if obj["ok"] == false {
		return fmt.Errorf("%s: ok=false (%v)", label, obj["error"])
	}
	return nil
}

func (c *perfClient) login(opts PerfOptions) error {
	res, err := c.jsonRequest(http.MethodPost, opts.BaseURL+"/api/evergreen/auth", map[string]interface{}{
		"username":    "jake",
		"password":    "jake",
		"workstation": opts.Workstation,
	})
	if err != nil {
		return err
	}
	return requireOK(res, "auth_login")
}

func (c *perfClient) resolvePatronID(opts PerfOptions) (int, error) {
	res, err := c.jsonRequest(http.MethodGet, fmt.Sprintf("%s/api/evergreen/patrons?barcode=%s", opts.BaseURL, opts.PatronBarcode), nil)
	if err != nil {
		return 0, err
	}
	if err := requireOK(res, "patron_lookup"); err != nil {
		return 0, err
	}

	patron, _ := res["patron"].(map[string]interface{})
	if id, ok := patron["id"].(float64); ok && id == math.Trunc(id) {
		return int(id), nil
	}
	return 0, fmt.Errorf("could not resolve patron id")
}

// RunPerfHarness measures the hot staff workflows against a running dev
// server and writes report.json + summary.tsv under opts.OutDir. Samples are
// taken strictly sequentially so they never contend with each other. Returns
// false when any p95 exceeds its budget.
func RunPerfHarness(opts PerfOptions) (bool, error) {
	start := time.Now()

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return false, err
	}

	client := newPerfClient()
	if err := client.login(opts); err != nil {
		return false, err
	}
	patronID, err := client.resolvePatronID(opts)
	if err != nil {
		return false, err
	}

	// Warmup (avoid first-call noise)
	if _, err := client.timedRequest(http.MethodGet, opts.BaseURL+"/api/evergreen/catalog?q=harry%20potter&type=title&limit=10", nil); err != nil {
		return false, err
	}
	if _, err := client.timedRequest(http.MethodGet, opts.BaseURL+"/api/evergreen/patrons?q=adams&type=name&limit=10", nil); err != nil {
		return false, err
	}

	samples := map[string][]float64{}
	timed := func(name, method, url string, body interface{}) error {
		t, err := client.timedRequest(method, url, body)
		if err != nil {
			return err
		}
		samples[name] = append(samples[name], t)
		return nil
	}

	checkinBody := map[string]interface{}{"action": "checkin", "itemBarcode": opts.ItemBarcode}
	checkoutBody := map[string]interface{}{
		"action":        "checkout",
		"patronBarcode": opts.PatronBarcode,
		"itemBarcode":   opts.ItemBarcode,
	}
	circURL := opts.BaseURL + "/api/evergreen/circulation"

	for i := 0; i < opts.Iterations; i++ {
		if err := timed("patron_search", http.MethodGet, opts.BaseURL+"/api/evergreen/patrons?q=adams&type=name&limit=20", nil); err != nil {
			return false, err
		}
		if err := timed("catalog_search", http.MethodGet, opts.BaseURL+"/api/evergreen/catalog?q=harry%20potter&type=title&limit=20", nil); err != nil {
			return false, err
		}
		if err := timed("holds_patron", http.MethodGet, fmt.Sprintf("%s/api/evergreen/holds?action=patron_holds&patron_id=%d", opts.BaseURL, patronID), nil); err != nil {
			return false, err
		}
		if err := timed("bills", http.MethodGet, fmt.Sprintf("%s/api/evergreen/circulation?action=bills&patron_id=%d", opts.BaseURL, patronID), nil); err != nil {
			return false, err
		}

		// Ensure the item is checked in before checkout (not timed)
		if _, err := client.jsonRequest(http.MethodPost, circURL, checkinBody); err != nil {
			return false, err
		}
		if err := timed("checkout", http.MethodPost, circURL, checkoutBody); err != nil {
			return false, err
		}
		if err := timed("checkin", http.MethodPost, circURL, checkinBody); err != nil {
			return false, err
		}
	}

	// Always end checked-in.
	if _, err := client.jsonRequest(http.MethodPost, circURL, checkinBody); err != nil {
		return false, err
	}

	metricOrder := []struct {
		name      string
		budgetKey string
	}{
		{"checkout", "checkout_p95_ms"},
		{"checkin", "checkin_p95_ms"},
		{"patron_search", "patron_search_p95_ms"},
		{"catalog_search", "catalog_search_p95_ms"},
		{"holds_patron", "holds_patron_p95_ms"},
		{"bills", "bills_p95_ms"},
	}

	metrics := map[string]PerfMetric{}
	for _, m := range metricOrder {
		metrics[m.name] = SummarizeSamples(samples[m.name])
	}

	report := PerfReport{
		GeneratedAt: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		BaseURL:     opts.BaseURL,
		Iterations:  opts.Iterations,
		BudgetsMs:   opts.Budgets,
		Metrics:     metrics,
		ElapsedS:    round2(time.Since(start).Seconds()),
	}

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(filepath.Join(opts.OutDir, "report.json"), reportJSON, 0o644); err != nil {
		return false, err
	}

	// TSV summary (easy to diff)
	lines := []string{"metric\tsamples\tp50_ms\tp95_ms\tbudget_p95_ms\tpass"}
	okAll := true
	for _, m := range metricOrder {
		metric := metrics[m.name]
		budget := opts.Budgets[m.budgetKey]
		ok := metric.P95Ms <= float64(budget)
		okAll = okAll && ok
		pass := 0
		if ok {
			pass = 1
		}
		lines = append(lines, fmt.Sprintf("%s\t%d\t%v\t%v\t%d\t%d", m.name, metric.Samples, metric.P50Ms, metric.P95Ms, budget, pass))
	}

	tsv := []byte(strings.Join(lines, "\n") + "\n")
	if err := os.WriteFile(filepath.Join(opts.OutDir, "summary.tsv"), tsv, 0o644); err != nil {
		return false, err
	}

	return okAll, nil
}
