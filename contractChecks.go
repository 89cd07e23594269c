package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldKind names a shape assertion on one response field.
type FieldKind string

const (
	KindList           FieldKind = "list"
	KindDict           FieldKind = "dict"
	KindBool           FieldKind = "bool"
	KindString         FieldKind = "string"
	KindIntLike        FieldKind = "int-like"
	KindBoolOrInt      FieldKind = "bool-or-int"
	KindNullOrDict     FieldKind = "null-or-dict"
	KindNullOrString   FieldKind = "null-or-string"
	KindToken          FieldKind = "token"
	KindNonEmptyString FieldKind = "nonempty-string"
	KindPresent        FieldKind = "present"
)

var validKinds = map[FieldKind]struct{}{
	KindList: {}, KindDict: {}, KindBool: {}, KindString: {}, KindIntLike: {},
	KindBoolOrInt: {}, KindNullOrDict: {}, KindNullOrString: {}, KindToken: {},
	KindNonEmptyString: {}, KindPresent: {},
}

// FieldCheck asserts one field of a fixture. Field may be a dotted path.
type FieldCheck struct {
	Field string    `yaml:"field"`
	Kind  FieldKind `yaml:"kind"`
}

// EndpointCheck is the contract for one captured endpoint fixture.
// AllowError fixtures capture deliberate failures and must carry ok=false
// plus a usable error envelope. AIOptional endpoints are only asserted when
// the probe summary recorded a 200 for them.
type EndpointCheck struct {
	Name       string       `yaml:"name"`
	Fields     []FieldCheck `yaml:"fields"`
	AllowError bool         `yaml:"allow_error,omitempty"`
	AIOptional bool         `yaml:"ai_optional,omitempty"`
}

// DefaultContractSpec is the stable adapter contract. The assertions are
// deliberately loose shape checks so they hold across Evergreen installs.
func DefaultContractSpec() []EndpointCheck {
	return []EndpointCheck{
		{Name: "ping", Fields: []FieldCheck{{"status", KindIntLike}, {"url", KindString}}},
		{Name: "csrf_token", Fields: []FieldCheck{{"token", KindToken}}},
		{Name: "auth_session", Fields: []FieldCheck{{"authenticated", KindBool}}},
		{Name: "auth_session_preflight", Fields: []FieldCheck{{"authenticated", KindBool}}},
		{Name: "orgs", Fields: []FieldCheck{{"payload", KindList}}},
		{Name: "workstations_list", Fields: []FieldCheck{{"workstations", KindList}}},
		{Name: "activity_all", Fields: []FieldCheck{{"activities", KindList}, {"pagination", KindDict}}},
		{Name: "org_tree", Fields: []FieldCheck{{"tree", KindNullOrDict}, {"types", KindList}}},
		{Name: "perm_check", Fields: []FieldCheck{{"perms", KindDict}}},
		{Name: "permissions_list", Fields: []FieldCheck{{"permissions", KindList}}},
		{Name: "policies_duration_rules", Fields: []FieldCheck{{"rules", KindList}}},
		{Name: "settings_org", Fields: []FieldCheck{{"settings", KindList}}},
		{Name: "calendars_snapshot", Fields: []FieldCheck{{"snapshot", KindDict}, {"versions", KindList}}},
		{Name: "admin_settings_org", Fields: []FieldCheck{{"settings", KindList}, {"settingTypes", KindList}}},
		{Name: "templates_copy", Fields: []FieldCheck{{"templates", KindList}, {"statuses", KindList}}},
		{Name: "buckets_list", Fields: []FieldCheck{{"buckets", KindList}, {"count", KindIntLike}}},
		{Name: "copy_statuses", Fields: []FieldCheck{{"statuses", KindList}, {"permissions", KindDict}}},
		{Name: "floating_groups", Fields: []FieldCheck{{"groups", KindList}}},
		{Name: "spellcheck_probe", Fields: []FieldCheck{{"suggestion", KindNullOrString}, {"originalCount", KindIntLike}}},
		{Name: "copy_tag_types", Fields: []FieldCheck{{"tagTypes", KindList}, {"permissions", KindDict}}},
		{Name: "copy_tags", Fields: []FieldCheck{{"tags", KindList}, {"permissions", KindDict}}},
		{Name: "stat_categories", Fields: []FieldCheck{{"copyCategories", KindList}, {"patronCategories", KindList}, {"permissions", KindDict}}},
		{Name: "course_reserves", Fields: []FieldCheck{{"courses", KindList}, {"terms", KindList}, {"permissions", KindDict}}},
		{Name: "marc_sources", Fields: []FieldCheck{{"sources", KindList}}},
		{Name: "ai_marc_probe", AIOptional: true, Fields: []FieldCheck{{"leader", KindString}, {"fields", KindList}}},
		{Name: "transits_incoming", Fields: []FieldCheck{{"transits", KindList}}},
		{Name: "user_settings", Fields: []FieldCheck{{"settings", KindDict}}},
		{Name: "z3950_services", Fields: []FieldCheck{{"services", KindList}}},
		{Name: "staff_users_search", Fields: []FieldCheck{{"users", KindList}, {"count", KindIntLike}}},
		{Name: "catalog_search", Fields: []FieldCheck{{"count", KindIntLike}, {"records", KindList}}},
		{Name: "ai_search_probe", AIOptional: true, Fields: []FieldCheck{{"count", KindIntLike}, {"records", KindList}}},
		{Name: "catalog_record", Fields: []FieldCheck{{"record", KindDict}}},
		{Name: "catalog_holdings", Fields: []FieldCheck{{"copies", KindList}}},
		{Name: "items_lookup", Fields: []FieldCheck{{"item", KindDict}}},
		{Name: "circ_item_status", Fields: []FieldCheck{{"copy", KindDict}}},
		{Name: "circ_patron_checkouts", Fields: []FieldCheck{{"checkouts", KindDict}}},
		{Name: "circ_patron_holds", Fields: []FieldCheck{{"holds", KindList}}},
		{Name: "circ_patron_bills", Fields: []FieldCheck{{"bills", KindList}}},
		{Name: "holds_patron", Fields: []FieldCheck{{"holds", KindList}}},
		{Name: "holds_title", Fields: []FieldCheck{{"holds", KindList}}},
		{Name: "holds_pull_list", Fields: []FieldCheck{{"holds", KindList}}},
		{Name: "holds_shelf", Fields: []FieldCheck{{"holds", KindList}}},
		{Name: "holds_check_possible", Fields: []FieldCheck{{"possible", KindBoolOrInt}}},
		{Name: "holds_expired", Fields: []FieldCheck{{"holds", KindList}}},
		{Name: "patron_search", Fields: []FieldCheck{{"patrons", KindList}}},
		{Name: "patron_barcode", Fields: []FieldCheck{{"patron", KindDict}}},
		{Name: "notices_prefs", Fields: []FieldCheck{{"preferences", KindDict}}},
		{Name: "booking_types", Fields: []FieldCheck{{"types", KindList}}},
		{Name: "booking_resources", Fields: []FieldCheck{{"resources", KindList}}},
		{Name: "booking_reservations", Fields: []FieldCheck{{"reservations", KindList}}},
		{Name: "authority_search", Fields: []FieldCheck{{"authorities", KindList}}},
		{Name: "scheduled_reports_schedules", Fields: []FieldCheck{{"schedules", KindList}}},
		{Name: "serials_subscriptions", Fields: []FieldCheck{{"subscriptions", KindList}}},
		{Name: "serials_routing", Fields: []FieldCheck{{"routing", KindList}}},
		{Name: "reports_dashboard", Fields: []FieldCheck{{"dashboard", KindDict}}},
		{Name: "reports_holds", Fields: []FieldCheck{{"holds", KindDict}}},
		{Name: "reports_patrons", Fields: []FieldCheck{{"patrons", KindNullOrDict}}},
		{Name: "offline_status", Fields: []FieldCheck{{"online", KindBool}}},
		{Name: "offline_blocks", Fields: []FieldCheck{{"blocks", KindList}}},
		{Name: "offline_policies", Fields: []FieldCheck{{"policies", KindList}}},
		{Name: "claims_patron", Fields: []FieldCheck{{"claims", KindDict}}},
		{Name: "claims_item", Fields: []FieldCheck{{"item", KindDict}}},
		{Name: "lost_patron", Fields: []FieldCheck{{"summary", KindDict}}},
		{Name: "lost_item", Fields: []FieldCheck{{"item", KindDict}}},
		{Name: "acq_vendors", Fields: []FieldCheck{{"vendors", KindList}}},
		{Name: "acq_funds", Fields: []FieldCheck{{"funds", KindList}}},
		{Name: "acq_orders", Fields: []FieldCheck{{"orders", KindList}}},
		{Name: "acq_invoices", Fields: []FieldCheck{{"invoices", KindList}}},
		// Edge-case fixtures capture deliberate failures; the error envelope
		// is the contract there.
		{Name: "circ_checkout_block", AllowError: true, Fields: []FieldCheck{{"error", KindNonEmptyString}, {"details", KindDict}, {"details.requestId", KindPresent}}},
		{Name: "circ_checkout_bad_patron", AllowError: true, Fields: []FieldCheck{{"error", KindNonEmptyString}, {"details", KindDict}, {"details.requestId", KindPresent}}},
	}
}

// LoadContractSpec reads an endpoint contract from a YAML file, replacing the
// built-in table.
func LoadContractSpec(path string) ([]EndpointCheck, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var spec []EndpointCheck
	if err := yaml.Unmarshal(content, &spec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i, check := range spec {
		if check.Name == "" {
			return nil, fmt.Errorf("%s: check[%d] has no name", path, i)
		}
		for _, field := range check.Fields {
			if _, ok := validKinds[field.Kind]; !ok {
				return nil, fmt.Errorf("%s: check %s field %s has unknown kind %q", path, check.Name, field.Field, field.Kind)
			}
		}
	}
	return spec, nil
}

// RunContractChecks validates every captured fixture against the contract.
// The returned failures are preformatted report lines; empty means the whole
// surface passed. A missing fixtures directory is caller misconfiguration.
func RunContractChecks(cwd string, config AuditConfig, spec []EndpointCheck, includeAI bool) ([]string, error) {
	fixturesDir := filepath.Join(cwd, config.FixturesDir)
	if info, err := os.Stat(fixturesDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s not found; run API audit first", config.FixturesDir)
	}

	summaryStatus := map[string]string{}
	if content, err := os.ReadFile(filepath.Join(cwd, config.SummaryTSV)); err == nil {
		lines := strings.Split(string(content), "\n")
		for _, line := range lines[1:] {
			parts := strings.Split(line, "\t")
			if len(parts) >= 2 {
				summaryStatus[parts[0]] = parts[1]
			}
		}
	}

	var failures []string
	for _, check := range spec {
		if check.AIOptional {
			if !includeAI || summaryStatus[check.Name] != "200" {
				continue
			}
		}
		failures = append(failures, checkEndpoint(check, fixturesDir)...)
	}
	return failures, nil
}

// checkEndpoint runs one contract. Assertions stop at the first failure so a
// missing envelope does not cascade into noise about every field.
func checkEndpoint(check EndpointCheck, fixturesDir string) []string {
	fixturePath := filepath.Join(fixturesDir, check.Name+".json")
	content, err := os.ReadFile(fixturePath)
	if err != nil {
		return []string{fmt.Sprintf("%s: missing fixture file %s", check.Name, fixturePath)}
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return []string{fmt.Sprintf("%s.json: invalid JSON (%v)", check.Name, err)}
	}

	data, ok := decoded.(map[string]interface{})
	if !ok {
		return []string{fmt.Sprintf("%s: response must be an object", check.Name)}
	}

	if check.AllowError {
		if data["ok"] != false {
			return []string{fmt.Sprintf("%s: ok must be false", check.Name)}
		}
	} else {
		if data["ok"] != true {
			return []string{fmt.Sprintf("%s: ok must be true", check.Name)}
		}
	}

	for _, field := range check.Fields {
		if msg := checkField(check.Name, field, data); msg != "" {
			return []string{msg}
		}
	}
	return nil
}

func lookupField(data map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = data
	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func checkField(endpoint string, field FieldCheck, data map[string]interface{}) string {
	val, present := lookupField(data, field.Field)

	holds := false
	var want string
	switch field.Kind {
	case KindList:
		_, holds = val.([]interface{})
		want = "must be an array"
	case KindDict:
		_, holds = val.(map[string]interface{})
		want = "must be an object"
	case KindBool:
		_, holds = val.(bool)
		want = "must be boolean"
	case KindString:
		_, holds = val.(string)
		want = "must be a string"
	case KindIntLike:
		holds = isIntLike(val)
		want = "must be int-like"
	case KindBoolOrInt:
		_, isBool := val.(bool)
		holds = isBool || isIntLike(val)
		want = "must be boolean/int-like"
	case KindNullOrDict:
		_, isDict := val.(map[string]interface{})
		holds = val == nil || isDict
		want = "must be null or an object"
	case KindNullOrString:
		_, isStr := val.(string)
		holds = val == nil || isStr
		want = "must be null or string"
	case KindToken:
		s, isStr := val.(string)
		holds = isStr && len(s) >= 8
		want = "required"
	case KindNonEmptyString:
		s, isStr := val.(string)
		holds = isStr && s != ""
		want = "must be a string"
	case KindPresent:
		holds = present
		want = "must exist"
	default:
		want = fmt.Sprintf("has unknown check kind %q", field.Kind)
	}

	if !holds {
		return fmt.Sprintf("%s: %s %s", endpoint, field.Field, want)
	}
	return ""
}

// isIntLike accepts integers however the adapter happens to serialize them:
// JSON integers, digit-only strings, and bools (which count as ints upstream).
func isIntLike(val interface{}) bool {
	switch v := val.(type) {
	case bool:
		return true
	case json.Number:
		return !strings.ContainsAny(v.String(), ".eE")
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return false
		}
		for i := 0; i < len(s); i++ {
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		}
		return true
	}
	return false
}
