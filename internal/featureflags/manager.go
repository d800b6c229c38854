// Package featureflags evaluates runtime toggles configured through FEATURE_FLAGS.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// ReportListCache serves the report listing cache-aside from Redis.
	ReportListCache = "report_list_cache"
)

// rule is one parsed flag value. percent is 0 for off and 100 for on.
type rule struct {
	raw     string
	percent int
	rollout bool
}

// Manager evaluates feature flags defined as a comma-separated key=value list,
// e.g. "report_list_cache=on,moderation_feed=25%". Unparseable entries are ignored.
type Manager struct {
	rules map[string]rule
}

// NewManager parses raw into a Manager.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}
	return &Manager{rules: rules}
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, percent: 100}, true
	case "off", "false", "0":
		return rule{raw: value}, true
	}
	pctRaw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(pct, 0), 100), rollout: true}, true
}

// Enabled reports whether name is on for userID. Partial rollouts are
// deterministic per user and never enabled for the anonymous user 0.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}
	switch {
	case r.percent >= 100:
		return true
	case r.percent <= 0:
		return false
	case userID == 0:
		return false
	default:
		return rolloutBucket(name, userID) < r.percent
	}
}

// EnabledGlobally reports whether a flag is on for work not tied to a user.
func (m *Manager) EnabledGlobally(name string) bool {
	return m.Enabled(name, 0)
}

// Raw returns a copy of configured flags as written.
func (m *Manager) Raw() map[string]string {
	out := map[string]string{}
	if m == nil {
		return out
	}
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Names returns the configured flag names in sorted order.
func (m *Manager) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.rules))
	for k := range m.rules {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := map[string]bool{}
	for _, name := range m.Names() {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
