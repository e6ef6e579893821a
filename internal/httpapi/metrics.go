package httpapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// metricsStore holds the process-wide counters served at /metrics in
// Prometheus text format.
type metricsStore struct {
	mu sync.Mutex

	httpRequestsTotal uint64
	httpByPattern     map[reqKey]uint64
	appErrors         map[errKey]uint64

	conversions    map[string]uint64 // by render target
	convertedNodes uint64
	subscriptions  uint64 // upstream URLs requested by /sub, after dedup
}

type reqKey struct {
	Pattern string
	Status  int
}

type errKey struct {
	Stage string
	Code  string
}

func newMetricsStore() *metricsStore {
	return &metricsStore{
		httpByPattern: make(map[reqKey]uint64),
		appErrors:     make(map[errKey]uint64),
		conversions:   make(map[string]uint64),
	}
}

var metrics = newMetricsStore()

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unknown)"
	}
	return s
}

func metricsIncRequest(pattern string, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	metrics.mu.Lock()
	metrics.httpRequestsTotal++
	metrics.httpByPattern[reqKey{Pattern: orUnknown(pattern), Status: status}]++
	metrics.mu.Unlock()
}

func metricsIncAppError(stage, code string) {
	metrics.mu.Lock()
	metrics.appErrors[errKey{Stage: orUnknown(stage), Code: orUnknown(code)}]++
	metrics.mu.Unlock()
}

// metricsIncConversion records one successful conversion that served nodes
// proxies.
func metricsIncConversion(target string, nodes int) {
	metrics.mu.Lock()
	metrics.conversions[orUnknown(target)]++
	metrics.convertedNodes += uint64(nodes)
	metrics.mu.Unlock()
}

func metricsAddSubscriptions(n int) {
	metrics.mu.Lock()
	metrics.subscriptions += uint64(n)
	metrics.mu.Unlock()
}

// sample is one labeled counter line.
type sample struct {
	labels [][2]string
	n      uint64
}

type family struct {
	name, help string
	samples    []sample
}

func metricsSnapshot() []family {
	metrics.mu.Lock()
	defer metrics.mu.Unlock()

	reqs := make([]sample, 0, len(metrics.httpByPattern))
	for k, n := range metrics.httpByPattern {
		reqs = append(reqs, sample{labels: [][2]string{{"pattern", k.Pattern}, {"status", strconv.Itoa(k.Status)}}, n: n})
	}
	errs := make([]sample, 0, len(metrics.appErrors))
	for k, n := range metrics.appErrors {
		errs = append(errs, sample{labels: [][2]string{{"stage", k.Stage}, {"code", k.Code}}, n: n})
	}
	convs := make([]sample, 0, len(metrics.conversions))
	for target, n := range metrics.conversions {
		convs = append(convs, sample{labels: [][2]string{{"target", target}}, n: n})
	}

	return []family{
		{"clash_override_http_requests_total", "Total HTTP requests.", []sample{{n: metrics.httpRequestsTotal}}},
		{"clash_override_http_requests_by_pattern_total", "HTTP requests by route and status.", sortSamples(reqs)},
		{"clash_override_app_errors_total", "Application errors returned to clients.", sortSamples(errs)},
		{"clash_override_conversions_total", "Configs served, by output target.", sortSamples(convs)},
		{"clash_override_converted_nodes_total", "Proxies written into served configs.", []sample{{n: metrics.convertedNodes}}},
		{"clash_override_subscriptions_fetched_total", "Subscription URLs requested upstream.", []sample{{n: metrics.subscriptions}}},
	}
}

// sortSamples orders by label values, compared numerically where both are
// numbers (status codes).
func sortSamples(s []sample) []sample {
	sort.Slice(s, func(i, j int) bool {
		a, b := s[i].labels, s[j].labels
		for k := range a {
			if a[k][1] == b[k][1] {
				continue
			}
			x, errX := strconv.Atoi(a[k][1])
			y, errY := strconv.Atoi(b[k][1])
			if errX == nil && errY == nil {
				return x < y
			}
			return a[k][1] < b[k][1]
		}
		return false
	})
	return s
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	for _, f := range metricsSnapshot() {
		b.WriteString("# HELP " + f.name + " " + f.help + "\n")
		b.WriteString("# TYPE " + f.name + " counter\n")
		for _, s := range f.samples {
			b.WriteString(f.name)
			if len(s.labels) > 0 {
				b.WriteByte('{')
				for i, l := range s.labels {
					if i > 0 {
						b.WriteByte(',')
					}
					b.WriteString(l[0] + "=\"" + promLabelEscape(l[1]) + "\"")
				}
				b.WriteByte('}')
			}
			b.WriteByte(' ')
			b.WriteString(strconv.FormatUint(s.n, 10))
			b.WriteByte('\n')
		}
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteText(w, http.StatusOK, b.String())
}

// promLabelEscape escapes a Prometheus label value.
func promLabelEscape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
