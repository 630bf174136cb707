package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for the ETL service.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	classifyCalls = make(map[classifyKey]int64)

	runsTotal          = make(map[runKey]int64)
	rowsProcessedTotal = make(map[string]int64)
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type classifyKey struct {
	Model   string
	Success string
}

type runKey struct {
	Source string
	Status string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordClassify increments the counter of classification round trips.
func RecordClassify(model string, success bool) {
	mu.Lock()
	defer mu.Unlock()

	s := "false"
	if success {
		s = "true"
	}
	classifyCalls[classifyKey{Model: model, Success: s}]++
}

// RecordRun counts one finished ETL run and, on success, the rows written.
func RecordRun(source, status string, rows int) {
	mu.Lock()
	defer mu.Unlock()

	runsTotal[runKey{Source: source, Status: status}]++
	if rows > 0 {
		rowsProcessedTotal[source] += int64(rows)
	}
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP menuetl_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE menuetl_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "menuetl_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP menuetl_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE menuetl_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP menuetl_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE menuetl_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		sum := latencyMsSum[k]
		cnt := latencyMsCount[k]
		fmt.Fprintf(&b, "menuetl_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, sum)
		fmt.Fprintf(&b, "menuetl_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, cnt)
	}

	// Classification metrics
	b.WriteString("# HELP menuetl_llm_classify_requests_total Total LLM classification requests\n")
	b.WriteString("# TYPE menuetl_llm_classify_requests_total counter\n")

	var clsKeys []classifyKey
	for k := range classifyCalls {
		clsKeys = append(clsKeys, k)
	}
	sort.Slice(clsKeys, func(i, j int) bool {
		if clsKeys[i].Model != clsKeys[j].Model {
			return clsKeys[i].Model < clsKeys[j].Model
		}
		return clsKeys[i].Success < clsKeys[j].Success
	})

	for _, k := range clsKeys {
		v := classifyCalls[k]
		fmt.Fprintf(&b, "menuetl_llm_classify_requests_total{model=\"%s\",success=\"%s\"} %d\n",
			k.Model, k.Success, v)
	}

	// ETL run metrics
	b.WriteString("# HELP menuetl_runs_total Total ETL runs by source and status\n")
	b.WriteString("# TYPE menuetl_runs_total counter\n")

	var rKeys []runKey
	for k := range runsTotal {
		rKeys = append(rKeys, k)
	}
	sort.Slice(rKeys, func(i, j int) bool {
		if rKeys[i].Source != rKeys[j].Source {
			return rKeys[i].Source < rKeys[j].Source
		}
		return rKeys[i].Status < rKeys[j].Status
	})

	for _, k := range rKeys {
		v := runsTotal[k]
		fmt.Fprintf(&b, "menuetl_runs_total{source=\"%s\",status=\"%s\"} %d\n",
			k.Source, k.Status, v)
	}

	b.WriteString("# HELP menuetl_rows_processed_total Total cleaned rows written by source\n")
	b.WriteString("# TYPE menuetl_rows_processed_total counter\n")

	var sources []string
	for s := range rowsProcessedTotal {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		v := rowsProcessedTotal[s]
		fmt.Fprintf(&b, "menuetl_rows_processed_total{source=\"%s\"} %d\n", s, v)
	}

	return b.String()
}
