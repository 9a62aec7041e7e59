package handler

import (
	"encoding/json"
	"html/template"
	"net/http"
	"sync/atomic"
	"time"
)

// Stats tracks gateway metrics.
type Stats struct {
	TotalRequests  int64     `json:"total_requests"`
	Succeeded      int64     `json:"succeeded"`
	ClientErrors   int64     `json:"client_errors"`
	UpstreamErrors int64     `json:"upstream_errors"`
	InternalErrors int64     `json:"internal_errors"`
	CacheHits      int64     `json:"cache_hits"`
	FallbackParses int64     `json:"fallback_parses"`
	TotalLatencyMs int64     `json:"total_latency_ms"`
	StartTime      time.Time `json:"start_time"`
}

var globalStats = &Stats{StartTime: time.Now()}

// Record counts one finished request.
func Record(outcome string, cacheHit, fallback bool, latencyMs int64) {
	atomic.AddInt64(&globalStats.TotalRequests, 1)
	atomic.AddInt64(&globalStats.TotalLatencyMs, latencyMs)

	switch outcome {
	case OutcomeOK:
		atomic.AddInt64(&globalStats.Succeeded, 1)
	case OutcomeInvalidInput, OutcomeMethodNotAllowed:
		atomic.AddInt64(&globalStats.ClientErrors, 1)
	case OutcomeUpstreamError:
		atomic.AddInt64(&globalStats.UpstreamErrors, 1)
	default:
		atomic.AddInt64(&globalStats.InternalErrors, 1)
	}
	if cacheHit {
		atomic.AddInt64(&globalStats.CacheHits, 1)
	}
	if fallback {
		atomic.AddInt64(&globalStats.FallbackParses, 1)
	}
}

// ResetStats resets all stats to zero.
func ResetStats() {
	atomic.StoreInt64(&globalStats.TotalRequests, 0)
	atomic.StoreInt64(&globalStats.Succeeded, 0)
	atomic.StoreInt64(&globalStats.ClientErrors, 0)
	atomic.StoreInt64(&globalStats.UpstreamErrors, 0)
	atomic.StoreInt64(&globalStats.InternalErrors, 0)
	atomic.StoreInt64(&globalStats.CacheHits, 0)
	atomic.StoreInt64(&globalStats.FallbackParses, 0)
	atomic.StoreInt64(&globalStats.TotalLatencyMs, 0)
	globalStats.StartTime = time.Now()
}

// GetStats returns current stats.
func GetStats() Stats {
	return Stats{
		TotalRequests:  atomic.LoadInt64(&globalStats.TotalRequests),
		Succeeded:      atomic.LoadInt64(&globalStats.Succeeded),
		ClientErrors:   atomic.LoadInt64(&globalStats.ClientErrors),
		UpstreamErrors: atomic.LoadInt64(&globalStats.UpstreamErrors),
		InternalErrors: atomic.LoadInt64(&globalStats.InternalErrors),
		CacheHits:      atomic.LoadInt64(&globalStats.CacheHits),
		FallbackParses: atomic.LoadInt64(&globalStats.FallbackParses),
		TotalLatencyMs: atomic.LoadInt64(&globalStats.TotalLatencyMs),
		StartTime:      globalStats.StartTime,
	}
}

// StatsJSON returns stats as JSON.
func StatsJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetStats())
}

// StatsDashboard returns an HTML summary of the counters.
func StatsDashboard(w http.ResponseWriter, r *http.Request) {
	stats := GetStats()

	avgLatency := float64(0)
	successRate := float64(0)
	if stats.TotalRequests > 0 {
		avgLatency = float64(stats.TotalLatencyMs) / float64(stats.TotalRequests)
		successRate = float64(stats.Succeeded) / float64(stats.TotalRequests) * 100
	}

	data := struct {
		Stats
		AvgLatency  float64
		SuccessRate float64
		Uptime      string
	}{
		Stats:       stats,
		AvgLatency:  avgLatency,
		SuccessRate: successRate,
		Uptime:      time.Since(stats.StartTime).Round(time.Second).String(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	dashboard.Execute(w, data)
}

var dashboard = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Tag Gateway - Stats</title>
    <meta charset="UTF-8">
    <meta http-equiv="refresh" content="5">
    <style>
        body { font-family: sans-serif; background: #16213e; color: #eee; padding: 40px; }
        table { border-collapse: collapse; margin: 0 auto; min-width: 360px; }
        td { padding: 8px 16px; border-bottom: 1px solid #333; }
        td.value { text-align: right; font-weight: bold; }
        h1 { text-align: center; }
        a { color: #00d9ff; }
    </style>
</head>
<body>
    <h1>Tag Gateway</h1>
    <table>
        <tr><td>Total requests</td><td class="value">{{.TotalRequests}}</td></tr>
        <tr><td>Succeeded</td><td class="value">{{.Succeeded}} ({{printf "%.1f" .SuccessRate}}%)</td></tr>
        <tr><td>Client errors</td><td class="value">{{.ClientErrors}}</td></tr>
        <tr><td>Upstream errors</td><td class="value">{{.UpstreamErrors}}</td></tr>
        <tr><td>Internal errors</td><td class="value">{{.InternalErrors}}</td></tr>
        <tr><td>Cache hits</td><td class="value">{{.CacheHits}}</td></tr>
        <tr><td>Fallback parses</td><td class="value">{{.FallbackParses}}</td></tr>
        <tr><td>Avg latency</td><td class="value">{{printf "%.0f" .AvgLatency}}ms</td></tr>
        <tr><td>Uptime</td><td class="value">{{.Uptime}}</td></tr>
    </table>
    <p style="text-align: center"><a href="/stats/json">JSON</a></p>
</body>
</html>
`))
