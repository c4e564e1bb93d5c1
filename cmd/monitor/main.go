package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"
)

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Lightweight debug logger (enable with LOG_LEVEL=debug or DEBUG=1)
func debugf(format string, a ...any) {
	if strings.EqualFold(getenv("LOG_LEVEL", ""), "debug") || getenv("DEBUG", "") != "" {
		fmt.Printf("[debug] "+format+"\n", a...)
	}
}

var defaultLines = []Line{
	{Name: "常磐線(快速)[品川～取手]", URL: "https://transit.yahoo.co.jp/diainfo/57/0"},
	{Name: "常磐線(各停)", URL: "https://transit.yahoo.co.jp/diainfo/58/0"},
	{Name: "常磐線[品川～水戸]", URL: "https://transit.yahoo.co.jp/diainfo/59/59"},
	{Name: "常磐線[水戸～いわき]", URL: "https://transit.yahoo.co.jp/diainfo/59/60"},
}

// loadLines reads the watched-lines list from a YAML file:
//
//	lines:
//	  - name: 常磐線(各停)
//	    url: https://transit.yahoo.co.jp/diainfo/58/0
func loadLines(path string) ([]Line, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f struct {
		Lines []Line `yaml:"lines"`
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Lines) == 0 {
		return nil, fmt.Errorf("%s: no lines configured", path)
	}
	for i, ln := range f.Lines {
		if strings.TrimSpace(ln.Name) == "" || strings.TrimSpace(ln.URL) == "" {
			return nil, fmt.Errorf("%s: line %d needs both name and url", path, i+1)
		}
	}
	return f.Lines, nil
}

func linesFromEnv() ([]Line, error) {
	if path := getenv("LINES_FILE", ""); path != "" {
		return loadLines(path)
	}
	return defaultLines, nil
}

func lineLabel(lines []Line) string {
	names := make([]string, len(lines))
	for i, ln := range lines {
		names[i] = ln.Name
	}
	return strings.Join(names, " / ")
}

// Metrics
var (
	lineStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "joban_line_status",
		Help: "Set to 1 for the status each monitored line currently reports",
	}, []string{"line", "status"})
	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "joban_fetch_errors_total",
		Help: "Total page retrievals that ended in an error record",
	}, []string{"line"})
	notifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "joban_notifications_total",
		Help: "Push dispatch attempts by transport and outcome",
	}, []string{"transport", "outcome"})
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "joban_fetch_duration_seconds",
		Help:    "Status page fetch latency",
		Buckets: prometheus.DefBuckets,
	})
)

// In-memory digest of the last dispatched notification; watch mode skips
// identical re-sends. Reset on restart, never persisted.
var (
	lastBody       string
	lastIcon       string
	lastSummaryDay string
)

func runOnce(lines []Line, force bool) (notified bool, err error) {
	results := collectLines(lines, fetchTokens, jobanVocab)
	hasAbnormal, hasSevere, body := jobanVocab.buildGroupedMessage(results)
	icon := twemojiIcons.choose(hasAbnormal, hasSevere)

	if getenv("METRICS_DISABLE", "") == "" {
		lineStatus.Reset()
		for _, r := range results {
			lineStatus.WithLabelValues(r.Name, r.Status).Set(1)
		}
	}

	now := time.Now()
	fmt.Printf("{\n  \"lines\": %d,\n  \"abnormal\": %v,\n  \"timestamp\": %q\n}\n",
		len(results), hasAbnormal, now.Format(time.RFC3339))

	// Daily heartbeat: one forced dispatch in the 08:00 hour even when the
	// report has not changed since the last poll.
	if getenv("SUMMARY_DAILY", "1") != "0" && now.Hour() == 8 && lastSummaryDay != now.Format("2006-01-02") {
		force = true
		lastSummaryDay = now.Format("2006-01-02")
	}

	if !force && body == lastBody && icon == lastIcon {
		debugf("unchanged; notification skipped")
		return false, nil
	}

	if err := sendBark(notifyTitle, body, icon, hasSevere); err != nil {
		fmt.Fprintln(os.Stderr, "bark:", err)
		short := err.Error()
		if len(short) > 300 {
			short = short[:300]
		}
		if err2 := sendBark(notifyTitle, "通知の送信に失敗しました: "+short, twemojiIcons.Err, false); err2 != nil {
			return false, errors.Join(err, err2)
		}
		fmt.Fprintln(os.Stderr, "bark: delivery failure reported via fallback notice")
		return false, nil
	}
	lastBody, lastIcon = body, icon
	return true, nil
}

func main() {
	pollSec := 0
	fmt.Sscanf(getenv("POLL_SECONDS", "0"), "%d", &pollSec)

	lines, err := linesFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// The push credential is required before any network activity; dry-run
	// never dispatches and may run without it.
	if getenv("BARK_DRYRUN", "") == "" && strings.TrimSpace(os.Getenv("BARK_KEY")) == "" {
		fmt.Fprintln(os.Stderr, "環境変数 BARK_KEY が設定されていません。")
		os.Exit(1)
	}

	if pollSec > 0 {
		fmt.Printf("運行情報モニター開始（%d秒間隔）: %s\n", pollSec, lineLabel(lines))
	} else {
		fmt.Printf("運行情報モニター（単発実行）: %s\n", lineLabel(lines))
	}

	// Optional startup test push (set BARK_TEST=1)
	if getenv("BARK_TEST", "") != "" {
		if err := sendBark(notifyTitle, "[テスト] 監視を開始しました "+time.Now().Format(time.RFC3339), twemojiIcons.OK, false); err != nil {
			fmt.Fprintln(os.Stderr, "bark test:", err)
		}
	}

	// Metrics endpoint (watch mode only; a single run has nothing to scrape)
	if pollSec > 0 && getenv("METRICS_DISABLE", "") == "" {
		addr := getenv("METRICS_ADDR", ":2112")
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				fmt.Fprintln(os.Stderr, "metrics server error:", err)
			}
		}()
		fmt.Println("Prometheus metrics on", addr, "/metrics")
	}

	// Graceful shutdown on Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if pollSec <= 0 {
		if _, err := runOnce(lines, true); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	if getenv("TRAY", "") != "" {
		go StartTray(stop)
	}

	notifyAlways := getenv("NOTIFY_ALWAYS", "") != ""
	ticker := time.NewTicker(time.Duration(pollSec) * time.Second)
	defer ticker.Stop()
	for {
		if _, err := runOnce(lines, notifyAlways); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		select {
		case <-ticker.C:
			// continue loop
		case <-ctx.Done():
			fmt.Println("終了します...")
			return
		}
	}
}
