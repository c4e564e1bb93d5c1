package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetenv(t *testing.T) {
	t.Setenv("MONITOR_TEST_KEY", "")
	require.Equal(t, "fallback", getenv("MONITOR_TEST_KEY", "fallback"))

	t.Setenv("MONITOR_TEST_KEY", "  padded  ")
	require.Equal(t, "padded", getenv("MONITOR_TEST_KEY", "fallback"))
}

func TestLoadLines(t *testing.T) {
	testCases := []struct {
		content   string
		wantErr   string
		wantLines []Line
	}{
		// two well-formed entries
		{
			content: "lines:\n" +
				"  - name: 常磐線(快速)[品川～取手]\n" +
				"    url: https://transit.yahoo.co.jp/diainfo/57/0\n" +
				"  - name: 常磐線(各停)\n" +
				"    url: https://transit.yahoo.co.jp/diainfo/58/0\n",
			wantLines: []Line{
				{Name: "常磐線(快速)[品川～取手]", URL: "https://transit.yahoo.co.jp/diainfo/57/0"},
				{Name: "常磐線(各停)", URL: "https://transit.yahoo.co.jp/diainfo/58/0"},
			},
		},
		// entry without a name
		{
			content: "lines:\n  - url: https://example.com/diainfo\n",
			wantErr: "needs both name and url",
		},
		// empty list
		{
			content: "lines: []\n",
			wantErr: "no lines configured",
		},
		// not yaml at all
		{
			content: "lines: [\n",
			wantErr: "parse",
		},
	}

	for _, test := range testCases {
		path := filepath.Join(t.TempDir(), "lines.yml")
		require.NoError(t, os.WriteFile(path, []byte(test.content), 0o644))

		lines, err := loadLines(path)
		if test.wantErr != "" {
			require.Error(t, err)
			require.Contains(t, err.Error(), test.wantErr)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, test.wantLines, lines)
	}
}

func TestLoadLinesMissingFile(t *testing.T) {
	_, err := loadLines(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
}

func TestLinesFromEnv(t *testing.T) {
	t.Setenv("LINES_FILE", "")
	lines, err := linesFromEnv()
	require.NoError(t, err)
	require.Len(t, lines, 4)
	require.Equal(t, "常磐線(快速)[品川～取手]", lines[0].Name)

	path := filepath.Join(t.TempDir(), "lines.yml")
	require.NoError(t, os.WriteFile(path, []byte("lines:\n  - name: 試験線\n    url: https://example.com/x\n"), 0o644))
	t.Setenv("LINES_FILE", path)
	lines, err = linesFromEnv()
	require.NoError(t, err)
	require.Equal(t, []Line{{Name: "試験線", URL: "https://example.com/x"}}, lines)
}

func TestLineLabel(t *testing.T) {
	require.Equal(t, "常磐線(各停)", lineLabel([]Line{{Name: "常磐線(各停)"}}))
	require.Equal(t, "a / b / c", lineLabel([]Line{{Name: "a"}, {Name: "b"}, {Name: "c"}}))
}

func TestRunOnceChangeGate(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		status := "平常運転"
		if calls >= 3 {
			status = "列車遅延"
		}
		fmt.Fprintf(w, `<html><body><div>試験線</div><div>1月15日 10時30分</div><div>更新</div><div>%s</div><div>テスト遅延のため</div></body></html>`, status)
	}))
	defer srv.Close()

	t.Setenv("BARK_DRYRUN", "1")
	t.Setenv("SUMMARY_DAILY", "0")
	t.Setenv("METRICS_DISABLE", "1")
	lastBody, lastIcon, lastSummaryDay = "", "", ""

	lines := []Line{{Name: "試験線", URL: srv.URL}}

	notified, err := runOnce(lines, true)
	require.NoError(t, err)
	require.True(t, notified)

	// same page again: watch mode skips the duplicate
	notified, err = runOnce(lines, false)
	require.NoError(t, err)
	require.False(t, notified)

	// page content changed: the gate opens
	notified, err = runOnce(lines, false)
	require.NoError(t, err)
	require.True(t, notified)
}
