package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

const upstreamSearchHTML = `<html><body>
<div class="tag-box tag-box-v3 margin-bottom-40"><p1>#sun #sunset</p1></div>
<div id="exact"><table>
  <tr><th>#</th><th>Tag</th><th>Posts</th></tr>
  <tr><td>1</td><td>#sun</td><td>1,000</td></tr>
</table></div>
</body></html>`

func upstreamListingHTML(first, rows int) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="table table-striped"><tr><td>#</td><td>Tag</td><td>Posts</td></tr>`)
	for i := range rows {
		fmt.Fprintf(&b, "<tr><td>%d</td><td>#tag%d</td><td>%d</td></tr>", first+i, first+i, 100+i)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

// fakeUpstream serves three listing pages of two rows, a best page and one search term
func fakeUpstream(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch {
		case r.URL.Path == "/new":
			var page int
			fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
			fmt.Fprint(w, upstreamListingHTML(page*2+1, 2))
		case r.URL.Path == "/best":
			fmt.Fprint(w, upstreamListingHTML(1, 5))
		case r.URL.Path == "/hashtag/sun":
			fmt.Fprint(w, upstreamSearchHTML)
		case strings.HasPrefix(r.URL.Path, "/hashtag/"):
			fmt.Fprint(w, "<html><body><p>nothing here</p></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func serviceConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	return writeConfig(t, fmt.Sprintf(`
upstream:
  base_url: %q
  new_tags_path: "/new?page=%%d"
  new_tags_pages: 3
  best_tags_path: "/best"
  search_path: "/hashtag/%%s"
store:
  backend: sqlite
  sqlite_path: %q
cache:
  path: %q
`, baseURL, filepath.Join(dir, "hashtags.db"), filepath.Join(dir, "cache.json")))
}

func TestLoadConfig_ValidFile(t *testing.T) {
	cfgPath := writeConfig(t, `
server_addr: ":9000"
max_concurrent_requests: 50
failure_policy: strict
cache:
  ttl: 12h
`)
	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ServerAddr)
	assert.Equal(t, 50, cfg.MaxConcurrentRequests)
	assert.True(t, cfg.IsStrict())
	assert.Equal(t, "12h0m0s", cfg.Cache.TTL.String())
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := loadConfig("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_DefaultPathMayBeMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := loadConfig(defaultConfigPath)
	require.NoError(t, err)
	_, err = cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxConcurrentRequests)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := loadConfig(writeConfig(t, "{{invalid yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7777")
	t.Setenv("CACHE_FILE", "/var/tmp/tags.json")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")

	cfg, err := loadConfig(writeConfig(t, `server_addr: ":9000"`))
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.ServerAddr)
	assert.Equal(t, "/var/tmp/tags.json", cfg.Cache.Path)
	assert.Equal(t, "postgres", cfg.Store.Backend)
}

func TestDoValidate(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{
			name:       "defaults",
			content:    "{}",
			wantCode:   0,
			wantStdout: "Configuration valid",
		},
		{
			name:       "warnings are printed",
			content:    "max_concurrent_requests: -1",
			wantCode:   0,
			wantStdout: "WARN: max_concurrent_requests",
		},
		{
			name:       "unknown failure policy",
			content:    "failure_policy: sometimes",
			wantCode:   1,
			wantStderr: "failure_policy",
		},
		{
			name:       "postgres without url",
			content:    "store:\n  backend: postgres",
			wantCode:   1,
			wantStderr: "database_url",
		},
		{
			name:       "bad refresh schedule",
			content:    "cache:\n  refresh_schedule: whenever",
			wantCode:   1,
			wantStderr: "refresh_schedule",
		},
		{
			name:       "cron refresh schedule",
			content:    "cache:\n  refresh_schedule: \"0 */6 * * *\"",
			wantCode:   0,
			wantStdout: "Configuration valid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := doValidate(writeConfig(t, tt.content), &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code, "stderr: %s", stderr.String())
			if tt.wantStdout != "" {
				assert.Contains(t, stdout.String(), tt.wantStdout)
			}
			if tt.wantStderr != "" {
				assert.Contains(t, stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestCheckSchedule(t *testing.T) {
	cfg := &config.AppConfig{}
	assert.NoError(t, checkSchedule(cfg), "no schedule")

	cfg.Cache.RefreshSchedule = "6h"
	assert.NoError(t, checkSchedule(cfg))

	cfg.Cache.RefreshSchedule = "whenever"
	err := checkSchedule(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.refresh_schedule")
}

func TestDoValidate_ConfigNotFound(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, doValidate("/nonexistent.yaml", &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Error")
}

func TestDoSearch(t *testing.T) {
	upstream, hits := fakeUpstream(t)
	cfgPath := serviceConfig(t, upstream.URL)

	var stdout, stderr bytes.Buffer
	code := doSearch(cfgPath, "error", "sun", &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	var env struct {
		Status  bool                       `json:"status"`
		Message string                     `json:"message"`
		Data    map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &env))
	assert.True(t, env.Status)
	assert.Equal(t, "Data fetched successfully", env.Message)
	assert.JSONEq(t, `[{"id":1,"tag":"#sun","usage":1000}]`, string(env.Data["exact"]))
	assert.Equal(t, "[]", string(env.Data["related"]))
	assert.EqualValues(t, 1, hits.Load())

	// The second run is served from the sqlite store
	stdout.Reset()
	require.Equal(t, 0, doSearch(cfgPath, "error", "sun", &stdout, &stderr))
	assert.EqualValues(t, 1, hits.Load())
}

func TestDoSearch_NotFound(t *testing.T) {
	upstream, _ := fakeUpstream(t)
	cfgPath := serviceConfig(t, upstream.URL)

	var stdout, stderr bytes.Buffer
	code := doSearch(cfgPath, "error", "zzz", &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.JSONEq(t, `{"status":false,"message":"Data Not found","data":null}`, stdout.String())
}

func TestDoRefresh(t *testing.T) {
	upstream, hits := fakeUpstream(t)
	cfgPath := serviceConfig(t, upstream.URL)

	var stdout, stderr bytes.Buffer
	code := doRefresh(cfgPath, "error", false, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "New tags:    6")
	assert.Contains(t, stdout.String(), "Best tags:   5")
	assert.EqualValues(t, 4, hits.Load(), "three listing pages and the best page")

	// A fresh cache is left alone with -if-stale
	stdout.Reset()
	require.Equal(t, 0, doRefresh(cfgPath, "error", true, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "fresh, nothing to do")
	assert.EqualValues(t, 4, hits.Load())
}

func TestDoRefresh_ConfigError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := doRefresh(writeConfig(t, "failure_policy: sometimes"), "error", false, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "failure_policy")
}

func TestDoMcpServer_UnknownTransport(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 1, doMcpServer("config.yaml", "carrier-pigeon", 0, "error", &stderr))
	assert.Contains(t, stderr.String(), "Unknown transport")
}

func TestPrintUsageTo(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)

	out := buf.String()
	for _, cmd := range []string{"serve", "refresh", "search", "validate", "mcp-server", "version"} {
		assert.Contains(t, out, cmd)
	}
}
