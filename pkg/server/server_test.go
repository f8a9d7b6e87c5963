package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
	"github.com/Sriram-PR/hashtag-scraper/pkg/metrics"
	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type fakeSearch struct {
	mu     sync.Mutex
	terms  []string
	result *models.SearchTagResult
	err    error
}

func (f *fakeSearch) Search(_ context.Context, term string) (*models.SearchTagResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms = append(f.terms, term)
	return f.result, f.err
}

type fakeBulk struct {
	newTags  []models.TagRecord
	bestTags []models.TagRecord
	err      error
}

func (f *fakeBulk) NewTags(context.Context) ([]models.TagRecord, error)  { return f.newTags, f.err }
func (f *fakeBulk) BestTags(context.Context) ([]models.TagRecord, error) { return f.bestTags, f.err }

type fakeCounter struct {
	n   int
	err error
}

func (f fakeCounter) Count(context.Context) (int, error) { return f.n, f.err }

type fakeGauge struct{}

func (fakeGauge) Capacity() int { return 500 }
func (fakeGauge) InFlight() int { return 0 }
func (fakeGauge) Peak() int     { return 12 }

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	cfg := &config.AppConfig{}
	_, err := cfg.Validate()
	require.NoError(t, err)
	return New(cfg, deps, testLogger())
}

// envelope mirrors models.Envelope with raw data for assertions
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func get(t *testing.T, s *Server, path string) (int, envelope) {
	t.Helper()
	resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &env), "body: %s", body)
	return resp.StatusCode, env
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, Deps{})
	resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Welcome to the Hashtag Generator API!"}`, string(body))
}

func TestBulkEndpoints(t *testing.T) {
	bulk := &fakeBulk{
		newTags:  []models.TagRecord{{ID: 1, Tag: "#new", Usage: models.IntUsage(10)}},
		bestTags: []models.TagRecord{{ID: 2, Tag: "#best", Usage: models.IntUsage(20)}},
	}
	s := newTestServer(t, Deps{Bulk: bulk})

	code, env := get(t, s, "/getNewTags")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Status)
	assert.Equal(t, "Data fetched successfully", env.Message)
	assert.JSONEq(t, `[{"id":1,"tag":"#new","usage":10}]`, string(env.Data))

	code, env = get(t, s, "/getBestTags")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"id":2,"tag":"#best","usage":20}]`, string(env.Data))
}

func TestBulkEndpoints_EmptyListIsArray(t *testing.T) {
	s := newTestServer(t, Deps{Bulk: &fakeBulk{newTags: []models.TagRecord{}}})
	_, env := get(t, s, "/getNewTags")
	assert.True(t, env.Status)
	assert.Equal(t, "[]", string(env.Data))
}

func TestBulkEndpoints_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"upstream", utils.WrapErrorf(utils.ErrUpstream, "listing"), http.StatusBadGateway, "Upstream unavailable"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Deps{Bulk: &fakeBulk{err: tt.err}})
			code, env := get(t, s, "/getBestTags")
			assert.Equal(t, tt.code, code)
			assert.False(t, env.Status)
			assert.Equal(t, tt.msg, env.Message)
			assert.Equal(t, "null", string(env.Data))
		})
	}
}

func TestSearchTags(t *testing.T) {
	result := &models.SearchTagResult{
		Top: []models.TagRecord{{ID: 1, Tag: "#sun", Usage: models.FloatUsage(100)}},
	}
	result.Normalize()
	search := &fakeSearch{result: result}
	s := newTestServer(t, Deps{Search: search})

	code, env := get(t, s, "/getSearchTags/sun")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Status)
	assert.Equal(t, "Data fetched successfully", env.Message)

	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &data))
	for _, key := range []string{"best", "top", "recommended", "exact", "popular", "related"} {
		assert.Contains(t, data, key)
	}
	assert.JSONEq(t, `[{"id":1,"tag":"#sun","usage":100.0}]`, string(data["top"]))
	assert.Contains(t, string(data["top"]), "100.0", "float usage keeps its fraction")
	assert.Equal(t, "[]", string(data["related"]))
}

func TestSearchTags_TermIsUnescapedVerbatim(t *testing.T) {
	search := &fakeSearch{result: &models.SearchTagResult{Best: []models.TagRecord{{ID: 1, Tag: "#x"}}}}
	s := newTestServer(t, Deps{Search: search})

	get(t, s, "/getSearchTags/Sun%20Set")
	get(t, s, "/getSearchTags/caf%C3%A9")
	assert.Equal(t, []string{"Sun Set", "café"}, search.terms)
}

func TestSearchTags_EmptyResult(t *testing.T) {
	s := newTestServer(t, Deps{Search: &fakeSearch{result: &models.SearchTagResult{}}})

	code, env := get(t, s, "/getSearchTags/nothing")
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.Status)
	assert.Equal(t, "Data Not found", env.Message)
	assert.Equal(t, "null", string(env.Data))
}

func TestSearchTags_Errors(t *testing.T) {
	t.Run("store failure", func(t *testing.T) {
		s := newTestServer(t, Deps{Search: &fakeSearch{err: utils.WrapErrorf(utils.ErrDatabase, "lookup")}})
		code, env := get(t, s, "/getSearchTags/sun")
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.False(t, env.Status)
		assert.NotContains(t, env.Message, "lookup", "raw error text is not exposed")
	})

	t.Run("strict upstream failure", func(t *testing.T) {
		s := newTestServer(t, Deps{Search: &fakeSearch{err: utils.WrapErrorf(utils.ErrUpstream, "search")}})
		code, env := get(t, s, "/getSearchTags/sun")
		assert.Equal(t, http.StatusBadGateway, code)
		assert.False(t, env.Status)
	})
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	s := newTestServer(t, Deps{})
	code, env := get(t, s, "/nope")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Status)
}

func TestConfigs(t *testing.T) {
	s := newTestServer(t, Deps{})
	code, env := get(t, s, "/configs")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Status)
	assert.Equal(t, "App config fetched success", env.Message)

	var data struct {
		EnableBilling bool   `json:"enable_billing"`
		MaxRequest    string `json:"max_request"`
		Platforms     []struct {
			Platform string `json:"platform"`
		} `json:"social_media_recomendation"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.False(t, data.EnableBilling)
	assert.Equal(t, "unlimited", data.MaxRequest)
	require.Len(t, data.Platforms, 9)
	assert.Equal(t, "Instagram", data.Platforms[0].Platform)
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		s := newTestServer(t, Deps{Store: fakeCounter{n: 4}, Limiter: fakeGauge{}, Version: "test"})
		code, env := get(t, s, "/healthz")
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, env.Status)
		assert.JSONEq(t, `{"version":"test","stored_records":4,"fetch_slots":{"capacity":500,"in_use":0,"peak":12}}`, string(env.Data))
	})

	t.Run("store down", func(t *testing.T) {
		s := newTestServer(t, Deps{Store: fakeCounter{err: errors.New("down")}})
		code, env := get(t, s, "/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.False(t, env.Status)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	s := newTestServer(t, Deps{Bulk: &fakeBulk{newTags: []models.TagRecord{}}, Metrics: m})

	get(t, s, "/getNewTags")

	resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `hashtag_scraper_http_requests_total{code="200",route="/getNewTags"} 1`), string(body))
}

func TestMetricsEndpointAbsentWithoutMetrics(t *testing.T) {
	s := newTestServer(t, Deps{})
	resp, err := s.App.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
