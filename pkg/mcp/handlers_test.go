package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

type fakeSearch struct {
	result *models.SearchTagResult
	err    error
}

func (f *fakeSearch) Search(context.Context, string) (*models.SearchTagResult, error) {
	return f.result, f.err
}

type fakeBulk struct {
	newTags  []models.TagRecord
	bestTags []models.TagRecord
	err      error

	refreshes atomic.Int64
	release   chan struct{} // When set, ForceRefresh blocks until closed
}

func (f *fakeBulk) NewTags(context.Context) ([]models.TagRecord, error)  { return f.newTags, f.err }
func (f *fakeBulk) BestTags(context.Context) ([]models.TagRecord, error) { return f.bestTags, f.err }

func (f *fakeBulk) ForceRefresh(context.Context) (*models.BulkCacheEntry, error) {
	f.refreshes.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.BulkCacheEntry{
		NewTags:    f.newTags,
		BestTags:   f.bestTags,
		LastUpdate: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func newTestServer(t *testing.T, search Searcher, bulk BulkProvider) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := NewServer(&ServerConfig{Search: search, Bulk: bulk, Transport: "stdio", Logger: log})
	require.NoError(t, err)
	return s
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// decode returns the JSON object carried by a text result
func decode(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotNil(t, result)
	require.False(t, result.IsError, "unexpected tool error: %v", result.Content)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func sampleTags(n int) []models.TagRecord {
	tags := make([]models.TagRecord, n)
	for i := range tags {
		tags[i] = models.TagRecord{ID: i + 1, Tag: "#t", Usage: models.IntUsage(int64(i))}
	}
	return tags
}

func TestNewServer_RequiresProviders(t *testing.T) {
	_, err := NewServer(&ServerConfig{})
	assert.Error(t, err)
}

func TestRun_UnknownTransport(t *testing.T) {
	s := newTestServer(t, &fakeSearch{}, &fakeBulk{})
	s.cfg.Transport = "carrier-pigeon"
	assert.ErrorContains(t, s.Run(), "unknown transport")
}

func TestHandleSearchTags(t *testing.T) {
	result := &models.SearchTagResult{Top: []models.TagRecord{{ID: 1, Tag: "#sun", Usage: models.FloatUsage(99.5)}}}
	result.Normalize()
	s := newTestServer(t, &fakeSearch{result: result}, &fakeBulk{})

	t.Run("full result", func(t *testing.T) {
		res, err := s.handleSearchTags(context.Background(), callRequest("search_tags", map[string]any{"term": "sun"}))
		require.NoError(t, err)
		out := decode(t, res)
		assert.Equal(t, "sun", out["term"])
		assert.Equal(t, true, out["found"])
		assert.Contains(t, out["result"], "related")
	})

	t.Run("single category", func(t *testing.T) {
		res, err := s.handleSearchTags(context.Background(), callRequest("search_tags", map[string]any{"term": "sun", "category": "Top"}))
		require.NoError(t, err)
		out := decode(t, res)
		assert.Equal(t, "top", out["category"])
		assert.EqualValues(t, 1, out["total"])
	})

	t.Run("empty category is an empty list", func(t *testing.T) {
		res, err := s.handleSearchTags(context.Background(), callRequest("search_tags", map[string]any{"term": "sun", "category": "exact"}))
		require.NoError(t, err)
		out := decode(t, res)
		assert.Equal(t, []any{}, out["tags"])
	})

	t.Run("missing term", func(t *testing.T) {
		res, err := s.handleSearchTags(context.Background(), callRequest("search_tags", nil))
		require.NoError(t, err)
		assert.True(t, res.IsError)
	})

	t.Run("unknown or bulk category", func(t *testing.T) {
		for _, c := range []string{"fresh", "new"} {
			res, err := s.handleSearchTags(context.Background(), callRequest("search_tags", map[string]any{"term": "sun", "category": c}))
			require.NoError(t, err)
			assert.True(t, res.IsError, c)
		}
	})
}

func TestHandleSearchTags_NotFoundAndErrors(t *testing.T) {
	empty := &models.SearchTagResult{}
	empty.Normalize()
	s := newTestServer(t, &fakeSearch{result: empty}, &fakeBulk{})
	res, err := s.handleSearchTags(context.Background(), callRequest("search_tags", map[string]any{"term": "zzz"}))
	require.NoError(t, err)
	assert.Equal(t, false, decode(t, res)["found"])

	s = newTestServer(t, &fakeSearch{err: utils.WrapErrorf(utils.ErrDatabase, "lookup")}, &fakeBulk{})
	res, err = s.handleSearchTags(context.Background(), callRequest("search_tags", map[string]any{"term": "sun"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleListings(t *testing.T) {
	bulk := &fakeBulk{newTags: sampleTags(5), bestTags: sampleTags(2)}
	s := newTestServer(t, &fakeSearch{}, bulk)

	res, err := s.handleGetNewTags(context.Background(), callRequest("get_new_tags", map[string]any{"limit": 3}))
	require.NoError(t, err)
	out := decode(t, res)
	assert.Equal(t, "new", out["category"])
	assert.EqualValues(t, 3, out["returned"])
	assert.EqualValues(t, 5, out["total"])

	res, err = s.handleGetBestTags(context.Background(), callRequest("get_best_tags", nil))
	require.NoError(t, err)
	out = decode(t, res)
	assert.EqualValues(t, 2, out["returned"])

	s = newTestServer(t, &fakeSearch{}, &fakeBulk{err: errors.New("boom")})
	res, err = s.handleGetBestTags(context.Background(), callRequest("get_best_tags", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func waitForStatus(t *testing.T, s *Server, jobID string, want JobStatus) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		job = s.jobManager.GetJob(jobID)
		return job != nil && job.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestRefreshBulkTagsJob(t *testing.T) {
	bulk := &fakeBulk{newTags: sampleTags(10), bestTags: sampleTags(4), release: make(chan struct{})}
	s := newTestServer(t, &fakeSearch{}, bulk)

	res, err := s.handleRefreshBulkTags(context.Background(), callRequest("refresh_bulk_tags", nil))
	require.NoError(t, err)
	started := decode(t, res)
	assert.Equal(t, "started", started["status"])
	jobID := started["job_id"].(string)

	res, err = s.handleRefreshBulkTags(context.Background(), callRequest("refresh_bulk_tags", nil))
	require.NoError(t, err)
	again := decode(t, res)
	assert.Equal(t, "already_running", again["status"])
	assert.Equal(t, jobID, again["job_id"])

	close(bulk.release)
	waitForStatus(t, s, jobID, JobStatusCompleted)
	assert.EqualValues(t, 1, bulk.refreshes.Load())

	res, err = s.handleGetJobStatus(context.Background(), callRequest("get_job_status", map[string]any{"job_id": jobID}))
	require.NoError(t, err)
	status := decode(t, res)
	assert.Equal(t, "completed", status["status"])
	assert.EqualValues(t, 10, status["new_tags_count"])
	assert.EqualValues(t, 4, status["best_tags_count"])
	assert.Equal(t, "2024-05-01T12:00:00Z", status["last_update"])
	assert.Contains(t, status, "duration_seconds")
}

func TestRefreshBulkTagsJob_Failure(t *testing.T) {
	s := newTestServer(t, &fakeSearch{}, &fakeBulk{err: utils.WrapErrorf(utils.ErrUpstream, "best tags")})

	res, err := s.handleRefreshBulkTags(context.Background(), callRequest("refresh_bulk_tags", nil))
	require.NoError(t, err)
	jobID := decode(t, res)["job_id"].(string)

	job := waitForStatus(t, s, jobID, JobStatusFailed)
	assert.Contains(t, job.ErrorMessage, "upstream unavailable")
}

func TestHandleGetJobStatus_Errors(t *testing.T) {
	s := newTestServer(t, &fakeSearch{}, &fakeBulk{})

	res, err := s.handleGetJobStatus(context.Background(), callRequest("get_job_status", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleGetJobStatus(context.Background(), callRequest("get_job_status", map[string]any{"job_id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestShutdownCancelsJobs(t *testing.T) {
	bulk := &fakeBulk{release: make(chan struct{})}
	s := newTestServer(t, &fakeSearch{}, bulk)

	res, err := s.handleRefreshBulkTags(context.Background(), callRequest("refresh_bulk_tags", nil))
	require.NoError(t, err)
	jobID := decode(t, res)["job_id"].(string)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, JobStatusCancelled, s.jobManager.GetJob(jobID).Status)

	close(bulk.release)
	// A refresh finishing after cancellation leaves the job cancelled
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, JobStatusCancelled, s.jobManager.GetJob(jobID).Status)
}
