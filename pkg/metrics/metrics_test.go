package metrics

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type fakeCounter struct {
	n   int
	err error
}

func (f fakeCounter) Count(context.Context) (int, error) { return f.n, f.err }

type fakeGauge struct{}

func (fakeGauge) Capacity() int { return 500 }
func (fakeGauge) InFlight() int { return 3 }
func (fakeGauge) Peak() int     { return 42 }

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch("ok", time.Second)
		m.ObserveSearch("hit")
		m.ObserveRefresh("ok", time.Second)
		m.ObserveRequest("/getNewTags", "200")
		m.WatchLimiter(fakeGauge{})
		m.WatchStore(fakeCounter{}, testLogger())
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveFetch("ok", 200*time.Millisecond)
	m.ObserveFetch("ok", 300*time.Millisecond)
	m.ObserveFetch("timeout", 180*time.Second)
	m.ObserveSearch("hit")
	m.ObserveRefresh("fresh", 0)
	m.ObserveRefresh("ok", 3*time.Second)
	m.ObserveRequest("/getSearchTags/:term", "200")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("fresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/getSearchTags/:term", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.refreshTime), "skipped refreshes are not timed")
}

func TestWatchLimiter(t *testing.T) {
	m := New()
	m.WatchLimiter(fakeGauge{})

	expected := `
# HELP hashtag_scraper_fetch_slots_in_use Upstream requests currently holding a slot
# TYPE hashtag_scraper_fetch_slots_in_use gauge
hashtag_scraper_fetch_slots_in_use 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "hashtag_scraper_fetch_slots_in_use"))
}

func TestWatchStore(t *testing.T) {
	t.Run("reports count", func(t *testing.T) {
		m := New()
		m.WatchStore(fakeCounter{n: 7}, testLogger())
		expected := `
# HELP hashtag_scraper_stored_search_records Search records currently in the term store
# TYPE hashtag_scraper_stored_search_records gauge
hashtag_scraper_stored_search_records 7
`
		require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "hashtag_scraper_stored_search_records"))
	})

	t.Run("store error emits nothing", func(t *testing.T) {
		m := New()
		m.WatchStore(fakeCounter{err: errors.New("down")}, testLogger())
		n, err := testutil.GatherAndCount(m.Registry, "hashtag_scraper_stored_search_records")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
