package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
	"github.com/Sriram-PR/hashtag-scraper/pkg/fetch"
	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testSources() Sources {
	return NewSources(config.UpstreamConfig{
		BaseURL:      "http://upstream.test",
		NewTagsPath:  "/new?page=%d",
		NewTagsPages: 10,
		BestTagsPath: "/best",
		SearchPath:   "/hashtag/%s",
	})
}

// fakeFetcher serves canned bodies by URL and records every call
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	delays map[string]time.Duration
	calls  map[string]int
	total  atomic.Int64
	// sawCanceled is set if any fetch ran with an already-canceled context
	sawCanceled atomic.Bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: make(map[string]string),
		errs:   make(map[string]error),
		delays: make(map[string]time.Duration),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Page, error) {
	f.total.Add(1)
	if ctx.Err() != nil {
		f.sawCanceled.Store(true)
	}
	f.mu.Lock()
	f.calls[rawURL]++
	body, ok := f.bodies[rawURL]
	err := f.errs[rawURL]
	delay := f.delays[rawURL]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &fetch.FetchError{URL: rawURL, Kind: fetch.KindStatus, StatusCode: 404, Err: utils.ErrClientHTTPError}
	}
	return &fetch.Page{URL: rawURL, StatusCode: 200, Body: []byte(body), FetchedAt: time.Now()}, nil
}

func (f *fakeFetcher) set(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[url] = body
}

func (f *fakeFetcher) callsTo(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// memStore is an in-memory TermStore
type memStore struct {
	mu        sync.Mutex
	records   []*models.SearchTagRecord
	lookupErr error
	insertErr error
}

func (m *memStore) Lookup(_ context.Context, word string) (*models.SearchTagRecord, bool, error) {
	if m.lookupErr != nil {
		return nil, false, m.lookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.SearchWord == word {
			return r, true, nil
		}
	}
	return nil, false, nil
}

func (m *memStore) Insert(_ context.Context, rec *models.SearchTagRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// recordingObserver counts outcomes
type recordingObserver struct {
	mu       sync.Mutex
	searches map[string]int
	refresh  map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{searches: map[string]int{}, refresh: map[string]int{}}
}

func (o *recordingObserver) ObserveSearch(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.searches[outcome]++
}

func (o *recordingObserver) ObserveRefresh(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refresh[outcome]++
}

const searchHTML = `<html><body>
<div class="tag-box tag-box-v3 margin-bottom-40"><p1>#sun #sunset</p1></div>
<div id="exact"><table>
  <tr><th>#</th><th>Tag</th><th>Posts</th></tr>
  <tr><td>1</td><td>#sun</td><td>1,000</td></tr>
</table></div>
</body></html>`

// listingHTML renders a listing table whose ids start at first
func listingHTML(first, rows int) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="table table-striped"><tr><td>#</td><td>Tag</td><td>Posts</td></tr>`)
	for i := range rows {
		id := first + i
		fmt.Fprintf(&b, "<tr><td>%d</td><td>#tag%d</td><td>%d,000</td></tr>", id, id, id)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

var errBoom = errors.New("boom")
