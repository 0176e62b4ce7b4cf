package walker

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/EmmEff/RedditImageGrab/pkg/errors"
	"github.com/EmmEff/RedditImageGrab/pkg/fetcher"
	"github.com/EmmEff/RedditImageGrab/pkg/reddit"
)

// mockFeed returns canned pages in order, then empty pages.
type mockFeed struct {
	pages   [][]reddit.Item
	err     error
	cursors []string
}

func (m *mockFeed) Items(subreddit, afterID string) ([]reddit.Item, error) {
	m.cursors = append(m.cursors, afterID)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.pages) == 0 {
		return nil, nil
	}
	page := m.pages[0]
	m.pages = m.pages[1:]
	return page, nil
}

// passthroughResolver resolves every URL to itself.
type passthroughResolver struct {
	resolved []string
}

func (r *passthroughResolver) Resolve(rawURL string) ([]string, error) {
	r.resolved = append(r.resolved, rawURL)
	return []string{rawURL}, nil
}

// mockDownloader returns per-URL canned errors, success otherwise.
type mockDownloader struct {
	errors  map[string]error
	fetched []string
}

func (d *mockDownloader) Fetch(rawURL string) (string, error) {
	d.fetched = append(d.fetched, rawURL)
	if err, ok := d.errors[rawURL]; ok {
		return "", err
	}
	return "file.jpg", nil
}

func item(id string, score int, over18 bool) reddit.Item {
	return reddit.Item{
		ID:     id,
		URL:    fmt.Sprintf("http://example.com/%s.jpg", id),
		Title:  "posting " + id,
		Score:  score,
		Over18: over18,
	}
}

func TestRunScoreFilter(t *testing.T) {
	feed := &mockFeed{pages: [][]reddit.Item{
		{item("a1", 10, false), item("a2", 1, false)},
	}}
	dl := &mockDownloader{}
	w := New(feed, &passthroughResolver{}, dl, Options{Subreddit: "pics", MinScore: 5}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	assert.Equal(t, 2, state.Counters.Total)
	assert.Equal(t, 1, state.Counters.Downloaded)
	assert.Equal(t, 1, state.Counters.Skipped)
	assert.Equal(t, []string{"http://example.com/a1.jpg"}, dl.fetched)
}

func TestRunDownloadLimit(t *testing.T) {
	feed := &mockFeed{pages: [][]reddit.Item{
		{item("a1", 10, false), item("a2", 10, false)},
	}}
	res := &passthroughResolver{}
	dl := &mockDownloader{}
	w := New(feed, res, dl, Options{Subreddit: "pics", Limit: 1}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	assert.Equal(t, 1, state.Counters.Downloaded)
	// The second item is never resolved once the limit is reached.
	assert.Equal(t, []string{"http://example.com/a1.jpg"}, res.resolved)
	assert.Len(t, feed.cursors, 1, "no further page is requested")
}

func TestRunUpdateModeStopsAtDuplicate(t *testing.T) {
	feed := &mockFeed{pages: [][]reddit.Item{
		{item("a1", 10, false), item("a2", 10, false), item("a3", 10, false), item("a4", 10, false)},
	}}
	dl := &mockDownloader{errors: map[string]error{
		"http://example.com/a3.jpg": &fetcher.Error{Kind: fetcher.KindAlreadyExists, URL: "http://example.com/a3.jpg"},
	}}
	w := New(feed, &passthroughResolver{}, dl, Options{Subreddit: "pics", Update: true}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	assert.Equal(t, 2, state.Counters.Downloaded)
	assert.Equal(t, 1, state.Counters.Duplicates)
	// a4 is never attempted.
	assert.Len(t, dl.fetched, 3)
}

func TestRunDuplicateWithoutUpdateContinues(t *testing.T) {
	feed := &mockFeed{pages: [][]reddit.Item{
		{item("a1", 10, false), item("a2", 10, false)},
	}}
	dl := &mockDownloader{errors: map[string]error{
		"http://example.com/a1.jpg": &fetcher.Error{Kind: fetcher.KindAlreadyExists, URL: "http://example.com/a1.jpg"},
	}}
	w := New(feed, &passthroughResolver{}, dl, Options{Subreddit: "pics"}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	assert.Equal(t, 1, state.Counters.Duplicates)
	assert.Equal(t, 1, state.Counters.Downloaded)
}

func TestRunWrongContentTypeCountedSkipped(t *testing.T) {
	feed := &mockFeed{pages: [][]reddit.Item{
		{item("a1", 10, false)},
	}}
	dl := &mockDownloader{errors: map[string]error{
		"http://example.com/a1.jpg": &fetcher.Error{Kind: fetcher.KindWrongContentType, URL: "http://example.com/a1.jpg", ContentType: "text/html"},
	}}
	w := New(feed, &passthroughResolver{}, dl, Options{Subreddit: "pics"}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	assert.Equal(t, 1, state.Counters.Skipped)
	assert.Equal(t, 0, state.Counters.Downloaded)
}

func TestRunTransportFailureContinues(t *testing.T) {
	feed := &mockFeed{pages: [][]reddit.Item{
		{item("a1", 10, false), item("a2", 10, false)},
	}}
	dl := &mockDownloader{errors: map[string]error{
		"http://example.com/a1.jpg": &errs.Error{Type: errs.ErrorTypeNetwork, Message: "connection refused"},
	}}
	w := New(feed, &passthroughResolver{}, dl, Options{Subreddit: "pics"}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	assert.Equal(t, 1, state.Counters.Failed)
	assert.Equal(t, 1, state.Counters.Downloaded)
}

func TestRunCursorAdvancesPastFilteredPage(t *testing.T) {
	feed := &mockFeed{pages: [][]reddit.Item{
		{item("a1", 0, false), item("a2", 0, false)},
		{item("b1", 10, false)},
	}}
	dl := &mockDownloader{}
	w := New(feed, &passthroughResolver{}, dl, Options{Subreddit: "pics", MinScore: 5}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	// First page fully filtered, yet the second page was requested after a2.
	assert.Equal(t, []string{"", "a2", "b1"}, feed.cursors)
	assert.Equal(t, "b1", state.Cursor)
	assert.Equal(t, 1, state.Counters.Downloaded)
	assert.Equal(t, 2, state.Counters.Skipped)
}

func TestRunStartsFromSuppliedCursor(t *testing.T) {
	feed := &mockFeed{}
	w := New(feed, &passthroughResolver{}, &mockDownloader{}, Options{Subreddit: "pics", LastID: "zzz"}, nil, nil)

	_, err := w.Run()

	require.NoError(t, err)
	assert.Equal(t, []string{"zzz"}, feed.cursors)
}

func TestRunSFWAndNSFWBothSetRejectsEverything(t *testing.T) {
	feed := &mockFeed{pages: [][]reddit.Item{
		{item("safe", 10, false), item("adult", 10, true)},
	}}
	dl := &mockDownloader{}
	w := New(feed, &passthroughResolver{}, dl, Options{Subreddit: "pics", SFWOnly: true, NSFWOnly: true}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	assert.Equal(t, 2, state.Counters.Skipped)
	assert.Empty(t, dl.fetched)
}

func TestRunNSFWOnly(t *testing.T) {
	feed := &mockFeed{pages: [][]reddit.Item{
		{item("safe", 10, false), item("adult", 10, true)},
	}}
	dl := &mockDownloader{}
	w := New(feed, &passthroughResolver{}, dl, Options{Subreddit: "pics", NSFWOnly: true}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	assert.Equal(t, 1, state.Counters.Downloaded)
	assert.Equal(t, []string{"http://example.com/adult.jpg"}, dl.fetched)
}

func TestRunTitleRegexAnchoredAtStart(t *testing.T) {
	items := []reddit.Item{
		{ID: "m1", URL: "http://example.com/m1.jpg", Title: "sunset over the bay", Score: 10},
		{ID: "m2", URL: "http://example.com/m2.jpg", Title: "a nice sunset", Score: 10},
	}
	feed := &mockFeed{pages: [][]reddit.Item{items}}
	dl := &mockDownloader{}
	w := New(feed, &passthroughResolver{}, dl, Options{
		Subreddit:  "pics",
		TitleRegex: regexp.MustCompile(`sunset`),
	}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	// "sunset" appears in both titles but only m1 matches from the start.
	assert.Equal(t, []string{"http://example.com/m1.jpg"}, dl.fetched)
	assert.Equal(t, 1, state.Counters.Skipped)
}

func TestRunFeedErrorAborts(t *testing.T) {
	feed := &mockFeed{err: &errs.Error{Type: errs.ErrorTypeNotFound, Message: "no such subreddit", Code: 404}}
	w := New(feed, &passthroughResolver{}, &mockDownloader{}, Options{Subreddit: "nope"}, nil, nil)

	state, err := w.Run()

	assert.Error(t, err)
	assert.Equal(t, 0, state.Counters.Total)
}

// multiURLResolver expands every URL into a fixed fan-out, like an album.
type multiURLResolver struct {
	fanout int
}

func (r *multiURLResolver) Resolve(rawURL string) ([]string, error) {
	urls := make([]string, r.fanout)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s?part=%d", rawURL, i)
	}
	return urls, nil
}

func TestRunLimitStopsMidAlbum(t *testing.T) {
	feed := &mockFeed{pages: [][]reddit.Item{
		{item("a1", 10, false)},
	}}
	dl := &mockDownloader{}
	w := New(feed, &multiURLResolver{fanout: 5}, dl, Options{Subreddit: "pics", Limit: 2}, nil, nil)

	state, err := w.Run()

	require.NoError(t, err)
	assert.Equal(t, 2, state.Counters.Downloaded)
	assert.Len(t, dl.fetched, 2, "remaining album URLs are abandoned")
}
