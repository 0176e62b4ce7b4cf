// Package walker drives one download run: it pages through the listing feed,
// filters each posting, resolves its link into direct image URLs, and hands
// them to the fetcher, aggregating counters until a termination condition.
package walker

import (
	"errors"
	"regexp"

	"github.com/EmmEff/RedditImageGrab/pkg/fetcher"
	"github.com/EmmEff/RedditImageGrab/pkg/logger"
	"github.com/EmmEff/RedditImageGrab/pkg/reddit"
	"github.com/EmmEff/RedditImageGrab/pkg/retry"
)

// FeedClient pages through the listing feed by opaque cursor.
type FeedClient interface {
	Items(subreddit, afterID string) ([]reddit.Item, error)
}

// URLResolver expands one submitted link into direct image URLs.
type URLResolver interface {
	Resolve(rawURL string) ([]string, error)
}

// Downloader fetches one direct image URL into the destination directory.
type Downloader interface {
	Fetch(rawURL string) (string, error)
}

// Options holds the per-run filters and termination policy.
type Options struct {
	Subreddit string

	// LastID is the starting cursor; empty means start from the newest posting.
	LastID string

	// MinScore rejects postings scored below it.
	MinScore int

	// Limit stops the run after this many downloads; 0 means unlimited.
	Limit int

	// Update stops the run at the first already-downloaded file.
	Update bool

	// SFWOnly rejects postings marked adult; NSFWOnly rejects postings not
	// marked adult. Both set means both filters apply and everything is
	// rejected, matching the historical behavior.
	SFWOnly  bool
	NSFWOnly bool

	// TitleRegex, when set, must match the posting title from the start of
	// the string.
	TitleRegex *regexp.Regexp
}

// Counters aggregates the results of one run.
type Counters struct {
	Total      int
	Downloaded int
	Skipped    int
	Duplicates int
	Failed     int
}

// RunState owns the mutable cursor and counters for one run.
type RunState struct {
	Counters Counters

	// Cursor is the id of the last item observed in the most recently
	// fetched page, even if that item was filtered out, so pagination
	// always advances.
	Cursor string

	finished bool
}

// Walker coordinates the feed, resolver, and fetcher for one run.
type Walker struct {
	feed     FeedClient
	resolver URLResolver
	fetcher  Downloader
	opts     Options
	retryCfg *retry.Config
	logger   logger.Logger
}

// New creates a Walker. retryCfg applies to feed page fetches only; nil
// disables retrying.
func New(feed FeedClient, resolver URLResolver, dl Downloader, opts Options, retryCfg *retry.Config, log logger.Logger) *Walker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Walker{
		feed:     feed,
		resolver: resolver,
		fetcher:  dl,
		opts:     opts,
		retryCfg: retryCfg,
		logger:   log,
	}
}

// Run executes the run to completion and returns the final state. The run
// ends when the feed is exhausted, the download limit is reached, or a
// duplicate is hit in update mode. Only feed page fetch failures are fatal;
// everything per-URL is recovered and counted.
func (w *Walker) Run() (*RunState, error) {
	state := &RunState{Cursor: w.opts.LastID}

	for !state.finished {
		items, err := w.fetchPage(state.Cursor)
		if err != nil {
			return state, err
		}
		if len(items) == 0 {
			w.logger.InfoWithFields("feed exhausted", map[string]interface{}{
				"subreddit": w.opts.Subreddit,
				"cursor":    state.Cursor,
			})
			break
		}

		for _, item := range items {
			w.processItem(state, item)
			if state.finished {
				break
			}
		}

		// Advance past the whole page regardless of filtering outcome.
		state.Cursor = items[len(items)-1].ID
	}

	w.logger.InfoWithFields("run complete", map[string]interface{}{
		"subreddit":  w.opts.Subreddit,
		"total":      state.Counters.Total,
		"downloaded": state.Counters.Downloaded,
		"skipped":    state.Counters.Skipped,
		"duplicates": state.Counters.Duplicates,
		"failed":     state.Counters.Failed,
	})

	return state, nil
}

// fetchPage requests the next page of items, retrying transient failures.
func (w *Walker) fetchPage(cursor string) ([]reddit.Item, error) {
	if w.retryCfg == nil {
		return w.feed.Items(w.opts.Subreddit, cursor)
	}
	return retry.DoWithResult(func() ([]reddit.Item, error) {
		return w.feed.Items(w.opts.Subreddit, cursor)
	}, w.retryCfg)
}

// processItem filters one posting and downloads its resolved URLs.
func (w *Walker) processItem(state *RunState, item reddit.Item) {
	state.Counters.Total++

	if reason := w.filterItem(item); reason != "" {
		state.Counters.Skipped++
		w.logger.DebugWithFields("item skipped", map[string]interface{}{
			"id":     item.ID,
			"title":  item.Title,
			"reason": reason,
		})
		return
	}

	urls, err := w.resolver.Resolve(item.URL)
	if err != nil {
		// Album expansion could not be fetched; counted like any other
		// per-URL transport failure.
		state.Counters.Failed++
		w.logger.WarnWithFields("failed to resolve URL", map[string]interface{}{
			"id":    item.ID,
			"url":   item.URL,
			"error": err.Error(),
		})
		return
	}

	for _, url := range urls {
		w.download(state, item, url)
		if state.finished {
			return
		}
	}
}

// filterItem returns a non-empty rejection reason, or "" when the item passes
// every configured filter.
func (w *Walker) filterItem(item reddit.Item) string {
	if item.Score < w.opts.MinScore {
		return "score below minimum"
	}
	if w.opts.SFWOnly && item.Over18 {
		return "marked NSFW"
	}
	if w.opts.NSFWOnly && !item.Over18 {
		return "not marked NSFW"
	}
	if w.opts.TitleRegex != nil {
		loc := w.opts.TitleRegex.FindStringIndex(item.Title)
		if loc == nil || loc[0] != 0 {
			return "title regex match failed"
		}
	}
	return ""
}

// download fetches one resolved URL and updates the counters, deciding
// whether the run stops here.
func (w *Walker) download(state *RunState, item reddit.Item, url string) {
	filename, err := w.fetcher.Fetch(url)
	if err == nil {
		state.Counters.Downloaded++
		w.logger.InfoWithFields("downloaded", map[string]interface{}{
			"id":       item.ID,
			"url":      url,
			"filename": filename,
		})

		if w.opts.Limit > 0 && state.Counters.Downloaded >= w.opts.Limit {
			w.logger.InfoWithFields("download limit reached", map[string]interface{}{
				"limit": w.opts.Limit,
			})
			state.finished = true
		}
		return
	}

	var dlErr *fetcher.Error
	if errors.As(err, &dlErr) {
		switch dlErr.Kind {
		case fetcher.KindWrongContentType:
			state.Counters.Skipped++
			w.logger.DebugWithFields("unsupported content type", map[string]interface{}{
				"id":           item.ID,
				"url":          url,
				"content_type": dlErr.ContentType,
			})
		case fetcher.KindAlreadyExists:
			state.Counters.Duplicates++
			w.logger.InfoWithFields("already downloaded", map[string]interface{}{
				"id":  item.ID,
				"url": url,
			})
			if w.opts.Update {
				w.logger.Info("update complete, stopping")
				state.finished = true
			}
		}
		return
	}

	// Transport failure: log with enough context for a manual retry with an
	// adjusted cursor, then continue with the next URL.
	state.Counters.Failed++
	w.logger.WarnWithFields("download failed", map[string]interface{}{
		"id":    item.ID,
		"url":   url,
		"error": err.Error(),
	})
}
