// Package watcher follows a set of profiles and forwards posts that appear
// between polls to notification sinks.
package watcher

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/xfeed/config"
	"github.com/use-agent/xfeed/models"
	"github.com/use-agent/xfeed/timeline"
)

// Fetcher returns the current posts of a profile.
type Fetcher interface {
	Fetch(ctx context.Context, handle string) (*timeline.Result, error)
}

// Notifier receives new posts for one handle, oldest first.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, handle string, posts []models.PostRecord) error
}

// Watcher polls handles on an interval. Cursors live in memory only, so a
// restart primes them again without notifying.
type Watcher struct {
	fetcher     Fetcher
	sinks       []Notifier
	interval    time.Duration
	concurrency int

	mu      sync.Mutex // guards handles and cursors
	handles []string
	cursors map[string]uint64
}

// New validates and deduplicates cfg.Handles. The list may be empty when
// handles are added later with Follow.
func New(fetcher Fetcher, cfg config.WatchConfig, sinks ...Notifier) (*Watcher, error) {
	var handles []string
	for _, raw := range cfg.Handles {
		h, err := timeline.NormalizeHandle(raw)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(handles, h) {
			handles = append(handles, h)
		}
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 3 * time.Minute
	}
	return &Watcher{
		fetcher:     fetcher,
		sinks:       sinks,
		handles:     handles,
		interval:    interval,
		concurrency: max(cfg.Concurrency, 1),
		cursors:     make(map[string]uint64),
	}, nil
}

// List returns the followed handles in the order they were added.
func (w *Watcher) List() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.handles)
}

// Followed describes a handle accepted by Follow.
type Followed struct {
	Handle string
	Cursor uint64
	Found  int
}

// Follow starts watching raw. The profile is fetched once so that the cursor
// starts at its newest post; a profile that cannot be fetched or shows no
// posts is rejected and nothing changes.
func (w *Watcher) Follow(ctx context.Context, raw string) (Followed, error) {
	handle, err := timeline.NormalizeHandle(raw)
	if err != nil {
		return Followed{}, err
	}
	if w.following(handle) {
		return Followed{}, alreadyFollowing(handle)
	}

	res, err := w.fetcher.Fetch(ctx, handle)
	if err != nil {
		return Followed{}, err
	}
	fresh, top := newerThan(res.Posts, 0)
	if len(fresh) == 0 {
		return Followed{}, models.NewScrapeError(models.ErrCodeNotFound, "no posts found for @"+handle, ErrNoPosts)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if slices.Contains(w.handles, handle) {
		return Followed{}, alreadyFollowing(handle)
	}
	w.handles = append(w.handles, handle)
	w.cursors[handle] = top
	slog.Info("watch follow", "handle", handle, "cursor", top, "found", len(fresh))
	return Followed{Handle: handle, Cursor: top, Found: len(fresh)}, nil
}

// Unfollow stops watching raw and forgets its cursor.
func (w *Watcher) Unfollow(raw string) (string, error) {
	handle, err := timeline.NormalizeHandle(raw)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	i := slices.Index(w.handles, handle)
	if i < 0 {
		return "", models.NewScrapeError(models.ErrCodeNotFound, "not following @"+handle, ErrNotFollowing)
	}
	w.handles = slices.Delete(w.handles, i, i+1)
	delete(w.cursors, handle)
	slog.Info("watch unfollow", "handle", handle)
	return handle, nil
}

var (
	ErrAlreadyFollowing = errors.New("watcher: already following")
	ErrNotFollowing     = errors.New("watcher: not following")
	ErrNoPosts          = errors.New("watcher: no posts")
)

func alreadyFollowing(handle string) error {
	return models.NewScrapeError(models.ErrCodeConflict, "already following @"+handle, ErrAlreadyFollowing)
}

func (w *Watcher) following(handle string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Contains(w.handles, handle)
}

// Run polls immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	slog.Info("watcher started", "handles", w.List(), "interval", w.interval.String(), "sinks", len(w.sinks))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.Poll(ctx)
		select {
		case <-ctx.Done():
			slog.Info("watcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll checks every handle once with bounded concurrency. Failures are
// logged per handle and never abort the others.
func (w *Watcher) Poll(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, h := range w.List() {
		g.Go(func() error {
			if err := w.check(ctx, h); err != nil {
				slog.Warn("watch check failed", "handle", h, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

// Cursor reports the highest post id seen for handle.
func (w *Watcher) Cursor(handle string) (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.cursors[handle]
	return c, ok
}

func (w *Watcher) check(ctx context.Context, handle string) error {
	res, err := w.fetcher.Fetch(ctx, handle)
	if err != nil {
		return err
	}

	cursor, primed := w.Cursor(handle)
	fresh, top := newerThan(res.Posts, cursor)
	if !primed {
		// An empty first result leaves the handle unprimed so a transient
		// empty page does not turn the whole backlog into notifications.
		if len(fresh) > 0 {
			w.advance(handle, top)
			slog.Info("watch cursor primed", "handle", handle, "cursor", top)
		}
		return nil
	}
	if len(fresh) == 0 {
		slog.Debug("no new posts", "handle", handle)
		return nil
	}

	slog.Info("new posts", "handle", handle, "count", len(fresh))
	var errs []error
	for _, s := range w.sinks {
		if err := s.Notify(ctx, handle, fresh); err != nil {
			errs = append(errs, err)
			slog.Warn("notify failed", "sink", s.Name(), "handle", handle, "error", err)
		}
	}
	w.advance(handle, top)
	return errors.Join(errs...)
}

func (w *Watcher) advance(handle string, id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// Unfollowed while its check was in flight.
	if !slices.Contains(w.handles, handle) {
		return
	}
	if cur, ok := w.cursors[handle]; !ok || id > cur {
		w.cursors[handle] = id
	}
}

type numbered struct {
	id   uint64
	post models.PostRecord
}

// newerThan returns posts with an id above cursor sorted by ascending id,
// and the highest id among them.
func newerThan(posts []models.PostRecord, cursor uint64) ([]models.PostRecord, uint64) {
	var picked []numbered
	for _, p := range posts {
		id, err := strconv.ParseUint(p.ID, 10, 64)
		if err != nil || id <= cursor {
			continue
		}
		picked = append(picked, numbered{id, p})
	}
	slices.SortFunc(picked, func(a, b numbered) int { return cmp.Compare(a.id, b.id) })

	out := make([]models.PostRecord, len(picked))
	top := cursor
	for i, n := range picked {
		out[i] = n.post
		top = n.id
	}
	return out, top
}
