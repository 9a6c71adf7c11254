package gallery

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mingjobo/piximagegenerator/internal/models"
)

const (
	// PinWindow is how long a fresh submission stays held at the top of
	// the gallery. A confirmed result re-arms the full window.
	PinWindow = 3 * time.Minute

	// Top12Size bounds the merged head and the synced snapshot.
	Top12Size = 12

	// Page1Size bounds the persisted second page.
	Page1Size = 4

	// LoadMoreLimit is the page size for load-more fetches.
	LoadMoreLimit = 4
)

// Notifier surfaces user-visible failure messages. The engine only calls
// into it; rendering belongs to the host.
type Notifier interface {
	Notify(message string)
}

// NopNotifier discards all messages.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string) {}

// Engine reconciles the pinned works held in the session store with the
// synced snapshots held in the persistent store. It is the only component
// that mutates either store; everything else reads through its methods.
//
// All transitions run to completion under one lock, so observers never
// see a half-applied state.
type Engine struct {
	mu      sync.Mutex
	session KV
	persist KV
	fetcher Fetcher
	notify  Notifier
	log     zerolog.Logger
	now     func() time.Time

	pinned   []models.Work
	pinUntil time.Time

	top12      []models.Work
	page1      []models.Work
	extra      []models.Work
	hasMore    bool
	nextCursor *string

	lastSync        time.Time
	updateAvailable bool

	loadMoreBusy atomic.Bool
}

// NewEngine wires the engine to its stores and collaborators. Call Load
// to hydrate cached state before first use.
func NewEngine(session, persist KV, fetcher Fetcher, notify Notifier, logger zerolog.Logger) *Engine {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Engine{
		session: session,
		persist: persist,
		fetcher: fetcher,
		notify:  notify,
		log:     logger,
		now:     time.Now,
	}
}

// Load hydrates the engine from both stores. Corrupt or missing values
// degrade to defaults. A pin set without an expiry violates the pin
// invariant and is discarded.
func (e *Engine) Load() {
	e.mu.Lock()
	defer e.mu.Unlock()

	var pinned []models.Work
	e.session.Get(keyPinned, &pinned)
	var pinUntilMs int64
	hasUntil, _ := e.session.Get(keyPinUntil, &pinUntilMs)

	if len(pinned) > 0 && !hasUntil {
		pinned = nil
		e.session.Remove(keyPinned)
	}
	e.pinned = pinned
	if hasUntil {
		e.pinUntil = time.UnixMilli(pinUntilMs)
	}

	e.persist.Get(keyTop12, &e.top12)
	e.persist.Get(keyPage1, &e.page1)
	e.persist.Get(keyHasMore, &e.hasMore)
	var cursor string
	if ok, _ := e.persist.Get(keyNextCursor, &cursor); ok {
		e.nextCursor = &cursor
	}
	var lastSyncMs int64
	if ok, _ := e.persist.Get(keyLastSyncAt, &lastSyncMs); ok {
		e.lastSync = time.UnixMilli(lastSyncMs)
	}
}

// SyncedWithin reports whether the cached snapshot was synced less than
// d ago. Used to skip a refresh when the hydrated state is still fresh.
func (e *Engine) SyncedWithin(d time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.lastSync.IsZero() && e.now().Sub(e.lastSync) < d
}

// Start inserts a placeholder for a dispatched generation request at the
// front of the pin set and arms the pin window. It returns the placeholder
// so the caller can correlate the eventual result if it wants to.
func (e *Engine) Start(emoji, userUUID string) models.Work {
	e.mu.Lock()
	defer e.mu.Unlock()

	placeholder := models.Work{
		UUID:      models.PlaceholderPrefix + uuid.New().String(),
		UserUUID:  userUUID,
		Emoji:     emoji,
		CreatedAt: e.now(),
	}
	e.pinned = append([]models.Work{placeholder}, e.pinned...)
	e.pinUntil = e.now().Add(PinWindow)
	e.savePin()

	e.log.Debug().Str("uuid", placeholder.UUID).Str("emoji", emoji).Msg("generation placeholder pinned")
	return placeholder
}

// Success replaces the most recent placeholder with the confirmed work and
// re-arms a fresh pin window.
func (e *Engine) Success(work models.Work) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.removeOnePlaceholder()
	e.pinned = append([]models.Work{work}, e.pinned...)
	e.pinUntil = e.now().Add(PinWindow)
	e.savePin()

	e.log.Debug().Str("uuid", work.UUID).Msg("generation confirmed, pin re-armed")
}

// Fail removes exactly one placeholder, leaves any remaining pins and
// their expiry untouched, and surfaces the failure to the user. When the
// last pin goes away the expiry is cleared with it.
func (e *Engine) Fail(reason string) {
	e.mu.Lock()
	e.removeOnePlaceholder()
	if len(e.pinned) == 0 {
		e.pinUntil = time.Time{}
	}
	e.savePin()
	e.mu.Unlock()

	if reason == "" {
		reason = "Failed to pixelate. Try again."
	}
	e.notify.Notify(reason)
	e.log.Warn().Str("reason", reason).Msg("generation failed")
}

// Tick checks the pin expiry. Once now reaches the expiry the pin set is
// cleared, the freshest cached snapshot becomes visible, and the update
// indicator resets. Call at least once per second.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pinUntil.IsZero() || e.now().Before(e.pinUntil) {
		return
	}

	e.pinned = nil
	e.pinUntil = time.Time{}
	e.session.Remove(keyPinned)
	e.session.Remove(keyPinUntil)

	// Adopt whatever the background sync cached while the pin was held.
	var top12 []models.Work
	if ok, _ := e.persist.Get(keyTop12, &top12); ok {
		e.top12 = top12
	}
	var hasMore bool
	if ok, _ := e.persist.Get(keyHasMore, &hasMore); ok {
		e.hasMore = hasMore
	}
	var cursor string
	if ok, _ := e.persist.Get(keyNextCursor, &cursor); ok {
		e.nextCursor = &cursor
	}
	e.updateAvailable = false

	e.log.Debug().Msg("pin expired, cached snapshot adopted")
}

// Sync applies a fresh newest-12 fetch result. The snapshot is always
// persisted; whether it becomes visible depends on the pin state. While a
// pin is active the visible list is left alone and the update indicator
// is raised only when the new identifier sequence differs from the
// visible one.
func (e *Engine) Sync(page Page) {
	e.mu.Lock()
	defer e.mu.Unlock()

	top12 := page.Works
	if len(top12) > Top12Size {
		top12 = top12[:Top12Size]
	}

	e.persist.Set(keyTop12, top12)
	e.persist.Set(keyHasMore, page.HasMore)
	if page.NextCursor != nil {
		e.persist.Set(keyNextCursor, *page.NextCursor)
	} else {
		e.persist.Remove(keyNextCursor)
	}
	e.lastSync = e.now()
	e.persist.Set(keyLastSyncAt, e.lastSync.UnixMilli())

	if e.pinActive() {
		if !sameUUIDs(top12, e.top12) {
			e.updateAvailable = true
		}
		return
	}

	e.top12 = top12
	e.hasMore = page.HasMore
	e.nextCursor = page.NextCursor
	e.updateAvailable = false
}

// LoadMore pages older works in. It is single-flight: a call while a
// previous one is still in flight is dropped. The first extra page is
// persisted so the second page survives restarts; later pages stay in
// memory only.
func (e *Engine) LoadMore(ctx context.Context) error {
	if !e.loadMoreBusy.CompareAndSwap(false, true) {
		return nil
	}
	defer e.loadMoreBusy.Store(false)

	e.mu.Lock()
	if !e.hasMore || e.nextCursor == nil {
		e.mu.Unlock()
		return nil
	}
	cursor := *e.nextCursor
	e.mu.Unlock()

	page, err := e.fetcher.FetchPage(ctx, &cursor, LoadMoreLimit)
	if err != nil {
		e.log.Error().Err(err).Msg("load-more fetch failed")
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.page1) == 0 {
		p1 := page.Works
		if len(p1) > Page1Size {
			p1 = p1[:Page1Size]
		}
		e.page1 = p1
		e.persist.Set(keyPage1, p1)
	} else {
		e.extra = append(e.extra, page.Works...)
	}

	e.hasMore = page.HasMore
	e.nextCursor = page.NextCursor
	e.persist.Set(keyHasMore, page.HasMore)
	if page.NextCursor != nil {
		e.persist.Set(keyNextCursor, *page.NextCursor)
	} else {
		e.persist.Remove(keyNextCursor)
	}
	return nil
}

// Visible returns the full displayed list: the merged head followed by
// the paged-in works, deduplicated by identifier across the whole list
// with the head taking precedence.
func (e *Engine) Visible() []models.Work {
	e.mu.Lock()
	defer e.mu.Unlock()

	head := mergeHead(e.activePinned(), e.top12)
	out := make([]models.Work, 0, len(head)+len(e.page1)+len(e.extra))
	seen := make(map[string]struct{}, len(head))
	for _, w := range head {
		seen[w.UUID] = struct{}{}
		out = append(out, w)
	}
	for _, w := range e.page1 {
		if _, dup := seen[w.UUID]; dup {
			continue
		}
		seen[w.UUID] = struct{}{}
		out = append(out, w)
	}
	for _, w := range e.extra {
		if _, dup := seen[w.UUID]; dup {
			continue
		}
		seen[w.UUID] = struct{}{}
		out = append(out, w)
	}
	return out
}

// UpdateAvailable reports whether a background sync observed a newer
// snapshot while a pin kept the visible list frozen.
func (e *Engine) UpdateAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateAvailable
}

// HasMore reports whether older pages remain.
func (e *Engine) HasMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasMore
}

func (e *Engine) pinActive() bool {
	return len(e.pinned) > 0 && !e.pinUntil.IsZero() && e.now().Before(e.pinUntil)
}

// activePinned returns the pin set only while the pin window is open.
// Callers hold e.mu.
func (e *Engine) activePinned() []models.Work {
	if !e.pinActive() {
		return nil
	}
	return e.pinned
}

// removeOnePlaceholder drops the first placeholder entry, if any.
// Callers hold e.mu.
func (e *Engine) removeOnePlaceholder() {
	for i, w := range e.pinned {
		if w.IsPlaceholder() {
			e.pinned = append(e.pinned[:i:i], e.pinned[i+1:]...)
			return
		}
	}
}

// savePin persists the pin set and its expiry. Callers hold e.mu.
func (e *Engine) savePin() {
	e.session.Set(keyPinned, e.pinned)
	if e.pinUntil.IsZero() {
		e.session.Remove(keyPinUntil)
	} else {
		e.session.Set(keyPinUntil, e.pinUntil.UnixMilli())
	}
}

// mergeHead computes the displayed head from the pin set and the synced
// snapshot: dedupe by uuid with pinned entries winning, placeholders
// first, then creation time descending, truncated to Top12Size. Pure
// function, no I/O.
func mergeHead(pinned, top12 []models.Work) []models.Work {
	merged := make([]models.Work, 0, len(pinned)+len(top12))
	seen := make(map[string]struct{}, len(pinned)+len(top12))
	for _, w := range pinned {
		if _, dup := seen[w.UUID]; dup {
			continue
		}
		seen[w.UUID] = struct{}{}
		merged = append(merged, w)
	}
	for _, w := range top12 {
		if _, dup := seen[w.UUID]; dup {
			continue
		}
		seen[w.UUID] = struct{}{}
		merged = append(merged, w)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		pi, pj := merged[i].IsPlaceholder(), merged[j].IsPlaceholder()
		if pi != pj {
			return pi
		}
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	if len(merged) > Top12Size {
		merged = merged[:Top12Size]
	}
	return merged
}

// sameUUIDs compares two work lists by identifier sequence.
func sameUUIDs(a, b []models.Work) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].UUID != b[i].UUID {
			return false
		}
	}
	return true
}
