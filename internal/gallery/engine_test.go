package gallery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mingjobo/piximagegenerator/internal/models"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(msg string) { n.messages = append(n.messages, msg) }

type fakeFetcher struct {
	pages []Page
	calls int
	err   error
}

func (f *fakeFetcher) FetchPage(_ context.Context, _ *string, _ int) (Page, error) {
	f.calls++
	if f.err != nil {
		return Page{}, f.err
	}
	if len(f.pages) == 0 {
		return Page{}, nil
	}
	p := f.pages[0]
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return p, nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock, *recordingNotifier, *fakeFetcher) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}
	fetcher := &fakeFetcher{}
	e := NewEngine(NewMemStore(), NewMemStore(), fetcher, notifier, zerolog.Nop())
	e.now = clk.Now
	return e, clk, notifier, fetcher
}

func wk(id int64, uuid string, age time.Duration) models.Work {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return models.Work{
		ID:        id,
		UUID:      uuid,
		UserUUID:  "user-1",
		Emoji:     "🍕",
		ImageURL:  "/api/image/pixels/" + uuid + ".png",
		CreatedAt: base.Add(-age),
	}
}

func worksOf(n int) []models.Work {
	out := make([]models.Work, n)
	for i := range out {
		out[i] = wk(int64(100-i), fmt.Sprintf("w-%d", i), time.Duration(i)*time.Minute)
	}
	return out
}

func uuids(list []models.Work) []string {
	out := make([]string, len(list))
	for i, w := range list {
		out[i] = w.UUID
	}
	return out
}

func TestMergeHead_PinnedCopyWinsOnConflict(t *testing.T) {
	pinnedCopy := wk(5, "w-dup", 0)
	pinnedCopy.ImageURL = "pinned-version"
	syncedCopy := wk(5, "w-dup", 0)
	syncedCopy.ImageURL = "synced-version"

	head := mergeHead([]models.Work{pinnedCopy}, []models.Work{syncedCopy, wk(4, "w-other", time.Minute)})

	require.Len(t, head, 2)
	for _, w := range head {
		if w.UUID == "w-dup" {
			assert.Equal(t, "pinned-version", w.ImageURL)
		}
	}
}

func TestMergeHead_PlaceholdersFirstThenCreatedDesc(t *testing.T) {
	placeholder := models.Work{UUID: models.PlaceholderPrefix + "abc", Emoji: "🍦", CreatedAt: time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)}
	newest := wk(3, "w-new", 0)
	oldest := wk(1, "w-old", 10*time.Minute)
	middle := wk(2, "w-mid", 5*time.Minute)

	head := mergeHead([]models.Work{oldest, placeholder}, []models.Work{middle, newest})

	require.Equal(t, []string{models.PlaceholderPrefix + "abc", "w-new", "w-mid", "w-old"}, uuids(head))
}

func TestMergeHead_BoundedAtTwelve(t *testing.T) {
	head := mergeHead(worksOf(8), worksOf(20)[8:])
	assert.LessOrEqual(t, len(head), Top12Size)
	assert.Len(t, head, 12)
}

func TestSync_EmptyPinSetReplacesVisibleState(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	top12 := worksOf(12)
	cursor := "99"

	e.Sync(Page{Works: top12, HasMore: true, NextCursor: &cursor})

	assert.Equal(t, uuids(top12), uuids(e.Visible()))
	assert.True(t, e.HasMore())
	require.NotNil(t, e.nextCursor)
	assert.Equal(t, "99", *e.nextCursor)
	assert.False(t, e.UpdateAvailable())
}

func TestStart_PinsPlaceholderAtFront(t *testing.T) {
	e, clk, _, _ := newTestEngine(t)
	e.Sync(Page{Works: worksOf(3)})

	ph := e.Start("🍦", "user-9")

	assert.True(t, ph.IsPlaceholder())
	visible := e.Visible()
	require.NotEmpty(t, visible)
	assert.Equal(t, ph.UUID, visible[0].UUID)
	assert.Equal(t, clk.t.Add(PinWindow), e.pinUntil)
}

func TestSuccess_ReplacesPlaceholderAndRearmsExpiry(t *testing.T) {
	e, clk, _, _ := newTestEngine(t)
	e.Start("🍦", "user-9")

	clk.Advance(80 * time.Second)
	confirmed := wk(42, "w-1", 0)
	confirmed.CreatedAt = clk.t
	e.Success(confirmed)

	require.Len(t, e.pinned, 1)
	assert.Equal(t, "w-1", e.pinned[0].UUID)
	assert.False(t, e.pinned[0].IsPlaceholder())
	// A success re-arms a fresh window, it does not inherit the remainder.
	assert.Equal(t, clk.t.Add(PinWindow), e.pinUntil)
}

func TestFail_RemovesOnlyPlaceholderAndClearsExpiryWhenEmpty(t *testing.T) {
	e, _, notifier, _ := newTestEngine(t)
	e.Start("🍕", "user-9")

	e.Fail("")

	assert.Empty(t, e.pinned)
	assert.True(t, e.pinUntil.IsZero())
	require.Len(t, notifier.messages, 1)
}

func TestFail_LeavesOtherPinsAndExpiryUntouched(t *testing.T) {
	e, clk, notifier, _ := newTestEngine(t)
	confirmed := wk(7, "w-7", 0)
	e.Success(confirmed) // pin a confirmed work first
	armedAt := e.pinUntil

	clk.Advance(10 * time.Second)
	e.Start("🔥", "user-9")
	e.Fail("provider exploded")

	require.Len(t, e.pinned, 1)
	assert.Equal(t, "w-7", e.pinned[0].UUID)
	// Fail never touches the expiry of the surviving pins. Start had
	// re-armed it, so it reflects the Start instant, not the removal.
	assert.Equal(t, armedAt.Add(10*time.Second), e.pinUntil)
	assert.Equal(t, []string{"provider exploded"}, notifier.messages)
}

func TestSync_DuringActivePinHoldsVisibleListAndRaisesIndicator(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	initial := worksOf(5)
	e.Sync(Page{Works: initial})
	e.Success(wk(50, "w-mine", 0))
	before := uuids(e.Visible())

	fresher := append([]models.Work{wk(60, "w-brand-new", 0)}, initial...)
	e.Sync(Page{Works: fresher})

	assert.Equal(t, before, uuids(e.Visible()), "visible list must not change under an active pin")
	assert.True(t, e.UpdateAvailable())
}

func TestSync_DuringActivePinWithSameIdentifiersStaysQuiet(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	initial := worksOf(5)
	e.Sync(Page{Works: initial})
	e.Success(wk(50, "w-mine", 0))

	e.Sync(Page{Works: initial})

	assert.False(t, e.UpdateAvailable())
}

func TestTick_ExpiryClearsPinAdoptsCachedSnapshot(t *testing.T) {
	e, clk, _, _ := newTestEngine(t)
	e.Sync(Page{Works: worksOf(3)})
	e.Success(wk(50, "w-mine", 0))

	// Refresh arrives silently while pinned.
	cached := []models.Work{wk(90, "x", 0), wk(89, "y", time.Minute), wk(88, "z", 2*time.Minute)}
	e.Sync(Page{Works: cached})
	require.True(t, e.UpdateAvailable())

	clk.Advance(PinWindow + time.Second)
	e.Tick()

	assert.Empty(t, e.pinned)
	assert.True(t, e.pinUntil.IsZero())
	assert.Equal(t, []string{"x", "y", "z"}, uuids(e.Visible()))
	assert.False(t, e.UpdateAvailable())
}

func TestTick_ExpiredPinNeverConsultedAgain(t *testing.T) {
	e, clk, _, _ := newTestEngine(t)
	e.Sync(Page{Works: worksOf(3)})
	e.Success(wk(50, "w-mine", 0))

	clk.Advance(PinWindow)
	e.Tick()
	first := uuids(e.Visible())

	e.Tick()
	assert.Equal(t, first, uuids(e.Visible()))
	assert.NotContains(t, first, "w-mine")

	// The session store was cleared exactly once, not left behind.
	var leftover []models.Work
	found, _ := e.session.Get(keyPinned, &leftover)
	assert.False(t, found)
}

func TestTick_BeforeExpiryIsANoOp(t *testing.T) {
	e, clk, _, _ := newTestEngine(t)
	e.Success(wk(50, "w-mine", 0))

	clk.Advance(PinWindow - time.Second)
	e.Tick()

	require.Len(t, e.pinned, 1)
}

func TestLoadMore_FirstPagePersistedLaterPagesInMemory(t *testing.T) {
	e, _, _, fetcher := newTestEngine(t)
	c1, c2 := "80", "76"
	e.Sync(Page{Works: worksOf(12), HasMore: true, NextCursor: &c1})

	older := []models.Work{wk(80, "p1-a", 20*time.Minute), wk(79, "p1-b", 21*time.Minute)}
	fetcher.pages = []Page{
		{Works: older, HasMore: true, NextCursor: &c2},
		{Works: []models.Work{wk(76, "p2-a", 30*time.Minute)}, HasMore: false},
	}

	require.NoError(t, e.LoadMore(context.Background()))

	var persisted []models.Work
	found, _ := e.persist.Get(keyPage1, &persisted)
	require.True(t, found)
	assert.Equal(t, []string{"p1-a", "p1-b"}, uuids(persisted))

	require.NoError(t, e.LoadMore(context.Background()))

	found, _ = e.persist.Get(keyPage1, &persisted)
	require.True(t, found)
	assert.Equal(t, []string{"p1-a", "p1-b"}, uuids(persisted), "later pages must stay memory-only")
	assert.Contains(t, uuids(e.Visible()), "p2-a")
	assert.False(t, e.HasMore())
}

func TestLoadMore_RequiresCursorAndHasMore(t *testing.T) {
	e, _, _, fetcher := newTestEngine(t)
	e.Sync(Page{Works: worksOf(3), HasMore: false})

	require.NoError(t, e.LoadMore(context.Background()))
	assert.Zero(t, fetcher.calls)
}

func TestLoadMore_FetchFailureLeavesStateUnchanged(t *testing.T) {
	e, _, _, fetcher := newTestEngine(t)
	cursor := "42"
	e.Sync(Page{Works: worksOf(3), HasMore: true, NextCursor: &cursor})
	fetcher.err = fmt.Errorf("connection reset")

	err := e.LoadMore(context.Background())

	require.Error(t, err)
	assert.True(t, e.HasMore())
	assert.Empty(t, e.page1)
}

func TestVisible_DedupesPagedItemsAgainstHead(t *testing.T) {
	e, _, _, fetcher := newTestEngine(t)
	cursor := "10"
	e.Sync(Page{Works: worksOf(3), HasMore: true, NextCursor: &cursor})
	fetcher.pages = []Page{{Works: []models.Work{wk(10, "w-paged", 15*time.Minute)}}}
	require.NoError(t, e.LoadMore(context.Background()))

	// A pin later surfaces the same work at the head.
	dup := wk(10, "w-paged", 15*time.Minute)
	e.Success(dup)

	count := 0
	for _, u := range uuids(e.Visible()) {
		if u == "w-paged" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLoad_DiscardsPinSetWithoutExpiry(t *testing.T) {
	session := NewMemStore()
	session.Set(keyPinned, []models.Work{wk(1, "w-stale", 0)})
	// keyPinUntil deliberately absent: violates the pin invariant.

	e := NewEngine(session, NewMemStore(), &fakeFetcher{}, nil, zerolog.Nop())
	e.Load()

	assert.Empty(t, e.pinned)
}

func TestLoad_HydratesPersistedSnapshots(t *testing.T) {
	persist := NewMemStore()
	persist.Set(keyTop12, worksOf(2))
	persist.Set(keyHasMore, true)
	persist.Set(keyNextCursor, "55")

	e := NewEngine(NewMemStore(), persist, &fakeFetcher{}, nil, zerolog.Nop())
	e.Load()

	assert.Len(t, e.top12, 2)
	assert.True(t, e.HasMore())
	require.NotNil(t, e.nextCursor)
	assert.Equal(t, "55", *e.nextCursor)
}

func TestLoad_HydratesLastSyncTime(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	persist := NewMemStore()
	persist.Set(keyLastSyncAt, base.Add(-time.Minute).UnixMilli())

	e := NewEngine(NewMemStore(), persist, &fakeFetcher{}, nil, zerolog.Nop())
	e.now = (&fakeClock{t: base}).Now
	e.Load()

	assert.True(t, e.SyncedWithin(SyncInterval))
	assert.False(t, e.SyncedWithin(30*time.Second))
}

func TestSync_RecordsLastSyncTime(t *testing.T) {
	e, clk, _, _ := newTestEngine(t)
	require.False(t, e.SyncedWithin(SyncInterval))

	e.Sync(Page{Works: worksOf(2)})
	assert.True(t, e.SyncedWithin(SyncInterval))

	clk.Advance(SyncInterval)
	assert.False(t, e.SyncedWithin(SyncInterval))
}

func TestStart_MultiplePlaceholdersMayStack(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	e.Start("🍕", "u")
	e.Start("🍦", "u")

	require.Len(t, e.pinned, 2)
	assert.Equal(t, "🍦", e.pinned[0].Emoji)
}
