package gallery

import (
	"context"

	"github.com/mingjobo/piximagegenerator/internal/models"
)

// Event is a typed generation signal. Exactly one field set.
type Event struct {
	Started   *GenerationStarted
	Succeeded *GenerationSucceeded
	Failed    *GenerationFailed
}

// GenerationStarted signals that a generation request was dispatched.
type GenerationStarted struct {
	Emoji    string
	UserUUID string
}

// GenerationSucceeded carries the finalized work.
type GenerationSucceeded struct {
	Work models.Work
}

// GenerationFailed carries the failure message shown to the user.
type GenerationFailed struct {
	Message string
}

// Bridge translates generation signals into engine transitions. It is the
// seam between the gallery state and whatever plumbing actually calls the
// generation endpoint: callers either invoke the On* methods directly or
// feed a channel through Run.
type Bridge struct {
	engine *Engine
}

// NewBridge returns a bridge bound to the engine.
func NewBridge(engine *Engine) *Bridge {
	return &Bridge{engine: engine}
}

// OnStarted pins a placeholder for the dispatched request.
func (b *Bridge) OnStarted(ev GenerationStarted) models.Work {
	return b.engine.Start(ev.Emoji, ev.UserUUID)
}

// OnSucceeded confirms the pinned placeholder with the finished work.
func (b *Bridge) OnSucceeded(ev GenerationSucceeded) {
	b.engine.Success(ev.Work)
}

// OnFailed removes the placeholder and surfaces the failure.
func (b *Bridge) OnFailed(ev GenerationFailed) {
	b.engine.Fail(ev.Message)
}

// Run consumes events until the channel closes or the context ends.
func (b *Bridge) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch {
			case ev.Started != nil:
				b.OnStarted(*ev.Started)
			case ev.Succeeded != nil:
				b.OnSucceeded(*ev.Succeeded)
			case ev.Failed != nil:
				b.OnFailed(*ev.Failed)
			}
		}
	}
}
