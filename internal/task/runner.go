// Package task runs background work off the owner goroutine and marshals
// completions back onto it.
package task

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Runner dispatches work onto goroutines and queues continuations for the
// owning goroutine. Exactly one continuation is posted per task, and it
// only runs when the owner invokes it from Completions — worker
// goroutines never touch owner state directly.
type Runner struct {
	completions chan func()
	log         zerolog.Logger
	wg          sync.WaitGroup
}

// NewRunner creates a runner whose completion queue holds up to buffer
// pending continuations before posting blocks the worker.
func NewRunner(buffer int, log zerolog.Logger) *Runner {
	if buffer <= 0 {
		buffer = 16
	}
	return &Runner{
		completions: make(chan func(), buffer),
		log:         log.With().Str("component", "task").Logger(),
	}
}

// Completions is drained by the owner goroutine. Each received function
// must be invoked there; that is the hand-off boundary that keeps shared
// state single-threaded.
func (r *Runner) Completions() <-chan func() { return r.completions }

// Post marshals fn onto the owner goroutine.
func (r *Runner) Post(fn func()) {
	r.completions <- fn
}

// Wait blocks until all dispatched work has finished and posted its
// continuation. The owner must keep draining Completions meanwhile.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Run executes work on a new goroutine and posts exactly one of
// onSuccess/onError back to the owner. A panicking work function is
// reported through onError.
func Run[T any](r *Runner, work func() (T, error), onSuccess func(T), onError func(error)) {
	id := uuid.NewString()
	r.log.Debug().Str("task", id).Msg("task dispatched")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				err := fmt.Errorf("task %s panicked: %v", id, p)
				r.Post(func() {
					if onError != nil {
						onError(err)
					} else {
						r.log.Error().Err(err).Msg("unhandled task panic")
					}
				})
			}
		}()

		result, err := work()
		if err != nil {
			r.Post(func() {
				if onError != nil {
					onError(err)
				} else {
					r.log.Error().Err(err).Str("task", id).Msg("unhandled task error")
				}
			})
			return
		}
		r.Post(func() {
			if onSuccess != nil {
				onSuccess(result)
			}
		})
	}()
}
