package stream

import (
	"sync/atomic"
	"time"
)

// Outcome classifies how a streamed response ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Observer receives stream lifecycle events. The metrics package provides
// the production implementation.
type Observer interface {
	StreamOpened(mediaType string)
	ChunkSent(mediaType string, bytes int)
	StreamClosed(mediaType string, outcome Outcome, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) StreamOpened(string)                         {}
func (nopObserver) ChunkSent(string, int)                       {}
func (nopObserver) StreamClosed(string, Outcome, time.Duration) {}

type observerHolder struct{ Observer }

var observer atomic.Pointer[observerHolder]

// SetObserver installs o for every stream in the process. Passing nil
// restores the no-op observer.
func SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	observer.Store(&observerHolder{o})
}

func currentObserver() Observer {
	if h := observer.Load(); h != nil {
		return h.Observer
	}
	return nopObserver{}
}
