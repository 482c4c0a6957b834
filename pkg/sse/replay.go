package sse

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"mercator-hq/shuttle/pkg/sse/journal"
)

// LastEventIDHeader is sent by reconnecting EventSource clients.
const LastEventIDHeader = "Last-Event-ID"

// LastEventID returns the id a client wants to resume after. The header
// takes precedence over the lastEventId query parameter used by clients
// that cannot set headers.
func LastEventID(r *http.Request) string {
	if id := r.Header.Get(LastEventIDHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("lastEventId")
}

// Replay returns a Provider that first yields the journaled events of
// stream appended after lastEventID and then the events of live.
//
// Live JSON events are journaled before they are yielded. An event without
// an id is given a time-ordered one. Text and Done events carry no id and
// are passed through without journaling.
//
// If lastEventID is no longer retained the replay is skipped and only live
// events are sent.
//
// The journal keeps name, id and data only. Replayed events are sent without
// a retry field even if the live event carried one.
func Replay(store journal.Store, stream, lastEventID string, live Provider) Provider {
	return func(ctx context.Context) iter.Seq2[Event, error] {
		return func(yield func(Event, error) bool) {
			if lastEventID != "" {
				entries, err := store.Since(ctx, stream, lastEventID, 0)
				switch {
				case errors.Is(err, journal.ErrNotFound):
					slog.WarnContext(ctx, "last event id not retained, skipping replay",
						"stream", stream,
						"last_event_id", lastEventID,
					)
				case err != nil:
					yield(nil, err)
					return
				}
				for _, e := range entries {
					if !yield(fromEntry(e), nil) {
						return
					}
				}
			}

			for ev, err := range live(ctx) {
				if err != nil {
					yield(nil, err)
					return
				}
				if j, ok := ev.(*JSON); ok {
					ev = journalEvent(ctx, store, stream, j)
				}
				if !yield(ev, nil) {
					return
				}
			}
		}
	}
}

func journalEvent(ctx context.Context, store journal.Store, stream string, e *JSON) *JSON {
	if e.id == "" {
		id, err := uuid.NewV7()
		if err != nil {
			slog.WarnContext(ctx, "failed to assign event id", "stream", stream, "error", err)
			return e
		}
		e = e.withID(id.String())
	}

	err := store.Append(ctx, journal.Entry{
		Stream: stream,
		ID:     e.id,
		Name:   e.name,
		Data:   e.payload,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to journal event",
			"stream", stream,
			"event_id", e.id,
			"error", err,
		)
	}
	return e
}

func fromEntry(e journal.Entry) *JSON {
	return &JSON{name: e.Name, id: e.ID, retry: -1, payload: e.Data}
}
