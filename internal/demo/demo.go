// Package demo registers the example routes served by "shuttle serve".
// They exercise request scopes and event streams end to end.
package demo

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/shuttle/pkg/config"
	"mercator-hq/shuttle/pkg/httperr"
	"mercator-hq/shuttle/pkg/limits"
	"mercator-hq/shuttle/pkg/requestid"
	"mercator-hq/shuttle/pkg/scope"
	"mercator-hq/shuttle/pkg/scope/extract"
	"mercator-hq/shuttle/pkg/sse"
	"mercator-hq/shuttle/pkg/sse/journal"
)

// MaxTicks bounds the count parameter of the clock stream.
const MaxTicks = 10000

// Deps are the collaborators of the demo routes.
type Deps struct {
	SSE config.SSEConfig

	// Journal enables Last-Event-ID replay on the clock stream. Nil
	// disables it.
	Journal journal.Store

	// Limits bounds the event streams of each caller. Nil disables it.
	Limits *limits.Limiter

	Logger *slog.Logger
}

type handlers struct {
	Deps
}

// Routes returns a registration function for server.WithRoutes.
func Routes(d Deps) func(chi.Router) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.SSE.ClockInterval <= 0 {
		d.SSE.ClockInterval = config.DefaultSSEClockInterval
	}
	h := &handlers{Deps: d}

	return func(r chi.Router) {
		r.Get("/v1/context", h.context)
		r.Post("/v1/context", h.context)
		r.Group(func(r chi.Router) {
			if h.Limits != nil {
				r.Use(limits.Middleware(h.Limits, limits.WithLogger(h.Logger)))
			}
			r.Get("/v1/events/clock", h.clock)
			r.Get("/v1/events/echo", h.echo)
		})
	}
}

// ContextResponse is the body of /v1/context.
type ContextResponse struct {
	Scope map[string]any `json:"scope"`
}

// context answers with a snapshot of the request scope.
func (h *handlers) context(w http.ResponseWriter, r *http.Request) {
	snapshot, err := scope.Copy(r.Context())
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "scope snapshot failed", "error", err)
		_ = httperr.Write(w, httperr.NewServerError("request scope unavailable"))
		return
	}
	_ = httperr.WriteJSON(w, http.StatusOK, ContextResponse{Scope: snapshot})
}

// Tick is the payload of clock events.
type Tick struct {
	Seq       int       `json:"seq"`
	Time      time.Time `json:"time"`
	RequestID string    `json:"request_id,omitempty"`
}

// clock streams one "tick" event per interval. With ?count=N the stream
// ends after N ticks; otherwise it runs until the client disconnects.
func (h *handlers) clock(w http.ResponseWriter, r *http.Request) {
	count, err := parseCount(r.URL.Query().Get("count"))
	if err != nil {
		_ = httperr.Write(w, httperr.NewInvalidRequest(err.Error(), httperr.CodeInvalidValue))
		return
	}

	var reqID string
	if id, ok := requestid.FromContext(r.Context()); ok {
		reqID = id.String()
	}

	p := ticker(h.SSE.ClockInterval, h.SSE.Retry, count, reqID)
	if h.Journal != nil {
		p = sse.Replay(h.Journal, clockStream(r.Context()), sse.LastEventID(r), p)
	}

	sse.NewResponse(p, sse.WithHeartbeat(h.SSE.HeartbeatInterval)).ServeHTTP(w, r)
}

// clockStream keeps one journal per subject so reconnecting clients never
// replay another caller's events.
func clockStream(ctx context.Context) string {
	if subject, ok, _ := scope.Value[string](ctx, extract.KeySubject); ok && subject != "" {
		return "clock:" + subject
	}
	return "clock"
}

func ticker(every time.Duration, retry, count int, reqID string) sse.Provider {
	return func(ctx context.Context) iter.Seq2[sse.Event, error] {
		return func(yield func(sse.Event, error) bool) {
			t := time.NewTicker(every)
			defer t.Stop()

			for seq := 1; count == 0 || seq <= count; seq++ {
				select {
				case <-ctx.Done():
					return
				case now := <-t.C:
					opts := []sse.EventOption{sse.WithName("tick")}
					if seq == 1 && retry > 0 {
						opts = append(opts, sse.WithRetry(retry))
					}
					ev, err := sse.NewJSON(Tick{Seq: seq, Time: now.UTC(), RequestID: reqID}, opts...)
					if err != nil {
						yield(nil, err)
						return
					}
					if !yield(ev, nil) {
						return
					}
				}
			}
		}
	}
}

func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > MaxTicks {
		return 0, &countError{value: s}
	}
	return n, nil
}

type countError struct {
	value string
}

func (e *countError) Error() string {
	return "count must be an integer between 0 and " + strconv.Itoa(MaxTicks) + ", got " + strconv.Quote(e.value)
}

// echo streams each data query parameter back as an event. With ?event=name
// the events are named JSON events; otherwise they are plain text. The
// stream ends with [DONE] unless done=false.
func (h *handlers) echo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("event")

	var events []sse.Event
	for _, data := range q["data"] {
		if name == "" {
			events = append(events, sse.Text{Data: data})
			continue
		}
		ev, err := sse.NewJSON(map[string]string{"data": data}, sse.WithName(name))
		if err != nil {
			_ = httperr.Write(w, httperr.NewInvalidRequest(err.Error(), httperr.CodeInvalidValue))
			return
		}
		events = append(events, ev)
	}
	if q.Get("done") != "false" {
		events = append(events, sse.Done{})
	}

	sse.NewResponse(sse.Events(events...)).ServeHTTP(w, r)
}
