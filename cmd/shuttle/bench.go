package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/shuttle/pkg/cli"
)

// benchRetryDelay spaces out reconnects after a failed stream.
const benchRetryDelay = 50 * time.Millisecond

var benchFlags struct {
	target   string
	streams  int
	duration time.Duration
	headers  []string
	output   string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load test an event stream endpoint",
	Long: `Hold many Server-Sent Events streams open against a running server.

Each of --streams workers opens the target, reads events until the stream
ends and reconnects, until --duration has passed. Heartbeat comments are
not counted as events.

Reported:
  - Connections opened, failures and status codes
  - Events received and events per second
  - Time to first event (min, mean, p50, p95, p99, max)

Examples:
  # 10 streams of 10 ticks each, reconnecting for 10s
  shuttle bench

  # 200 open clock streams for a minute with an API key
  shuttle bench --target http://localhost:8080/v1/events/clock \
    --streams 200 --duration 1m -H "X-API-Key: sk_..."`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	f := benchCmd.Flags()
	f.StringVar(&benchFlags.target, "target", "http://127.0.0.1:8080/v1/events/clock?count=10", "event stream URL")
	f.IntVar(&benchFlags.streams, "streams", 10, "concurrent streams")
	f.DurationVar(&benchFlags.duration, "duration", 10*time.Second, "test duration")
	f.StringArrayVarP(&benchFlags.headers, "header", "H", nil, `request header as "Name: value" (repeatable)`)
	f.StringVarP(&benchFlags.output, "output", "o", "text", "output format: text, json, yaml")
}

func runBench(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(benchFlags.output)
	if err != nil {
		return err
	}
	if benchFlags.streams < 1 {
		return fmt.Errorf("--streams must be at least 1")
	}
	if benchFlags.duration <= 0 {
		return fmt.Errorf("--duration must be positive")
	}
	header, err := parseHeaders(benchFlags.headers)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(cmd.Context(), slog.Default())
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, benchFlags.duration)
	defer cancel()

	result := runLoad(ctx, http.DefaultClient, benchRequest{
		URL:     benchFlags.target,
		Header:  header,
		Streams: benchFlags.streams,
	})
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)
}

// parseHeaders turns "Name: value" flags into a header.
func parseHeaders(values []string) (http.Header, error) {
	h := make(http.Header)
	for _, v := range values {
		name, value, ok := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (want \"Name: value\")", v)
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

type benchRequest struct {
	URL     string
	Header  http.Header
	Streams int
}

type benchResult struct {
	Connections     int            `json:"connections" yaml:"connections"`
	Failed          int            `json:"failed" yaml:"failed"`
	Status          map[int]int    `json:"status" yaml:"status"`
	Events          int64          `json:"events" yaml:"events"`
	Seconds         float64        `json:"seconds" yaml:"seconds"`
	EventsPerSecond float64        `json:"events_per_second" yaml:"events_per_second"`
	FirstEvent      latencySummary `json:"first_event_ms" yaml:"first_event_ms"`
}

func (r benchResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Connections:  %d total, %d failed\n", r.Connections, r.Failed)
	fmt.Fprintf(&b, "Events:       %d in %.1fs (%.2f/s)\n", r.Events, r.Seconds, r.EventsPerSecond)

	codes := make([]int, 0, len(r.Status))
	for code := range r.Status {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	b.WriteString("Status Codes:\n")
	for _, code := range codes {
		fmt.Fprintf(&b, "  %d:  %d\n", code, r.Status[code])
	}

	l := r.FirstEvent
	b.WriteString("Time to first event:\n")
	fmt.Fprintf(&b, "  Min: %.1fms  Mean: %.1fms  p50: %.1fms\n", l.Min, l.Mean, l.P50)
	fmt.Fprintf(&b, "  p95: %.1fms  p99: %.1fms  Max: %.1fms", l.P95, l.P99, l.Max)
	return b.String()
}

// latencySummary holds percentiles in milliseconds.
type latencySummary struct {
	Min  float64 `json:"min" yaml:"min"`
	Mean float64 `json:"mean" yaml:"mean"`
	P50  float64 `json:"p50" yaml:"p50"`
	P95  float64 `json:"p95" yaml:"p95"`
	P99  float64 `json:"p99" yaml:"p99"`
	Max  float64 `json:"max" yaml:"max"`
}

func summarize(latencies []time.Duration) latencySummary {
	if len(latencies) == 0 {
		return latencySummary{}
	}
	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	at := func(p float64) time.Duration { return sorted[int(float64(len(sorted)-1)*p)] }

	return latencySummary{
		Min:  ms(sorted[0]),
		Mean: ms(sum / time.Duration(len(sorted))),
		P50:  ms(at(0.50)),
		P95:  ms(at(0.95)),
		P99:  ms(at(0.99)),
		Max:  ms(sorted[len(sorted)-1]),
	}
}

// streamOutcome describes one connection.
type streamOutcome struct {
	status     int
	events     int
	firstEvent time.Duration
	err        error
}

// runLoad keeps req.Streams connections busy until ctx is done.
func runLoad(ctx context.Context, client *http.Client, req benchRequest) benchResult {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		latencies []time.Duration
		result    = benchResult{Status: make(map[int]int)}
	)

	start := time.Now()
	for i := 0; i < req.Streams; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				o := consume(ctx, client, req)
				if o.err != nil && ctx.Err() != nil {
					return
				}

				failed := o.err != nil || o.status != http.StatusOK
				mu.Lock()
				result.Connections++
				if o.status != 0 {
					result.Status[o.status]++
				}
				if failed {
					result.Failed++
				}
				result.Events += int64(o.events)
				if o.events > 0 {
					latencies = append(latencies, o.firstEvent)
				}
				mu.Unlock()

				if failed {
					select {
					case <-ctx.Done():
					case <-time.After(benchRetryDelay):
					}
				}
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	result.Seconds = elapsed.Seconds()
	if result.Seconds > 0 {
		result.EventsPerSecond = float64(result.Events) / result.Seconds
	}
	result.FirstEvent = summarize(latencies)
	return result
}

func consume(ctx context.Context, client *http.Client, req benchRequest) streamOutcome {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return streamOutcome{err: err}
	}
	if req.Header != nil {
		r.Header = req.Header.Clone()
	}
	r.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := client.Do(r)
	if err != nil {
		return streamOutcome{err: err}
	}
	defer resp.Body.Close()

	o := streamOutcome{status: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return o
	}

	o.events, o.firstEvent, o.err = countEvents(resp.Body, start)
	if o.err != nil && ctx.Err() != nil {
		// The benchmark ended mid-stream.
		o.err = nil
	}
	return o
}

// countEvents reads an event stream to the end. It returns the number of
// dispatched events and the time from start to the first one. Blocks with
// no data field, such as heartbeat comments, are not events.
func countEvents(r io.Reader, start time.Time) (int, time.Duration, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		events  int
		first   time.Duration
		hasData bool
	)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			if hasData {
				if events == 0 {
					first = time.Since(start)
				}
				events++
				hasData = false
			}
			continue
		}
		if bytes.HasPrefix(line, []byte("data:")) || bytes.Equal(line, []byte("data")) {
			hasData = true
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return events, first, err
	}
	return events, first, nil
}
