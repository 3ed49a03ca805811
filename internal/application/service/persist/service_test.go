package persist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	marketdata "main/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

type writeCall struct {
	path    string
	records []*marketdata.Record
}

type stubWriter struct {
	mu    sync.Mutex
	calls []writeCall
	err   error
}

func (w *stubWriter) WriteBucket(path string, records []*marketdata.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.calls = append(w.calls, writeCall{path: path, records: records})
	return nil
}

func (w *stubWriter) writeCalls() []writeCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]writeCall, len(w.calls))
	copy(out, w.calls)
	return out
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newService(t *testing.T, now time.Time, writer BucketWriter, drain bool) *Service {
	t.Helper()
	svc := New(Config{
		Exchange:    "OKX",
		Dir:         t.TempDir(),
		Interval:    10 * time.Minute,
		DrainOnStop: drain,
	}, writer, nil, testLogger())
	svc.now = func() time.Time { return now }
	svc.Start()
	return svc
}

func rec(symbol string, eventTime time.Time) *marketdata.Record {
	return &marketdata.Record{
		Exchange:     "OKX",
		Symbol:       symbol,
		TimeExchange: marketdata.FormatTime(eventTime),
		EventTime:    eventTime,
	}
}

func stop(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestNextBoundary(t *testing.T) {
	interval := 10 * time.Minute
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "mid interval",
			now:  time.Date(2026, 8, 31, 12, 9, 59, 0, time.UTC),
			want: time.Date(2026, 8, 31, 12, 10, 0, 0, time.UTC),
		},
		{
			name: "exactly on boundary rounds strictly up",
			now:  time.Date(2026, 8, 31, 12, 10, 0, 0, time.UTC),
			want: time.Date(2026, 8, 31, 12, 20, 0, 0, time.UTC),
		},
		{
			name: "hour rollover",
			now:  time.Date(2026, 8, 31, 12, 55, 30, 0, time.UTC),
			want: time.Date(2026, 8, 31, 13, 0, 0, 0, time.UTC),
		},
		{
			name: "day rollover",
			now:  time.Date(2026, 8, 31, 23, 57, 12, 0, time.UTC),
			want: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "timezone independent",
			now:  time.Date(2026, 8, 31, 14, 3, 0, 0, time.FixedZone("CEST", 2*3600)),
			want: time.Date(2026, 8, 31, 12, 10, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextBoundary(tc.now, interval)
			if !got.Equal(tc.want) {
				t.Fatalf("NextBoundary(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestNextBoundaryMonotonic(t *testing.T) {
	interval := 10 * time.Minute
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	prev := NextBoundary(now, interval)
	for i := 0; i < 200; i++ {
		now = now.Add(97 * time.Second)
		next := NextBoundary(now, interval)
		if next.Before(prev) {
			t.Fatalf("boundary went backwards: %v after %v", next, prev)
		}
		prev = next
	}
}

// Records at 12:09:59 and 12:10:01 with a 12:10:00 boundary: exactly one
// flush entry holding only the first record; the second opens the new bucket.
func TestBoundaryRotation(t *testing.T) {
	start := time.Date(2026, 8, 31, 12, 5, 0, 0, time.UTC)
	writer := &stubWriter{}
	svc := newService(t, start, writer, false)

	svc.Append(rec("BTC-USDT", time.Date(2026, 8, 31, 12, 9, 59, 0, time.UTC)))
	svc.Append(rec("BTC-USDT", time.Date(2026, 8, 31, 12, 10, 1, 0, time.UTC)))
	stop(t, svc)

	calls := writer.writeCalls()
	if len(calls) != 1 {
		t.Fatalf("got %d flushed files, want 1", len(calls))
	}
	if len(calls[0].records) != 1 {
		t.Fatalf("flushed bucket holds %d records, want 1", len(calls[0].records))
	}
	if got := calls[0].records[0].EventTime; got.Second() != 59 {
		t.Fatalf("flushed record has event time %v, want the 12:09:59 record", got)
	}
	if !strings.Contains(calls[0].path, "orderbook_OKX_BTC-USDT_202608311200_202608311210.parquet") {
		t.Fatalf("unexpected file path %q", calls[0].path)
	}
}

// A record with event time exactly equal to the boundary belongs to the new
// bucket (half-open interval).
func TestRecordExactlyOnBoundaryStartsNewBucket(t *testing.T) {
	start := time.Date(2026, 8, 31, 12, 5, 0, 0, time.UTC)
	writer := &stubWriter{}
	svc := newService(t, start, writer, true)

	svc.Append(rec("BTC-USDT", time.Date(2026, 8, 31, 12, 9, 0, 0, time.UTC)))
	svc.Append(rec("BTC-USDT", time.Date(2026, 8, 31, 12, 10, 0, 0, time.UTC)))
	stop(t, svc)

	calls := writer.writeCalls()
	if len(calls) != 2 {
		t.Fatalf("got %d flushed files, want 2 (closed bucket + drained bucket)", len(calls))
	}
	first, second := calls[0], calls[1]
	if len(first.records) != 1 || len(second.records) != 1 {
		t.Fatalf("record split = %d/%d, want 1/1", len(first.records), len(second.records))
	}
	if !strings.Contains(second.path, "_202608311210_202608311220") {
		t.Fatalf("boundary record landed in %q, want the 12:10-12:20 bucket", second.path)
	}
}

// Rapid appends past the boundary trigger rotation exactly once; every record
// lands in exactly one bucket.
func TestRotationExactlyOnce(t *testing.T) {
	start := time.Date(2026, 8, 31, 11, 55, 0, 0, time.UTC)
	writer := &stubWriter{}
	svc := newService(t, start, writer, true)

	boundary := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	const n = 100
	for i := 0; i < n; i++ {
		svc.Append(rec("ETH-USDT", boundary.Add(time.Duration(i)*time.Microsecond)))
	}
	stop(t, svc)

	calls := writer.writeCalls()
	// The bucket closed by the first post-boundary append was empty, so only
	// the drained bucket produces a file.
	if len(calls) != 1 {
		t.Fatalf("got %d flushed files, want 1", len(calls))
	}
	if len(calls[0].records) != n {
		t.Fatalf("drained bucket holds %d records, want %d", len(calls[0].records), n)
	}
}

func TestFeedGapSkipsEmptyBuckets(t *testing.T) {
	start := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	writer := &stubWriter{}
	svc := newService(t, start, writer, true)

	svc.Append(rec("BTC-USDT", start.Add(time.Minute)))
	// Next record arrives 35 minutes later, three boundaries away.
	late := start.Add(36 * time.Minute)
	svc.Append(rec("BTC-USDT", late))
	stop(t, svc)

	calls := writer.writeCalls()
	if len(calls) != 2 {
		t.Fatalf("got %d flushed files, want 2", len(calls))
	}
	if !strings.Contains(calls[1].path, "_202608311230_202608311240") {
		t.Fatalf("late record landed in %q, want the 12:30-12:40 bucket", calls[1].path)
	}
}

func TestSymbolsWithoutRecordsProduceNoFile(t *testing.T) {
	start := time.Date(2026, 8, 31, 12, 5, 0, 0, time.UTC)
	writer := &stubWriter{}
	svc := newService(t, start, writer, false)

	svc.Append(rec("BTC-USDT", start))
	svc.Append(rec("BTC-USDT", start.Add(10*time.Minute)))
	stop(t, svc)

	calls := writer.writeCalls()
	if len(calls) != 1 {
		t.Fatalf("got %d flushed files, want 1", len(calls))
	}
	if !strings.Contains(calls[0].path, "BTC-USDT") {
		t.Fatalf("unexpected path %q", calls[0].path)
	}
}

func TestFlushFailureIsDiscarded(t *testing.T) {
	start := time.Date(2026, 8, 31, 12, 5, 0, 0, time.UTC)
	writer := &stubWriter{err: errors.New("disk full")}
	svc := newService(t, start, writer, true)

	svc.Append(rec("BTC-USDT", start))
	stop(t, svc) // must not hang or retry

	if calls := writer.writeCalls(); len(calls) != 0 {
		t.Fatalf("failed writes recorded %d calls, want 0", len(calls))
	}
}

func TestStopWithoutDrainDropsOpenBucket(t *testing.T) {
	start := time.Date(2026, 8, 31, 12, 5, 0, 0, time.UTC)
	writer := &stubWriter{}
	svc := newService(t, start, writer, false)

	svc.Append(rec("BTC-USDT", start))
	stop(t, svc)

	if calls := writer.writeCalls(); len(calls) != 0 {
		t.Fatalf("open bucket was flushed without drain-on-stop: %d calls", len(calls))
	}
}
