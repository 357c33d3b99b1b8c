package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
)

type staticCompanies []int64

func (c staticCompanies) ListIDs(ctx context.Context) ([]int64, error) {
	return c, nil
}

type fakeMarker struct {
	mu      sync.Mutex
	calls   map[int64]time.Time
	counts  map[int64]int64
	fail    int64
	running atomic.Int32
	peak    atomic.Int32
}

func (m *fakeMarker) MarkOverdue(ctx context.Context, companyID int64, asOf time.Time) (int64, error) {
	cur := m.running.Add(1)
	defer m.running.Add(-1)
	for {
		peak := m.peak.Load()
		if cur <= peak || m.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	if companyID == m.fail {
		return 0, errors.New("database unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[companyID] = asOf
	return m.counts[companyID], nil
}

func newSweep(companies []int64, marker *fakeMarker) *OverdueSweepJob {
	job := NewOverdueSweepJob(staticCompanies(companies), marker, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2026, 3, 14, 0, 5, 0, 0, time.UTC) }
	return job
}

func TestOverdueSweepVisitsEveryCompany(t *testing.T) {
	marker := &fakeMarker{calls: map[int64]time.Time{}, counts: map[int64]int64{1: 2, 3: 5}}
	ids := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	job := newSweep(ids, marker)

	task, err := NewOverdueSweepTask(OverdueSweepPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, marker.calls, len(ids))
	for _, at := range marker.calls {
		require.Equal(t, job.now(), at)
	}
	require.LessOrEqual(t, marker.peak.Load(), int32(sweepParallelism))

	marked, err := job.Sweep(context.Background(), ids, job.now())
	require.NoError(t, err)
	require.Equal(t, int64(7), marked)
}

func TestOverdueSweepSingleCompany(t *testing.T) {
	marker := &fakeMarker{calls: map[int64]time.Time{}, counts: map[int64]int64{}}
	job := newSweep([]int64{1, 2}, marker)
	asOf := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	task, err := NewOverdueSweepTask(OverdueSweepPayload{CompanyID: 2, AsOf: asOf})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, map[int64]time.Time{2: asOf}, marker.calls)
}

func TestOverdueSweepReportsFailure(t *testing.T) {
	marker := &fakeMarker{calls: map[int64]time.Time{}, counts: map[int64]int64{}, fail: 2}
	job := newSweep([]int64{1, 2, 3}, marker)

	task, err := NewOverdueSweepTask(OverdueSweepPayload{})
	require.NoError(t, err)
	require.ErrorContains(t, job.Handle(context.Background(), task), "database unavailable")
}

func TestOverdueSweepRejectsBadPayload(t *testing.T) {
	job := newSweep(nil, &fakeMarker{calls: map[int64]time.Time{}})
	err := job.Handle(context.Background(), asynq.NewTask(TaskOverdueSweep, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type fakePurger struct {
	olderThan time.Duration
	removed   int64
}

func (p *fakePurger) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	p.olderThan = olderThan
	return p.removed, nil
}

func TestIdempotencyCleanupUsesRetention(t *testing.T) {
	purger := &fakePurger{removed: 4}
	job := &IdempotencyCleanupJob{Store: purger, Retention: 720 * time.Hour, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}

	task, err := NewIdempotencyCleanupTask(IdempotencyCleanupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 720*time.Hour, purger.olderThan)

	task, err = NewIdempotencyCleanupTask(IdempotencyCleanupPayload{Retention: time.Hour})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, time.Hour, purger.olderThan)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	h := NewHandler(nil, nil)
	rr := httptest.NewRecorder()
	h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body.Queue)
	require.Zero(t, body.Pending)
}
