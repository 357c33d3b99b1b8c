package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/ledgerline/ledgerline/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// sweepParallelism bounds how many companies are swept at once.
const sweepParallelism = 4

// CompanyLister lists the companies a sweep visits.
type CompanyLister interface {
	ListIDs(ctx context.Context) ([]int64, error)
}

// OverdueMarker flips overdue invoices of one company.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, companyID int64, asOf time.Time) (int64, error)
}

// OverdueSweepJob marks invoices overdue across companies.
type OverdueSweepJob struct {
	Companies CompanyLister
	Documents OverdueMarker
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewOverdueSweepJob wires dependencies for the sweep handler.
func NewOverdueSweepJob(companies CompanyLister, documents OverdueMarker, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{
		Companies: companies,
		Documents: documents,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes overdue sweep tasks.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Documents == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	var payload OverdueSweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	tracker := j.metrics().Track(TaskOverdueSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.now()
	}
	companies, err := j.companies(ctx, payload.CompanyID)
	if err != nil {
		j.logger().Error("load companies", slog.Any("error", err))
		return err
	}
	marked, err := j.Sweep(ctx, companies, asOf)
	if err != nil {
		return err
	}
	j.logger().Info("completed overdue sweep", slog.Int("companies", len(companies)), slog.Int64("marked", marked))
	return nil
}

// Sweep runs MarkOverdue for every company, at most four at a time, and
// returns the number of invoices flipped.
func (j *OverdueSweepJob) Sweep(ctx context.Context, companies []int64, asOf time.Time) (int64, error) {
	counts := make([]int64, len(companies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepParallelism)
	for i, companyID := range companies {
		g.Go(func() error {
			n, err := j.Documents.MarkOverdue(gctx, companyID, asOf)
			if err != nil {
				j.logger().Error("mark overdue", slog.Int64("company_id", companyID), slog.Any("error", err))
				return err
			}
			counts[i] = n
			j.metrics().AddOverdue(companyID, n)
			return nil
		})
	}
	err := g.Wait()
	var total int64
	for _, n := range counts {
		total += n
	}
	return total, err
}

func (j *OverdueSweepJob) companies(ctx context.Context, only int64) ([]int64, error) {
	if only > 0 {
		return []int64{only}, nil
	}
	if j.Companies == nil {
		return nil, errors.New("overdue sweep: company lister not configured")
	}
	return j.Companies.ListIDs(ctx)
}

func (j *OverdueSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverdueSweep))
	}
	return slog.Default().With(slog.String("job", TaskOverdueSweep))
}

func (j *OverdueSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
