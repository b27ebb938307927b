package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/confirmaparty/confirma/internal/models"
	"github.com/confirmaparty/confirma/internal/services"
	"github.com/confirmaparty/confirma/pkg/logger"
)

const defaultSpec = "@every 1m"

// ErrBusy is returned when a pass is requested while another is still running.
var ErrBusy = errors.New("worker: a dispatch pass is already running")

// Result aggregates one worker pass: follow-up rows planned plus the
// dispatcher's batch outcome.
type Result struct {
	Planned  int                   `json:"planned"`
	Dispatch *services.BatchResult `json:"dispatch"`
}

// Worker periodically materialises pending follow-up rules and drains the due
// message queue. Passes never overlap; a tick that lands while the previous
// pass is still running is skipped.
type Worker struct {
	db         *gorm.DB
	scheduler  *services.SchedulerService
	dispatcher *services.DispatchService
	cron       *cron.Cron
	spec       string
	now        func() time.Time
	log        *zap.Logger

	mu sync.Mutex
}

// Option customises the Worker.
type Option func(*Worker)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(w *Worker) {
		if c != nil {
			w.cron = c
		}
	}
}

// WithSpec overrides the cron specification for the dispatch loop.
func WithSpec(spec string) Option {
	return func(w *Worker) {
		if spec != "" {
			w.spec = spec
		}
	}
}

// WithNow overrides the clock used for logging and scheduling comparisons.
func WithNow(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// New constructs a Worker.
func New(db *gorm.DB, scheduler *services.SchedulerService, dispatcher *services.DispatchService, opts ...Option) (*Worker, error) {
	if db == nil {
		return nil, errors.New("worker: db is required")
	}
	if scheduler == nil {
		return nil, errors.New("worker: scheduler is required")
	}
	if dispatcher == nil {
		return nil, errors.New("worker: dispatcher is required")
	}

	w := &Worker{
		db:         db,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		spec:       defaultSpec,
		now:        time.Now,
		log:        logger.WithModule("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.cron == nil {
		w.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return w, nil
}

// Start registers the dispatch job with the cron scheduler and launches it.
func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.spec, func() {
		if _, err := w.RunOnce(context.Background()); err != nil {
			if errors.Is(err, ErrBusy) {
				w.log.Debug("previous pass still running; tick skipped")
				return
			}
			w.log.Warn("dispatch pass failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	w.cron.Start()
	w.log.Info("worker started", zap.String("spec", w.spec))
	return nil
}

// Stop halts the underlying scheduler, waiting for any running pass to complete.
func (w *Worker) Stop() context.Context {
	if w.cron == nil {
		return context.Background()
	}
	return w.cron.Stop()
}

// RunOnce executes one full pass: plan pending follow-ups, then dispatch due
// messages. Also called directly by the queue-processing trigger endpoint.
func (w *Worker) RunOnce(ctx context.Context) (*Result, error) {
	if !w.mu.TryLock() {
		return nil, ErrBusy
	}
	defer w.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	result := &Result{}
	var errs error

	planned, err := w.planFollowUps(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	result.Planned = planned

	batch, err := w.dispatcher.RunOnce(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	result.Dispatch = batch

	return result, errs
}

// planFollowUps materialises pending rules for every party that still has one.
// A single party failing does not stop the others.
func (w *Worker) planFollowUps(ctx context.Context) (int, error) {
	var partyIDs []string
	if err := w.db.WithContext(ctx).
		Model(&models.FollowUpRule{}).
		Where("status = ?", models.FollowUpPending).
		Distinct("party_id").
		Pluck("party_id", &partyIDs).Error; err != nil {
		return 0, err
	}

	total := 0
	var errs error
	for _, partyID := range partyIDs {
		res, err := w.scheduler.ScheduleFollowUps(ctx, partyID)
		if err != nil {
			w.log.Warn("follow-up planning failed",
				zap.String("party_id", partyID),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
			continue
		}
		total += res.Scheduled
	}
	return total, errs
}
