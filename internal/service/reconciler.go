package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	appErrors "github.com/unclebandit/crm-campaign-service/internal/errors"
	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/metrics"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/queue"
)

const DefaultReconcileInterval = 5 * time.Second

// ReceiptApplier applies one receipt to the delivery log and counters.
type ReceiptApplier interface {
	ApplyReceipt(ctx context.Context, r model.Receipt) (ReceiptOutcome, error)
}

// Reconciler drains the receipt queue one item per tick, so the write rate
// stays flat however bursty the vendor's callbacks are.
type Reconciler struct {
	queue        queue.ReceiptQueue
	applier      ReceiptApplier
	interval     time.Duration
	maxDeferrals int
	logger       logger.Logger
	now          func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewReconciler(q queue.ReceiptQueue, applier ReceiptApplier, interval time.Duration, maxDeferrals int, log logger.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &Reconciler{
		queue:        q,
		applier:      applier,
		interval:     interval,
		maxDeferrals: maxDeferrals,
		logger:       log,
		now:          time.Now,
	}
}

// Enqueue validates a receipt minimally and queues it. It never touches the
// delivery logs.
func (r *Reconciler) Enqueue(ctx context.Context, rec model.Receipt) error {
	if err := validateReceipt(rec); err != nil {
		return err
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = r.now().UTC()
	}
	if err := r.queue.Push(ctx, rec); err != nil {
		return fmt.Errorf("enqueue receipt: %w", err)
	}
	metrics.Receipts.WithLabelValues(metrics.ReceiptEnqueued).Inc()
	r.observeDepth(ctx)
	return nil
}

func validateReceipt(rec model.Receipt) error {
	if rec.VendorMessageID == "" {
		return appErrors.NewValidation("message_id", "is required")
	}
	switch rec.Status {
	case model.StatusDelivered, model.StatusFailed, model.StatusBounced:
	default:
		return appErrors.NewValidation("status", fmt.Sprintf("must be delivered or failed, got %q", rec.Status))
	}
	return nil
}

// Start launches the tick loop. Calling Start on a running reconciler is a
// no-op.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go r.loop(ctx, r.stop, r.done)
	r.logger.Info("receipt reconciler started", map[string]interface{}{"interval": r.interval.String()})
}

func (r *Reconciler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Cancelling ctx ends the loop but never a tick already in progress, so a
	// log transition is not left without its counter update.
	tickCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			r.Tick(tickCtx)
		}
	}
}

// Stop ends the loop and waits for an in-flight tick, or for ctx.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
		r.logger.Info("receipt reconciler stopped", nil)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick processes at most one queued receipt and reports whether one was
// taken off the queue. Errors are logged and the item dropped; Tick never
// panics out.
func (r *Reconciler) Tick(ctx context.Context) (processed bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("reconciler tick panicked", map[string]interface{}{"panic": fmt.Sprint(p)})
			metrics.Receipts.WithLabelValues(metrics.ReceiptDropped).Inc()
		}
	}()

	rec, err := r.queue.Pop(ctx)
	if err != nil {
		r.logger.Error("failed to pop receipt", map[string]interface{}{"error": err})
		return false
	}
	if rec == nil {
		return false
	}
	defer r.observeDepth(ctx)

	fields := map[string]interface{}{
		"log_id":            rec.LogID,
		"vendor_message_id": rec.VendorMessageID,
		"status":            rec.Status,
	}

	outcome, err := r.applier.ApplyReceipt(ctx, *rec)
	switch {
	case err != nil && appErrors.IsNotFound(err):
		fields["error"] = err
		r.logger.Error("receipt dropped, target not found", fields)
		metrics.Receipts.WithLabelValues(metrics.ReceiptDropped).Inc()
	case err != nil:
		fields["error"] = err
		r.logger.Error("receipt dropped, apply failed", fields)
		metrics.Receipts.WithLabelValues(metrics.ReceiptDropped).Inc()
	case outcome == ReceiptDeferred:
		r.requeueDeferred(ctx, *rec, fields)
	case outcome == ReceiptDuplicate:
		r.logger.Warn("duplicate receipt ignored", fields)
		metrics.Receipts.WithLabelValues(metrics.ReceiptDuplicate).Inc()
	default:
		r.logger.Debug("receipt applied", fields)
		metrics.Receipts.WithLabelValues(metrics.ReceiptApplied).Inc()
	}
	return true
}

// requeueDeferred puts a receipt that overtook its send result back at the tail.
func (r *Reconciler) requeueDeferred(ctx context.Context, rec model.Receipt, fields map[string]interface{}) {
	if rec.Deferrals >= r.maxDeferrals {
		r.logger.Error("receipt dropped, log never left pending", fields)
		metrics.Receipts.WithLabelValues(metrics.ReceiptDropped).Inc()
		return
	}
	rec.Deferrals++
	if err := r.queue.Push(ctx, rec); err != nil {
		fields["error"] = err
		r.logger.Error("failed to requeue deferred receipt", fields)
		metrics.Receipts.WithLabelValues(metrics.ReceiptDropped).Inc()
		return
	}
	metrics.Receipts.WithLabelValues(metrics.ReceiptDeferred).Inc()
}

func (r *Reconciler) observeDepth(ctx context.Context) {
	if n, err := r.queue.Len(ctx); err == nil {
		metrics.ReceiptQueueDepth.Set(float64(n))
	}
}
