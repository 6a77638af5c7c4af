package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/crm-campaign-service/internal/logger"
	"github.com/unclebandit/crm-campaign-service/internal/metrics"
	"github.com/unclebandit/crm-campaign-service/internal/model"
	"github.com/unclebandit/crm-campaign-service/internal/vendor"
)

var ErrDispatcherClosed = errors.New("dispatcher is shutting down")

// SendRecorder applies a vendor's synchronous answer to the log and counters.
type SendRecorder interface {
	ApplySendResult(ctx context.Context, l model.DeliveryLog, res vendor.Result) error
}

// Dispatcher fans vendor sends out over a bounded worker pool. Callers do
// not wait for sends; Shutdown does.
type Dispatcher struct {
	gateway  vendor.Gateway
	recorder SendRecorder
	timeout  time.Duration
	logger   logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	pool    errgroup.Group
	feeders sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewDispatcher(gateway vendor.Gateway, recorder SendRecorder, workers int, timeout time.Duration, log logger.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		gateway:  gateway,
		recorder: recorder,
		timeout:  timeout,
		logger:   log,
		ctx:      ctx,
		cancel:   cancel,
	}
	d.pool.SetLimit(workers)
	return d
}

// Dispatch queues one send per log and returns at once. A full pool makes
// the feeding goroutine block, not the caller.
func (d *Dispatcher) Dispatch(channel model.Channel, logs []model.DeliveryLog) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.feeders.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.feeders.Done()
		for _, l := range logs {
			if d.ctx.Err() != nil {
				d.logger.Warn("dispatch aborted, sends left pending", map[string]interface{}{
					"campaign_id": l.CampaignID,
				})
				return
			}
			l := l
			d.pool.Go(func() error {
				d.send(channel, l)
				return nil
			})
		}
	}()
	return nil
}

func (d *Dispatcher) send(channel model.Channel, l model.DeliveryLog) {
	metrics.DispatchInFlight.Inc()
	defer metrics.DispatchInFlight.Dec()
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("send panicked", map[string]interface{}{
				"log_id": l.ID, "panic": fmt.Sprint(p),
			})
		}
	}()

	sendCtx, cancel := context.WithTimeout(d.ctx, d.timeout)
	res := d.gateway.Send(sendCtx, vendor.Message{
		Channel:       channel,
		Recipient:     l.Recipient,
		Body:          l.Message,
		CorrelationID: l.ID,
	})
	cancel()

	if !res.Accepted {
		d.logger.Debug("vendor rejected message", map[string]interface{}{
			"log_id": l.ID, "campaign_id": l.CampaignID, "reason": res.ErrorReason,
		})
	}
	if err := d.recorder.ApplySendResult(d.ctx, l, res); err != nil {
		d.logger.Error("failed to record send result", map[string]interface{}{
			"log_id": l.ID, "campaign_id": l.CampaignID, "error": err,
		})
	}
}

// Shutdown stops accepting work and waits for queued and running sends.
// When ctx expires first, running sends are cancelled and ctx.Err() returned.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.feeders.Wait()
		_ = d.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}
