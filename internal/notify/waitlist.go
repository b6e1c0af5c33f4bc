package notify

import (
	"context"
	"fmt"
	"sync"

	"device-loan-backend/internal/clock"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/metrics"
	"device-loan-backend/internal/repository"
)

type AdvanceStatus string

const (
	AdvanceSkipped  AdvanceStatus = "skipped"
	AdvanceNotified AdvanceStatus = "notified"
	AdvanceFailed   AdvanceStatus = "failed"
)

// AdvanceResult reports what happened to a device's waitlist. It has no Error
// method; Err carries the cause of a failed advance for logging.
type AdvanceResult struct {
	Status   AdvanceStatus
	DeviceID int32
	EntryID  int32
	UserID   int32
	Err      error
}

// Notifier sends the device-available message to one user.
type Notifier interface {
	NotifyDeviceAvailable(ctx context.Context, userID, deviceID int32) error
}

// WaitlistAdvancer hands a freed device to the next person waiting for it.
type WaitlistAdvancer struct {
	tx       repository.Transactor
	waitlist repository.WaitlistRepository
	notifier Notifier
	clock    clock.Clock
	metrics  *metrics.Collector
	locks    *keyedMutex
}

func NewWaitlistAdvancer(tx repository.Transactor, waitlist repository.WaitlistRepository, notifier Notifier, clk clock.Clock, m *metrics.Collector) *WaitlistAdvancer {
	return &WaitlistAdvancer{
		tx:       tx,
		waitlist: waitlist,
		notifier: notifier,
		clock:    clk,
		metrics:  m,
		locks:    newKeyedMutex(),
	}
}

// NotifyNext notifies the earliest un-notified entry for deviceID and marks it
// notified only when the whole dispatch succeeded. It never returns an error
// and never panics.
func (a *WaitlistAdvancer) NotifyNext(ctx context.Context, deviceID int32) (result AdvanceResult) {
	result.DeviceID = deviceID

	defer func() {
		if r := recover(); r != nil {
			result.Status = AdvanceFailed
			result.Err = fmt.Errorf("waitlist advance panicked: %v", r)
		}
		a.report(ctx, result)
	}()

	unlock := a.locks.Lock(deviceID)
	defer unlock()

	err := a.tx.WithTx(ctx, func(txCtx context.Context) error {
		entry, err := a.waitlist.NextEntry(txCtx, deviceID)
		if err != nil {
			return err
		}
		if entry == nil {
			result.Status = AdvanceSkipped
			return nil
		}
		result.EntryID = entry.ID
		result.UserID = entry.UserID

		if err := a.notifier.NotifyDeviceAvailable(txCtx, entry.UserID, deviceID); err != nil {
			result.Status = AdvanceFailed
			result.Err = err
			return nil
		}

		rows, err := a.waitlist.MarkNotified(txCtx, entry.ID, a.clock.Now())
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("waitlist entry %d was already notified", entry.ID)
		}
		result.Status = AdvanceNotified
		return nil
	})
	if err != nil {
		result.Status = AdvanceFailed
		result.Err = err
	}
	return result
}

// AdvanceAll retries every device that has waiting users and a free unit.
func (a *WaitlistAdvancer) AdvanceAll(ctx context.Context) ([]AdvanceResult, error) {
	devices, err := a.waitlist.DevicesAwaitingNotification(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices awaiting notification: %w", err)
	}

	results := make([]AdvanceResult, 0, len(devices))
	for _, deviceID := range devices {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, a.NotifyNext(ctx, deviceID))
	}
	return results, nil
}

func (a *WaitlistAdvancer) report(ctx context.Context, r AdvanceResult) {
	a.metrics.RecordWaitlistAdvance(string(r.Status))

	args := []any{"device_id", r.DeviceID, "status", r.Status}
	if r.EntryID != 0 {
		args = append(args, "entry_id", r.EntryID, "user_id", r.UserID)
	}
	if r.Status == AdvanceFailed {
		logger.WarnContext(ctx, "Waitlist advance failed", append(args, "error", r.Err)...)
		return
	}
	logger.InfoContext(ctx, "Waitlist advanced", args...)
}

// keyedMutex serialises work per device inside this process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int32]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int32]*refMutex)}
}

func (k *keyedMutex) Lock(key int32) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
