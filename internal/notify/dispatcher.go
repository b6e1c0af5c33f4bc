package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"device-loan-backend/internal/clock"
	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/metrics"
	"device-loan-backend/internal/repository"
	"device-loan-backend/internal/resilience"
)

// DependencyEmail names the breaker guarding the email provider.
const DependencyEmail = "email"

// DispatcherConfig holds the per-attempt timeout and the retry policy.
type DispatcherConfig struct {
	Timeout time.Duration
	Retry   resilience.RetryPolicy
}

// Dispatcher sends notifications through breaker, retry and timeout, in that
// order from the outside in, and records every attempt that reaches the
// provider.
type Dispatcher struct {
	breakers *resilience.Registry
	retrier  *resilience.Retrier
	timeout  time.Duration

	sender  EmailSender
	users   repository.UserRepository
	devices repository.DeviceRepository
	records repository.NotificationRepository
	clock   clock.Clock
	metrics *metrics.Collector
}

func NewDispatcher(
	cfg DispatcherConfig,
	breakers *resilience.Registry,
	sender EmailSender,
	users repository.UserRepository,
	devices repository.DeviceRepository,
	records repository.NotificationRepository,
	clk clock.Clock,
	m *metrics.Collector,
	retryOpts ...resilience.RetryOption,
) *Dispatcher {
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = resilience.IsTransient
	}
	opts := append([]resilience.RetryOption{
		resilience.WithRetryNotify(func(int, error, time.Duration) { m.RecordRetry("notification") }),
	}, retryOpts...)

	return &Dispatcher{
		breakers: breakers,
		retrier:  resilience.NewRetrier("notification", cfg.Retry, opts...),
		timeout:  cfg.Timeout,
		sender:   sender,
		users:    users,
		devices:  devices,
		records:  records,
		clock:    clk,
		metrics:  m,
	}
}

// Dispatch runs op for dependency under that dependency's breaker, retrying
// transient failures and bounding each attempt by the configured timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, dependency string, op func(ctx context.Context) error) error {
	return d.breakers.Get(dependency).Execute(ctx, func(ctx context.Context) error {
		return d.retrier.Do(ctx, func(ctx context.Context) error {
			return resilience.WithTimeout(ctx, d.timeout, dependency+" notification", op)
		})
	})
}

// NotifyDeviceAvailable tells a waitlisted user that the device can be
// reserved again.
func (d *Dispatcher) NotifyDeviceAvailable(ctx context.Context, userID, deviceID int32) error {
	var attempt atomic.Int32
	return d.Dispatch(ctx, DependencyEmail, func(ctx context.Context) error {
		return d.sendDeviceAvailable(ctx, userID, deviceID, int(attempt.Add(1)))
	})
}

// NotifyLoanOverdue reminds the borrower that a loan is past its due date.
func (d *Dispatcher) NotifyLoanOverdue(ctx context.Context, view domain.LoanView) error {
	var attempt atomic.Int32
	return d.Dispatch(ctx, DependencyEmail, func(ctx context.Context) error {
		email := overdueEmail(view)
		attrs := map[string]string{
			"type":      domain.NotificationTypeLoanOverdue,
			"loan_id":   strconv.Itoa(int(view.Loan.ID)),
			"device_id": strconv.Itoa(int(view.Device.ID)),
			"attempt":   strconv.Itoa(int(attempt.Add(1))),
		}
		return d.deliver(ctx, view.User.ID, email, attrs)
	})
}

func (d *Dispatcher) sendDeviceAvailable(ctx context.Context, userID, deviceID int32, attempt int) error {
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	device, err := d.devices.GetByID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("load device %d: %w", deviceID, err)
	}

	attrs := map[string]string{
		"type":      domain.NotificationTypeDeviceAvailable,
		"device_id": strconv.Itoa(int(deviceID)),
		"attempt":   strconv.Itoa(attempt),
	}
	return d.deliver(ctx, user.ID, deviceAvailableEmail(user, device), attrs)
}

// deliver sends email and appends the delivery record. The record is written
// on a context without the attempt deadline so a timed-out send is still
// recorded. A failure to store the record is logged and does not change the
// send outcome.
func (d *Dispatcher) deliver(ctx context.Context, userID int32, email Email, attrs map[string]string) error {
	sendErr := d.sender.Send(ctx, email)

	record := &domain.NotificationRecord{
		UserID:     userID,
		Channel:    d.sender.Channel(),
		Subject:    email.Subject,
		Body:       email.PlainText,
		Status:     domain.NotificationStatusSent,
		Attributes: attrs,
		CreatedAt:  d.clock.Now(),
	}
	if sendErr != nil {
		record.Status = domain.NotificationStatusFailed
		record.Error = sendErr.Error()
	}
	d.metrics.RecordNotification(record.Channel, sendErr == nil)

	if err := d.records.Create(context.WithoutCancel(ctx), record); err != nil {
		logger.ErrorContext(ctx, "Failed to store notification record",
			"user_id", userID,
			"type", attrs["type"],
			"error", err)
	}
	return sendErr
}

func deviceAvailableEmail(user *domain.User, device *domain.Device) Email {
	return Email{
		To:      user.Email,
		ToName:  user.Name,
		Subject: fmt.Sprintf("%s is available", device.Name),
		PlainText: fmt.Sprintf("Hello %s,\n\nA %s you are waiting for is available again. "+
			"Reserve it soon, the next person on the waitlist will be told if you do not.\n", user.Name, device.Name),
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>A <strong>%s</strong> you are waiting for is available again.</p>",
			user.Name, device.Name),
	}
}

func overdueEmail(view domain.LoanView) Email {
	due := view.Reservation.DueDate.Format("2006-01-02")
	return Email{
		To:      view.User.Email,
		ToName:  view.User.Name,
		Subject: fmt.Sprintf("Please return %s", view.Device.Name),
		PlainText: fmt.Sprintf("Hello %s,\n\nYour loan of %s was due on %s. Please return it as soon as you can.\n",
			view.User.Name, view.Device.Name, due),
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>Your loan of <strong>%s</strong> was due on %s.</p>",
			view.User.Name, view.Device.Name, due),
	}
}
