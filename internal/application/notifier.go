package application

import (
	"context"
	"errors"

	"home-setup/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, event domain.SetupCompleted) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ domain.SetupCompleted) error {
	return nil
}

// MultiNotifier fans an event out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event domain.SetupCompleted) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
