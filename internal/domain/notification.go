package domain

import "context"

// BootstrapStats summarizes one bootstrap pass.
type BootstrapStats struct {
	ShardsChecked int
	ShardsUpdated int
	NamesInserted int
}

// NotificationService reports bootstrap outcomes to an external channel.
type NotificationService interface {
	SendSuccess(ctx context.Context, stats BootstrapStats) error
	SendError(ctx context.Context, err error) error
}
