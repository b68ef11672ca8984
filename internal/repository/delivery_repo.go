package repository

import (
	"context"

	"github.com/notifyhub/pusha/internal/domain"
)

// DeliveryRepository stores job receipts.
// The pgx implementation is in pg_delivery_repo.go; without a database the
// service runs on the in-memory implementation (memory_delivery_repo.go),
// which is also what the tests use.
type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.Delivery) error
	Complete(ctx context.Context, id string, o domain.Outcome) error
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
	List(ctx context.Context, filter domain.DeliveryFilter) ([]*domain.Delivery, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func clampLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
