package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/pusha/internal/domain"
)

type pgDeliveryRepository struct {
	pool *pgxpool.Pool
}

// NewPgDeliveryRepository returns a DeliveryRepository backed by PostgreSQL.
func NewPgDeliveryRepository(pool *pgxpool.Pool) DeliveryRepository {
	return &pgDeliveryRepository{pool: pool}
}

const deliveryColumns = `id, origin, endpoint, status, status_code, message_id,
	       error_message, latency_ms, created_at, completed_at`

func (r *pgDeliveryRepository) Create(ctx context.Context, d *domain.Delivery) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO deliveries (id, origin, endpoint, status, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.Origin, d.Endpoint, d.Status, d.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert delivery")
	}
	return nil
}

func (r *pgDeliveryRepository) Complete(ctx context.Context, id string, o domain.Outcome) error {
	d := domain.Delivery{ID: id}
	d.Apply(o)

	tag, err := r.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = $1, status_code = $2, message_id = $3, error_message = $4,
		    latency_ms = $5, completed_at = $6
		WHERE id = $7`,
		d.Status, d.StatusCode, d.MessageID, d.ErrorMessage, d.LatencyMS, d.CompletedAt, id,
	)
	if err != nil {
		return errors.Wrap(err, "complete delivery")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgDeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id)

	d, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

func (r *pgDeliveryRepository) List(ctx context.Context, f domain.DeliveryFilter) ([]*domain.Delivery, error) {
	where, args := buildListWhere(f)
	args = append(args, clampLimit(f.Limit))

	query := fmt.Sprintf(`
		SELECT %s
		FROM deliveries%s
		ORDER BY created_at DESC
		LIMIT $%d`, deliveryColumns, where, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list deliveries")
	}
	defer rows.Close()

	var result []*domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *pgDeliveryRepository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM deliveries GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "count deliveries")
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var s domain.Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

// ---- helpers ----

// scanDelivery reads a single delivery row from any pgx row type.
func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(
		&d.ID, &d.Origin, &d.Endpoint, &d.Status, &d.StatusCode, &d.MessageID,
		&d.ErrorMessage, &d.LatencyMS, &d.CreatedAt, &d.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// isInvalidText reports a value Postgres could not parse, such as an id that
// is not a UUID.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}

// buildListWhere builds a parameterised WHERE clause from a DeliveryFilter.
func buildListWhere(f domain.DeliveryFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.Origin != "" {
		add("origin = $%d", f.Origin)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
