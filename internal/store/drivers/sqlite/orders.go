package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/store"
)

type ordersRepo struct {
	db     DBTX
	withTx func(ctx context.Context, fn func(tx DBTX) error) error
}

const orderColumns = `id, order_number, client_id, driver_id, items, delivery_address, total_amount, status, priority, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var (
		o        domain.Order
		driverID sql.NullString
		items    string
		address  string
		status   string
		priority string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.ClientID, &driverID, &items, &address,
		&o.TotalAmount, &status, &priority, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, mapNotFound(err)
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return domain.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal([]byte(address), &o.DeliveryAddress); err != nil {
		return domain.Order{}, fmt.Errorf("decode delivery address: %w", err)
	}
	o.DriverID = mapNullString(driverID)
	o.Status = domain.OrderStatus(status)
	o.Priority = domain.OrderPriority(priority)
	return o, nil
}

func (r *ordersRepo) CreateOrder(ctx context.Context, o domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	address, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OrderNumber, o.ClientID, mapStringNull(o.DriverID), string(items), string(address),
		o.TotalAmount, string(o.Status), string(o.Priority), o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *ordersRepo) GetOrderByID(ctx context.Context, id string) (domain.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
}

func (r *ordersRepo) ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.ClientID != "" {
		where = append(where, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.DriverID != "" {
		where = append(where, "driver_id = ?")
		args = append(args, f.DriverID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, store.NormalizeLimit(f.Limit), max(f.Offset, 0))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ordersRepo) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) error {
	return r.withTx(ctx, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(to), at.UTC(), id, string(from))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}

		// Tell a missing order apart from one in another status.
		var current string
		if err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&current); err != nil {
			return mapNotFound(err)
		}
		return fmt.Errorf("%w: order %s is %s, not %s", store.ErrConflict, id, current, from)
	})
}
