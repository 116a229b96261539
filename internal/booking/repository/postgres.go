package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/cabbook/internal/booking/domain"
)

// PostgresStore persists entities in PostgreSQL. Events appended inside a unit of
// work land in the outbox table and are relayed by the outbox worker.
type PostgresStore struct {
	db     *sql.DB
	topic  string
	logger *zap.Logger
}

// NewPostgresStore constructs the store. topic is the subject outbox rows are published to.
func NewPostgresStore(db *sql.DB, topic string, logger *zap.Logger) *PostgresStore {
	if topic == "" {
		topic = "cab.trips"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, topic: topic, logger: logger}
}

// InTx runs fn inside a database transaction. Rows read through the store are
// locked FOR UPDATE, so concurrent units touching the same drivers or trips run
// one after the other.
func (p *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, store domain.Store) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &pgTx{tx: tx, topic: p.topic}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx    *sql.Tx
	topic string
}

func notFound(err error, kind string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return fmt.Errorf("query %s: %w", kind, err)
}

func (t *pgTx) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	var c domain.Customer
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, mobile, name, password_hash FROM customers WHERE id = $1 FOR UPDATE`, id,
	).Scan(&c.ID, &c.Mobile, &c.Name, &c.PasswordHash)
	if err != nil {
		return domain.Customer{}, notFound(err, "customer", id)
	}

	rows, err := t.tx.QueryContext(ctx, `SELECT id FROM trip_bookings WHERE customer_id = $1 ORDER BY id`, id)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("select customer trips: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tripID int64
		if err := rows.Scan(&tripID); err != nil {
			return domain.Customer{}, fmt.Errorf("scan customer trip: %w", err)
		}
		c.TripBookingIDs = append(c.TripBookingIDs, tripID)
	}
	if err := rows.Err(); err != nil {
		return domain.Customer{}, fmt.Errorf("iterate customer trips: %w", err)
	}
	return c, nil
}

// SaveCustomer persists profile fields. The booking list is derived from the
// trip_bookings rows owned by the customer.
func (t *pgTx) SaveCustomer(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	if c.ID == 0 {
		err := t.tx.QueryRowContext(ctx,
			`INSERT INTO customers (mobile, name, password_hash) VALUES ($1, $2, $3) RETURNING id`,
			c.Mobile, c.Name, c.PasswordHash,
		).Scan(&c.ID)
		if err != nil {
			return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
		}
		return c, nil
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE customers SET mobile = $2, name = $3, password_hash = $4 WHERE id = $1`,
		c.ID, c.Mobile, c.Name, c.PasswordHash,
	)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	if err := requireAffected(res, "customer", c.ID); err != nil {
		return domain.Customer{}, err
	}
	return c, nil
}

// DeleteCustomer removes the customer; its trip_bookings rows go with it (ON DELETE CASCADE).
func (t *pgTx) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return requireAffected(res, "customer", id)
}

const driverColumns = `d.id, d.mobile, d.name, c.id, c.per_km_rate, c.available`

func scanDriver(row interface{ Scan(...any) error }) (domain.Driver, error) {
	var d domain.Driver
	err := row.Scan(&d.ID, &d.Mobile, &d.Name, &d.Cab.ID, &d.Cab.PerKmRate, &d.Cab.Available)
	return d, err
}

func (t *pgTx) GetDriver(ctx context.Context, id int64) (domain.Driver, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+driverColumns+` FROM drivers d JOIN cabs c ON c.driver_id = d.id WHERE d.id = $1 FOR UPDATE`, id)
	d, err := scanDriver(row)
	if err != nil {
		return domain.Driver{}, notFound(err, "driver", id)
	}
	return d, nil
}

// ListDrivers returns every driver ordered by id, locking the rows so the
// dispatch decision cannot race another booking.
func (t *pgTx) ListDrivers(ctx context.Context) ([]domain.Driver, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+driverColumns+` FROM drivers d JOIN cabs c ON c.driver_id = d.id ORDER BY d.id FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("select drivers: %w", err)
	}
	defer rows.Close()
	var drivers []domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drivers: %w", err)
	}
	return drivers, nil
}

func (t *pgTx) SaveDriver(ctx context.Context, d domain.Driver) (domain.Driver, error) {
	if d.ID == 0 {
		if err := t.tx.QueryRowContext(ctx,
			`INSERT INTO drivers (mobile, name) VALUES ($1, $2) RETURNING id`, d.Mobile, d.Name,
		).Scan(&d.ID); err != nil {
			return domain.Driver{}, fmt.Errorf("insert driver: %w", err)
		}
		if err := t.tx.QueryRowContext(ctx,
			`INSERT INTO cabs (driver_id, per_km_rate, available) VALUES ($1, $2, $3) RETURNING id`,
			d.ID, d.Cab.PerKmRate, d.Cab.Available,
		).Scan(&d.Cab.ID); err != nil {
			return domain.Driver{}, fmt.Errorf("insert cab: %w", err)
		}
		return d, nil
	}

	res, err := t.tx.ExecContext(ctx, `UPDATE drivers SET mobile = $2, name = $3 WHERE id = $1`, d.ID, d.Mobile, d.Name)
	if err != nil {
		return domain.Driver{}, fmt.Errorf("update driver: %w", err)
	}
	if err := requireAffected(res, "driver", d.ID); err != nil {
		return domain.Driver{}, err
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE cabs SET per_km_rate = $2, available = $3 WHERE driver_id = $1`,
		d.ID, d.Cab.PerKmRate, d.Cab.Available,
	); err != nil {
		return domain.Driver{}, fmt.Errorf("update cab: %w", err)
	}
	return d, nil
}

func (t *pgTx) GetTripBooking(ctx context.Context, id int64) (domain.TripBooking, error) {
	var trip domain.TripBooking
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, customer_id, driver_id, from_location, to_location, distance_km, status, bill
		 FROM trip_bookings WHERE id = $1 FOR UPDATE`, id,
	).Scan(&trip.ID, &trip.CustomerID, &trip.DriverID, &trip.FromLocation, &trip.ToLocation,
		&trip.DistanceKm, &trip.Status, &trip.Bill)
	if err != nil {
		return domain.TripBooking{}, notFound(err, "trip", id)
	}
	return trip, nil
}

// SaveTripBooking inserts a new trip or updates status and bill of an existing
// one. The driver reference is written only on insert.
func (t *pgTx) SaveTripBooking(ctx context.Context, trip domain.TripBooking) (domain.TripBooking, error) {
	if trip.ID == 0 {
		err := t.tx.QueryRowContext(ctx,
			`INSERT INTO trip_bookings (customer_id, driver_id, from_location, to_location, distance_km, status, bill)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			trip.CustomerID, trip.DriverID, trip.FromLocation, trip.ToLocation, trip.DistanceKm, string(trip.Status), trip.Bill,
		).Scan(&trip.ID)
		if err != nil {
			return domain.TripBooking{}, fmt.Errorf("insert trip: %w", err)
		}
		return trip, nil
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE trip_bookings SET status = $2, bill = $3 WHERE id = $1`, trip.ID, string(trip.Status), trip.Bill)
	if err != nil {
		return domain.TripBooking{}, fmt.Errorf("update trip: %w", err)
	}
	if err := requireAffected(res, "trip", trip.ID); err != nil {
		return domain.TripBooking{}, err
	}
	return trip, nil
}

func (t *pgTx) AppendEvent(ctx context.Context, event domain.TripEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO outbox (topic, event_id, event_type, payload) VALUES ($1, $2, $3, $4)`,
		t.topic, event.ID.String(), string(event.Type), payload); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}
