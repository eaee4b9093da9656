package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/internal/geo"
	"github.com/utafrali/AddressBook/internal/repository"
	"github.com/utafrali/AddressBook/pkg/database"
	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

// Pool is the subset of *pgxpool.Pool used by AddressRepository.
type Pool interface {
	database.DBTX
	Ping(ctx context.Context) error
}

// AddressRepository implements repository.AddressRepository using PostgreSQL.
type AddressRepository struct {
	pool Pool
}

var _ repository.AddressRepository = (*AddressRepository)(nil)

// NewAddressRepository creates a new PostgreSQL-backed address repository.
func NewAddressRepository(pool Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

const addressColumns = `id, name, latitude, longitude, created_at, updated_at`

// Create inserts a new address; the database assigns the ID.
func (r *AddressRepository) Create(ctx context.Context, a *domain.Address) (err error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO addresses (name, latitude, longitude, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "CreateAddress", query)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, query, a.Name, a.Latitude, a.Longitude, now).Scan(&a.ID); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	return nil
}

// GetByID retrieves an address by its ID.
func (r *AddressRepository) GetByID(ctx context.Context, id int64) (_ *domain.Address, err error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetAddress", query)
	defer func() { end(err) }()

	var a domain.Address
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.Name,
		&a.Latitude,
		&a.Longitude,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("address", id)
		}
		return nil, fmt.Errorf("get address by id: %w", err)
	}

	return &a, nil
}

// List returns one page of addresses ordered by ID together with the total count.
func (r *AddressRepository) List(ctx context.Context, filter repository.AddressFilter) (_ []domain.Address, _ int, err error) {
	query := `
		SELECT ` + addressColumns + `, count(*) OVER() AS total_count
		FROM addresses
		ORDER BY id
		LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "ListAddresses", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, filter.PerPage, filter.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []domain.Address{}
	total := 0
	for rows.Next() {
		var a domain.Address
		if err = rows.Scan(
			&a.ID,
			&a.Name,
			&a.Latitude,
			&a.Longitude,
			&a.CreatedAt,
			&a.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan address row: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate address rows: %w", err)
	}

	// A page past the end has no rows to carry the window count.
	if len(addresses) == 0 && filter.Offset() > 0 {
		if err = r.pool.QueryRow(ctx, `SELECT count(*) FROM addresses`).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count addresses: %w", err)
		}
	}

	return addresses, total, nil
}

// ListWithinBox returns all addresses inside the bounding box, ordered by ID.
func (r *AddressRepository) ListWithinBox(ctx context.Context, box geo.Box) (_ []domain.Address, err error) {
	query := `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		ORDER BY id`

	ctx, end := database.TraceQuery(ctx, "ListAddressesWithinBox", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	if err != nil {
		return nil, fmt.Errorf("list addresses within box: %w", err)
	}
	defer rows.Close()

	addresses := []domain.Address{}
	for rows.Next() {
		var a domain.Address
		if err = rows.Scan(
			&a.ID,
			&a.Name,
			&a.Latitude,
			&a.Longitude,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address rows: %w", err)
	}

	return addresses, nil
}

// Update overwrites the name and coordinates of an existing address.
func (r *AddressRepository) Update(ctx context.Context, a *domain.Address) (err error) {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE addresses
		SET name = $1, latitude = $2, longitude = $3, updated_at = $4
		WHERE id = $5`

	ctx, end := database.TraceQuery(ctx, "UpdateAddress", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, a.Name, a.Latitude, a.Longitude, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("address", a.ID)
	}

	return nil
}

// Delete removes an address by its ID.
func (r *AddressRepository) Delete(ctx context.Context, id int64) (err error) {
	query := `DELETE FROM addresses WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteAddress", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("address", id)
	}

	return nil
}

// Ping checks database connectivity.
func (r *AddressRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
