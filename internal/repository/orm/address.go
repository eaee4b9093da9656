// Package orm implements the address repository on gorm, backing both the
// embedded SQLite store and the gorm-postgres driver.
package orm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/internal/geo"
	"github.com/utafrali/AddressBook/internal/repository"
	"github.com/utafrali/AddressBook/pkg/database"
	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

// AddressRepository implements repository.AddressRepository using gorm.
type AddressRepository struct {
	db     *gorm.DB
	system string
}

var _ repository.AddressRepository = (*AddressRepository)(nil)

// NewAddressRepository creates a new gorm-backed address repository. The
// dialect only selects the db.system attribute recorded on spans.
func NewAddressRepository(db *gorm.DB, dialect string) *AddressRepository {
	system := database.SystemSQLite
	if dialect == database.DialectPostgres {
		system = database.SystemPostgreSQL
	}
	return &AddressRepository{db: db, system: system}
}

// Migrate creates or updates the addresses table and its indexes.
func (r *AddressRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&domain.Address{}); err != nil {
		return fmt.Errorf("auto-migrate addresses: %w", err)
	}
	return nil
}

func (r *AddressRepository) trace(ctx context.Context, op, stmt string) (context.Context, func(error)) {
	return database.TraceQuerySystem(ctx, r.system, op, stmt)
}

// Create inserts a new address. gorm fills ID and both timestamps.
func (r *AddressRepository) Create(ctx context.Context, a *domain.Address) (err error) {
	ctx, end := r.trace(ctx, "CreateAddress", "INSERT INTO addresses")
	defer func() { end(err) }()

	a.ID = 0
	if err = r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

// GetByID retrieves an address by its identifier.
func (r *AddressRepository) GetByID(ctx context.Context, id int64) (_ *domain.Address, err error) {
	ctx, end := r.trace(ctx, "GetAddress", "SELECT * FROM addresses WHERE id = ?")
	defer func() { end(err) }()

	var a domain.Address
	err = r.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("address", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get address %d: %w", id, err)
	}
	return &a, nil
}

// List returns one page of addresses ordered by id and the total row count.
func (r *AddressRepository) List(ctx context.Context, filter repository.AddressFilter) (_ []domain.Address, _ int, err error) {
	ctx, end := r.trace(ctx, "ListAddresses", "SELECT * FROM addresses ORDER BY id LIMIT ? OFFSET ?")
	defer func() { end(err) }()

	db := r.db.WithContext(ctx).Model(&domain.Address{})

	var total int64
	if err = db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count addresses: %w", err)
	}

	addresses := make([]domain.Address, 0, filter.PerPage)
	if total == 0 {
		return addresses, 0, nil
	}

	err = r.db.WithContext(ctx).
		Order("id").
		Limit(filter.PerPage).
		Offset(filter.Offset()).
		Find(&addresses).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list addresses: %w", err)
	}
	return addresses, int(total), nil
}

// ListWithinBox returns every address whose coordinates fall inside box.
func (r *AddressRepository) ListWithinBox(ctx context.Context, box geo.Box) (_ []domain.Address, err error) {
	ctx, end := r.trace(ctx, "ListAddressesWithinBox",
		"SELECT * FROM addresses WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?")
	defer func() { end(err) }()

	var addresses []domain.Address
	err = r.db.WithContext(ctx).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("longitude BETWEEN ? AND ?", box.MinLon, box.MaxLon).
		Order("id").
		Find(&addresses).Error
	if err != nil {
		return nil, fmt.Errorf("list addresses within box: %w", err)
	}
	return addresses, nil
}

// Update overwrites name and coordinates of an existing address.
func (r *AddressRepository) Update(ctx context.Context, a *domain.Address) (err error) {
	ctx, end := r.trace(ctx, "UpdateAddress", "UPDATE addresses SET name = ?, latitude = ?, longitude = ?, updated_at = ? WHERE id = ?")
	defer func() { end(err) }()

	a.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.Address{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"name":       a.Name,
			"latitude":   a.Latitude,
			"longitude":  a.Longitude,
			"updated_at": a.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update address %d: %w", a.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("address", a.ID)
	}
	return nil
}

// Delete removes an address by its identifier.
func (r *AddressRepository) Delete(ctx context.Context, id int64) (err error) {
	ctx, end := r.trace(ctx, "DeleteAddress", "DELETE FROM addresses WHERE id = ?")
	defer func() { end(err) }()

	res := r.db.WithContext(ctx).Delete(&domain.Address{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete address %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("address", id)
	}
	return nil
}

// Ping checks the underlying connection.
func (r *AddressRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
