package repository

import (
	"context"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/internal/geo"
)

// AddressFilter defines paging for listing addresses.
type AddressFilter struct {
	Page    int
	PerPage int
}

// Offset returns the number of rows to skip for the filter's page.
func (f AddressFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// AddressRepository defines the interface for address persistence operations.
type AddressRepository interface {
	// Create inserts a new address and sets its ID and timestamps.
	Create(ctx context.Context, address *domain.Address) error

	// GetByID retrieves an address by its identifier.
	GetByID(ctx context.Context, id int64) (*domain.Address, error)

	// List returns one page of addresses ordered by id, along with the total count.
	List(ctx context.Context, filter AddressFilter) ([]domain.Address, int, error)

	// ListWithinBox returns every address inside the box, ordered by id.
	ListWithinBox(ctx context.Context, box geo.Box) ([]domain.Address, error)

	// Update overwrites an existing address and refreshes UpdatedAt.
	Update(ctx context.Context, address *domain.Address) error

	// Delete removes an address by its identifier.
	Delete(ctx context.Context, id int64) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
