// Package memory is an in-process address store ordered by id. It is used by
// the "memory" driver and by end-to-end tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/internal/geo"
	"github.com/utafrali/AddressBook/internal/repository"
	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

// AddressRepository implements repository.AddressRepository in memory.
type AddressRepository struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[domain.Address]
	nextID int64
	now    func() time.Time
}

var _ repository.AddressRepository = (*AddressRepository)(nil)

func byID(a, b domain.Address) bool { return a.ID < b.ID }

// NewAddressRepository returns an empty store. IDs start at 1.
func NewAddressRepository() *AddressRepository {
	return &AddressRepository{
		tree:   btree.NewBTreeGOptions(byID, btree.Options{NoLocks: true}),
		nextID: 1,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *AddressRepository) Create(_ context.Context, a *domain.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	a.ID = r.nextID
	a.CreatedAt = now
	a.UpdatedAt = now
	r.nextID++
	r.tree.Set(*a)
	return nil
}

func (r *AddressRepository) GetByID(_ context.Context, id int64) (*domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.tree.Get(domain.Address{ID: id})
	if !ok {
		return nil, apperrors.NotFound("address", id)
	}
	return &a, nil
}

func (r *AddressRepository) List(_ context.Context, filter repository.AddressFilter) ([]domain.Address, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := r.tree.Len()
	out := make([]domain.Address, 0, filter.PerPage)
	offset := filter.Offset()
	if offset >= total {
		return out, total, nil
	}

	skipped := 0
	r.tree.Scan(func(a domain.Address) bool {
		if skipped < offset {
			skipped++
			return true
		}
		out = append(out, a)
		return len(out) < filter.PerPage
	})
	return out, total, nil
}

// ListWithinBox walks the whole tree; the store has no spatial index.
func (r *AddressRepository) ListWithinBox(_ context.Context, box geo.Box) ([]domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Address
	r.tree.Scan(func(a domain.Address) bool {
		if box.Contains(geo.Point{Latitude: a.Latitude, Longitude: a.Longitude}) {
			out = append(out, a)
		}
		return true
	})
	return out, nil
}

func (r *AddressRepository) Update(_ context.Context, a *domain.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tree.Get(domain.Address{ID: a.ID})
	if !ok {
		return apperrors.NotFound("address", a.ID)
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = r.now()
	r.tree.Set(*a)
	return nil
}

func (r *AddressRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tree.Delete(domain.Address{ID: id}); !ok {
		return apperrors.NotFound("address", id)
	}
	return nil
}

func (r *AddressRepository) Ping(context.Context) error { return nil }
