package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/internal/event"
	"github.com/utafrali/AddressBook/internal/geo"
	"github.com/utafrali/AddressBook/internal/repository"
	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

// AddressService implements the business logic for address operations.
type AddressService struct {
	repo      repository.AddressRepository
	publisher event.Publisher
	logger    *slog.Logger
}

// NewAddressService creates a new address service. A nil publisher disables
// event publication.
func NewAddressService(repo repository.AddressRepository, publisher event.Publisher, logger *slog.Logger) *AddressService {
	if publisher == nil {
		publisher = event.NoopPublisher{}
	}
	return &AddressService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateAddressInput holds the parameters for creating a new address.
type CreateAddressInput struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// UpdateAddressInput holds the parameters for updating an address. Nil
// fields are left unchanged.
type UpdateAddressInput struct {
	Name      *string
	Latitude  *float64
	Longitude *float64
}

// IsEmpty reports whether the input changes nothing.
func (in UpdateAddressInput) IsEmpty() bool {
	return in.Name == nil && in.Latitude == nil && in.Longitude == nil
}

// CreateAddress validates and stores a new address.
func (s *AddressService) CreateAddress(ctx context.Context, input CreateAddressInput) (*domain.Address, error) {
	address := &domain.Address{
		Name:      input.Name,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, address); err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}

	if err := s.publisher.AddressCreated(ctx, address); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish address.created event",
			slog.Int64("address_id", address.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "address created",
		slog.Int64("address_id", address.ID),
		slog.String("name", address.Name),
	)
	return address, nil
}

// GetAddress returns the address with the given id.
func (s *AddressService) GetAddress(ctx context.Context, id int64) (*domain.Address, error) {
	address, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	s.logger.DebugContext(ctx, "address fetched", slog.Int64("address_id", id))
	return address, nil
}

// ListAddresses returns one page of addresses and the total count.
func (s *AddressService) ListAddresses(ctx context.Context, filter repository.AddressFilter) ([]domain.Address, int, error) {
	addresses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list addresses: %w", err)
	}
	s.logger.DebugContext(ctx, "addresses listed",
		slog.Int("page", filter.Page),
		slog.Int("per_page", filter.PerPage),
		slog.Int("returned", len(addresses)),
		slog.Int("total", total),
	)
	return addresses, total, nil
}

// UpdateAddress applies the non-nil fields of input to an existing address.
func (s *AddressService) UpdateAddress(ctx context.Context, id int64, input UpdateAddressInput) (*domain.Address, error) {
	address, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get address for update: %w", err)
	}

	if input.IsEmpty() {
		return address, nil
	}

	if input.Name != nil {
		address.Name = *input.Name
	}
	if input.Latitude != nil {
		address.Latitude = *input.Latitude
	}
	if input.Longitude != nil {
		address.Longitude = *input.Longitude
	}
	if err := address.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, address); err != nil {
		return nil, fmt.Errorf("update address: %w", err)
	}

	if err := s.publisher.AddressUpdated(ctx, address); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish address.updated event",
			slog.Int64("address_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "address updated", slog.Int64("address_id", id))
	return address, nil
}

// DeleteAddress removes an address.
func (s *AddressService) DeleteAddress(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete address: %w", err)
	}

	if err := s.publisher.AddressDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish address.deleted event",
			slog.Int64("address_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "address deleted", slog.Int64("address_id", id))
	return nil
}

// FindWithinDistance returns every address within distanceKM of center,
// nearest first. Equal distances are ordered by id.
func (s *AddressService) FindWithinDistance(ctx context.Context, center geo.Point, distanceKM float64) ([]domain.NearbyAddress, error) {
	probe := domain.Address{Name: "center", Latitude: center.Latitude, Longitude: center.Longitude}
	if err := probe.Validate(); err != nil {
		return nil, err
	}
	if !(distanceKM >= 0) {
		return nil, apperrors.InvalidInput("distance must be a non-negative number of kilometres")
	}

	candidates, err := s.repo.ListWithinBox(ctx, geo.BoundingBox(center, distanceKM))
	if err != nil {
		return nil, fmt.Errorf("find addresses within distance: %w", err)
	}

	result := make([]domain.NearbyAddress, 0, len(candidates))
	for _, a := range candidates {
		d := geo.Distance(center, geo.Point{Latitude: a.Latitude, Longitude: a.Longitude})
		if d <= distanceKM {
			result = append(result, domain.NearbyAddress{Address: a, DistanceKM: d})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DistanceKM != result[j].DistanceKM {
			return result[i].DistanceKM < result[j].DistanceKM
		}
		return result[i].ID < result[j].ID
	})

	s.logger.InfoContext(ctx, "addresses within distance",
		slog.Float64("latitude", center.Latitude),
		slog.Float64("longitude", center.Longitude),
		slog.Float64("distance_km", distanceKM),
		slog.Int("candidates", len(candidates)),
		slog.Int("matched", len(result)),
	)
	return result, nil
}
