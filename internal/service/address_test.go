package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/internal/geo"
	"github.com/utafrali/AddressBook/internal/repository"
	"github.com/utafrali/AddressBook/internal/repository/memory"
	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

// --- Mock Address Repository ---

type mockAddressRepository struct {
	mock.Mock
}

func (m *mockAddressRepository) Create(ctx context.Context, a *domain.Address) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockAddressRepository) GetByID(ctx context.Context, id int64) (*domain.Address, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Address), args.Error(1)
}

func (m *mockAddressRepository) List(ctx context.Context, filter repository.AddressFilter) ([]domain.Address, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Address), args.Int(1), args.Error(2)
}

func (m *mockAddressRepository) ListWithinBox(ctx context.Context, box geo.Box) ([]domain.Address, error) {
	args := m.Called(ctx, box)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Address), args.Error(1)
}

func (m *mockAddressRepository) Update(ctx context.Context, a *domain.Address) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockAddressRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockAddressRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- Mock Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) AddressCreated(ctx context.Context, a *domain.Address) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockPublisher) AddressUpdated(ctx context.Context, a *domain.Address) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockPublisher) AddressDeleted(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService() (*AddressService, *mockAddressRepository, *mockPublisher) {
	repo := new(mockAddressRepository)
	pub := new(mockPublisher)
	return NewAddressService(repo, pub, newTestLogger()), repo, pub
}

func ptr[T any](v T) *T { return &v }

// ---------------------------------------------------------------------------
// CreateAddress
// ---------------------------------------------------------------------------

func TestCreateAddress_Success(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*domain.Address")).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.Address).ID = 1 }).
		Return(nil)
	pub.On("AddressCreated", ctx, mock.AnythingOfType("*domain.Address")).Return(nil)

	got, err := svc.CreateAddress(ctx, CreateAddressInput{Name: "Home", Latitude: 52.52, Longitude: 13.405})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Home", got.Name)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCreateAddress_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input CreateAddressInput
		msg   string
	}{
		{"empty name", CreateAddressInput{Name: "", Latitude: 0, Longitude: 0}, "name is required"},
		{"blank name", CreateAddressInput{Name: "   ", Latitude: 0, Longitude: 0}, "name is required"},
		{"latitude too high", CreateAddressInput{Name: "x", Latitude: 90.0001, Longitude: 0}, "latitude"},
		{"longitude too low", CreateAddressInput{Name: "x", Latitude: 0, Longitude: -180.5}, "longitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService()

			_, err := svc.CreateAddress(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
			assert.Contains(t, err.Error(), tt.msg)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateAddress_PublishFailureIsNotFatal(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(nil)
	pub.On("AddressCreated", ctx, mock.Anything).Return(errors.New("kafka down"))

	_, err := svc.CreateAddress(ctx, CreateAddressInput{Name: "Home", Latitude: 1, Longitude: 1})
	assert.NoError(t, err)
}

func TestCreateAddress_RepoError(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))

	_, err := svc.CreateAddress(ctx, CreateAddressInput{Name: "Home", Latitude: 1, Longitude: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	pub.AssertNotCalled(t, "AddressCreated", mock.Anything, mock.Anything)
}

// ---------------------------------------------------------------------------
// GetAddress / ListAddresses
// ---------------------------------------------------------------------------

func TestGetAddress_NotFound(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	repo.On("GetByID", ctx, int64(3)).Return(nil, apperrors.NotFound("address", int64(3)))

	_, err := svc.GetAddress(ctx, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestListAddresses_PassesFilter(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	filter := repository.AddressFilter{Page: 2, PerPage: 10}

	repo.On("List", ctx, filter).Return([]domain.Address{{ID: 11, Name: "a"}}, 11, nil)

	got, total, err := svc.ListAddresses(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, got, 1)
	assert.Equal(t, int64(11), got[0].ID)
}

// ---------------------------------------------------------------------------
// UpdateAddress
// ---------------------------------------------------------------------------

func TestUpdateAddress_ChangesOnlyProvidedFields(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	existing := &domain.Address{ID: 5, Name: "Old", Latitude: 10, Longitude: 20}
	repo.On("GetByID", ctx, int64(5)).Return(existing, nil)
	repo.On("Update", ctx, mock.AnythingOfType("*domain.Address")).Return(nil)
	pub.On("AddressUpdated", ctx, mock.Anything).Return(nil)

	got, err := svc.UpdateAddress(ctx, 5, UpdateAddressInput{Latitude: ptr(0.0)})
	require.NoError(t, err)
	assert.Equal(t, "Old", got.Name)
	assert.Equal(t, 0.0, got.Latitude)
	assert.Equal(t, 20.0, got.Longitude)
	pub.AssertExpectations(t)
}

func TestUpdateAddress_EmptyInputIsNoop(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	existing := &domain.Address{ID: 5, Name: "Same", Latitude: 1, Longitude: 2}
	repo.On("GetByID", ctx, int64(5)).Return(existing, nil)

	got, err := svc.UpdateAddress(ctx, 5, UpdateAddressInput{})
	require.NoError(t, err)
	assert.Equal(t, existing, got)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "AddressUpdated", mock.Anything, mock.Anything)
}

func TestUpdateAddress_RevalidatesResult(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	repo.On("GetByID", ctx, int64(5)).Return(&domain.Address{ID: 5, Name: "ok", Latitude: 1, Longitude: 2}, nil)

	_, err := svc.UpdateAddress(ctx, 5, UpdateAddressInput{Longitude: ptr(181.0)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateAddress_NotFound(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	repo.On("GetByID", ctx, int64(9)).Return(nil, apperrors.NotFound("address", int64(9)))

	_, err := svc.UpdateAddress(ctx, 9, UpdateAddressInput{Name: ptr("x")})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

// ---------------------------------------------------------------------------
// DeleteAddress
// ---------------------------------------------------------------------------

func TestDeleteAddress_Success(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	repo.On("Delete", ctx, int64(4)).Return(nil)
	pub.On("AddressDeleted", ctx, int64(4)).Return(nil)

	assert.NoError(t, svc.DeleteAddress(ctx, 4))
	pub.AssertExpectations(t)
}

func TestDeleteAddress_NotFound(t *testing.T) {
	svc, repo, pub := newTestService()
	ctx := context.Background()

	repo.On("Delete", ctx, int64(4)).Return(apperrors.NotFound("address", int64(4)))

	err := svc.DeleteAddress(ctx, 4)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	pub.AssertNotCalled(t, "AddressDeleted", mock.Anything, mock.Anything)
}

// ---------------------------------------------------------------------------
// FindWithinDistance
// ---------------------------------------------------------------------------

func newMemoryService(t *testing.T, points map[string]geo.Point) (*AddressService, map[string]int64) {
	t.Helper()
	svc := NewAddressService(memory.NewAddressRepository(), nil, newTestLogger())
	ids := make(map[string]int64, len(points))
	for _, name := range []string{"berlin", "potsdam", "hamburg", "paris", "berlin-twin"} {
		p, ok := points[name]
		if !ok {
			continue
		}
		a, err := svc.CreateAddress(context.Background(), CreateAddressInput{Name: name, Latitude: p.Latitude, Longitude: p.Longitude})
		require.NoError(t, err)
		ids[name] = a.ID
	}
	return svc, ids
}

var cities = map[string]geo.Point{
	"berlin":      {Latitude: 52.5200, Longitude: 13.4050},
	"potsdam":     {Latitude: 52.3906, Longitude: 13.0645},
	"hamburg":     {Latitude: 53.5511, Longitude: 9.9937},
	"paris":       {Latitude: 48.8566, Longitude: 2.3522},
	"berlin-twin": {Latitude: 52.5200, Longitude: 13.4050},
}

func TestFindWithinDistance_SortedByDistanceThenID(t *testing.T) {
	svc, ids := newMemoryService(t, cities)

	got, err := svc.FindWithinDistance(context.Background(), cities["berlin"], 300)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, ids["berlin"], got[0].ID)
	assert.Equal(t, ids["berlin-twin"], got[1].ID)
	assert.Equal(t, 0.0, got[0].DistanceKM)
	assert.Equal(t, ids["potsdam"], got[2].ID)
	assert.Equal(t, ids["hamburg"], got[3].ID)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].DistanceKM, got[i].DistanceKM)
	}
}

func TestFindWithinDistance_ExactlyMatchesDistanceCheck(t *testing.T) {
	svc, _ := newMemoryService(t, cities)
	center := cities["paris"]

	for _, radius := range []float64{0, 10, 255, 700, 900, 20000} {
		got, err := svc.FindWithinDistance(context.Background(), center, radius)
		require.NoError(t, err)

		want := 0
		for _, p := range cities {
			if geo.Distance(center, p) <= radius {
				want++
			}
		}
		assert.Len(t, got, want, "radius %v", radius)
		for _, n := range got {
			assert.LessOrEqual(t, n.DistanceKM, radius)
		}
	}
}

func TestFindWithinDistance_ZeroRadiusMatchesOnlyExactPoint(t *testing.T) {
	svc, _ := newMemoryService(t, cities)

	got, err := svc.FindWithinDistance(context.Background(), cities["hamburg"], 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hamburg", got[0].Name)
}

func TestFindWithinDistance_InvalidInput(t *testing.T) {
	svc, repo, _ := newTestService()

	tests := []struct {
		name     string
		center   geo.Point
		distance float64
	}{
		{"negative distance", geo.Point{Latitude: 0, Longitude: 0}, -1},
		{"NaN distance", geo.Point{Latitude: 0, Longitude: 0}, math.NaN()},
		{"latitude out of range", geo.Point{Latitude: 91, Longitude: 0}, 1},
		{"longitude out of range", geo.Point{Latitude: 0, Longitude: -181}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.FindWithinDistance(context.Background(), tt.center, tt.distance)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		})
	}
	repo.AssertNotCalled(t, "ListWithinBox", mock.Anything, mock.Anything)
}

func TestFindWithinDistance_UsesBoundingBox(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	center := geo.Point{Latitude: 10, Longitude: 10}

	repo.On("ListWithinBox", ctx, geo.BoundingBox(center, 50)).Return([]domain.Address{}, nil)

	got, err := svc.FindWithinDistance(ctx, center, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
	repo.AssertExpectations(t)
}
