package orm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/internal/geo"
	"github.com/utafrali/AddressBook/internal/repository"
	"github.com/utafrali/AddressBook/pkg/database"
	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

func newTestRepository(t *testing.T) *AddressRepository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.OpenGorm(context.Background(), database.GormConfig{
		Dialect: database.DialectSQLite,
		DSN:     dsn,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseGorm(db) })

	repo := NewAddressRepository(db, database.DialectSQLite)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func mustCreate(t *testing.T, repo *AddressRepository, name string, lat, lon float64) *domain.Address {
	t.Helper()
	a := &domain.Address{Name: name, Latitude: lat, Longitude: lon}
	require.NoError(t, repo.Create(context.Background(), a))
	return a
}

func TestCreate_AssignsSequentialIDs(t *testing.T) {
	repo := newTestRepository(t)

	first := mustCreate(t, repo, "Home", 52.52, 13.405)
	second := mustCreate(t, repo, "Office", 48.8566, 2.3522)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.False(t, first.CreatedAt.IsZero())
	assert.False(t, first.UpdatedAt.IsZero())
}

func TestCreate_IgnoresCallerID(t *testing.T) {
	repo := newTestRepository(t)

	a := &domain.Address{ID: 99, Name: "Home", Latitude: 1, Longitude: 2}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, int64(1), a.ID)
}

func TestGetByID_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	created := mustCreate(t, repo, "Equator", 0, 0)

	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Equator", got.Name)
	assert.Equal(t, 0.0, got.Latitude)
	assert.Equal(t, 0.0, got.Longitude)
}

func TestGetByID_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.GetByID(context.Background(), 42)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestList_PaginatesInIDOrder(t *testing.T) {
	repo := newTestRepository(t)
	for i := 0; i < 5; i++ {
		mustCreate(t, repo, fmt.Sprintf("addr-%d", i), float64(i), float64(i))
	}

	page, total, err := repo.List(context.Background(), repository.AddressFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].ID)
	assert.Equal(t, int64(4), page[1].ID)

	past, total, err := repo.List(context.Background(), repository.AddressFilter{Page: 9, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, past)
}

func TestList_Empty(t *testing.T) {
	repo := newTestRepository(t)

	page, total, err := repo.List(context.Background(), repository.AddressFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, page)
	assert.Empty(t, page)
}

func TestListWithinBox_FiltersByBounds(t *testing.T) {
	repo := newTestRepository(t)
	berlin := mustCreate(t, repo, "Berlin", 52.52, 13.405)
	mustCreate(t, repo, "Paris", 48.8566, 2.3522)
	potsdam := mustCreate(t, repo, "Potsdam", 52.3906, 13.0645)

	box := geo.Box{MinLat: 52, MaxLat: 53, MinLon: 13, MaxLon: 14}
	got, err := repo.ListWithinBox(context.Background(), box)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, berlin.ID, got[0].ID)
	assert.Equal(t, potsdam.ID, got[1].ID)
}

func TestUpdate_PersistsZeroCoordinates(t *testing.T) {
	repo := newTestRepository(t)
	a := mustCreate(t, repo, "Somewhere", 10, 20)

	a.Name = "Null Island"
	a.Latitude = 0
	a.Longitude = 0
	require.NoError(t, repo.Update(context.Background(), a))

	got, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Null Island", got.Name)
	assert.Equal(t, 0.0, got.Latitude)
	assert.Equal(t, 0.0, got.Longitude)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestUpdate_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	err := repo.Update(context.Background(), &domain.Address{ID: 7, Name: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestDelete(t *testing.T) {
	repo := newTestRepository(t)
	a := mustCreate(t, repo, "Temp", 1, 1)

	require.NoError(t, repo.Delete(context.Background(), a.ID))

	_, err := repo.GetByID(context.Background(), a.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	err = repo.Delete(context.Background(), a.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestPing(t *testing.T) {
	repo := newTestRepository(t)
	assert.NoError(t, repo.Ping(context.Background()))
}
