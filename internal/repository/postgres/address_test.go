package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/internal/geo"
	"github.com/utafrali/AddressBook/internal/repository"
	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

// newRepo returns a repository over a mock pool whose expectations are
// checked when the test ends.
func newRepo(t *testing.T) (*AddressRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
			mock.Close()
	})
	return NewAddressRepository(mock), mock
}

func brandenburgGate() *domain.Address {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Address{
		ID:        1,
		Name:      "Brandenburg Gate",
		Latitude:  52.516275,
		Longitude: 13.377704,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func addressColumnNames() []string {
	return []string{"id", "name", "latitude", "longitude", "created_at", "updated_at"}
}

func addressRow(a *domain.Address) *pgxmock.Rows {
	return pgxmock.NewRows(addressColumnNames()).AddRow(
		a.ID, a.Name, a.Latitude, a.Longitude, a.CreatedAt, a.UpdatedAt,
	)
}

func TestAddressRepository_Create_Success(t *testing.T) {
	repo, mock := newRepo(t)

	a := &domain.Address{Name: "Home", Latitude: 52.52, Longitude: 13.405}

	mock.ExpectQuery("INSERT INTO addresses").
		WithArgs("Home", 52.52, 13.405, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	err := repo.Create(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.ID)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)
}

func TestAddressRepository_Create_DBError(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("INSERT INTO addresses").
		WithArgs("Home", 1.0, 2.0, pgxmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), &domain.Address{Name: "Home", Latitude: 1, Longitude: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert address")
}

func TestAddressRepository_GetByID_Success(t *testing.T) {
	repo, mock := newRepo(t)

	a := brandenburgGate()

	mock.ExpectQuery("SELECT .+ FROM addresses WHERE id =").
		WithArgs(a.ID).
		WillReturnRows(addressRow(a))

	got, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestAddressRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT .+ FROM addresses WHERE id =").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), 404)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddressRepository_List_Success(t *testing.T) {
	repo, mock := newRepo(t)

	a1 := brandenburgGate()
	a2 := brandenburgGate()
	a2.ID = 2
	a2.Name = "Alexanderplatz"

	cols := append(addressColumnNames(), "total_count")
	rows := pgxmock.NewRows(cols).
		AddRow(a1.ID, a1.Name, a1.Latitude, a1.Longitude, a1.CreatedAt, a1.UpdatedAt, 12).
		AddRow(a2.ID, a2.Name, a2.Latitude, a2.Longitude, a2.CreatedAt, a2.UpdatedAt, 12)

	mock.ExpectQuery("SELECT .+ count\\(\\*\\) OVER\\(\\) .+ FROM addresses").
		WithArgs(2, 4).
		WillReturnRows(rows)

	got, total, err := repo.List(context.Background(), repository.AddressFilter{Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, got, 2)
	assert.Equal(t, "Alexanderplatz", got[1].Name)
}

func TestAddressRepository_List_PastLastPageCountsSeparately(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT .+ FROM addresses").
		WithArgs(20, 100).
		WillReturnRows(pgxmock.NewRows(append(addressColumnNames(), "total_count")))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM addresses").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))

	got, total, err := repo.List(context.Background(), repository.AddressFilter{Page: 6, PerPage: 20})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Equal(t, 5, total)
}

func TestAddressRepository_List_EmptyFirstPage(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT .+ FROM addresses").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(append(addressColumnNames(), "total_count")))

	got, total, err := repo.List(context.Background(), repository.AddressFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, total)
}

func TestAddressRepository_List_QueryError(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT .+ FROM addresses").
		WithArgs(20, 0).
		WillReturnError(errors.New("timeout"))

	_, _, err := repo.List(context.Background(), repository.AddressFilter{Page: 1, PerPage: 20})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list addresses")
}

func TestAddressRepository_ListWithinBox_PassesBounds(t *testing.T) {
	repo, mock := newRepo(t)

	a := brandenburgGate()
	box := geo.Box{MinLat: 52, MaxLat: 53, MinLon: 13, MaxLon: 14}

	mock.ExpectQuery("SELECT .+ FROM addresses\\s+WHERE latitude BETWEEN").
		WithArgs(box.MinLat, box.MaxLat, box.MinLon, box.MaxLon).
		WillReturnRows(addressRow(a))

	got, err := repo.ListWithinBox(context.Background(), box)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestAddressRepository_Update_Success(t *testing.T) {
	repo, mock := newRepo(t)

	a := brandenburgGate()
	before := a.UpdatedAt

	mock.ExpectExec("UPDATE addresses").
		WithArgs(a.Name, a.Latitude, a.Longitude, pgxmock.AnyArg(), a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), a))
	assert.False(t, a.UpdatedAt.Before(before))
}

func TestAddressRepository_Update_NotFound(t *testing.T) {
	repo, mock := newRepo(t)

	a := brandenburgGate()

	mock.ExpectExec("UPDATE addresses").
		WithArgs(a.Name, a.Latitude, a.Longitude, pgxmock.AnyArg(), a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), a)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddressRepository_Delete_Success(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("DELETE FROM addresses WHERE id =").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, repo.Delete(context.Background(), 1))
}

func TestAddressRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("DELETE FROM addresses WHERE id =").
		WithArgs(int64(99)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddressRepository_Ping(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectPing()

	assert.NoError(t, repo.Ping(context.Background()))
}
