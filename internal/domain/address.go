package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/utafrali/AddressBook/pkg/errors"
)

// Field limits for an address.
const (
	MaxNameLength = 255
	MinLatitude   = -90.0
	MaxLatitude   = 90.0
	MinLongitude  = -180.0
	MaxLongitude  = 180.0
)

// Address is a named geographic point in the address book.
type Address struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"size:255;not null;index"`
	Latitude  float64   `json:"latitude" gorm:"not null;index:idx_addresses_lat_lon,priority:1"`
	Longitude float64   `json:"longitude" gorm:"not null;index:idx_addresses_lat_lon,priority:2"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the field rules shared by every store.
func (a *Address) Validate() error {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return apperrors.InvalidInput("name is required")
	}
	if utf8.RuneCountInString(a.Name) > MaxNameLength {
		return apperrors.InvalidInput("name must be at most 255 characters")
	}
	if math.IsNaN(a.Latitude) || a.Latitude < MinLatitude || a.Latitude > MaxLatitude {
		return apperrors.InvalidInput("latitude must be between -90 and 90")
	}
	if math.IsNaN(a.Longitude) || a.Longitude < MinLongitude || a.Longitude > MaxLongitude {
		return apperrors.InvalidInput("longitude must be between -180 and 180")
	}
	return nil
}

// NearbyAddress is an address returned by a proximity search together with
// its distance from the search center.
type NearbyAddress struct {
	Address
	DistanceKM float64 `json:"distance_km"`
}
