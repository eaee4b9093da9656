package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/AddressBook/internal/domain"
	"github.com/utafrali/AddressBook/internal/geo"
	"github.com/utafrali/AddressBook/internal/repository"
	"github.com/utafrali/AddressBook/internal/service"
	"github.com/utafrali/AddressBook/pkg/httputil"
	"github.com/utafrali/AddressBook/pkg/pagination"
	"github.com/utafrali/AddressBook/pkg/validator"
)

// AddressHandler handles HTTP requests for address endpoints.
type AddressHandler struct {
	service *service.AddressService
	logger  *slog.Logger
}

// NewAddressHandler creates a new address HTTP handler.
func NewAddressHandler(svc *service.AddressService, logger *slog.Logger) *AddressHandler {
	return &AddressHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request types ---

// CreateAddressRequest is the JSON request body for creating an address.
type CreateAddressRequest struct {
	Name      string   `json:"name" validate:"required,notblank,max=255" example:"Brandenburg Gate"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude" example:"52.516275"`
	Longitude *float64 `json:"longitude" validate:"required,longitude" example:"13.377704"`
}

// UpdateAddressRequest is the JSON request body for updating an address.
// Omitted fields keep their current value.
type UpdateAddressRequest struct {
	Name      *string  `json:"name" validate:"omitempty,notblank,max=255"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
}

// DeleteAddressResponse is returned by a successful delete.
type DeleteAddressResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// --- Handlers ---

// CreateAddress handles POST /api/v1/addresses
//
// @Summary      Create an address
// @Description  Stores a named point. Latitude must lie in [-90, 90] and longitude in [-180, 180].
// @Tags         addresses
// @Accept       json
// @Produce      json
// @Param        request body CreateAddressRequest true "Address to create"
// @Success      201 {object} httputil.Response{data=domain.Address}
// @Failure      400 {object} httputil.Response{error=httputil.ErrorResponse}
// @Failure      415 {object} httputil.Response{error=httputil.ErrorResponse}
// @Security     BearerAuth
// @Router       /addresses [post]
func (h *AddressHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var req CreateAddressRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	address, err := h.service.CreateAddress(r.Context(), service.CreateAddressInput{
		Name:      req.Name,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Location", "/api/v1/addresses/"+strconv.FormatInt(address.ID, 10))
	httputil.WriteData(w, http.StatusCreated, address)
}

// GetAddress handles GET /api/v1/addresses/{id}
//
// @Summary      Get an address
// @Tags         addresses
// @Produce      json
// @Param        id path int true "Address ID"
// @Success      200 {object} httputil.Response{data=domain.Address}
// @Failure      400 {object} httputil.Response{error=httputil.ErrorResponse}
// @Failure      404 {object} httputil.Response{error=httputil.ErrorResponse}
// @Router       /addresses/{id} [get]
func (h *AddressHandler) GetAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	address, err := h.service.GetAddress(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, address)
}

// ListAddresses handles GET /api/v1/addresses
//
// @Summary      List addresses
// @Description  Returns addresses ordered by id, one page at a time.
// @Tags         addresses
// @Produce      json
// @Param        page     query int false "Page number" default(1) minimum(1)
// @Param        per_page query int false "Page size" default(20) minimum(1) maximum(100)
// @Success      200 {object} httputil.PaginatedResponse[domain.Address]
// @Failure      400 {object} httputil.Response{error=httputil.ErrorResponse}
// @Router       /addresses [get]
func (h *AddressHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteInvalidParameter(w, r, err.Error())
		return
	}

	addresses, total, err := h.service.ListAddresses(r.Context(), repository.AddressFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK,
		httputil.NewPaginatedResponse(addresses, total, params.Page, params.PerPage))
}

// UpdateAddress handles PUT and PATCH /api/v1/addresses/{id}
//
// @Summary      Update an address
// @Description  Partial update: only the fields present in the body change.
// @Tags         addresses
// @Accept       json
// @Produce      json
// @Param        id      path int                  true "Address ID"
// @Param        request body UpdateAddressRequest true "Fields to change"
// @Success      200 {object} httputil.Response{data=domain.Address}
// @Failure      400 {object} httputil.Response{error=httputil.ErrorResponse}
// @Failure      404 {object} httputil.Response{error=httputil.ErrorResponse}
// @Failure      415 {object} httputil.Response{error=httputil.ErrorResponse}
// @Security     BearerAuth
// @Router       /addresses/{id} [put]
// @Router       /addresses/{id} [patch]
func (h *AddressHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateAddressRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	address, err := h.service.UpdateAddress(r.Context(), id, service.UpdateAddressInput{
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, address)
}

// DeleteAddress handles DELETE /api/v1/addresses/{id}
//
// @Summary      Delete an address
// @Tags         addresses
// @Produce      json
// @Param        id path int true "Address ID"
// @Success      200 {object} httputil.Response{data=DeleteAddressResponse}
// @Failure      400 {object} httputil.Response{error=httputil.ErrorResponse}
// @Failure      404 {object} httputil.Response{error=httputil.ErrorResponse}
// @Security     BearerAuth
// @Router       /addresses/{id} [delete]
func (h *AddressHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteAddress(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, DeleteAddressResponse{ID: id, Status: "deleted"})
}

// WithinDistance handles GET /api/v1/addresses/within-distance
//
// @Summary      Find addresses near a point
// @Description  Returns every address whose geodesic (WGS-84) distance from the point is at most `distance` kilometres, nearest first.
// @Tags         addresses
// @Produce      json
// @Param        latitude  query number true "Latitude of the search center"
// @Param        longitude query number true "Longitude of the search center"
// @Param        distance  query number true "Search radius in kilometres"
// @Success      200 {object} httputil.Response{data=[]domain.NearbyAddress}
// @Failure      400 {object} httputil.Response{error=httputil.ErrorResponse}
// @Router       /addresses/within-distance [get]
func (h *AddressHandler) WithinDistance(w http.ResponseWriter, r *http.Request) {
	lat, ok := httputil.QueryFloat(w, r, "latitude")
	if !ok {
		return
	}
	lon, ok := httputil.QueryFloat(w, r, "longitude")
	if !ok {
		return
	}
	distance, ok := httputil.QueryFloat(w, r, "distance")
	if !ok {
		return
	}

	nearby, err := h.service.FindWithinDistance(r.Context(), geo.Point{Latitude: lat, Longitude: lon}, distance)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if nearby == nil {
		nearby = []domain.NearbyAddress{}
	}

	httputil.WriteData(w, http.StatusOK, nearby)
}
