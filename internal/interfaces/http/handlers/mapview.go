package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mapplot/customer-atlas/internal/application/filter"
	"github.com/mapplot/customer-atlas/internal/application/mapview"
	"github.com/mapplot/customer-atlas/internal/domain/customer"
	"github.com/mapplot/customer-atlas/internal/infrastructure/monitoring/logging"
	apperrors "github.com/mapplot/customer-atlas/pkg/errors"
	"github.com/mapplot/customer-atlas/pkg/types/geo"
)

// MapViewHandler exposes the map view service over HTTP.
type MapViewHandler struct {
	svc    *mapview.Service
	logger logging.Logger
}

// NewMapViewHandler constructs a MapViewHandler.
func NewMapViewHandler(svc *mapview.Service, logger logging.Logger) *MapViewHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MapViewHandler{svc: svc, logger: logger.Named("handlers")}
}

// RegisterRoutes mounts the map view API under the given router group.
func (h *MapViewHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/customers", h.ListCustomers)
	g.GET("/recipients", h.ListRecipients)
	g.GET("/counts", h.GetCounts)

	g.GET("/filters", h.GetFilters)
	g.PUT("/filters", h.SetFilters)
	g.DELETE("/filters", h.ResetFilters)
	g.GET("/options/states", h.StateOptions)
	g.GET("/options/products", h.ProductOptions)

	g.POST("/clicks/cluster", h.ClusterClick)
	g.POST("/clicks/point", h.PointClick)

	g.POST("/radius", h.RadiusSearch)
	g.GET("/radius", h.RadiusResult)

	g.POST("/refresh", h.Refresh)
	g.POST("/customers/:id/fly-to", h.FlyToCustomer)

	g.GET("/view-mode", h.GetViewMode)
	g.PUT("/view-mode", h.SetViewMode)
}

// ListCustomers returns the customers currently visible on the map.
func (h *MapViewHandler) ListCustomers(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"customers": h.svc.DisplayedCustomers()})
}

// ListRecipients returns the visible customers that have an email address.
func (h *MapViewHandler) ListRecipients(c *gin.Context) {
	recipients := h.svc.RecipientsInArea()
	respond(c, http.StatusOK, gin.H{
		"recipients": recipients,
		"count":      len(recipients),
	})
}

// GetCounts returns the total / filtered / in-radius counts.
func (h *MapViewHandler) GetCounts(c *gin.Context) {
	respond(c, http.StatusOK, h.svc.GetCounts())
}

// criteriaRequest is the wire form of the filter criteria.
type criteriaRequest struct {
	States   []string `json:"states"`
	Statuses []string `json:"statuses"`
	DateFrom string   `json:"date_from"`
	DateTo   string   `json:"date_to"`
	Products []string `json:"products"`
}

func (r criteriaRequest) toCriteria() filter.Criteria {
	return filter.Criteria{
		States:   r.States,
		Statuses: r.Statuses,
		DateFrom: r.DateFrom,
		DateTo:   r.DateTo,
		Products: r.Products,
	}
}

func criteriaResponse(crit filter.Criteria) criteriaRequest {
	return criteriaRequest{
		States:   crit.States,
		Statuses: crit.Statuses,
		DateFrom: crit.DateFrom,
		DateTo:   crit.DateTo,
		Products: crit.Products,
	}
}

// GetFilters returns the active filter criteria.
func (h *MapViewHandler) GetFilters(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"criteria": criteriaResponse(h.svc.Criteria())})
}

// SetFilters replaces the active filter criteria and returns the resulting
// counts.
func (h *MapViewHandler) SetFilters(c *gin.Context) {
	var req criteriaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidParam("malformed filter criteria").WithCause(err))
		return
	}
	counts, err := h.svc.SetCriteria(req.toCriteria())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"counts": counts})
}

// ResetFilters clears all filters and the radius search.
func (h *MapViewHandler) ResetFilters(c *gin.Context) {
	counts, err := h.svc.ResetFilters()
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"counts": counts})
}

// stateOption pairs a state code with its display name.
type stateOption struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// StateOptions returns the distinct states available for filtering, labeled
// for display.
func (h *MapViewHandler) StateOptions(c *gin.Context) {
	codes := h.svc.StateOptions()
	options := make([]stateOption, 0, len(codes))
	for _, code := range codes {
		options = append(options, stateOption{Code: code, Name: customer.StateName(code)})
	}
	respond(c, http.StatusOK, gin.H{"states": options})
}

// ProductOptions returns the filterable product names.
func (h *MapViewHandler) ProductOptions(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"products": h.svc.ProductOptions()})
}

// clickRequest is a map click position in geographic coordinates.
type clickRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (r clickRequest) point() geo.Point { return geo.Point{Lat: r.Lat, Lng: r.Lng} }

// ClusterClick resolves a click against the cluster layers.  A click that hits
// no cluster responds with hit=false.
func (h *MapViewHandler) ClusterClick(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidParam("malformed click position").WithCause(err))
		return
	}
	exp, err := h.svc.ClusterClick(req.point())
	if err != nil {
		respondError(c, err)
		return
	}
	if exp == nil {
		respond(c, http.StatusOK, gin.H{"hit": false})
		return
	}
	respond(c, http.StatusOK, gin.H{"hit": true, "expansion": exp})
}

// PointClick resolves a click against the unclustered point layers.
func (h *MapViewHandler) PointClick(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidParam("malformed click position").WithCause(err))
		return
	}
	sel, err := h.svc.PointClick(req.point())
	if err != nil {
		respondError(c, err)
		return
	}
	if sel == nil {
		respond(c, http.StatusOK, gin.H{"hit": false})
		return
	}
	respond(c, http.StatusOK, gin.H{"hit": true, "selection": sel})
}

// radiusRequest is a postal-code radius search request.
type radiusRequest struct {
	PostalCode string  `json:"postal_code"`
	Miles      float64 `json:"miles"`
}

// RadiusSearch schedules a debounced radius search and responds immediately;
// poll GET /radius for the outcome.
func (h *MapViewHandler) RadiusSearch(c *gin.Context) {
	var req radiusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidParam("malformed radius search").WithCause(err))
		return
	}
	if req.Miles < 0 {
		respondError(c, apperrors.New(apperrors.ErrCodeInvalidRadius, "radius must not be negative"))
		return
	}
	gen := h.svc.RadiusSearch(req.PostalCode, req.Miles)
	respond(c, http.StatusAccepted, gin.H{"generation": gen})
}

// RadiusResult returns the current radius-search state.
func (h *MapViewHandler) RadiusResult(c *gin.Context) {
	respond(c, http.StatusOK, h.svc.RadiusResult())
}

// Refresh re-pulls the dataset from the backend and repaints the map.
func (h *MapViewHandler) Refresh(c *gin.Context) {
	if err := h.svc.Refresh(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"counts": h.svc.GetCounts()})
}

// FlyToCustomer moves the camera to the customer's location at street level.
func (h *MapViewHandler) FlyToCustomer(c *gin.Context) {
	if err := h.svc.FlyToCustomer(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetViewMode returns the active interaction mode.
func (h *MapViewHandler) GetViewMode(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"mode": h.svc.ViewMode()})
}

// viewModeRequest selects the interaction mode.
type viewModeRequest struct {
	Mode string `json:"mode"`
}

// SetViewMode switches between the admin and customer interaction modes.
func (h *MapViewHandler) SetViewMode(c *gin.Context) {
	var req viewModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidParam("malformed view mode").WithCause(err))
		return
	}
	h.svc.SetViewMode(req.Mode)
	respond(c, http.StatusOK, gin.H{"mode": h.svc.ViewMode()})
}
