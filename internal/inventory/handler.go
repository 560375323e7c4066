package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/stocklens/stocklens/internal/observability"
	"github.com/stocklens/stocklens/internal/platform/httpx"
	"github.com/stocklens/stocklens/internal/shared"
)

const maxPageSize = 100

// Handler wires the inventory HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		metrics:  metrics,
	}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/kpis", h.handleKPIs)
	r.Get("/dashboard", h.handleDashboard)

	r.Route("/analytics", func(r chi.Router) {
		r.Get("/stock-health", h.handleStockHealth)
		r.Get("/stock-status", h.handleStockStatus)
		r.Get("/items-by-warehouse", h.handleItemsByWarehouse)
		r.Get("/value-by-category", h.handleValueByCategory)
		r.Get("/critical-kpis", h.handleCriticalKPIs)
		r.Get("/critical-by-category", h.handleCriticalByCategory)
		r.Get("/critical-by-warehouse", h.handleCriticalByWarehouse)
		r.Get("/slow-excess-kpis", h.handleSlowExcessKPIs)
		r.Get("/excess-by-category", h.handleExcessByCategory)
		r.Get("/top-slow-moving", h.handleTopSlowMoving)
		r.Get("/movements", h.handleMonthlySeries)
	})

	r.Route("/activity", func(r chi.Router) {
		r.Get("/kpis", h.handleActivityKPIs)
		r.Get("/by-type", h.handleActivityByType)
		r.Get("/daily", h.handleDailyMovements)
		r.Get("/recent", h.handleRecentMovements)
	})

	r.Route("/utilization", func(r chi.Router) {
		r.Get("/kpis", h.handleUtilizationKPIs)
		r.Get("/share", h.handleUtilizationShare)
		r.Get("/capacity-vs-used", h.handleCapacityVsUsed)
	})

	r.Post("/items/{itemID}/movements", h.handlePostMovement)
}

type movementRequest struct {
	Kind                   string `json:"kind" validate:"required"`
	Qty                    int64  `json:"qty" validate:"required,gt=0"`
	Note                   string `json:"note" validate:"max=500"`
	Ref                    string `json:"ref" validate:"omitempty,uuid"`
	OrderID                *int64 `json:"orderId"`
	SourceWarehouseID      *int64 `json:"sourceWarehouseId"`
	SourceLabel            string `json:"sourceLabel" validate:"max=120"`
	DestinationWarehouseID *int64 `json:"destinationWarehouseId"`
	DestinationLabel       string `json:"destinationLabel" validate:"max=120"`
	SourceStoreID          *int64 `json:"sourceStoreId"`
	DestinationStoreID     *int64 `json:"destinationStoreId"`
}

type movementResponse struct {
	MovementID int64    `json:"movementId"`
	ItemID     int64    `json:"itemId"`
	Kind       string   `json:"kind"`
	Qty        int64    `json:"qty"`
	QtyOnHand  int64    `json:"qtyOnHand"`
	UnitCost   *float64 `json:"unitCost"`
	Value      float64  `json:"value"`
}

func (h *Handler) handlePostMovement(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "item id must be a positive integer")
		return
	}

	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		fields := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, verr := range verrs {
				fields[strings.ToLower(verr.Field())] = verr.Tag()
			}
		}
		httpx.ProblemFields(w, fields)
		return
	}

	input := MovementInput{
		ItemID:            itemID,
		Kind:              MovementKind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		Qty:               req.Qty,
		Note:              strings.TrimSpace(req.Note),
		Ref:               strings.TrimSpace(req.Ref),
		OrderID:           req.OrderID,
		SourceWarehouseID: req.SourceWarehouseID,
		SourceLabel:       strings.TrimSpace(req.SourceLabel),
		DestWarehouseID:   req.DestinationWarehouseID,
		DestLabel:         strings.TrimSpace(req.DestinationLabel),
		SourceStoreID:     req.SourceStoreID,
		DestStoreID:       req.DestinationStoreID,
		ActorID:           actorID(r),
	}

	item, movement, err := h.service.ApplyMovement(r.Context(), input)
	if err != nil {
		h.logger.Error("post movement failed",
			slog.Int64("item_id", itemID),
			slog.String("kind", string(input.Kind)),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.MovementPosted(string(movement.Kind))
	}
	h.logger.Info("movement posted",
		slog.Int64("item_id", item.ID),
		slog.String("kind", string(movement.Kind)),
		slog.Int64("qty", movement.Qty))

	httpx.JSON(w, http.StatusCreated, movementResponse{
		MovementID: movement.ID,
		ItemID:     item.ID,
		Kind:       string(movement.Kind),
		Qty:        movement.Qty,
		QtyOnHand:  item.QtyOnHand,
		UnitCost:   item.UnitCost,
		Value:      movement.Value,
	})
}

// dashboardPayload bundles the headline widgets into one response.
type dashboardPayload struct {
	KPIs        KPIPayload         `json:"kpis"`
	StockHealth []NameValue        `json:"stockHealth"`
	Activity    ActivityPayload    `json:"activity"`
	Utilization UtilizationPayload `json:"utilization"`
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var payload dashboardPayload
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		payload.KPIs, err = h.service.KPIs(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		payload.StockHealth, err = h.service.StockHealth(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		payload.Activity, err = h.service.ActivityKPIs(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		payload.Utilization, err = h.service.UtilizationKPIs(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("dashboard aggregation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) handleKPIs(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.KPIs(r.Context()) })
}

func (h *Handler) handleStockHealth(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.StockHealth(r.Context()) })
}

func (h *Handler) handleStockStatus(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.StockStatus(r.Context()) })
}

func (h *Handler) handleItemsByWarehouse(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.ItemsByWarehouse(r.Context()) })
}

func (h *Handler) handleValueByCategory(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.ValueByCategory(r.Context()) })
}

func (h *Handler) handleCriticalKPIs(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.CriticalKPIs(r.Context()) })
}

func (h *Handler) handleCriticalByCategory(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.CriticalByCategory(r.Context()) })
}

func (h *Handler) handleCriticalByWarehouse(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.CriticalByWarehouse(r.Context()) })
}

func (h *Handler) handleSlowExcessKPIs(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.SlowExcessKPIs(r.Context()) })
}

func (h *Handler) handleExcessByCategory(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.ExcessByCategory(r.Context()) })
}

func (h *Handler) handleTopSlowMoving(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", topSlowMovingDefault)
	h.respond(w, func() (any, error) { return h.service.TopSlowMoving(r.Context(), limit) })
}

func (h *Handler) handleMonthlySeries(w http.ResponseWriter, r *http.Request) {
	year := parseIntParam(r, "year", 0)
	h.respond(w, func() (any, error) { return h.service.MonthlySeries(r.Context(), year) })
}

func (h *Handler) handleActivityKPIs(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.ActivityKPIs(r.Context()) })
}

func (h *Handler) handleActivityByType(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.ActivityByType(r.Context()) })
}

func (h *Handler) handleDailyMovements(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.DailyMovements(r.Context()) })
}

func (h *Handler) handleRecentMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize := parseIntParam(r, "pageSize", 20)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	query := MovementQuery{
		Type:      q.Get("type"),
		Warehouse: q.Get("warehouse"),
		Store:     q.Get("store"),
		SortBy:    q.Get("sortBy"),
		SortDir:   q.Get("sortDir"),
		Pagination: shared.Pagination{
			Page:    parseIntParam(r, "page", 1),
			PerPage: pageSize,
		},
	}
	h.respond(w, func() (any, error) { return h.service.RecentMovements(r.Context(), query) })
}

func (h *Handler) handleUtilizationKPIs(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.UtilizationKPIs(r.Context()) })
}

func (h *Handler) handleUtilizationShare(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.UtilizationShare(r.Context()) })
}

func (h *Handler) handleCapacityVsUsed(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (any, error) { return h.service.CapacityVsUsed(r.Context()) })
}

func (h *Handler) respond(w http.ResponseWriter, load func() (any, error)) {
	payload, err := load()
	if err != nil {
		h.logger.Error("inventory read failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// actorID reads the authenticated actor from the X-Actor-ID header; zero when
// absent. Authentication itself lives upstream of this service.
func actorID(r *http.Request) int64 {
	raw := strings.TrimSpace(r.Header.Get("X-Actor-ID"))
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
