package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stocklens/stocklens/internal/inventory"
)

// WarmupJob pre-populates the cached analytics payloads so the first dashboard
// hit after an invalidation does not pay the aggregation cost.
type WarmupJob struct {
	Inventory *inventory.Service
	Logger    *slog.Logger
	clock     func() time.Time
}

// NewWarmupJob wires dependencies for the warmup handler.
func NewWarmupJob(inventorySvc *inventory.Service, logger *slog.Logger) *WarmupJob {
	return &WarmupJob{
		Inventory: inventorySvc,
		Logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes analytics warmup tasks.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("inventory warmup: handler not configured")
	}
	var payload WarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	year := payload.Year
	if year <= 0 {
		year = j.now().Year()
	}

	logger := j.logger().With(slog.Int("year", year))
	logger.Info("starting inventory analytics warmup")
	started := j.now()

	loaders := []struct {
		name string
		load func(context.Context) error
	}{
		{"kpis", func(ctx context.Context) error { _, err := j.Inventory.KPIs(ctx); return err }},
		{"stock_health", func(ctx context.Context) error { _, err := j.Inventory.StockHealth(ctx); return err }},
		{"stock_status", func(ctx context.Context) error { _, err := j.Inventory.StockStatus(ctx); return err }},
		{"items_by_warehouse", func(ctx context.Context) error { _, err := j.Inventory.ItemsByWarehouse(ctx); return err }},
		{"value_by_category", func(ctx context.Context) error { _, err := j.Inventory.ValueByCategory(ctx); return err }},
		{"critical_kpis", func(ctx context.Context) error { _, err := j.Inventory.CriticalKPIs(ctx); return err }},
		{"slow_excess_kpis", func(ctx context.Context) error { _, err := j.Inventory.SlowExcessKPIs(ctx); return err }},
		{"activity_kpis", func(ctx context.Context) error { _, err := j.Inventory.ActivityKPIs(ctx); return err }},
		{"activity_by_type", func(ctx context.Context) error { _, err := j.Inventory.ActivityByType(ctx); return err }},
		{"daily_movements", func(ctx context.Context) error { _, err := j.Inventory.DailyMovements(ctx); return err }},
		{"monthly_series", func(ctx context.Context) error { _, err := j.Inventory.MonthlySeries(ctx, year); return err }},
		{"utilization_kpis", func(ctx context.Context) error { _, err := j.Inventory.UtilizationKPIs(ctx); return err }},
	}

	for _, loader := range loaders {
		if err := loader.load(ctx); err != nil {
			logger.Error("warmup loader failed", slog.String("loader", loader.name), slog.Any("error", err))
			return err
		}
	}

	logger.Info("inventory analytics warmup complete",
		slog.Duration("elapsed", j.now().Sub(started)),
		slog.Int("loaders", len(loaders)))
	return nil
}

func (j *WarmupJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *WarmupJob) logger() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
