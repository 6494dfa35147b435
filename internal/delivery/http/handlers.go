package http

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/transitweather/internal/domain"
	"github.com/smartcity/transitweather/internal/service"
)

// DefaultLimit caps the rows returned by the analytics endpoint
const DefaultLimit = 1000

// historyDays is the default lookback of the history endpoint
const historyDays = 30

// AnalyticsQuery holds the dashboard filters. List values are comma separated.
type AnalyticsQuery struct {
	Years  string `query:"years"`
	Months string `query:"months"`
	Days   string `query:"days"`
	From   string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `query:"to" validate:"omitempty,datetime=2006-01-02"`
	Limit  int    `query:"limit" validate:"gte=0,lte=100000"`
}

type filterParams struct {
	Years    []int    `validate:"dive,gte=1900,lte=2100"`
	Months   []int    `validate:"dive,gte=1,lte=12"`
	DayNames []string `validate:"dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
}

// HistoryQuery selects stored rows by date
type HistoryQuery struct {
	From string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Handler contains all HTTP handlers
type Handler struct {
	datasetSvc *service.DatasetService
	repo       service.AnalyticsRepository
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(datasetSvc *service.DatasetService, repo service.AnalyticsRepository, logger *slog.Logger) *Handler {
	return &Handler{
		datasetSvc: datasetSvc,
		repo:       repo,
		validate:   validator.New(),
		logger:     logger,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	database := "ok"
	if err := h.repo.Health(c.Context()); err != nil {
		h.logger.Warn("repository health check failed", "error", err)
		database = "unavailable"
	}

	resp := fiber.Map{
		"status":   "ok",
		"service":  "transit-weather",
		"version":  "1.0.0",
		"database": database,
	}
	if ds, ok := h.datasetSvc.Current(); ok {
		resp["dataset"] = fiber.Map{
			"records":   len(ds.Records),
			"source":    ds.Source,
			"loaded_at": ds.LoadedAt,
		}
	}
	return c.JSON(resp)
}

// GetAnalytics returns filtered rows of the merged dataset
func (h *Handler) GetAnalytics(c *fiber.Ctx) error {
	q, filter, err := h.parseFilter(c)
	if err != nil {
		return err
	}

	rows, err := h.datasetSvc.Query(c.Context(), filter)
	if err != nil {
		return h.datasetError(err)
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	total := len(rows)
	if len(rows) > limit {
		rows = rows[:limit]
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    rows,
		"count":   len(rows),
		"total":   total,
	})
}

// GetSummary returns summary statistics and weather correlations of the filtered rows
func (h *Handler) GetSummary(c *fiber.Ctx) error {
	_, filter, err := h.parseFilter(c)
	if err != nil {
		return err
	}

	rows, err := h.datasetSvc.Query(c.Context(), filter)
	if err != nil {
		return h.datasetError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"summary":      h.datasetSvc.Summary(rows),
			"correlations": h.datasetSvc.Correlation(rows),
		},
	})
}

// GetQuality returns the quality reports of the loaded dataset
func (h *Handler) GetQuality(c *fiber.Ctx) error {
	ds, err := h.datasetSvc.Load(c.Context())
	if err != nil {
		return h.datasetError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    ds,
		"records": len(ds.Records),
	})
}

// Refresh regenerates the dataset from the upstream sources
func (h *Handler) Refresh(c *fiber.Ctx) error {
	ds, err := h.datasetSvc.Refresh(c.Context())
	if err != nil {
		return h.datasetError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    ds,
		"records": len(ds.Records),
	})
}

// GetHistory returns rows stored by the batch pipeline within a date range
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	var q HistoryQuery
	if err := c.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}
	if err := h.validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	to := time.Now().UTC()
	if q.To != "" {
		to, _ = time.Parse(domain.DateLayout, q.To)
	}
	from := to.AddDate(0, 0, -historyDays)
	if q.From != "" {
		from, _ = time.Parse(domain.DateLayout, q.From)
	}
	if from.After(to) {
		return fiber.NewError(fiber.StatusBadRequest, "from must not be after to")
	}

	data, err := h.repo.GetAnalytics(c.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to fetch analytics history", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch analytics history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"count":   len(data),
	})
}

func (h *Handler) parseFilter(c *fiber.Ctx) (AnalyticsQuery, domain.Filter, error) {
	var q AnalyticsQuery
	if err := c.QueryParser(&q); err != nil {
		return q, domain.Filter{}, fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}
	if err := h.validate.Struct(q); err != nil {
		return q, domain.Filter{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	years, err := splitInts(q.Years)
	if err != nil {
		return q, domain.Filter{}, fiber.NewError(fiber.StatusBadRequest, "years must be a comma separated list of integers")
	}
	months, err := splitInts(q.Months)
	if err != nil {
		return q, domain.Filter{}, fiber.NewError(fiber.StatusBadRequest, "months must be a comma separated list of integers")
	}
	params := filterParams{Years: years, Months: months, DayNames: splitStrings(q.Days)}
	if err := h.validate.Struct(params); err != nil {
		return q, domain.Filter{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	filter := domain.Filter{Years: params.Years, Months: params.Months, DayNames: params.DayNames}
	if q.From != "" {
		filter.From, _ = time.Parse(domain.DateLayout, q.From)
	}
	if q.To != "" {
		filter.To, _ = time.Parse(domain.DateLayout, q.To)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return q, domain.Filter{}, fiber.NewError(fiber.StatusBadRequest, "from must not be after to")
	}
	return q, filter, nil
}

func (h *Handler) datasetError(err error) error {
	h.logger.Error("dataset unavailable", "error", err)
	switch {
	case errors.Is(err, service.ErrNoRidership), errors.Is(err, service.ErrNoWeather), errors.Is(err, service.ErrEmptyMerge):
		return fiber.NewError(fiber.StatusServiceUnavailable, "No data returned from extraction")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to load dataset")
	}
}

func splitStrings(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitInts(s string) ([]int, error) {
	parts := splitStrings(s)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
