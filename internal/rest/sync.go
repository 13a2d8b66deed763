package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"

	"priceradar/business/sync"
	"priceradar/domain"
	"priceradar/internal/repository/postgres"
	"priceradar/pkg/logger"
)

type SyncService interface {
	RunCompetitors(ctx context.Context, trigger string, names []string) (*sync.RunSummary, error)
}

type ExecutionReader interface {
	GetExecution(ctx context.Context, id string) (*domain.Execution, error)
	RecentExecutions(ctx context.Context, limit int) ([]domain.Execution, error)
}

type PriceReader interface {
	LatestPrices(ctx context.Context) ([]domain.LatestPrice, error)
	UnmatchedOffers(ctx context.Context, since time.Time) ([]postgres.UnmatchedOffer, error)
}

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
}

type SyncHandler struct {
	syncService SyncService
	executions  ExecutionReader
	prices      PriceReader
	timeout     time.Duration

	// a run can take minutes; API-triggered runs get their own deadline,
	// detached from the request
	runTimeout time.Duration
}

func NewSyncHandler(syncService SyncService, executions ExecutionReader, prices PriceReader) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		executions:  executions,
		prices:      prices,
		timeout:     10 * time.Second,
		runTimeout:  30 * time.Minute,
	}
}

type TriggerSyncRequest struct {
	Competitors []string `json:"competitors,omitempty"`
}

// TriggerSync starts a run in the background and returns immediately; the
// dashboard polls the executions endpoints to watch it.
func (h *SyncHandler) TriggerSync(c echo.Context) error {
	var req TriggerSyncRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid request body"})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.runTimeout)
		defer cancel()

		summary, err := h.syncService.RunCompetitors(ctx, "api", req.Competitors)
		if err != nil {
			logger.Error("api-triggered sync run failed", "error", err)
			return
		}
		logger.Info("api-triggered sync run finished", "execution_id", summary.ExecutionID, "status", summary.Status)
	}()

	return c.JSON(http.StatusAccepted, fres.Response.StatusOK("sync run started"))
}

func (h *SyncHandler) GetExecutions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid limit"})
		}
		limit = parsed
	}

	execs, err := h.executions.RecentExecutions(ctx, limit)
	if err != nil {
		logger.Error("failed to list executions", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(execs))
}

func (h *SyncHandler) GetExecutionByID(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	exec, err := h.executions.GetExecution(ctx, c.Param("id"))
	if err != nil {
		logger.Error("failed to load execution", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
	if exec == nil {
		return c.JSON(http.StatusNotFound, ResponseError{Message: "execution not found"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(exec))
}

func (h *SyncHandler) GetLatestPrices(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	prices, err := h.prices.LatestPrices(ctx)
	if err != nil {
		logger.Error("failed to load latest prices", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(prices))
}

// GetReconciliation lists competitor listings that produced offers without a
// catalog match in the window. Operators work through this list to extend
// the variant mappings.
func (h *SyncHandler) GetReconciliation(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	hours := 24 * 7
	if raw := c.QueryParam("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid hours"})
		}
		hours = parsed
	}

	offers, err := h.prices.UnmatchedOffers(ctx, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		logger.Error("failed to load unmatched offers", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(offers))
}
