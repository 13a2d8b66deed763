package router

import (
	"github.com/labstack/echo/v4"

	"priceradar/internal/rest"
)

func SetupSyncRoutes(api *echo.Group, handler *rest.SyncHandler) {
	sync := api.Group("/sync")
	sync.POST("/run", handler.TriggerSync)

	executions := api.Group("/executions")
	executions.GET("", handler.GetExecutions)
	executions.GET("/:id", handler.GetExecutionByID)

	api.GET("/latest-prices", handler.GetLatestPrices)
	api.GET("/reconciliation", handler.GetReconciliation)
}
