package handler

import (
	"net/http"

	"societyledger/internal/middleware"
	"societyledger/internal/service"
	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	reports.Use(middleware.RequireRole(reviewRoles...))
	{
		reports.GET("", h.SummaryCounts)
		reports.GET("/expense", h.ExpenseReport)
	}
}

// SummaryCounts returns pending and approved bill counts in scope
// @Summary      Bill counts
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.SummaryCounts}
// @Router       /api/reports [get]
func (h *ReportHandler) SummaryCounts(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	counts, err := h.reportService.SummaryCounts(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, counts))
}

// ExpenseReport aggregates bill amounts by status and society
// @Summary      Expense report
// @Description  Dates accept RFC3339, YYYY-MM-DD or epoch milliseconds. A bare endDate covers the whole day.
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        startDate  query     string  false  "Created on or after"
// @Param        endDate    query     string  false  "Created on or before"
// @Param        societyId  query     string  false  "Society id"
// @Param        status     query     string  false  "Bill status"
// @Success      200        {object}  response.Response{data=service.ExpenseReport}
// @Failure      400        {object}  response.Response
// @Router       /api/reports/expense [get]
func (h *ReportHandler) ExpenseReport(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var query service.ExpenseReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, middleware.BindingError(err))
		return
	}

	report, err := h.reportService.ExpenseReport(c.Request.Context(), p, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}
