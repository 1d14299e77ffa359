package handler

import (
	"net/http"

	"societyledger/internal/middleware"
	"societyledger/internal/model"
	"societyledger/internal/service"
	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type BillHandler struct {
	billService service.BillService
}

func NewBillHandler(billService service.BillService) *BillHandler {
	return &BillHandler{billService: billService}
}

// RegisterRoutes expects router to be behind Authenticate
func (h *BillHandler) RegisterRoutes(router *gin.RouterGroup) {
	bills := router.Group("/bills")
	{
		bills.POST("", middleware.RequireRole(submitRoles...), h.CreateBill)
		bills.GET("", middleware.RequireRole(reviewRoles...), h.ListBills)
		bills.GET("/society/:societyId", middleware.RequireRole(reviewRoles...), h.ListBillsBySociety)
		bills.GET("/:id", middleware.RequireRole(reviewRoles...), h.GetBill)
		bills.PUT("/:id/status", middleware.RequireRole(reviewRoles...), h.UpdateStatus)
		bills.POST("/:id/remarks", middleware.RequireRole(remarkRoles...), h.AddRemark)
		bills.GET("/:id/remarks", middleware.RequireRole(reviewRoles...), h.ListRemarks)
	}
}

// CreateBill submits a bill for a society in the caller's scope
// @Summary      Submit a bill
// @Description  Creates a Pending bill. Officers may only submit for their own society.
// @Tags         bills
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateBillRequest  true  "Bill"
// @Success      201      {object}  response.Response{data=service.BillResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/bills [post]
func (h *BillHandler) CreateBill(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req service.CreateBillRequest
	if !bindJSON(c, &req) {
		return
	}

	bill, err := h.billService.CreateBill(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, bill))
}

// ListBills lists bills in scope, newest first
// @Summary      List bills
// @Tags         bills
// @Produce      json
// @Security     BearerAuth
// @Param        societyId  query     string  false  "Society id"
// @Param        status     query     string  false  "Bill status"
// @Param        q          query     string  false  "Vendor name contains"
// @Success      200        {object}  response.Response{data=[]service.BillResponse}
// @Router       /api/bills [get]
func (h *BillHandler) ListBills(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	societyID, ok := optionalQueryID(c, "societyId")
	if !ok {
		return
	}

	bills, err := h.billService.ListBills(c.Request.Context(), p, service.BillListFilter{
		SocietyID:          societyID,
		Status:             model.BillStatus(c.Query("status")),
		VendorNameContains: c.Query("q"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bills))
}

// ListBillsBySociety lists every bill of one society
// @Summary      List bills of a society
// @Tags         bills
// @Produce      json
// @Security     BearerAuth
// @Param        societyId  path      string  true  "Society id"
// @Success      200        {object}  response.Response{data=[]service.BillResponse}
// @Failure      403        {object}  response.Response
// @Router       /api/bills/society/{societyId} [get]
func (h *BillHandler) ListBillsBySociety(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	societyID, ok := pathID(c, "societyId")
	if !ok {
		return
	}

	bills, err := h.billService.ListBillsBySociety(c.Request.Context(), p, societyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bills))
}

// GetBill returns one bill with its remark trail
// @Summary      Get a bill
// @Tags         bills
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Bill id"
// @Success      200  {object}  response.Response{data=service.BillResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/bills/{id} [get]
func (h *BillHandler) GetBill(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	bill, err := h.billService.GetBill(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, bill))
}

// UpdateStatus moves a bill to a new status and records the remark
// @Summary      Change bill status
// @Description  Any status may move to any other. Managers cannot approve.
// @Tags         bills
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                           true  "Bill id"
// @Param        payload  body      service.UpdateBillStatusRequest  true  "New status"
// @Success      200      {object}  response.Response{data=service.BillChangeResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/bills/{id}/status [put]
func (h *BillHandler) UpdateStatus(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateBillStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.billService.UpdateStatus(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// AddRemark appends a remark without changing the status
// @Summary      Add a remark
// @Tags         bills
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true  "Bill id"
// @Param        payload  body      service.AddRemarkRequest  true  "Remark"
// @Success      200      {object}  response.Response{data=service.BillChangeResponse}
// @Router       /api/bills/{id}/remarks [post]
func (h *BillHandler) AddRemark(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.AddRemarkRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.billService.AddRemark(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListRemarks returns the remark trail in order
// @Summary      List remarks of a bill
// @Tags         bills
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Bill id"
// @Success      200  {object}  response.Response{data=[]service.RemarkResponse}
// @Router       /api/bills/{id}/remarks [get]
func (h *BillHandler) ListRemarks(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	remarks, err := h.billService.ListRemarks(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, remarks))
}
