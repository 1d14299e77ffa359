package handler

import (
	"net/http"

	"societyledger/internal/middleware"
	"societyledger/internal/service"
	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type AdvancePaymentHandler struct {
	paymentService service.AdvancePaymentService
}

func NewAdvancePaymentHandler(paymentService service.AdvancePaymentService) *AdvancePaymentHandler {
	return &AdvancePaymentHandler{paymentService: paymentService}
}

func (h *AdvancePaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/advance-payments")
	{
		payments.POST("", middleware.RequireRole(submitRoles...), h.Request)
		payments.GET("", middleware.RequireRole(reviewRoles...), h.List)
		payments.GET("/:id", middleware.RequireRole(reviewRoles...), h.Get)
		payments.PUT("/:id", middleware.RequireRole(reviewRoles...), h.Review)
	}
}

// Request asks for funds ahead of or against a bill
// @Summary      Request an advance payment
// @Tags         advance-payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.RequestAdvancePaymentRequest  true  "Request"
// @Success      201      {object}  response.Response{data=service.AdvancePaymentResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/advance-payments [post]
func (h *AdvancePaymentHandler) Request(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req service.RequestAdvancePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.paymentService.Request(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payment))
}

// Review sets the status and amounts of an advance payment
// @Summary      Review an advance payment
// @Description  Managers may not set Approved or Partially Approved.
// @Tags         advance-payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                               true  "Advance payment id"
// @Param        payload  body      service.ReviewAdvancePaymentRequest  true  "Review"
// @Success      200      {object}  response.Response{data=service.AdvancePaymentResponse}
// @Failure      403      {object}  response.Response
// @Router       /api/advance-payments/{id} [put]
func (h *AdvancePaymentHandler) Review(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ReviewAdvancePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.paymentService.Review(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payment))
}

// List returns advance payments in scope
// @Summary      List advance payments
// @Tags         advance-payments
// @Produce      json
// @Security     BearerAuth
// @Param        societyId  query     string  false  "Society id"
// @Success      200        {object}  response.Response{data=[]service.AdvancePaymentResponse}
// @Router       /api/advance-payments [get]
func (h *AdvancePaymentHandler) List(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	societyID, ok := optionalQueryID(c, "societyId")
	if !ok {
		return
	}

	payments, err := h.paymentService.List(c.Request.Context(), p, societyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payments))
}

// Get returns one advance payment
// @Summary      Get an advance payment
// @Tags         advance-payments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Advance payment id"
// @Success      200  {object}  response.Response{data=service.AdvancePaymentResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/advance-payments/{id} [get]
func (h *AdvancePaymentHandler) Get(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.Get(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payment))
}
