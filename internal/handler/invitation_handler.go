package handler

import (
	"net/http"

	"societyledger/internal/middleware"
	"societyledger/internal/model"
	"societyledger/internal/service"
	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvitationHandler struct {
	invitationService service.InvitationService
	authn             *middleware.Authenticator
}

func NewInvitationHandler(invitationService service.InvitationService, authn *middleware.Authenticator) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService, authn: authn}
}

// RegisterPublicRoutes binds the endpoint an invitee reaches from the email link
func (h *InvitationHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/accept-invitation", h.Accept)
}

func (h *InvitationHandler) RegisterRoutes(router *gin.RouterGroup) {
	officers := middleware.RequireRole(model.OfficerRoles...)
	router.POST("/societies/:id/invite-member", officers, h.Invite)
	router.GET("/invitations/pending", officers, h.ListPending)
}

// Invite emails an invitation to join the caller's society
// @Summary      Invite a society member
// @Tags         invitations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Society ID"
// @Param        payload  body      service.InviteMemberRequest  true  "Invitation"
// @Success      201      {object}  response.Response{data=service.InvitationResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/societies/{id}/invite-member [post]
func (h *InvitationHandler) Invite(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	societyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.InviteMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	inv, err := h.invitationService.Invite(c.Request.Context(), p, societyID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, inv))
}

// Accept turns an invitation into an officer account and signs it in
// @Summary      Accept an invitation
// @Tags         invitations
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AcceptInvitationRequest  true  "Account details"
// @Success      201      {object}  response.Response{data=service.LoginResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/accept-invitation [post]
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req service.AcceptInvitationRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.invitationService.Accept(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.authn.SetTokenCookie(c, res.Token, h.authn.TokenTTL())
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// ListPending returns the open invitations of the caller's society
// @Summary      List pending invitations
// @Tags         invitations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.InvitationResponse}
// @Router       /api/invitations/pending [get]
func (h *InvitationHandler) ListPending(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	invitations, err := h.invitationService.ListPending(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invitations))
}
