package handler

import (
	"net/http"

	"societyledger/internal/middleware"
	"societyledger/internal/model"
	"societyledger/internal/service"
	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type SocietyHandler struct {
	societyService service.SocietyService
}

func NewSocietyHandler(societyService service.SocietyService) *SocietyHandler {
	return &SocietyHandler{societyService: societyService}
}

func (h *SocietyHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := middleware.RequireRole(model.RoleAdmin)
	societies := router.Group("/societies")
	{
		societies.POST("", admin, h.Create)
		societies.GET("", middleware.RequireRole(reviewRoles...), h.List)
		societies.GET("/:id", middleware.RequireRole(reviewRoles...), h.Get)
		societies.PUT("/:id", admin, h.Update)
		societies.PUT("/:id/assign-agent", admin, h.AssignAgent)
		societies.DELETE("/:id/assign-agent", admin, h.UnassignAgent)
		societies.GET("/:id/members", middleware.RequireRole(reviewRoles...), h.ListMembers)
		societies.POST("/:id/members", admin, h.AddMember)
		societies.DELETE("/:id/members/:userId", admin, h.RemoveMember)
	}
}

// Create registers a society
// @Summary      Create a society
// @Tags         societies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateSocietyRequest  true  "Society"
// @Success      201      {object}  response.Response{data=service.SocietyResponse}
// @Router       /api/societies [post]
func (h *SocietyHandler) Create(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req service.CreateSocietyRequest
	if !bindJSON(c, &req) {
		return
	}
	society, err := h.societyService.Create(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, society))
}

// List returns the societies in scope
// @Summary      List societies
// @Tags         societies
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.SocietyResponse}
// @Router       /api/societies [get]
func (h *SocietyHandler) List(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	societies, err := h.societyService.List(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, societies))
}

// Get returns one society
// @Summary      Get a society
// @Tags         societies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Society id"
// @Success      200  {object}  response.Response{data=service.SocietyResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/societies/{id} [get]
func (h *SocietyHandler) Get(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	society, err := h.societyService.Get(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, society))
}

// Update changes the fields present in the payload
// @Summary      Update a society
// @Tags         societies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Society id"
// @Param        payload  body      service.UpdateSocietyRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=service.SocietyResponse}
// @Router       /api/societies/{id} [put]
func (h *SocietyHandler) Update(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateSocietyRequest
	if !bindJSON(c, &req) {
		return
	}
	society, err := h.societyService.Update(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, society))
}

// AssignAgent makes an agent responsible for the society
// @Summary      Assign an agent
// @Tags         societies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Society id"
// @Param        payload  body      service.AssignAgentRequest  true  "Agent"
// @Success      200      {object}  response.Response{data=service.SocietyResponse}
// @Router       /api/societies/{id}/assign-agent [put]
func (h *SocietyHandler) AssignAgent(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.AssignAgentRequest
	if !bindJSON(c, &req) {
		return
	}
	society, err := h.societyService.AssignAgent(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, society))
}

// UnassignAgent clears the society's agent
// @Summary      Unassign the agent
// @Tags         societies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Society id"
// @Success      200  {object}  response.Response{data=service.SocietyResponse}
// @Router       /api/societies/{id}/assign-agent [delete]
func (h *SocietyHandler) UnassignAgent(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	society, err := h.societyService.UnassignAgent(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, society))
}

// ListMembers returns the officers and assigned agents of a society
// @Summary      List members
// @Tags         societies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Society id"
// @Success      200  {object}  response.Response{data=[]service.MemberResponse}
// @Router       /api/societies/{id}/members [get]
func (h *SocietyHandler) ListMembers(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	members, err := h.societyService.ListMembers(c.Request.Context(), p, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, members))
}

// AddMember binds an officer to the society
// @Summary      Add a member
// @Description  Creates the officer, or binds an existing user that has no society yet.
// @Tags         societies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true  "Society id"
// @Param        payload  body      service.AddMemberRequest  true  "Member"
// @Success      201      {object}  response.Response{data=service.MemberResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/societies/{id}/members [post]
func (h *SocietyHandler) AddMember(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.AddMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	member, err := h.societyService.AddMember(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, member))
}

// RemoveMember detaches an officer from the society
// @Summary      Remove a member
// @Tags         societies
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string  true  "Society id"
// @Param        userId  path      string  true  "User id"
// @Success      200     {object}  response.Response
// @Failure      404     {object}  response.Response
// @Router       /api/societies/{id}/members/{userId} [delete]
func (h *SocietyHandler) RemoveMember(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	if err := h.societyService.RemoveMember(c.Request.Context(), p, id, userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"ok": true}))
}
