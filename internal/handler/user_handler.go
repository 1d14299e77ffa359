package handler

import (
	"net/http"

	"societyledger/internal/middleware"
	"societyledger/internal/model"
	"societyledger/internal/service"
	"societyledger/pkg/pagination"
	"societyledger/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
	authn       *middleware.Authenticator
}

// NewUserHandler sets up the routing dependencies for auth and agent endpoints
func NewUserHandler(userService service.UserService, authn *middleware.Authenticator) *UserHandler {
	return &UserHandler{userService: userService, authn: authn}
}

// RegisterPublicRoutes binds the endpoints that need no token
func (h *UserHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/auth/login", h.Login)
	router.POST("/auth/logout", h.Logout)
}

// RegisterRoutes expects router to be behind Authenticate
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/me", h.GetMe)

	agents := router.Group("/agents")
	agents.Use(middleware.RequireRole(model.RoleAdmin))
	{
		agents.POST("", h.CreateAgent)
		agents.GET("", h.ListAgents)
		agents.PUT("/:id/societies", h.UpdateAgentSocieties)
		agents.PUT("/:id/terminate", h.TerminateAgent)
	}
}

// Login handles POST /auth/login to authenticate and return a JWT token
// @Summary      Login user
// @Description  Authenticates a user by email and password, returning a JWT token and setting the access_token cookie
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.authn.SetTokenCookie(c, res.Token, h.authn.TokenTTL())
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Logout clears the token cookie
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	h.authn.ClearTokenCookie(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"ok": true}))
}

// GetMe returns the current principal with its resolved scope
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.MeResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	me, err := h.userService.Me(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, me))
}

// CreateAgent creates an agent account
// @Summary      Create an agent
// @Tags         agents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateAgentRequest  true  "Agent"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/agents [post]
func (h *UserHandler) CreateAgent(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var req service.CreateAgentRequest
	if !bindJSON(c, &req) {
		return
	}
	agent, err := h.userService.CreateAgent(c.Request.Context(), p, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, agent))
}

// ListAgents returns one page of agents
// @Summary      List agents
// @Tags         agents
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Paged}
// @Router       /api/agents [get]
func (h *UserHandler) ListAgents(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	params := pagination.Parse(c)
	agents, total, err := h.userService.ListAgents(c.Request.Context(), p, params.Page, params.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, params.Result(agents, total)))
}

// UpdateAgentSocieties replaces the agent's assignment list
// @Summary      Replace agent societies
// @Tags         agents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                               true  "Agent id"
// @Param        payload  body      service.UpdateAgentSocietiesRequest  true  "Societies"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Router       /api/agents/{id}/societies [put]
func (h *UserHandler) UpdateAgentSocieties(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateAgentSocietiesRequest
	if !bindJSON(c, &req) {
		return
	}
	agent, err := h.userService.UpdateAgentSocieties(c.Request.Context(), p, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, agent))
}

// TerminateAgent deactivates an agent and clears every assignment
// @Summary      Terminate an agent
// @Tags         agents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Agent id"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/agents/{id}/terminate [put]
func (h *UserHandler) TerminateAgent(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.userService.TerminateAgent(c.Request.Context(), p, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"ok": true}))
}
