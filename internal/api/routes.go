package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchyard/internal/apperr"
	"github.com/zulandar/switchyard/internal/auth"
	"github.com/zulandar/switchyard/internal/card"
	"github.com/zulandar/switchyard/internal/models"
)

// registerRoutes sets up all API routes on the Gin router.
func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/api/auth")
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)
	authGroup.GET("/me", s.Tokens.Middleware(), s.handleMe)

	api := router.Group("/api", s.Tokens.Middleware())

	api.GET("/boards", s.handleListBoards)
	api.POST("/boards", s.handleCreateBoard)
	api.GET("/boards/:id", s.handleGetBoard)
	api.PUT("/boards/:id", s.handleRenameBoard)
	api.DELETE("/boards/:id", s.handleDeleteBoard)
	api.POST("/boards/:id/members", s.handleAddMember)
	api.DELETE("/boards/:id/members/:userId", s.handleRemoveMember)
	api.GET("/boards/:id/events", s.handleEvents)

	api.POST("/lists", s.handleCreateList)
	api.PUT("/lists/:id", s.handleRenameList)
	api.DELETE("/lists/:id", s.handleDeleteList)
	api.PUT("/lists/:id/wip", s.handleSetWIPLimit)
	api.PUT("/lists/:id/move", s.handleMoveList)

	api.POST("/cards", s.handleCreateCard)
	api.GET("/cards/:id", s.handleGetCard)
	api.PUT("/cards/:id", s.handleUpdateCard)
	api.DELETE("/cards/:id", s.handleDeleteCard)
	api.PUT("/cards/:id/move", s.handleMoveCard)

	api.GET("/ws", s.handleWebsocket)
}

func (s *Server) fail(c *gin.Context, err error) {
	respondError(c, s.Logger, err)
}

// bind decodes the JSON body into dst, reporting failures as validation
// errors.
func (s *Server) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", apperr.ErrValidation, err))
		return false
	}
	return true
}

// --- auth ---

// TokenResponse is returned by register and login.
type TokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

func (s *Server) issue(c *gin.Context, status int, u *models.User) {
	tok, exp, err := s.Tokens.Issue(u.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, TokenResponse{Token: tok, ExpiresAt: exp, User: *u})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.bind(c, &req) {
		return
	}
	u, err := s.Users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issue(c, http.StatusCreated, u)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.bind(c, &req) {
		return
	}
	u, err := s.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issue(c, http.StatusOK, u)
}

func (s *Server) handleMe(c *gin.Context) {
	u, err := s.Users.Get(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// --- boards ---

func (s *Server) handleListBoards(c *gin.Context) {
	boards, err := s.Boards.ListForUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if boards == nil {
		boards = []models.Board{}
	}
	c.JSON(http.StatusOK, boards)
}

func (s *Server) handleCreateBoard(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.bind(c, &req) {
		return
	}
	b, err := s.Boards.Create(c.Request.Context(), auth.UserID(c), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (s *Server) handleGetBoard(c *gin.Context) {
	d, err := s.Boards.Detail(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleRenameBoard(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.bind(c, &req) {
		return
	}
	b, err := s.Boards.Rename(c.Request.Context(), auth.UserID(c), c.Param("id"), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleDeleteBoard(c *gin.Context) {
	if err := s.Boards.Delete(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Board deleted"})
}

func (s *Server) handleAddMember(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !s.bind(c, &req) {
		return
	}
	d, err := s.Boards.AddMember(c.Request.Context(), auth.UserID(c), c.Param("id"), req.Email)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	err := s.Boards.RemoveMember(c.Request.Context(), auth.UserID(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// --- lists ---

func (s *Server) handleCreateList(c *gin.Context) {
	var req struct {
		BoardID string `json:"board_id"`
		Name    string `json:"name"`
	}
	if !s.bind(c, &req) {
		return
	}
	l, err := s.Lists.Create(c.Request.Context(), auth.UserID(c), req.BoardID, req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (s *Server) handleRenameList(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.bind(c, &req) {
		return
	}
	l, err := s.Lists.Rename(c.Request.Context(), auth.UserID(c), c.Param("id"), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (s *Server) handleDeleteList(c *gin.Context) {
	if err := s.Lists.Delete(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "List deleted"})
}

func (s *Server) handleSetWIPLimit(c *gin.Context) {
	var req struct {
		WIPLimit models.Field[int] `json:"wip_limit"`
	}
	if !s.bind(c, &req) {
		return
	}
	if !req.WIPLimit.Set {
		s.fail(c, fmt.Errorf("%w: wip_limit is required (use null to clear)", apperr.ErrValidation))
		return
	}
	l, err := s.Lists.SetWIPLimit(c.Request.Context(), auth.UserID(c), c.Param("id"), req.WIPLimit.Value)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// moveRequest is the body of both move endpoints. Container is board_id for
// lists and list_id for cards; empty keeps the current container.
type moveRequest struct {
	BoardID  string `json:"board_id"`
	ListID   string `json:"list_id"`
	Position *int   `json:"position" binding:"required"`
}

func (s *Server) handleMoveList(c *gin.Context) {
	var req moveRequest
	if !s.bind(c, &req) {
		return
	}
	l, err := s.Lists.Move(c.Request.Context(), auth.UserID(c), c.Param("id"), req.BoardID, *req.Position)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// --- cards ---

func (s *Server) handleCreateCard(c *gin.Context) {
	var req struct {
		ListID      string `json:"list_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		Tag         string `json:"tag"`
		AssigneeID  string `json:"assignee_id"`
		DueDate     string `json:"due_date"`
	}
	if !s.bind(c, &req) {
		return
	}
	created, err := s.Cards.Create(c.Request.Context(), auth.UserID(c), card.NewCard{
		ListID:      req.ListID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tag:         req.Tag,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetCard(c *gin.Context) {
	got, err := s.Cards.Get(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (s *Server) handleUpdateCard(c *gin.Context) {
	var patch models.CardPatch
	if !s.bind(c, &patch) {
		return
	}
	updated, err := s.Cards.Update(c.Request.Context(), auth.UserID(c), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteCard(c *gin.Context) {
	if err := s.Cards.Delete(c.Request.Context(), auth.UserID(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Card deleted"})
}

func (s *Server) handleMoveCard(c *gin.Context) {
	var req moveRequest
	if !s.bind(c, &req) {
		return
	}
	moved, err := s.Cards.Move(c.Request.Context(), auth.UserID(c), c.Param("id"), req.ListID, *req.Position)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, moved)
}
