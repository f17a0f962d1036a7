package permission

import (
	"collab-docs/internal/errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type GrantRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=owner editor viewer"`
}

func (h *Handler) Grant(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	requesterID, _ := c.Get("user_id")

	permission, err := h.service.Grant(
		c.Request.Context(),
		docID,
		req.UserID,
		req.Role,
		requesterID.(string),
	)
	if err != nil {
		// the grant may have committed even when fan-out failed
		if permission != nil {
			c.JSON(http.StatusCreated, gin.H{
				"permission": permission,
				"warning":    "notification delivery failed",
			})
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, permission)
}

func (h *Handler) Revoke(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	requesterID, _ := c.Get("user_id")

	err = h.service.Revoke(
		c.Request.Context(),
		docID,
		c.Param("userId"),
		requesterID.(string),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "access revoked"})
}

func (h *Handler) ListWithUsers(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	requesterID, _ := c.Get("user_id")

	rows, err := h.service.ListWithUsers(c.Request.Context(), docID, requesterID.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (h *Handler) GetMyRole(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	role, err := h.service.RoleOf(c.Request.Context(), docID, userID.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"role": role})
}
