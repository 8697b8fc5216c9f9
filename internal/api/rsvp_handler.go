package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/service"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

// RsvpHandler 出勤回应接口
type RsvpHandler struct {
	rsvp   *service.Rsvp
	logger *logrus.Logger
}

// NewRsvpHandler 创建 RsvpHandler
func NewRsvpHandler(rsvp *service.Rsvp, logger *logrus.Logger) *RsvpHandler {
	return &RsvpHandler{
		rsvp:   rsvp,
		logger: logger,
	}
}

type rsvpRequest struct {
	MatchID  string `json:"match_id" binding:"required"`
	UserID   string `json:"user_id" binding:"required"`
	Nickname string `json:"nickname" binding:"required"`
	Response string `json:"response" binding:"required"`
}

// SubmitHandler 记录一条出勤回应并立即刷新面板
// POST /api/rsvp
func (h *RsvpHandler) SubmitHandler(c *gin.Context) {
	var req rsvpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.rsvp.Submit(c.Request.Context(), req.MatchID, req.UserID, req.Nickname, req.Response)
	if err != nil {
		if xerrors.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// 内部细节只进日志，对外统一提示
		if errors.Is(err, service.ErrRsvpUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("出勤回应处理失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": service.ErrRsvpUnavailable.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "recorded"})
}
