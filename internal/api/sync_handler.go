package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/service"
	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/xerrors"
)

// SyncHandler 手动触发扫描/调和的运维接口
type SyncHandler struct {
	checker    *service.Checker
	reconciler *service.Reconciler
	logger     *logrus.Logger
}

// NewSyncHandler 创建 SyncHandler
func NewSyncHandler(checker *service.Checker, reconciler *service.Reconciler, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		checker:    checker,
		reconciler: reconciler,
		logger:     logger,
	}
}

// CheckHandler 手动触发一轮完整扫描（已有扫描在跑时本次为空转）
// POST /check
func (h *SyncHandler) CheckHandler(c *gin.Context) {
	h.checker.CheckMatches(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"message": "扫描完成",
	})
}

// ReconcileHandler 手动调和单场比赛，返回决策动作
// POST /reconcile/:match_id
func (h *SyncHandler) ReconcileHandler(c *gin.Context) {
	matchID := c.Param("match_id")
	if matchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "match_id is required"})
		return
	}

	action, err := h.reconciler.Reconcile(c.Request.Context(), matchID)
	if err != nil {
		h.logger.WithError(err).WithField("match_id", matchID).Error("手动调和失败")
		if xerrors.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"match_id": matchID,
		"action":   action,
	})
}
