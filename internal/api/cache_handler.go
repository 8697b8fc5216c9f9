package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/digitalgenesiskompound/faceit-discord-bot-sub000/internal/cache"
)

// CacheHandler 缓存状态查询与定点失效接口
type CacheHandler struct {
	cache  *cache.Adaptive
	logger *logrus.Logger
}

// NewCacheHandler 创建 CacheHandler
func NewCacheHandler(adaptive *cache.Adaptive, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{
		cache:  adaptive,
		logger: logger,
	}
}

// StatusHandler 当前阶段、各类别生效TTL与两级条目数
// GET /cache/status
func (h *CacheHandler) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Status(c.Request.Context()))
}

var knownEvents = map[string]struct{}{
	cache.EventMatchStarted:     {},
	cache.EventMatchFinished:    {},
	cache.EventMatchRescheduled: {},
	cache.EventThreadCreated:    {},
}

// InvalidateHandler 按状态变更事件做定点失效
// POST /invalidate/:event?match_id=xxx
func (h *CacheHandler) InvalidateHandler(c *gin.Context) {
	event := c.Param("event")
	if _, ok := knownEvents[event]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event: " + event})
		return
	}
	matchID := c.Query("match_id")
	if matchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "match_id is required"})
		return
	}

	h.cache.InvalidateEvent(c.Request.Context(), event, matchID)
	h.logger.WithFields(logrus.Fields{"event": event, "match_id": matchID}).Info("手动触发缓存定点失效")
	c.JSON(http.StatusOK, gin.H{
		"message": "invalidated",
		"event":   event,
	})
}
