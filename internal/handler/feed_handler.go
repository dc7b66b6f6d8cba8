// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"civic-relay-go/internal/model"
	"civic-relay-go/internal/service"

	"github.com/gin-gonic/gin"
)

// FeedHandler 负责处理个性化信息流的 API 请求。
type FeedHandler struct {
	feedService service.FeedService
}

// NewFeedHandler 创建一个新的 FeedHandler 实例。
func NewFeedHandler(feedService service.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

// GetFeed 返回当前用户的个性化信息流。
// 可选的 ?topic= 参数对结果做单议题过滤，"All" 或缺省为不过滤。
func (h *FeedHandler) GetFeed(c *gin.Context) {
	user := c.MustGet("user").(*model.User)
	selectedTopic := c.Query("topic")

	result, err := h.feedService.PersonalizedFeed(c.Request.Context(), user, selectedTopic)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "无法获取信息流",
			"data":    nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    result,
	})
}
