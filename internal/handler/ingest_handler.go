// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"civic-relay-go/internal/config"
	"civic-relay-go/internal/pipeline"
	"civic-relay-go/pkg/kafka"
	"civic-relay-go/pkg/log"
	"civic-relay-go/pkg/storage"
	"civic-relay-go/pkg/tasks"
	"civic-relay-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// IngestHandler 负责接收文章批次文件并触发异步入库。
// 批次先落到对象存储，再通过 Kafka 通知后台消费者处理，
// 上传接口本身不做入库，立即返回。
type IngestHandler struct {
	minioCfg config.MinIOConfig
}

// NewIngestHandler 创建一个新的 IngestHandler。
func NewIngestHandler(minioCfg config.MinIOConfig) *IngestHandler {
	return &IngestHandler{minioCfg: minioCfg}
}

// UploadBatch 处理一次文章批次上传。
// 请求体为 multipart 表单，file 字段是批次 JSON 文件。
func (h *IngestHandler) UploadBatch(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少上传文件",
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "无法读取上传文件",
		})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "无法读取上传文件",
		})
		return
	}

	// 入队前先校验批次结构，格式错误的文件直接拒绝
	var batch pipeline.ArticleBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "批次文件不是合法的 JSON",
		})
		return
	}
	if len(batch.Articles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "批次文件不包含任何文章",
		})
		return
	}

	batchID := fmt.Sprintf("batch-%d-%s", time.Now().Unix(), token.GenerateRandomString(4))
	objectName := batchID + ".json"

	if err := storage.PutObject(c.Request.Context(), h.minioCfg.BucketName, objectName, data); err != nil {
		log.Errorf("上传批次到对象存储失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "批次存储失败",
		})
		return
	}

	task := tasks.ArticleIngestTask{
		BatchID:    batchID,
		Bucket:     h.minioCfg.BucketName,
		ObjectName: objectName,
		Source:     batch.Source,
	}
	if err := kafka.ProduceIngestTask(task); err != nil {
		log.Errorf("发送入库任务失败: BatchID=%s, err=%v", batchID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "入库任务入队失败",
		})
		return
	}

	log.Infof("批次已接收: BatchID=%s, 文章数=%d", batchID, len(batch.Articles))
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"batchId":      batchID,
			"articleCount": len(batch.Articles),
		},
	})
}
