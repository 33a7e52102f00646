package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/obtic-sorbonne/chatsfp/api/middleware"
	"github.com/obtic-sorbonne/chatsfp/api/model"
	"github.com/obtic-sorbonne/chatsfp/internal/models"
	"github.com/obtic-sorbonne/chatsfp/internal/services"
)

// NoCorpusFilesMessage 语料目录里找不到XML文件时的用户提示
const NoCorpusFilesMessage = "No XML files found. Please upload XML files or use the default corpus."

// IngestHandler 语料入库接口处理器
type IngestHandler struct {
	ingest  *services.IngestService
	session *services.Session
}

// NewIngestHandler 创建入库处理器
func NewIngestHandler(ingest *services.IngestService, session *services.Session) *IngestHandler {
	return &IngestHandler{ingest: ingest, session: session}
}

// Ingest 执行语料入库
// POST /api/ingest
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req model.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest,
			"invalid request body"))
		return
	}

	logger := middleware.GetLogger()
	progress := func(current, total int, name string) {
		logger.WithFields(logrus.Fields{
			"current": current,
			"total":   total,
			"file":    name,
		}).Info("Processing corpus file")
	}

	summary, err := h.ingest.Ingest(c.Request.Context(), h.session, req.Files, progress)
	if err != nil {
		// 空结果条件是合法状态，给用户提示而不是错误页面
		if models.IsEmptyCondition(err) {
			c.JSON(http.StatusOK, model.NewErrorResponse(1, NoCorpusFilesMessage))
			return
		}
		// 部分索引已持久化且可用，带着摘要一起报告
		if errors.Is(err, models.ErrPartialIndex) {
			c.JSON(http.StatusOK, &model.Response{
				Code:    2,
				Message: err.Error(),
				Data:    summary,
				TraceID: c.GetString("trace_id"),
			})
			return
		}
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(summary))
}

// Status 返回当前索引状态
// GET /api/index
func (h *IngestHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, model.NewSuccessResponse(
		model.ConvertIndexStatus(h.session.IndexMeta())))
}
