package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obtic-sorbonne/chatsfp/api/middleware"
	"github.com/obtic-sorbonne/chatsfp/api/model"
	"github.com/obtic-sorbonne/chatsfp/internal/llm"
	"github.com/obtic-sorbonne/chatsfp/internal/services"
)

// QAHandler 问答接口处理器
type QAHandler struct {
	qa      *services.QAService
	session *services.Session
}

// NewQAHandler 创建问答处理器
func NewQAHandler(qa *services.QAService, session *services.Session) *QAHandler {
	return &QAHandler{qa: qa, session: session}
}

// Ask 处理问答请求
// POST /api/qa
func (h *QAHandler) Ask(c *gin.Context) {
	var req model.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest,
			"question is required"))
		return
	}

	answer, err := h.qa.Ask(c.Request.Context(), h.session, req.Question)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(&model.QAResponse{
		Question:  answer.Question,
		Answer:    answer.Text,
		Sources:   model.ConvertSources(answer.Sources),
		FromCache: answer.FromCache,
	}))
}

// History 返回对话历史
// GET /api/history
func (h *QAHandler) History(c *gin.Context) {
	c.JSON(http.StatusOK, model.NewSuccessResponse(
		model.ConvertHistory(h.session.ID, h.session.History())))
}

// ClearHistory 清空对话历史
// DELETE /api/history
func (h *QAHandler) ClearHistory(c *gin.Context) {
	h.session.ClearHistory()
	c.JSON(http.StatusOK, model.NewSuccessResponse(nil))
}

// GetTemplate 返回当前查询模板
// GET /api/template
func (h *QAHandler) GetTemplate(c *gin.Context) {
	template := h.session.Template()
	c.JSON(http.StatusOK, model.NewSuccessResponse(&model.TemplateResponse{
		Template:  template,
		IsDefault: template == llm.DefaultQueryTemplate,
	}))
}

// UpdateTemplate 更新查询模板
// PUT /api/template
func (h *QAHandler) UpdateTemplate(c *gin.Context) {
	var req model.TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest,
			"template is required"))
		return
	}

	if err := h.session.SetTemplate(req.Template); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(&model.TemplateResponse{
		Template:  req.Template,
		IsDefault: req.Template == llm.DefaultQueryTemplate,
	}))
}

// ResetTemplate 恢复默认查询模板
// DELETE /api/template
func (h *QAHandler) ResetTemplate(c *gin.Context) {
	h.session.ResetTemplate()
	c.JSON(http.StatusOK, model.NewSuccessResponse(&model.TemplateResponse{
		Template:  llm.DefaultQueryTemplate,
		IsDefault: true,
	}))
}
