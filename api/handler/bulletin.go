package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obtic-sorbonne/chatsfp/api/middleware"
	"github.com/obtic-sorbonne/chatsfp/api/model"
	"github.com/obtic-sorbonne/chatsfp/internal/repository"
)

// BulletinHandler 公报目录接口处理器
type BulletinHandler struct {
	catalog repository.BulletinRepository
}

// NewBulletinHandler 创建公报目录处理器
func NewBulletinHandler(catalog repository.BulletinRepository) *BulletinHandler {
	return &BulletinHandler{catalog: catalog}
}

// List 返回公报目录
// GET /api/bulletins
func (h *BulletinHandler) List(c *gin.Context) {
	bulletins, err := h.catalog.List()
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	infos := make([]model.BulletinInfo, len(bulletins))
	for i, b := range bulletins {
		infos[i] = model.BulletinInfo{
			ID:            b.ID,
			Title:         b.Title,
			Date:          b.DateText,
			Year:          b.Year,
			FragmentCount: b.FragmentCount,
			Status:        string(b.Status),
			Error:         b.Error,
		}
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(&model.BulletinListResponse{
		Total:     len(infos),
		Bulletins: infos,
	}))
}

// Years 返回标识符到年份的映射
// GET /api/bulletins/years
func (h *BulletinHandler) Years(c *gin.Context) {
	years, err := h.catalog.YearIndex()
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(years))
}
