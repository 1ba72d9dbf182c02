package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"foliogen/internal/portfolio"
)

// PublicHandler 对外提供已发布作品集的只读数据，无需鉴权。
type PublicHandler struct {
	portfolios *portfolio.Service
	logger     *slog.Logger
}

// NewPublicHandler 构造公开页处理器。
func NewPublicHandler(portfolios *portfolio.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{portfolios: portfolios, logger: logger}
}

// GetBySlug 按 slug 返回已发布的作品集，未发布一律 404。
func (h *PublicHandler) GetBySlug(c *gin.Context) {
	slugValue := c.Param("slug")
	if slugValue == "" {
		NotFound(c, "portfolio not found")
		return
	}

	p, err := h.portfolios.LoadPublic(c.Request.Context(), slugValue)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			NotFound(c, "portfolio not found")
			return
		}
		h.logger.Error("load public portfolio failed",
			slog.String("slug", slugValue), slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, portfolio.NewView(p))
}
