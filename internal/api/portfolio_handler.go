package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"foliogen/internal/api/middleware"
	"foliogen/internal/portfolio"
	"foliogen/internal/schema"
)

// 手动编辑载荷的大小上限，正常表单远小于此。
const maxUpdateBodyBytes = 1 << 20

// PortfolioHandler 负责作品集的读取、编辑与发布。
type PortfolioHandler struct {
	portfolios *portfolio.Service
	logger     *slog.Logger
}

// NewPortfolioHandler 构造作品集处理器。
func NewPortfolioHandler(portfolios *portfolio.Service, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolios: portfolios, logger: logger}
}

// Get 返回当前用户的完整作品集快照。
func (h *PortfolioHandler) Get(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	p, err := h.portfolios.Load(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			NotFound(c, "portfolio not found")
			return
		}
		h.loggerFromContext(c).Error("load portfolio failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, portfolio.NewView(p))
}

// Update 套用一次手动编辑。载荷走宽松校验：
// 字段可缺省，一旦出现必须格式合法。
func (h *PortfolioHandler) Update(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBodyBytes))
	if err != nil {
		BadRequest(c, "failed to read request body")
		return
	}

	upd, err := schema.ParseUpdate(body)
	if err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":      "validation failed",
				"violations": verr.Violations,
			})
			return
		}
		BadRequest(c, "invalid json payload")
		return
	}

	ctx := c.Request.Context()
	p, err := h.portfolios.Load(ctx, userID)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			NotFound(c, "portfolio not found")
			return
		}
		Internal(c, "internal error")
		return
	}

	if err := h.portfolios.ApplyUpdate(ctx, p.ID, upd); err != nil {
		h.loggerFromContext(c).Error("apply update failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	fresh, err := h.portfolios.Load(ctx, userID)
	if err != nil {
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, portfolio.NewView(fresh))
}

type slugRequest struct {
	Slug string `json:"slug" binding:"required,min=1,max=64"`
}

// UpdateSlug 发布作品集到期望地址。目标先规范化，被占用时自动追加
// 后缀取下一个空位，同时置为已发布；409 只剩并发分配两次都撞车的兜底。
func (h *PortfolioHandler) UpdateSlug(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req slugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	allocated, err := h.portfolios.UpdateSlug(c.Request.Context(), userID, req.Slug)
	if err != nil {
		switch {
		case errors.Is(err, portfolio.ErrSlugTaken):
			Conflict(c, "slug already taken")
		case errors.Is(err, portfolio.ErrNotFound):
			NotFound(c, "portfolio not found")
		default:
			h.loggerFromContext(c).Error("update slug failed", slog.Any("error", err))
			Internal(c, "internal error")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"slug": allocated, "published": true})
}

type publishRequest struct {
	Published *bool `json:"published" binding:"required"`
}

// SetPublished 切换发布开关。
func (h *PortfolioHandler) SetPublished(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.portfolios.SetPublished(c.Request.Context(), userID, *req.Published); err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			NotFound(c, "portfolio not found")
			return
		}
		h.loggerFromContext(c).Error("set published failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"published": *req.Published})
}

func (h *PortfolioHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
