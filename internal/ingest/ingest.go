package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"foliogen/internal/database"
	"foliogen/internal/portfolio"
	"foliogen/internal/ratelimit"
	"foliogen/internal/schema"
)

var (
	// ErrRateLimited 表示该用户解析次数超限，应稍后再试。
	ErrRateLimited = errors.New("resume parse rate limit exceeded")
	// ErrUploadNotFound 表示上传记录不存在或不属于该作品集。
	ErrUploadNotFound = errors.New("resume upload not found")
	// ErrEmptyContent 表示上传文件没有抽取出任何文本。
	ErrEmptyContent = errors.New("resume upload has no extractable text")
)

// Extractor 把简历纯文本变成结构化文档。生产实现是 ai.Client。
type Extractor interface {
	ExtractStructured(ctx context.Context, resumeText string) (schema.ParsedResume, error)
}

// Orchestrator 串起完整的解析流水线：
// 限流 → 取上传文本 → AI 抽取 → 事务同步 → 回读快照。
// 同步 HTTP 路径和异步任务路径共用同一套编排逻辑。
type Orchestrator struct {
	db         *gorm.DB
	extractor  Extractor
	portfolios *portfolio.Service
	limiter    ratelimit.Limiter
	limit      int
	window     time.Duration
	logger     *slog.Logger
}

func NewOrchestrator(
	db *gorm.DB,
	extractor Extractor,
	portfolios *portfolio.Service,
	limiter ratelimit.Limiter,
	limit int,
	window time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		db:         db,
		extractor:  extractor,
		portfolios: portfolios,
		limiter:    limiter,
		limit:      limit,
		window:     window,
		logger:     logger,
	}
}

// ParseUpload 对一条上传记录执行解析并把结果同步进作品集。
// 返回同步完成后的最新作品集快照。
func (o *Orchestrator) ParseUpload(ctx context.Context, userID, uploadID uint) (portfolio.View, error) {
	allowed, err := o.limiter.Allow(ctx, fmt.Sprintf("parse:%d", userID), o.limit, o.window)
	if err != nil {
		return portfolio.View{}, fmt.Errorf("check rate limit: %w", err)
	}
	if !allowed {
		return portfolio.View{}, ErrRateLimited
	}

	p, err := o.portfolios.Load(ctx, userID)
	if err != nil {
		return portfolio.View{}, err
	}

	var upload database.ResumeUpload
	err = o.db.WithContext(ctx).
		Where("id = ? AND portfolio_id = ?", uploadID, p.ID).
		First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return portfolio.View{}, ErrUploadNotFound
	}
	if err != nil {
		return portfolio.View{}, err
	}
	if upload.Content == "" {
		return portfolio.View{}, ErrEmptyContent
	}

	start := time.Now()
	parsed, err := o.extractor.ExtractStructured(ctx, upload.Content)
	if err != nil {
		return portfolio.View{}, err
	}
	o.logger.Info("resume extracted",
		slog.Uint64("upload_id", uint64(uploadID)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if err := o.portfolios.ApplyParsedResume(ctx, p.ID, parsed); err != nil {
		return portfolio.View{}, err
	}

	fresh, err := o.portfolios.Load(ctx, userID)
	if err != nil {
		return portfolio.View{}, err
	}
	return portfolio.NewView(fresh), nil
}
