package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dutchcoders/go-clamd"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"foliogen/internal/ai"
	"foliogen/internal/api/middleware"
	"foliogen/internal/database"
	"foliogen/internal/errcode"
	"foliogen/internal/extract"
	"foliogen/internal/ingest"
	"foliogen/internal/portfolio"
	"foliogen/internal/tasks"
)

// ObjectStore 抽象简历原始文件的存取，生产实现是 *storage.Client。
type ObjectStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// ResumeHandler 负责简历上传、解析与上传记录管理。
type ResumeHandler struct {
	db             *gorm.DB
	storage        ObjectStore
	asynqClient    *asynq.Client
	orchestrator   *ingest.Orchestrator
	portfolios     *portfolio.Service
	logger         *slog.Logger
	clamdAddr      string
	maxUploadBytes int64
	maxUploadsKept int
}

// NewResumeHandler 构造简历处理器。
func NewResumeHandler(
	db *gorm.DB,
	storageClient ObjectStore,
	asynqClient *asynq.Client,
	orchestrator *ingest.Orchestrator,
	portfolios *portfolio.Service,
	logger *slog.Logger,
	clamdAddr string,
	maxUploadBytes int64,
	maxUploadsKept int,
) *ResumeHandler {
	return &ResumeHandler{
		db:             db,
		storage:        storageClient,
		asynqClient:    asynqClient,
		orchestrator:   orchestrator,
		portfolios:     portfolios,
		logger:         logger,
		clamdAddr:      clamdAddr,
		maxUploadBytes: maxUploadBytes,
		maxUploadsKept: maxUploadsKept,
	}
}

type uploadResponse struct {
	ID        uint   `json:"id"`
	FileName  string `json:"file_name"`
	FileType  string `json:"file_type"`
	TextBytes int    `json:"text_bytes"`
}

// Upload 接收简历文件：限大小、查毒、抽文本、入对象存储，
// 最后裁掉超额的历史上传。
func (h *ResumeHandler) Upload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	if file.Size > h.maxUploadBytes {
		Error(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d byte limit", h.maxUploadBytes))
		return
	}

	contentType := file.Header.Get("Content-Type")
	format := extract.DetectFormat(contentType, file.Filename)
	if format == extract.FormatUnknown {
		BadRequest(c, "unsupported file type, expected pdf or docx")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	fileReader, err := file.Open()
	if err != nil {
		Internal(c, "failed to open file")
		return
	}
	data, err := io.ReadAll(io.LimitReader(fileReader, h.maxUploadBytes+1))
	fileReader.Close()
	if err != nil {
		Internal(c, "failed to read file")
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		Error(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d byte limit", h.maxUploadBytes))
		return
	}

	if h.clamdAddr != "" {
		if err := h.scanForViruses(data); err != nil {
			logger.Warn("upload rejected by virus scan", slog.Any("error", err))
			BadRequest(c, "malicious file detected")
			return
		}
	}

	text, err := extract.Extract(extract.Document{
		Data:        data,
		ContentType: contentType,
		FileName:    file.Filename,
	})
	if err != nil {
		logger.Warn("text extraction failed", slog.Any("error", err))
		Error(c, http.StatusUnprocessableEntity, "could not extract text from file")
		return
	}

	p, err := h.resolvePortfolio(c, userID)
	if err != nil {
		logger.Error("resolve portfolio failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	objectKey := fmt.Sprintf("resumes/%d/%s%s", userID, uuid.NewString(),
		strings.ToLower(filepath.Ext(file.Filename)))
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		logger.Error("store resume file failed", slog.Any("error", err))
		Internal(c, "failed to store file")
		return
	}

	upload := database.ResumeUpload{
		PortfolioID: p.ID,
		FileName:    file.Filename,
		FileType:    format.String(),
		ObjectKey:   objectKey,
		Content:     text,
	}
	if err := h.db.WithContext(ctx).Create(&upload).Error; err != nil {
		logger.Error("create upload record failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.pruneOldUploads(c, p.ID, logger)

	logger.Info("resume uploaded",
		slog.Uint64("upload_id", uint64(upload.ID)),
		slog.Int("text_bytes", len(text)),
	)
	c.JSON(http.StatusCreated, uploadResponse{
		ID:        upload.ID,
		FileName:  upload.FileName,
		FileType:  upload.FileType,
		TextBytes: len(text),
	})
}

// Parse 同步解析一条上传记录并把结果同步进作品集。
func (h *ResumeHandler) Parse(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	uploadID, ok := h.uploadIDParam(c)
	if !ok {
		return
	}

	logger := h.loggerFromContext(c).With(
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("upload_id", uint64(uploadID)),
	)

	view, err := h.orchestrator.ParseUpload(c.Request.Context(), userID, uploadID)
	if err != nil {
		h.replyParseError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ParseAsync 把解析任务投递给后台 Worker，立刻返回。
func (h *ResumeHandler) ParseAsync(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	uploadID, ok := h.uploadIDParam(c)
	if !ok {
		return
	}

	task, err := tasks.NewResumeParseTask(userID, uploadID)
	if err != nil {
		Internal(c, "internal error")
		return
	}
	info, err := h.asynqClient.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		h.loggerFromContext(c).Error("enqueue parse task failed", slog.Any("error", err))
		Internal(c, "failed to enqueue task")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID})
}

type uploadListItem struct {
	ID        uint      `json:"id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	CreatedAt time.Time `json:"created_at"`
}

// ListUploads 返回当前用户保留的上传记录（新在前）。
func (h *ResumeHandler) ListUploads(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	p, err := h.portfolios.Load(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			c.JSON(http.StatusOK, []uploadListItem{})
			return
		}
		Internal(c, "internal error")
		return
	}

	var uploads []database.ResumeUpload
	err = h.db.WithContext(c.Request.Context()).
		Where("portfolio_id = ?", p.ID).
		Order("id desc").
		Find(&uploads).Error
	if err != nil {
		Internal(c, "internal error")
		return
	}

	items := make([]uploadListItem, 0, len(uploads))
	for _, u := range uploads {
		items = append(items, uploadListItem{
			ID:        u.ID,
			FileName:  u.FileName,
			FileType:  u.FileType,
			CreatedAt: u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

// DownloadLink 生成原始文件的限时下载链接。
func (h *ResumeHandler) DownloadLink(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	uploadID, ok := h.uploadIDParam(c)
	if !ok {
		return
	}

	upload, err := h.ownedUpload(c, userID, uploadID)
	if err != nil {
		return
	}

	url, err := h.storage.GeneratePresignedURL(c.Request.Context(), upload.ObjectKey, 15*time.Minute)
	if err != nil {
		h.loggerFromContext(c).Error("generate download link failed", slog.Any("error", err))
		Internal(c, "failed to generate download link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int((15 * time.Minute).Seconds())})
}

// DeleteUpload 删除一条上传记录及其对象存储文件。
func (h *ResumeHandler) DeleteUpload(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	uploadID, ok := h.uploadIDParam(c)
	if !ok {
		return
	}

	upload, err := h.ownedUpload(c, userID, uploadID)
	if err != nil {
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Unscoped().Delete(&database.ResumeUpload{}, upload.ID).Error; err != nil {
		Internal(c, "internal error")
		return
	}
	if err := h.storage.DeleteObject(ctx, upload.ObjectKey); err != nil {
		h.loggerFromContext(c).Error("delete stored object failed",
			slog.String("object_key", upload.ObjectKey), slog.Any("error", err))
	}
	c.Status(http.StatusNoContent)
}

// GetParsed 返回最近一次通过校验的抽取快照。
func (h *ResumeHandler) GetParsed(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	p, err := h.portfolios.Load(c.Request.Context(), userID)
	if err != nil {
		NotFound(c, "portfolio not found")
		return
	}

	var parsed database.ParsedResume
	err = h.db.WithContext(c.Request.Context()).
		Where("portfolio_id = ?", p.ID).First(&parsed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		NotFound(c, "no parsed resume yet")
		return
	}
	if err != nil {
		Internal(c, "internal error")
		return
	}
	c.Data(http.StatusOK, "application/json", parsed.RawJSON)
}

func (h *ResumeHandler) replyParseError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ingest.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":  errcode.RateLimited,
			"error": "parse rate limit exceeded, try again later",
		})
	case errors.Is(err, ingest.ErrUploadNotFound):
		NotFound(c, "upload not found")
	case errors.Is(err, ingest.ErrEmptyContent):
		Error(c, http.StatusUnprocessableEntity, "upload has no extractable text")
	case errors.Is(err, ai.ErrUnrecoverable):
		logger.Warn("extraction unrecoverable", slog.Any("error", err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":  errcode.Unrecoverable,
			"error": "the model could not produce a valid resume document",
		})
	case errors.Is(err, ai.ErrProviderUnavailable):
		Error(c, http.StatusBadGateway, "ai provider is not configured")
	default:
		var providerErr *ai.ProviderError
		if errors.As(err, &providerErr) {
			logger.Error("ai provider error", slog.Int("status", providerErr.Status))
			Error(c, http.StatusBadGateway, "ai provider request failed")
			return
		}
		logger.Error("parse pipeline failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  errcode.SystemError,
			"error": "internal error",
		})
	}
}

// pruneOldUploads 只保留最近 N 条上传，多余的连同对象一起清掉。
func (h *ResumeHandler) pruneOldUploads(c *gin.Context, portfolioID uint, logger *slog.Logger) {
	ctx := c.Request.Context()
	var stale []database.ResumeUpload
	err := h.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("id desc").
		Offset(h.maxUploadsKept).
		Find(&stale).Error
	if err != nil || len(stale) == 0 {
		return
	}

	for _, u := range stale {
		if err := h.db.WithContext(ctx).Unscoped().Delete(&database.ResumeUpload{}, u.ID).Error; err != nil {
			logger.Error("prune upload record failed", slog.Uint64("upload_id", uint64(u.ID)), slog.Any("error", err))
			continue
		}
		if err := h.storage.DeleteObject(ctx, u.ObjectKey); err != nil {
			logger.Error("prune stored object failed", slog.String("object_key", u.ObjectKey), slog.Any("error", err))
		}
	}
}

func (h *ResumeHandler) scanForViruses(data []byte) error {
	clamdClient := clamd.NewClamd(h.clamdAddr)
	abortChan := make(chan bool)
	defer close(abortChan)

	scanChan, err := clamdClient.ScanStream(bytes.NewReader(data), abortChan)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}
	for result := range scanChan {
		if result.Status != clamd.RES_OK {
			return fmt.Errorf("scan verdict %s", result.Status)
		}
	}
	return nil
}

func (h *ResumeHandler) resolvePortfolio(c *gin.Context, userID uint) (*database.Portfolio, error) {
	ctx := c.Request.Context()
	var user database.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return h.portfolios.GetOrCreate(ctx, userID, user.Username)
}

func (h *ResumeHandler) ownedUpload(c *gin.Context, userID, uploadID uint) (*database.ResumeUpload, error) {
	ctx := c.Request.Context()
	p, err := h.portfolios.Load(ctx, userID)
	if err != nil {
		NotFound(c, "upload not found")
		return nil, err
	}

	var upload database.ResumeUpload
	err = h.db.WithContext(ctx).
		Where("id = ? AND portfolio_id = ?", uploadID, p.ID).
		First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		NotFound(c, "upload not found")
		return nil, err
	}
	if err != nil {
		Internal(c, "internal error")
		return nil, err
	}
	return &upload, nil
}

func (h *ResumeHandler) uploadIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		BadRequest(c, "invalid upload id")
		return 0, false
	}
	return uint(id), true
}

func (h *ResumeHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
