package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"foliogen/internal/ai"
	"foliogen/internal/errcode"
	"foliogen/internal/ingest"
	"foliogen/internal/portfolio"
	"foliogen/internal/tasks"
)

// parseRunner 是 *ingest.Orchestrator 中本包用到的那一小块。
type parseRunner interface {
	ParseUpload(ctx context.Context, userID, uploadID uint) (portfolio.View, error)
}

// ParseTaskHandler 负责消费后台简历解析任务。
type ParseTaskHandler struct {
	parser      parseRunner
	redisClient publisher
	logger      *slog.Logger
}

// NewParseTaskHandler 创建任务处理器。
func NewParseTaskHandler(orchestrator *ingest.Orchestrator, redisClient *redis.Client, logger *slog.Logger) *ParseTaskHandler {
	return &ParseTaskHandler{
		parser:      orchestrator,
		redisClient: redisClient,
		logger:      logger,
	}
}

// ProcessTask 实现 asynq.Handler。
// 不可恢复的失败（限流、校验彻底失败、记录不存在）不重试，
// 其余错误交给 asynq 按退避策略重投。
func (h *ParseTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ResumeParsePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(
		slog.Uint64("user_id", uint64(payload.UserID)),
		slog.Uint64("upload_id", uint64(payload.UploadID)),
	)
	log.Info("starting resume parse task")

	_, err := h.parser.ParseUpload(ctx, payload.UserID, payload.UploadID)
	if err == nil {
		log.Info("resume parse task completed")
		// 同步已落库，通知只是顺带的：总线故障不能让整条流水线重跑
		_ = h.notify(ctx, payload, ResumeParseNotifyMessage{
			Status:    "completed",
			UploadID:  payload.UploadID,
			ErrorCode: errcode.OK,
		})
		return nil
	}

	switch {
	case errors.Is(err, ingest.ErrRateLimited):
		log.Warn("parse task dropped: rate limited")
		_ = h.notify(ctx, payload, ResumeParseNotifyMessage{
			Status:       "error",
			UploadID:     payload.UploadID,
			ErrorCode:    errcode.RateLimited,
			ErrorMessage: "parse rate limit exceeded",
		})
		return nil
	case errors.Is(err, ai.ErrUnrecoverable),
		errors.Is(err, ingest.ErrUploadNotFound),
		errors.Is(err, ingest.ErrEmptyContent):
		log.Warn("parse task unrecoverable", slog.Any("error", err))
		_ = h.notify(ctx, payload, ResumeParseNotifyMessage{
			Status:       "error",
			UploadID:     payload.UploadID,
			ErrorCode:    errcode.Unrecoverable,
			ErrorMessage: strings.TrimSpace(err.Error()),
		})
		return nil
	}

	log.Error("parse task failed", slog.Any("error", err))
	if isFinalAttempt(ctx) {
		_ = h.notify(ctx, payload, ResumeParseNotifyMessage{
			Status:       "error",
			UploadID:     payload.UploadID,
			ErrorCode:    errcode.SystemError,
			ErrorMessage: strings.TrimSpace(err.Error()),
		})
	}
	return err
}

func (h *ParseTaskHandler) notify(ctx context.Context, payload tasks.ResumeParsePayload, msg ResumeParseNotifyMessage) error {
	if err := publishNotify(ctx, h.redisClient, payload.UserID, msg); err != nil {
		h.logger.Error("publish parse notification failed", slog.Any("error", err))
		return err
	}
	return nil
}

// isFinalAttempt 判断当前是否是该任务的最后一次重试。
func isFinalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
