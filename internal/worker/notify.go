package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type ResumeParseNotifyMessage struct {
	Status       string `json:"status"`
	UploadID     uint   `json:"upload_id"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// publisher 是 *redis.Client 中本包用到的那一小块。
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// publishNotify 把解析结果推到用户的通知频道。
func publishNotify(ctx context.Context, redisClient publisher, userID uint, msg ResumeParseNotifyMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notify message: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	return redisClient.Publish(ctx, channel, payload).Err()
}
