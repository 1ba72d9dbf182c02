package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeResumeParse = "resume:parse"
)

// ResumeParsePayload 描述后台解析一条简历上传所需的最小信息。
type ResumeParsePayload struct {
	UserID   uint `json:"user_id"`
	UploadID uint `json:"upload_id"`
}

// NewResumeParseTask 构造一个新的简历解析任务。
func NewResumeParseTask(userID, uploadID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ResumeParsePayload{
		UserID:   userID,
		UploadID: uploadID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeResumeParse, payload), nil
}
