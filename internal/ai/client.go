package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"foliogen/internal/metrics"
	"foliogen/internal/schema"
)

// ErrUnrecoverable 表示模型经过一次修复重试后仍未产出合法结构,放弃。
var ErrUnrecoverable = errors.New("model failed to produce a valid resume document after repair")

const systemPrompt = `You are a resume parsing assistant. Extract structured data from resume text. Respond with JSON only, no markdown fences, no commentary.`

const userPromptTemplate = `Extract the following fields from this resume and return a single JSON object:
- name: full name
- headline: professional title or headline
- summary: a short professional summary
- skills: array of skill name strings
- links: array of {label, url} objects, urls must be absolute
- experience: array of {company, role, start, end, highlights}
- education: array of {school, degree, start, end}
- projects: array of {name, description, url, highlights}

Omit nothing you can find; use empty strings or empty arrays for missing data.

Resume text:
%s`

const repairPromptTemplate = `Your previous response was not a valid JSON document matching the required resume structure. Here is what you sent:

%s

It failed with: %s

Respond again with ONLY the corrected JSON object, nothing else.`

// Client 把简历纯文本变成通过严格校验的结构化文档。
// 流程固定:发送 → 解析,失败则恰好一轮修复,再失败即不可恢复。
type Client struct {
	completer Completer
	logger    *slog.Logger
}

func NewClient(completer Completer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{completer: completer, logger: logger}
}

// ExtractStructured 对 resumeText 执行结构化抽取。
// 供应商层面的错误原样透传;仅当两次解析都失败时返回 ErrUnrecoverable。
func (c *Client) ExtractStructured(ctx context.Context, resumeText string) (schema.ParsedResume, error) {
	raw, err := c.completer.Ask(ctx, systemPrompt, fmt.Sprintf(userPromptTemplate, resumeText))
	if err != nil {
		metrics.ExtractionTotal.WithLabelValues("provider_error").Inc()
		return schema.ParsedResume{}, err
	}

	parsed, parseErr := parseCandidate(raw)
	if parseErr == nil {
		metrics.ExtractionTotal.WithLabelValues("ok").Inc()
		return parsed, nil
	}

	c.logger.Warn("extraction candidate rejected, requesting repair", slog.String("reason", parseErr.Error()))
	metrics.RepairTotal.Inc()

	repaired, err := c.completer.Ask(ctx, systemPrompt, fmt.Sprintf(repairPromptTemplate, raw, parseErr.Error()))
	if err != nil {
		metrics.ExtractionTotal.WithLabelValues("provider_error").Inc()
		return schema.ParsedResume{}, err
	}

	parsed, parseErr = parseCandidate(repaired)
	if parseErr != nil {
		metrics.ExtractionTotal.WithLabelValues("unrecoverable").Inc()
		return schema.ParsedResume{}, fmt.Errorf("%w: %v", ErrUnrecoverable, parseErr)
	}
	metrics.ExtractionTotal.WithLabelValues("repaired").Inc()
	return parsed, nil
}

// parseCandidate 先裁取回复中首尾大括号之间的片段再做严格校验,
// 容忍模型在 JSON 前后附带客套话或代码栅栏。
func parseCandidate(reply string) (schema.ParsedResume, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return schema.ParsedResume{}, errors.New("reply contains no json object")
	}
	return schema.ParseResumeStrict([]byte(reply[start : end+1]))
}
