package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// FieldViolation 描述单个字段上的校验失败。
type FieldViolation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError 携带按字段路径索引的全部违规项，调用方应将其透出给
// 用户做逐字段提示，而不是静默纠正数据。
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Path, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

const absoluteURLPattern = `^https?://[^\s]+$`

// strictResumeSchema 约束 AI 输出：链接 URL 必须是绝对 URL，
// 经历/教育/项目的必填文本字段不得为空。
func strictResumeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":     map[string]any{"type": "string"},
			"headline": map[string]any{"type": "string"},
			"summary":  map[string]any{"type": "string"},
			"skills": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "minLength": 1},
			},
			"experience": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"company":    map[string]any{"type": "string", "minLength": 1},
						"role":       map[string]any{"type": "string", "minLength": 1},
						"start":      map[string]any{"type": "string"},
						"end":        map[string]any{"type": "string"},
						"highlights": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"company", "role"},
				},
			},
			"education": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"school": map[string]any{"type": "string", "minLength": 1},
						"degree": map[string]any{"type": "string", "minLength": 1},
						"start":  map[string]any{"type": "string"},
						"end":    map[string]any{"type": "string"},
					},
					"required": []string{"school", "degree"},
				},
			},
			"projects": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":        map[string]any{"type": "string", "minLength": 1},
						"description": map[string]any{"type": "string"},
						"url":         map[string]any{"type": "string"},
						"highlights":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []string{"name"},
				},
			},
			"links": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"label": map[string]any{"type": "string", "minLength": 1, "maxLength": 50},
						"url":   map[string]any{"type": "string", "pattern": absoluteURLPattern},
					},
					"required": []string{"label", "url"},
				},
			},
		},
	}
}

// permissiveUpdateSchema 面向手动编辑的部分更新：一切可缺省，
// 链接 URL 允许为空串（编辑中途的半成品是预期状态）。
func permissiveUpdateSchema() map[string]any {
	permissiveLink := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"label": map[string]any{"type": "string", "minLength": 1, "maxLength": 50},
			"url":   map[string]any{"type": "string", "pattern": `^$|` + absoluteURLPattern},
		},
		"required": []string{"label"},
	}
	entity := func(props map[string]any) map[string]any {
		return map[string]any{"type": "object", "properties": props}
	}
	str := func() map[string]any { return map[string]any{"type": "string"} }

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"display_name":  map[string]any{"type": "string", "maxLength": 100},
			"headline":      map[string]any{"type": "string", "maxLength": 160},
			"bio":           map[string]any{"type": "string", "maxLength": 3000},
			"contact_email": map[string]any{"type": "string", "pattern": `^$|^[^@\s]+@[^@\s]+\.[^@\s]+$`},
			"location":      map[string]any{"type": "string", "maxLength": 120},
			"skills": map[string]any{
				"type":     "array",
				"maxItems": 50,
				"items":    map[string]any{"type": "string", "minLength": 1},
			},
			"links": map[string]any{
				"type":     "array",
				"maxItems": 20,
				"items":    permissiveLink,
			},
			"experiences": map[string]any{
				"type":     "array",
				"maxItems": 20,
				"items": entity(map[string]any{
					"company": str(), "role": str(), "start": str(), "end": str(),
					"highlights": map[string]any{"type": "array", "items": str()},
				}),
			},
			"educations": map[string]any{
				"type":     "array",
				"maxItems": 20,
				"items": entity(map[string]any{
					"school": str(), "degree": str(), "start": str(), "end": str(),
				}),
			},
			"projects": map[string]any{
				"type":     "array",
				"maxItems": 20,
				"items": entity(map[string]any{
					"name": str(), "description": str(), "url": str(),
					"highlights": map[string]any{"type": "array", "items": str()},
				}),
			},
		},
	}
}

func validateAgainst(schemaDoc map[string]any, doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schemaDoc),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return &ValidationError{Violations: []FieldViolation{{
			Path:    "(root)",
			Message: err.Error(),
		}}}
	}
	if result.Valid() {
		return nil
	}

	violations := make([]FieldViolation, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, FieldViolation{
			Path:    re.Field(),
			Message: re.Description(),
		})
	}
	return &ValidationError{Violations: violations}
}

// ParseResumeStrict 按严格契约校验 AI 输出并反序列化。
// 返回值满足 ParsedResume 的空值不变式。
func ParseResumeStrict(doc []byte) (ParsedResume, error) {
	if err := validateAgainst(strictResumeSchema(), doc); err != nil {
		return ParsedResume{}, err
	}
	var parsed ParsedResume
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return ParsedResume{}, &ValidationError{Violations: []FieldViolation{{
			Path:    "(root)",
			Message: err.Error(),
		}}}
	}
	parsed.Normalize()
	return parsed, nil
}

// ParseUpdate 按宽松契约校验用户提交的部分更新并反序列化。
func ParseUpdate(doc []byte) (ProfileUpdate, error) {
	if err := validateAgainst(permissiveUpdateSchema(), doc); err != nil {
		return ProfileUpdate{}, err
	}
	var update ProfileUpdate
	if err := json.Unmarshal(doc, &update); err != nil {
		return ProfileUpdate{}, &ValidationError{Violations: []FieldViolation{{
			Path:    "(root)",
			Message: err.Error(),
		}}}
	}
	return update, nil
}
