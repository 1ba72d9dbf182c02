// Package extract 从上传的简历文件中抽取纯文本。
// 支持 PDF 与 DOCX；解析过程只做内存分配，不落盘、不访问网络，
// 也绝不执行文档内嵌的任何代码。
package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document 是一次抽取调用的输入：原始字节、声明的媒体类型与文件名。
// 仅在本次调用期间存活，核心不负责持久化。
type Document struct {
	Data        []byte
	ContentType string
	FileName    string
}

// ErrUnsupportedFormat 表示声明类型与扩展名都不匹配已知格式。
var ErrUnsupportedFormat = errors.New("unsupported resume format: only pdf and docx are supported")

// ParseError 包装底层解析失败，保留原因供调用方决定重试或拒绝。
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract %s text: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Format 标识派发结果。
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatDOCX
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	default:
		return "unknown"
	}
}

// DetectFormat 先看声明的媒体类型（子串匹配），再看文件名后缀。
func DetectFormat(contentType, fileName string) Format {
	ct := strings.ToLower(contentType)
	name := strings.ToLower(fileName)

	switch {
	case strings.Contains(ct, "pdf") || strings.HasSuffix(name, ".pdf"):
		return FormatPDF
	case strings.Contains(ct, "word"),
		strings.Contains(ct, "officedocument"),
		strings.HasSuffix(name, ".docx"):
		return FormatDOCX
	default:
		return FormatUnknown
	}
}

// Extract 将文档转换为 UTF-8 纯文本，页/段按阅读顺序以换行拼接。
func Extract(doc Document) (string, error) {
	switch DetectFormat(doc.ContentType, doc.FileName) {
	case FormatPDF:
		return extractPDF(doc.Data)
	case FormatDOCX:
		return extractDOCX(doc.Data)
	default:
		return "", ErrUnsupportedFormat
	}
}

// extractPDF 按页序抽取可见文本：页内文本段以单个空格连接，页间换行。
// 该解析器不做字体渲染，也不求值任何内嵌脚本。
func extractPDF(data []byte) (text string, err error) {
	// 底层库在畸形内容流上会 panic，这里统一转成解析错误。
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ParseError{Format: "pdf", Err: fmt.Errorf("malformed content stream: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ParseError{Format: "pdf", Err: err}
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		runs := make([]string, 0, len(content.Text))
		for _, t := range content.Text {
			if s := strings.TrimSpace(t.S); s != "" {
				runs = append(runs, s)
			}
		}
		pages = append(pages, strings.Join(runs, " "))
	}

	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

var docxTagPattern = regexp.MustCompile(`<[^>]+>`)

// extractDOCX 读取 OOXML 容器中的 word/document.xml 并剥离标记。
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ParseError{Format: "docx", Err: err}
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", &ParseError{Format: "docx", Err: err}
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", &ParseError{Format: "docx", Err: err}
		}
		break
	}
	if len(docXML) == 0 {
		return "", &ParseError{Format: "docx", Err: errors.New("no document.xml found in container")}
	}

	text := string(docXML)
	// 段落边界转换行，其余标记剥掉。
	text = strings.ReplaceAll(text, "</w:p>", "\n")
	text = strings.ReplaceAll(text, "<w:tab/>", "\t")
	text = docxTagPattern.ReplaceAllString(text, " ")
	return normalizeWhitespace(text), nil
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRuns = regexp.MustCompile(`[ \t]*\n[ \t\n]*`)
)

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = newlineRuns.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
