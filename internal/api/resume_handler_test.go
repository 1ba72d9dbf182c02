package api

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foliogen/internal/database"
	"foliogen/internal/portfolio"
)

type fakeStorage struct {
	uploaded map[string][]byte

	deleted   []string
	deleteErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

func newHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	user := database.User{Model: gorm.Model{ID: 1}, Username: "jane", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return db
}

func newResumeHandler(t *testing.T, db *gorm.DB, store *fakeStorage, maxBytes int64, kept int) *ResumeHandler {
	t.Helper()
	portfolios := portfolio.NewService(db, nil)
	return NewResumeHandler(db, store, nil, nil, portfolios, nil, "", maxBytes, kept)
}

func docxPayload(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	xml := fmt.Sprintf(`<w:document><w:body><w:p><w:r><w:t>%s</w:t></w:r></w:p></w:body></w:document>`, text)
	if _, err := w.Write([]byte(xml)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func newMultipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func doUpload(t *testing.T, h *ResumeHandler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := newMultipartUpload(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/v1/resume/uploads", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set("userID", uint(1))

	h.Upload(c)
	return w
}

func TestUploadStoresFileAndText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	store := newFakeStorage()
	h := newResumeHandler(t, db, store, 1<<20, 5)

	w := doUpload(t, h, "resume.docx", docxPayload(t, "Jane Doe"))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var upload database.ResumeUpload
	if err := db.First(&upload).Error; err != nil {
		t.Fatalf("load upload record: %v", err)
	}
	if upload.Content != "Jane Doe" || upload.FileType != "docx" {
		t.Fatalf("upload record = %+v", upload)
	}
	if len(store.uploaded) != 1 {
		t.Fatalf("uploaded objects = %v", store.uploaded)
	}
	if !strings.HasPrefix(upload.ObjectKey, "resumes/1/") || !strings.HasSuffix(upload.ObjectKey, ".docx") {
		t.Fatalf("object key = %q", upload.ObjectKey)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	store := newFakeStorage()
	h := newResumeHandler(t, db, store, 64, 5)

	w := doUpload(t, h, "resume.docx", bytes.Repeat([]byte("a"), 1024))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d body=%s", w.Code, w.Body.String())
	}
	if len(store.uploaded) != 0 {
		t.Fatalf("oversized file must not reach storage: %v", store.uploaded)
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	store := newFakeStorage()
	h := newResumeHandler(t, db, store, 1<<20, 5)

	w := doUpload(t, h, "resume.txt", []byte("plain text resume"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
	var count int64
	db.Model(&database.ResumeUpload{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected upload must not be recorded, count = %d", count)
	}
}

func TestUploadPrunesOldUploads(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	store := newFakeStorage()
	h := newResumeHandler(t, db, store, 1<<20, 2)

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("resume-%d.docx", i)
		if w := doUpload(t, h, name, docxPayload(t, "Jane Doe")); w.Code != http.StatusCreated {
			t.Fatalf("upload %d: got %d body=%s", i, w.Code, w.Body.String())
		}
	}

	var uploads []database.ResumeUpload
	if err := db.Order("id asc").Find(&uploads).Error; err != nil {
		t.Fatalf("list uploads: %v", err)
	}
	if len(uploads) != 2 {
		t.Fatalf("kept uploads = %d, want 2", len(uploads))
	}
	if uploads[0].FileName != "resume-1.docx" || uploads[1].FileName != "resume-2.docx" {
		t.Fatalf("oldest upload must be pruned, kept %q and %q", uploads[0].FileName, uploads[1].FileName)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("deleted objects = %v", store.deleted)
	}
	if len(store.uploaded) != 2 {
		t.Fatalf("stored objects = %v", store.uploaded)
	}
}

func TestUploadPruneSurvivesObjectDeleteFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newHandlerTestDB(t)
	store := newFakeStorage()
	h := newResumeHandler(t, db, store, 1<<20, 1)

	if w := doUpload(t, h, "first.docx", docxPayload(t, "Jane Doe")); w.Code != http.StatusCreated {
		t.Fatalf("first upload: %d", w.Code)
	}
	store.deleteErr = errors.New("minio unavailable")

	// 对象存储删不掉只记日志，数据库里的超额记录照样裁掉
	if w := doUpload(t, h, "second.docx", docxPayload(t, "Jane Doe")); w.Code != http.StatusCreated {
		t.Fatalf("second upload: %d", w.Code)
	}
	var count int64
	db.Model(&database.ResumeUpload{}).Count(&count)
	if count != 1 {
		t.Fatalf("kept uploads = %d, want 1", count)
	}
}
