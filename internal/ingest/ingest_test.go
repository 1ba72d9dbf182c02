package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foliogen/internal/database"
	"foliogen/internal/portfolio"
	"foliogen/internal/ratelimit"
	"foliogen/internal/schema"
)

type fakeExtractor struct {
	calls  int
	result schema.ParsedResume
	err    error
	gotTxt string
}

func (f *fakeExtractor) ExtractStructured(_ context.Context, resumeText string) (schema.ParsedResume, error) {
	f.calls++
	f.gotTxt = resumeText
	if f.err != nil {
		return schema.ParsedResume{}, f.err
	}
	return f.result, nil
}

type testEnv struct {
	db         *gorm.DB
	portfolios *portfolio.Service
	extractor  *fakeExtractor
}

func newTestEnv(t *testing.T, limit int) (*Orchestrator, *testEnv) {
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

	parsed := schema.ParsedResume{
		Name:     "Jane Doe",
		Headline: "Engineer",
		Summary:  "Ships software.",
		Skills:   []string{"Go"},
	}
	parsed.Normalize()

	env := &testEnv{
		db:         db,
		portfolios: portfolio.NewService(db, nil),
		extractor:  &fakeExtractor{result: parsed},
	}
	orch := NewOrchestrator(db, env.extractor, env.portfolios, ratelimit.NewMemoryLimiter(), limit, 10*time.Minute, nil)
	return orch, env
}

func seedUpload(t *testing.T, env *testEnv, userID uint, content string) uint {
	t.Helper()
	p, err := env.portfolios.GetOrCreate(context.Background(), userID, fmt.Sprintf("user%d", userID))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	upload := database.ResumeUpload{
		PortfolioID: p.ID,
		FileName:    "resume.pdf",
		FileType:    "pdf",
		ObjectKey:   "resumes/1/abc.pdf",
		Content:     content,
	}
	if err := env.db.Create(&upload).Error; err != nil {
		t.Fatalf("seed upload: %v", err)
	}
	return upload.ID
}

func TestParseUploadRoundTrip(t *testing.T) {
	orch, env := newTestEnv(t, 10)
	uploadID := seedUpload(t, env, 1, "Jane Doe, Engineer. Ships software.")

	view, err := orch.ParseUpload(context.Background(), 1, uploadID)
	if err != nil {
		t.Fatalf("ParseUpload: %v", err)
	}
	if env.extractor.gotTxt != "Jane Doe, Engineer. Ships software." {
		t.Fatalf("extractor got %q", env.extractor.gotTxt)
	}
	if view.DisplayName != "Jane Doe" || view.Bio != "Ships software." {
		t.Fatalf("view = %+v", view)
	}
	if len(view.Skills) != 1 || view.Skills[0] != "Go" {
		t.Fatalf("skills = %v", view.Skills)
	}
}

func TestParseUploadRateLimited(t *testing.T) {
	orch, env := newTestEnv(t, 2)
	uploadID := seedUpload(t, env, 1, "resume text")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := orch.ParseUpload(ctx, 1, uploadID); err != nil {
			t.Fatalf("parse %d: %v", i+1, err)
		}
	}

	_, err := orch.ParseUpload(ctx, 1, uploadID)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if env.extractor.calls != 2 {
		t.Fatalf("limited request must not reach the extractor, calls = %d", env.extractor.calls)
	}
}

func TestParseUploadNotFound(t *testing.T) {
	orch, env := newTestEnv(t, 10)
	seedUpload(t, env, 1, "resume text")

	_, err := orch.ParseUpload(context.Background(), 1, 9999)
	if !errors.Is(err, ErrUploadNotFound) {
		t.Fatalf("expected ErrUploadNotFound, got %v", err)
	}
}

func TestParseUploadForeignUploadInvisible(t *testing.T) {
	orch, env := newTestEnv(t, 10)
	foreignID := seedUpload(t, env, 2, "someone else's resume")
	seedUpload(t, env, 1, "own resume")

	_, err := orch.ParseUpload(context.Background(), 1, foreignID)
	if !errors.Is(err, ErrUploadNotFound) {
		t.Fatalf("foreign upload must look nonexistent, got %v", err)
	}
}

func TestParseUploadEmptyContent(t *testing.T) {
	orch, env := newTestEnv(t, 10)
	uploadID := seedUpload(t, env, 1, "")

	_, err := orch.ParseUpload(context.Background(), 1, uploadID)
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if env.extractor.calls != 0 {
		t.Fatal("empty upload must not reach the extractor")
	}
}

func TestParseUploadExtractorErrorPassesThrough(t *testing.T) {
	orch, env := newTestEnv(t, 10)
	uploadID := seedUpload(t, env, 1, "resume text")

	boom := errors.New("model melted")
	env.extractor.err = boom

	_, err := orch.ParseUpload(context.Background(), 1, uploadID)
	if !errors.Is(err, boom) {
		t.Fatalf("expected extractor error to pass through, got %v", err)
	}

	// 失败的抽取不许留下任何半成品
	got, loadErr := env.portfolios.Load(context.Background(), 1)
	if loadErr != nil {
		t.Fatalf("Load: %v", loadErr)
	}
	if got.DisplayName != "" || len(got.Skills) != 0 {
		t.Fatalf("portfolio mutated on failed extraction: %+v", got)
	}
}
