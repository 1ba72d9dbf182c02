package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foliogen/internal/database"
	"foliogen/internal/metrics"
	"foliogen/internal/schema"
	"foliogen/internal/slug"
)

var (
	// ErrNotFound 表示查不到目标作品集。
	ErrNotFound = errors.New("portfolio not found")
	// ErrSlugTaken 表示 slug 分配重试后仍与并发写入撞车。
	ErrSlugTaken = errors.New("slug already taken")
)

// SyncError 标注同步事务失败发生在哪一步。
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("portfolio sync failed at %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Service 负责作品集的读取与事务化写入。
// 写入遵循整体替换语义：载荷中出现的集合先清空再按序重建，
// 任何一步失败整个事务回滚，不留半新半旧状态。
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

// GetOrCreate 返回用户的作品集，不存在时自动建一条。
// 初始 slug 从用户名派生并探测去重；与并发写入撞车时重试一次。
func (s *Service) GetOrCreate(ctx context.Context, userID uint, username string) (*database.Portfolio, error) {
	var p database.Portfolio
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		allocated, err := slug.AllocateUnique(ctx, username, s.slugExists)
		if err != nil {
			return nil, err
		}
		p = database.Portfolio{UserID: userID, Slug: allocated}
		if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
			if isUniqueViolation(err) {
				s.logger.Warn("slug allocation race, retrying", slog.String("slug", allocated))
				continue
			}
			return nil, err
		}
		return &p, nil
	}
	return nil, fmt.Errorf("create portfolio: %w", ErrSlugTaken)
}

// Load 按用户取作品集，五个子集合一律按 Order 升序返回。
func (s *Service) Load(ctx context.Context, userID uint) (*database.Portfolio, error) {
	var p database.Portfolio
	err := s.preloaded(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadPublic 按 slug 取已发布的作品集，未发布视同不存在。
func (s *Service) LoadPublic(ctx context.Context, slugValue string) (*database.Portfolio, error) {
	var p database.Portfolio
	err := s.preloaded(ctx).Where("slug = ? AND published = ?", slugValue, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplyUpdate 在单个事务内套用一次部分更新。
// 载荷中缺席的字段与集合保持原样，出现的集合整体替换。
func (s *Service) ApplyUpdate(ctx context.Context, portfolioID uint, upd schema.ProfileUpdate) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyUpdate(tx, portfolioID, upd)
	})
	if err != nil {
		metrics.SyncTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.SyncTotal.WithLabelValues("ok").Inc()
	return nil
}

// ApplyParsedResume 把一份通过校验的抽取结果落库：
// 套用映射出的全量更新，并在同一事务内刷新抽取快照。
func (s *Service) ApplyParsedResume(ctx context.Context, portfolioID uint, parsed schema.ParsedResume) error {
	raw, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("encode parsed resume: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := applyUpdate(tx, portfolioID, parsed.ToUpdate()); err != nil {
			return err
		}
		snapshot := database.ParsedResume{PortfolioID: portfolioID, RawJSON: datatypes.JSON(raw)}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "portfolio_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"raw_json", "updated_at"}),
		}).Create(&snapshot).Error
		if err != nil {
			return &SyncError{Op: "snapshot", Err: err}
		}
		return nil
	})
	if err != nil {
		metrics.SyncTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.SyncTotal.WithLabelValues("ok").Inc()
	return nil
}

// UpdateSlug 发布作品集：期望 slug 规范化后探测占用（排除自身记录），
// 冲突时追加 -2、-3 … 后缀，写入新 slug 的同时置为已发布。
// 与并发写入撞车时重试一次分配。
func (s *Service) UpdateSlug(ctx context.Context, userID uint, desired string) (string, error) {
	var p database.Portfolio
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}

	for attempt := 0; attempt < 2; attempt++ {
		allocated, err := slug.AllocateUnique(ctx, desired, s.slugExistsExcluding(p.ID))
		if err != nil {
			return "", err
		}
		err = s.db.WithContext(ctx).Model(&database.Portfolio{}).
			Where("id = ?", p.ID).
			Updates(map[string]any{"slug": allocated, "published": true}).Error
		if err != nil {
			if isUniqueViolation(err) {
				s.logger.Warn("slug allocation race, retrying", slog.String("slug", allocated))
				continue
			}
			return "", err
		}
		return allocated, nil
	}
	return "", fmt.Errorf("update slug: %w", ErrSlugTaken)
}

// SetPublished 切换发布开关。
func (s *Service) SetPublished(ctx context.Context, userID uint, published bool) error {
	res := s.db.WithContext(ctx).Model(&database.Portfolio{}).
		Where("user_id = ?", userID).Update("published", published)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) preloaded(ctx context.Context) *gorm.DB {
	byOrder := func(db *gorm.DB) *gorm.DB { return db.Order(`"order" asc`) }
	return s.db.WithContext(ctx).
		Preload("Skills", byOrder).
		Preload("Links", byOrder).
		Preload("Experiences", byOrder).
		Preload("Educations", byOrder).
		Preload("Projects", byOrder)
}

func (s *Service) slugExists(ctx context.Context, candidate string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&database.Portfolio{}).
		Where("slug = ?", candidate).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// slugExistsExcluding 和 slugExists 一样，但不把 id 指向的那条算作占用，
// 保住自己已有的 slug 不会被探测成冲突。
func (s *Service) slugExistsExcluding(id uint) slug.ExistsFunc {
	return func(ctx context.Context, candidate string) (bool, error) {
		var count int64
		err := s.db.WithContext(ctx).Model(&database.Portfolio{}).
			Where("slug = ? AND id <> ?", candidate, id).Count(&count).Error
		if err != nil {
			return false, err
		}
		return count > 0, nil
	}
}

func applyUpdate(tx *gorm.DB, portfolioID uint, upd schema.ProfileUpdate) error {
	scalars := map[string]any{}
	if upd.DisplayName != nil {
		scalars["display_name"] = *upd.DisplayName
	}
	if upd.Headline != nil {
		scalars["headline"] = *upd.Headline
	}
	if upd.Bio != nil {
		scalars["bio"] = *upd.Bio
	}
	if upd.ContactEmail != nil {
		scalars["contact_email"] = *upd.ContactEmail
	}
	if upd.Location != nil {
		scalars["location"] = *upd.Location
	}
	if len(scalars) > 0 {
		res := tx.Model(&database.Portfolio{}).Where("id = ?", portfolioID).Updates(scalars)
		if res.Error != nil {
			return &SyncError{Op: "scalars", Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
	}

	if upd.Skills != nil {
		rows := make([]database.Skill, len(*upd.Skills))
		for i, v := range *upd.Skills {
			rows[i] = database.Skill{PortfolioID: portfolioID, Value: v, Order: i}
		}
		if err := replaceCollection(tx, portfolioID, &database.Skill{}, rows); err != nil {
			return &SyncError{Op: "skills", Err: err}
		}
	}
	if upd.Links != nil {
		rows := make([]database.Link, len(*upd.Links))
		for i, v := range *upd.Links {
			rows[i] = database.Link{PortfolioID: portfolioID, Label: v.Label, URL: v.URL, Order: i}
		}
		if err := replaceCollection(tx, portfolioID, &database.Link{}, rows); err != nil {
			return &SyncError{Op: "links", Err: err}
		}
	}
	if upd.Experiences != nil {
		rows := make([]database.Experience, len(*upd.Experiences))
		for i, v := range *upd.Experiences {
			rows[i] = database.Experience{
				PortfolioID: portfolioID,
				Company:     v.Company,
				Role:        v.Role,
				Start:       v.Start,
				End:         v.End,
				Highlights:  jsonArray(v.Highlights),
				Order:       i,
			}
		}
		if err := replaceCollection(tx, portfolioID, &database.Experience{}, rows); err != nil {
			return &SyncError{Op: "experiences", Err: err}
		}
	}
	if upd.Educations != nil {
		rows := make([]database.Education, len(*upd.Educations))
		for i, v := range *upd.Educations {
			rows[i] = database.Education{
				PortfolioID: portfolioID,
				School:      v.School,
				Degree:      v.Degree,
				Start:       v.Start,
				End:         v.End,
				Order:       i,
			}
		}
		if err := replaceCollection(tx, portfolioID, &database.Education{}, rows); err != nil {
			return &SyncError{Op: "educations", Err: err}
		}
	}
	if upd.Projects != nil {
		rows := make([]database.Project, len(*upd.Projects))
		for i, v := range *upd.Projects {
			rows[i] = database.Project{
				PortfolioID: portfolioID,
				Name:        v.Name,
				Description: v.Description,
				URL:         v.URL,
				Highlights:  jsonArray(v.Highlights),
				Order:       i,
			}
		}
		if err := replaceCollection(tx, portfolioID, &database.Project{}, rows); err != nil {
			return &SyncError{Op: "projects", Err: err}
		}
	}
	return nil
}

// replaceCollection 先物理删除旧行再批量插入新行，Order 即插入下标。
// 硬删除是有意为之：集合反复整体替换，软删除只会让表无限膨胀。
func replaceCollection[T any](tx *gorm.DB, portfolioID uint, model *T, rows []T) error {
	if err := tx.Unscoped().Where("portfolio_id = ?", portfolioID).Delete(model).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func jsonArray(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return datatypes.JSON(b)
}

// isUniqueViolation 粗粒度识别唯一约束冲突，兼容 postgres 与 sqlite 的报错文案。
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
