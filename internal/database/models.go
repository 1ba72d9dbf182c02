package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Username     string     `gorm:"uniqueIndex;size:64"`
	PasswordHash string     `gorm:"size:255"`
	Portfolio    *Portfolio `gorm:"constraint:OnDelete:CASCADE"`
}

// Portfolio 表示用户的作品集主记录。
// Slug 全局唯一，由发布流程分配；子集合始终按 Order 升序读取。
type Portfolio struct {
	gorm.Model
	UserID       uint   `gorm:"uniqueIndex"`
	Slug         string `gorm:"uniqueIndex;size:64"`
	Published    bool   `gorm:"default:false"`
	DisplayName  string `gorm:"size:100"`
	Headline     string `gorm:"size:160"`
	Bio          string `gorm:"size:3000"`
	ContactEmail string `gorm:"size:255"`
	Location     string `gorm:"size:120"`

	Skills      []Skill      `gorm:"constraint:OnDelete:CASCADE"`
	Links       []Link       `gorm:"constraint:OnDelete:CASCADE"`
	Experiences []Experience `gorm:"constraint:OnDelete:CASCADE"`
	Educations  []Education  `gorm:"constraint:OnDelete:CASCADE"`
	Projects    []Project    `gorm:"constraint:OnDelete:CASCADE"`
}

// Skill 是作品集的单条技能，Order 保存其在列表中的位置。
type Skill struct {
	gorm.Model
	PortfolioID uint   `gorm:"index"`
	Value       string `gorm:"size:128"`
	Order       int    `gorm:"column:\"order\""`
}

// Link 是作品集上的外部链接。
type Link struct {
	gorm.Model
	PortfolioID uint   `gorm:"index"`
	Label       string `gorm:"size:50"`
	URL         string `gorm:"size:2048"`
	Order       int    `gorm:"column:\"order\""`
}

// Experience 是一段工作经历，Highlights 以 JSONB 存储字符串数组。
type Experience struct {
	gorm.Model
	PortfolioID uint           `gorm:"index"`
	Company     string         `gorm:"size:255"`
	Role        string         `gorm:"size:255"`
	Start       string         `gorm:"size:64"`
	End         string         `gorm:"size:64"`
	Highlights  datatypes.JSON `gorm:"type:jsonb"`
	Order       int            `gorm:"column:\"order\""`
}

// Education 是一段教育经历。
type Education struct {
	gorm.Model
	PortfolioID uint   `gorm:"index"`
	School      string `gorm:"size:255"`
	Degree      string `gorm:"size:255"`
	Start       string `gorm:"size:64"`
	End         string `gorm:"size:64"`
	Order       int    `gorm:"column:\"order\""`
}

// Project 是一个展示项目。
type Project struct {
	gorm.Model
	PortfolioID uint           `gorm:"index"`
	Name        string         `gorm:"size:255"`
	Description string         `gorm:"size:2000"`
	URL         string         `gorm:"size:2048"`
	Highlights  datatypes.JSON `gorm:"type:jsonb"`
	Order       int            `gorm:"column:\"order\""`
}

// ResumeUpload 记录一次简历上传：对象存储位置与抽取出的纯文本。
// 原始文件本身只存在于对象存储中。
type ResumeUpload struct {
	gorm.Model
	PortfolioID uint   `gorm:"index"`
	FileName    string `gorm:"size:255"`
	FileType    string `gorm:"size:128"`
	ObjectKey   string `gorm:"size:512"`
	Content     string `gorm:"type:text"`
}

// ParsedResume 保存最近一次通过校验的 AI 抽取结果快照。
type ParsedResume struct {
	gorm.Model
	PortfolioID uint           `gorm:"uniqueIndex"`
	RawJSON     datatypes.JSON `gorm:"type:jsonb"`
}
