package portfolio

import (
	"encoding/json"

	"foliogen/internal/database"
	"foliogen/internal/schema"
)

// View 是作品集对外的完整快照，私有编辑页和公开页共用。
type View struct {
	Slug         string              `json:"slug"`
	Published    bool                `json:"published"`
	DisplayName  string              `json:"display_name"`
	Headline     string              `json:"headline"`
	Bio          string              `json:"bio"`
	ContactEmail string              `json:"contact_email"`
	Location     string              `json:"location"`
	Skills       []string            `json:"skills"`
	Links        []schema.Link       `json:"links"`
	Experiences  []schema.Experience `json:"experiences"`
	Educations   []schema.Education  `json:"educations"`
	Projects     []schema.Project    `json:"projects"`
}

// NewView 把数据库记录摊平成响应结构，集合字段保证非 nil。
func NewView(p *database.Portfolio) View {
	v := View{
		Slug:         p.Slug,
		Published:    p.Published,
		DisplayName:  p.DisplayName,
		Headline:     p.Headline,
		Bio:          p.Bio,
		ContactEmail: p.ContactEmail,
		Location:     p.Location,
		Skills:       make([]string, 0, len(p.Skills)),
		Links:        make([]schema.Link, 0, len(p.Links)),
		Experiences:  make([]schema.Experience, 0, len(p.Experiences)),
		Educations:   make([]schema.Education, 0, len(p.Educations)),
		Projects:     make([]schema.Project, 0, len(p.Projects)),
	}
	for _, s := range p.Skills {
		v.Skills = append(v.Skills, s.Value)
	}
	for _, l := range p.Links {
		v.Links = append(v.Links, schema.Link{Label: l.Label, URL: l.URL})
	}
	for _, e := range p.Experiences {
		v.Experiences = append(v.Experiences, schema.Experience{
			Company:    e.Company,
			Role:       e.Role,
			Start:      e.Start,
			End:        e.End,
			Highlights: decodeHighlights(e.Highlights),
		})
	}
	for _, e := range p.Educations {
		v.Educations = append(v.Educations, schema.Education{
			School: e.School,
			Degree: e.Degree,
			Start:  e.Start,
			End:    e.End,
		})
	}
	for _, pr := range p.Projects {
		v.Projects = append(v.Projects, schema.Project{
			Name:        pr.Name,
			Description: pr.Description,
			URL:         pr.URL,
			Highlights:  decodeHighlights(pr.Highlights),
		})
	}
	return v
}

func decodeHighlights(raw []byte) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	// 历史数据损坏时宁可给空列表也不让读路径报错
	_ = json.Unmarshal(raw, &out)
	if out == nil {
		out = []string{}
	}
	return out
}
