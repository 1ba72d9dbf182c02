package schema

// ParsedResume 是 AI 抽取产出的规范化结构。
// 不变式：所有数组字段缺省为空切片而非 nil，标量缺省为空串，
// 下游消费方无需做空值判断。
type ParsedResume struct {
	Name       string       `json:"name"`
	Headline   string       `json:"headline"`
	Summary    string       `json:"summary"`
	Skills     []string     `json:"skills"`
	Experience []Experience `json:"experience"`
	Education  []Education  `json:"education"`
	Projects   []Project    `json:"projects"`
	Links      []Link       `json:"links"`
}

// Experience 是一段工作经历。
type Experience struct {
	Company    string   `json:"company"`
	Role       string   `json:"role"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Highlights []string `json:"highlights"`
}

// Education 是一段教育经历。
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// Project 是一个展示项目。
type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url,omitempty"`
	Highlights  []string `json:"highlights"`
}

// Link 是作品集上的外部链接。
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// ProfileUpdate 是用户手动编辑的部分更新载荷：顶层字段全部可选。
// 列表字段一旦出现即整体替换对应集合，不做增量合并。
type ProfileUpdate struct {
	DisplayName  *string       `json:"display_name,omitempty"`
	Headline     *string       `json:"headline,omitempty"`
	Bio          *string       `json:"bio,omitempty"`
	ContactEmail *string       `json:"contact_email,omitempty"`
	Location     *string       `json:"location,omitempty"`
	Skills       *[]string     `json:"skills,omitempty"`
	Links        *[]Link       `json:"links,omitempty"`
	Experiences  *[]Experience `json:"experiences,omitempty"`
	Educations   *[]Education  `json:"educations,omitempty"`
	Projects     *[]Project    `json:"projects,omitempty"`
}

// Normalize 将 nil 切片替换为空切片，保证不变式成立。
func (p *ParsedResume) Normalize() {
	if p.Skills == nil {
		p.Skills = []string{}
	}
	if p.Experience == nil {
		p.Experience = []Experience{}
	}
	for i := range p.Experience {
		if p.Experience[i].Highlights == nil {
			p.Experience[i].Highlights = []string{}
		}
	}
	if p.Education == nil {
		p.Education = []Education{}
	}
	if p.Projects == nil {
		p.Projects = []Project{}
	}
	for i := range p.Projects {
		if p.Projects[i].Highlights == nil {
			p.Projects[i].Highlights = []string{}
		}
	}
	if p.Links == nil {
		p.Links = []Link{}
	}
}

// ToUpdate 将 AI 抽取结果映射为作品集更新载荷。
// 全量替换语义：映射到的标量字段总是写入（哪怕为空串），
// 五个子集合全部出现；未映射的 contact_email / location 保持不动。
func (p ParsedResume) ToUpdate() ProfileUpdate {
	name := p.Name
	headline := p.Headline
	bio := p.Summary
	skills := p.Skills
	links := p.Links
	experiences := p.Experience
	educations := p.Education
	projects := p.Projects
	return ProfileUpdate{
		DisplayName: &name,
		Headline:    &headline,
		Bio:         &bio,
		Skills:      &skills,
		Links:       &links,
		Experiences: &experiences,
		Educations:  &educations,
		Projects:    &projects,
	}
}
