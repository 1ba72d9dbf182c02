package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestParseResumeStrictValid(t *testing.T) {
	doc := []byte(`{
		"name": "Jane Doe",
		"headline": "Engineer",
		"summary": "Ships software.",
		"skills": ["Go"],
		"experience": [{"company": "Acme", "role": "Dev", "start": "2021", "end": ""}],
		"education": [{"school": "MIT", "degree": "BSc"}],
		"projects": [{"name": "foliogen"}],
		"links": [{"label": "Site", "url": "https://jane.dev"}]
	}`)

	parsed, err := ParseResumeStrict(doc)
	if err != nil {
		t.Fatalf("ParseResumeStrict: %v", err)
	}
	if parsed.Name != "Jane Doe" {
		t.Fatalf("unexpected name %q", parsed.Name)
	}
	// 缺省数组被规范化为空切片
	if parsed.Experience[0].Highlights == nil || parsed.Projects[0].Highlights == nil {
		t.Fatal("nested highlights should be normalized to empty slices")
	}
}

func TestParseResumeStrictRejectsRelativeURL(t *testing.T) {
	doc := []byte(`{"links": [{"label": "Site", "url": "jane.dev"}]}`)
	_, err := ParseResumeStrict(doc)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Violations) == 0 || !strings.Contains(verr.Violations[0].Path, "links") {
		t.Fatalf("violation should point at the link field, got %+v", verr.Violations)
	}
}

func TestParseResumeStrictRejectsEmptyRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"empty company", `{"experience": [{"company": "", "role": "Dev"}]}`},
		{"missing role", `{"experience": [{"company": "Acme"}]}`},
		{"empty school", `{"education": [{"school": "", "degree": "BSc"}]}`},
		{"missing project name", `{"projects": [{"description": "thing"}]}`},
		{"wrong skills type", `{"skills": "Go"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var verr *ValidationError
			if _, err := ParseResumeStrict([]byte(tc.doc)); !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestParseUpdateAllFieldsOptional(t *testing.T) {
	upd, err := ParseUpdate([]byte(`{}`))
	if err != nil {
		t.Fatalf("ParseUpdate empty object: %v", err)
	}
	if upd.DisplayName != nil || upd.Skills != nil {
		t.Fatal("absent fields must stay nil")
	}
}

func TestParseUpdateDistinguishesEmptyFromAbsent(t *testing.T) {
	upd, err := ParseUpdate([]byte(`{"skills": []}`))
	if err != nil {
		t.Fatalf("ParseUpdate: %v", err)
	}
	if upd.Skills == nil {
		t.Fatal("present empty array must not be nil")
	}
	if len(*upd.Skills) != 0 {
		t.Fatalf("expected empty skills, got %v", *upd.Skills)
	}
	if upd.Links != nil {
		t.Fatal("absent links must stay nil")
	}
}

func TestParseUpdateAllowsEmptyLinkURL(t *testing.T) {
	upd, err := ParseUpdate([]byte(`{"links": [{"label": "Draft", "url": ""}]}`))
	if err != nil {
		t.Fatalf("half-finished link should be accepted: %v", err)
	}
	if (*upd.Links)[0].Label != "Draft" {
		t.Fatalf("unexpected link %+v", (*upd.Links)[0])
	}
}

func TestParseUpdateRejectsBadEmail(t *testing.T) {
	var verr *ValidationError
	if _, err := ParseUpdate([]byte(`{"contact_email": "not-an-email"}`)); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestToUpdateMapsScalarsAndCollections(t *testing.T) {
	parsed := ParsedResume{
		Name:     "Jane Doe",
		Headline: "Engineer",
		Summary:  "Ships software.",
		Skills:   []string{"Go"},
	}
	parsed.Normalize()

	upd := parsed.ToUpdate()
	if upd.DisplayName == nil || *upd.DisplayName != "Jane Doe" {
		t.Fatal("name should map to display_name")
	}
	if upd.Bio == nil || *upd.Bio != "Ships software." {
		t.Fatal("summary should map to bio")
	}
	if upd.ContactEmail != nil || upd.Location != nil {
		t.Fatal("unmapped scalars must stay nil")
	}
	for name, c := range map[string]bool{
		"skills":      upd.Skills != nil,
		"links":       upd.Links != nil,
		"experiences": upd.Experiences != nil,
		"educations":  upd.Educations != nil,
		"projects":    upd.Projects != nil,
	} {
		if !c {
			t.Errorf("collection %s must always be present in extraction updates", name)
		}
	}
}
