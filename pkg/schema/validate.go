package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soundprediction/careergraph/pkg/types"
)

// ResumeInput is a resume as emitted by the extraction step, before
// validation. List elements are pointers so that null entries can be told
// apart from zero values.
type ResumeInput struct {
	PersonalInfo   map[string]any         `json:"personal_info" yaml:"personal_info"`
	Summary        *string                `json:"summary" yaml:"summary"`
	Education      []*types.Education     `json:"education" yaml:"education"`
	Experience     []*types.Experience    `json:"experience" yaml:"experience"`
	Skills         []*types.Skill         `json:"skills" yaml:"skills"`
	Projects       []*types.Project       `json:"projects" yaml:"projects"`
	Certifications []*types.Certification `json:"certifications" yaml:"certifications"`
	Languages      []*string              `json:"languages" yaml:"languages"`
	Achievements   []*string              `json:"achievements" yaml:"achievements"`
}

// JobInput is a job posting before validation.
type JobInput struct {
	Title           string    `json:"title" yaml:"title"`
	Company         string    `json:"company" yaml:"company"`
	Location        string    `json:"location" yaml:"location"`
	EmploymentType  string    `json:"employment_type" yaml:"employment_type"`
	ExperienceLevel string    `json:"experience_level" yaml:"experience_level"`
	SalaryMin       *float64  `json:"salary_min" yaml:"salary_min"`
	SalaryMax       *float64  `json:"salary_max" yaml:"salary_max"`
	SalaryCurrency  string    `json:"salary_currency" yaml:"salary_currency"`
	Source          string    `json:"source" yaml:"source"`
	RemoteAllowed   bool      `json:"remote_allowed" yaml:"remote_allowed"`
	VisaSponsorship bool      `json:"visa_sponsorship" yaml:"visa_sponsorship"`
	Skills          []*string `json:"skills" yaml:"skills"`
	Description     string    `json:"description" yaml:"description"`
	URL             string    `json:"url" yaml:"url"`
}

// ValidateResume checks a resume against the extraction contract and returns
// the typed record. Lists default to empty; dates are normalized and values
// that cannot be normalized are listed in Flags.
func ValidateResume(in *ResumeInput) (*types.Resume, error) {
	if in == nil {
		return nil, &types.ValidationError{Reason: "resume is null"}
	}

	out := &types.Resume{
		PersonalInfo:   personalInfo(in.PersonalInfo),
		Education:      make([]types.Education, 0, len(in.Education)),
		Experience:     make([]types.Experience, 0, len(in.Experience)),
		Skills:         make([]types.Skill, 0, len(in.Skills)),
		Projects:       make([]types.Project, 0, len(in.Projects)),
		Certifications: make([]types.Certification, 0, len(in.Certifications)),
	}
	if in.Summary != nil {
		out.Summary = strings.TrimSpace(*in.Summary)
	}

	dates := &dateNormalizer{}

	for i, e := range in.Education {
		field := fmt.Sprintf("education[%d]", i)
		if e == nil {
			return nil, nullElement(field)
		}
		if err := requireName(field+".institute", e.Institute); err != nil {
			return nil, err
		}
		edu := *e
		// a blank degree is absent
		edu.Degree = strings.TrimSpace(e.Degree)
		var err error
		if edu.Major, err = stringList(field+".major", e.Major); err != nil {
			return nil, err
		}
		if edu.Courses, err = stringList(field+".courses", e.Courses); err != nil {
			return nil, err
		}
		edu.Dates = dates.dateRange(field+".dates", e.Dates)
		edu.GPA = types.LooseString(strings.TrimSpace(string(e.GPA)))
		out.Education = append(out.Education, edu)
	}

	for i, e := range in.Experience {
		field := fmt.Sprintf("experience[%d]", i)
		if e == nil {
			return nil, nullElement(field)
		}
		if err := requireName(field+".company", e.Company); err != nil {
			return nil, err
		}
		if err := requireName(field+".position", e.Position); err != nil {
			return nil, err
		}
		exp := *e
		var err error
		if exp.SkillsUsed, err = stringList(field+".skills_used", e.SkillsUsed); err != nil {
			return nil, err
		}
		exp.Dates = dates.dateRange(field+".dates", e.Dates)
		out.Experience = append(out.Experience, exp)
	}

	for i, s := range in.Skills {
		field := fmt.Sprintf("skills[%d]", i)
		if s == nil {
			return nil, nullElement(field)
		}
		if err := requireName(field+".name", s.Name); err != nil {
			return nil, err
		}
		out.Skills = append(out.Skills, *s)
	}

	for i, p := range in.Projects {
		field := fmt.Sprintf("projects[%d]", i)
		if p == nil {
			return nil, nullElement(field)
		}
		if err := requireName(field+".name", p.Name); err != nil {
			return nil, err
		}
		proj := *p
		var err error
		if proj.Technologies, err = stringList(field+".technologies", p.Technologies); err != nil {
			return nil, err
		}
		if p.Dates != nil {
			r := dates.dateRange(field+".dates", *p.Dates)
			proj.Dates = &r
		}
		out.Projects = append(out.Projects, proj)
	}

	for i, c := range in.Certifications {
		field := fmt.Sprintf("certifications[%d]", i)
		if c == nil {
			return nil, nullElement(field)
		}
		if err := requireName(field+".name", c.Name); err != nil {
			return nil, err
		}
		cert := *c
		cert.Date = dates.date(field+".date", c.Date)
		cert.Expiry = dates.date(field+".expiry", c.Expiry)
		out.Certifications = append(out.Certifications, cert)
	}

	var err error
	if out.Languages, err = stringPtrList("languages", in.Languages); err != nil {
		return nil, err
	}
	if out.Achievements, err = stringPtrList("achievements", in.Achievements); err != nil {
		return nil, err
	}

	out.Flags = dates.flags
	return out, nil
}

// ValidateJob checks a job posting and returns the typed record.
func ValidateJob(in *JobInput) (*types.JobPosting, error) {
	if in == nil {
		return nil, &types.ValidationError{Reason: "job is null"}
	}
	if err := requireName("title", in.Title); err != nil {
		return nil, err
	}
	for _, s := range []struct {
		field string
		v     *float64
	}{{"salary_min", in.SalaryMin}, {"salary_max", in.SalaryMax}} {
		if s.v == nil {
			continue
		}
		if math.IsNaN(*s.v) || math.IsInf(*s.v, 0) || *s.v < 0 {
			return nil, types.NewValidationError(s.field, "must be a non-negative number, got %v", *s.v)
		}
	}
	if in.SalaryMin != nil && in.SalaryMax != nil && *in.SalaryMin > *in.SalaryMax {
		return nil, types.NewValidationError("salary_min", "%v exceeds salary_max %v", *in.SalaryMin, *in.SalaryMax)
	}

	skills, err := stringPtrList("skills", in.Skills)
	if err != nil {
		return nil, err
	}

	return &types.JobPosting{
		Title:           strings.TrimSpace(in.Title),
		Company:         strings.TrimSpace(in.Company),
		Location:        strings.TrimSpace(in.Location),
		EmploymentType:  in.EmploymentType,
		ExperienceLevel: in.ExperienceLevel,
		SalaryMin:       in.SalaryMin,
		SalaryMax:       in.SalaryMax,
		SalaryCurrency:  in.SalaryCurrency,
		Source:          in.Source,
		RemoteAllowed:   in.RemoteAllowed,
		VisaSponsorship: in.VisaSponsorship,
		Skills:          skills,
		Description:     in.Description,
		URL:             in.URL,
	}, nil
}

func nullElement(field string) error {
	return &types.ValidationError{Field: field, Reason: "null element; use an empty list instead"}
}

func requireName(field, v string) error {
	if Normalize(v) == "" {
		return &types.ValidationError{Field: field, Reason: "required"}
	}
	return nil
}

func stringList(field string, in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for i, s := range in {
		if strings.TrimSpace(s) == "" {
			return nil, types.NewValidationError(fmt.Sprintf("%s[%d]", field, i), "empty element")
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

func stringPtrList(field string, in []*string) ([]string, error) {
	out := make([]string, 0, len(in))
	for i, s := range in {
		if s == nil {
			return nil, nullElement(fmt.Sprintf("%s[%d]", field, i))
		}
		if strings.TrimSpace(*s) == "" {
			return nil, types.NewValidationError(fmt.Sprintf("%s[%d]", field, i), "empty element")
		}
		out = append(out, strings.TrimSpace(*s))
	}
	return out, nil
}

var personalInfoKeys = map[string]string{
	"linked_in":    "linkedin",
	"linkedin_url": "linkedin",
	"github_url":   "github",
}

func personalInfo(m map[string]any) types.PersonalInfo {
	var p types.PersonalInfo
	for k, v := range m {
		key := strings.ToLower(strings.TrimSpace(k))
		if alias, ok := personalInfoKeys[key]; ok {
			key = alias
		}
		s := scalarString(v)
		if s == "" {
			continue
		}
		if key == "location" {
			if _, ok := m["address"]; ok {
				continue
			}
			key = "address"
		}
		switch key {
		case "name":
			p.Name = s
		case "email":
			p.Email = s
		case "phone":
			p.Phone = s
		case "address":
			p.Address = s
		case "linkedin":
			p.LinkedIn = s
		case "github":
			p.GitHub = s
		}
	}
	return p
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int, int64, bool:
		return fmt.Sprint(val)
	default:
		return ""
	}
}
