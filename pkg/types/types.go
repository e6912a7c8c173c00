package types

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyID is the reason given when a record id is blank.
var ErrEmptyID = errors.New("id cannot be empty")

// DatePresent is the normalized value for an open-ended period.
const DatePresent = "Present"

// DateRange is a period as written by the extraction step. Validated values
// are either YYYY-MM, Present, or free text recorded in the record's Flags.
type DateRange struct {
	FromDate string `json:"from_date,omitempty" yaml:"from_date,omitempty"`
	ToDate   string `json:"to_date,omitempty" yaml:"to_date,omitempty"`
}

// LooseString accepts a JSON or YAML scalar of any kind and keeps its text.
// Model output writes GPA values as both "3.8" and 3.8.
type LooseString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *LooseString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = LooseString(num.String())
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *LooseString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.New("expected a scalar value")
	}
	if node.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = LooseString(node.Value)
	return nil
}

// Float parses the value as a number when possible.
func (s LooseString) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	return f, err == nil
}

// PersonalInfo identifies the person a resume belongs to.
type PersonalInfo struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone    string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Address  string `json:"address,omitempty" yaml:"address,omitempty"`
	LinkedIn string `json:"linkedin,omitempty" yaml:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty" yaml:"github,omitempty"`
}

// Education is one education entry of a resume.
type Education struct {
	Institute string      `json:"institute" yaml:"institute"`
	Degree    string      `json:"degree,omitempty" yaml:"degree,omitempty"`
	Major     []string    `json:"major,omitempty" yaml:"major,omitempty"`
	Dates     DateRange   `json:"dates" yaml:"dates"`
	Courses   []string    `json:"courses,omitempty" yaml:"courses,omitempty"`
	GPA       LooseString `json:"gpa,omitempty" yaml:"gpa,omitempty"`
}

// Experience is one employment entry of a resume.
type Experience struct {
	Position    string    `json:"position" yaml:"position"`
	Company     string    `json:"company" yaml:"company"`
	Dates       DateRange `json:"dates" yaml:"dates"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	SkillsUsed  []string  `json:"skills_used,omitempty" yaml:"skills_used,omitempty"`
	Location    string    `json:"location,omitempty" yaml:"location,omitempty"`
}

// Skill is one skill entry of a resume.
type Skill struct {
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	Proficiency string `json:"proficiency,omitempty" yaml:"proficiency,omitempty"`
}

// Project is one project entry of a resume.
type Project struct {
	Name         string     `json:"name" yaml:"name"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Technologies []string   `json:"technologies,omitempty" yaml:"technologies,omitempty"`
	Dates        *DateRange `json:"dates,omitempty" yaml:"dates,omitempty"`
	URL          string     `json:"url,omitempty" yaml:"url,omitempty"`
}

// Certification is one certification entry of a resume.
type Certification struct {
	Name   string `json:"name" yaml:"name"`
	Issuer string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	Date   string `json:"date,omitempty" yaml:"date,omitempty"`
	Expiry string `json:"expiry,omitempty" yaml:"expiry,omitempty"`
}

// Flag marks a field whose value was kept verbatim because it could not be
// normalized. Downstream consumers treat flagged values as free text.
type Flag struct {
	Field  string `json:"field" yaml:"field"`
	Value  string `json:"value" yaml:"value"`
	Reason string `json:"reason" yaml:"reason"`
}

// Resume is a validated resume record, ready to be written to the graph.
type Resume struct {
	PersonalInfo   PersonalInfo    `json:"personal_info" yaml:"personal_info"`
	Summary        string          `json:"summary,omitempty" yaml:"summary,omitempty"`
	Education      []Education     `json:"education" yaml:"education"`
	Experience     []Experience    `json:"experience" yaml:"experience"`
	Skills         []Skill         `json:"skills" yaml:"skills"`
	Projects       []Project       `json:"projects" yaml:"projects"`
	Certifications []Certification `json:"certifications" yaml:"certifications"`
	Languages      []string        `json:"languages" yaml:"languages"`
	Achievements   []string        `json:"achievements" yaml:"achievements"`

	Flags []Flag `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// JobPosting is a validated job posting record.
type JobPosting struct {
	Title           string   `json:"title" yaml:"title"`
	Company         string   `json:"company,omitempty" yaml:"company,omitempty"`
	Location        string   `json:"location,omitempty" yaml:"location,omitempty"`
	EmploymentType  string   `json:"employment_type,omitempty" yaml:"employment_type,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty" yaml:"experience_level,omitempty"`
	SalaryMin       *float64 `json:"salary_min,omitempty" yaml:"salary_min,omitempty"`
	SalaryMax       *float64 `json:"salary_max,omitempty" yaml:"salary_max,omitempty"`
	SalaryCurrency  string   `json:"salary_currency,omitempty" yaml:"salary_currency,omitempty"`
	Source          string   `json:"source,omitempty" yaml:"source,omitempty"`
	RemoteAllowed   bool     `json:"remote_allowed" yaml:"remote_allowed"`
	VisaSponsorship bool     `json:"visa_sponsorship" yaml:"visa_sponsorship"`
	Skills          []string `json:"skills" yaml:"skills"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	URL             string   `json:"url,omitempty" yaml:"url,omitempty"`
}
