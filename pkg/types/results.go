package types

// ResumeProfile is the stored Resume node.
type ResumeProfile struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Address      string   `json:"address,omitempty"`
	LinkedIn     string   `json:"linkedin,omitempty"`
	GitHub       string   `json:"github,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Achievements []string `json:"achievements,omitempty"`
}

// ProfileFromProperties reads a Resume node.
func ProfileFromProperties(p Properties) ResumeProfile {
	return ResumeProfile{
		ID:           p.String(PropID),
		Name:         p.String("name"),
		Email:        p.String("email"),
		Phone:        p.String("phone"),
		Address:      p.String("address"),
		LinkedIn:     p.String("linkedin"),
		GitHub:       p.String("github"),
		Summary:      p.String("summary"),
		Achievements: p.Strings("achievements"),
	}
}

// ResumeSummary is the one-hop neighborhood of a Resume. Entity lists hold
// display names of distinct canonical nodes.
type ResumeSummary struct {
	Resume     ResumeProfile `json:"resume"`
	Institutes []string      `json:"institutes"`
	Companies  []string      `json:"companies"`
	Skills     []string      `json:"skills"`
}

// ResumeListing is one row of ListResumes.
type ResumeListing struct {
	ID    string `json:"id" parquet:"id"`
	Name  string `json:"name" parquet:"name"`
	Email string `json:"email" parquet:"email"`
}

// SkillDemand is the number of incoming requirement or usage edges of a Skill.
type SkillDemand struct {
	Skill  string `json:"skill" parquet:"skill"`
	Key    string `json:"key" parquet:"key"`
	Demand int64  `json:"demand" parquet:"demand"`
}

// JobListing is a stored Job node together with the skills it requires.
// Skills holds display names; SkillKeys holds the matching normalized names
// in the same order and is not serialized.
type JobListing struct {
	ID              string   `json:"id"`
	Title           string   `json:"title,omitempty"`
	Company         string   `json:"company,omitempty"`
	Location        string   `json:"location,omitempty"`
	EmploymentType  string   `json:"employment_type,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	SalaryMin       *float64 `json:"salary_min,omitempty"`
	SalaryMax       *float64 `json:"salary_max,omitempty"`
	SalaryCurrency  string   `json:"salary_currency,omitempty"`
	Source          string   `json:"source,omitempty"`
	RemoteAllowed   bool     `json:"remote_allowed"`
	VisaSponsorship bool     `json:"visa_sponsorship"`
	Description     string   `json:"description,omitempty"`
	URL             string   `json:"url,omitempty"`
	Skills          []string `json:"skills"`
	SkillKeys       []string `json:"-" yaml:"-"`
}

// JobFromProperties reads a Job node. Skills are filled in by the caller.
func JobFromProperties(p Properties) JobListing {
	return JobListing{
		ID:              p.String(PropID),
		Title:           p.String("title"),
		Company:         p.String("company"),
		Location:        p.String("location"),
		EmploymentType:  p.String("employment_type"),
		ExperienceLevel: p.String("experience_level"),
		SalaryMin:       p.Float("salary_min"),
		SalaryMax:       p.Float("salary_max"),
		SalaryCurrency:  p.String("salary_currency"),
		Source:          p.String("source"),
		RemoteAllowed:   p.Bool("remote_allowed"),
		VisaSponsorship: p.Bool("visa_sponsorship"),
		Description:     p.String("description"),
		URL:             p.String("url"),
	}
}

// JobMatch is one ranked result of job matching.
type JobMatch struct {
	Job            JobListing `json:"job"`
	MatchingSkills []string   `json:"matching_skills"`
	SkillCount     int        `json:"skill_count"`
}

// GraphStats holds node counts per label and edge counts per type.
type GraphStats struct {
	Nodes map[string]int64 `json:"nodes"`
	Edges map[string]int64 `json:"edges"`
}
