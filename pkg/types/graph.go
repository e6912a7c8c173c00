package types

import (
	"fmt"
	"math"
	"strconv"
)

// Label is a node label in the persisted graph.
type Label string

// Node labels. The set and spelling are part of the persisted schema.
const (
	LabelResume        Label = "Resume"
	LabelJob           Label = "Job"
	LabelProject       Label = "Project"
	LabelInstitute     Label = "Institute"
	LabelDegree        Label = "Degree"
	LabelMajor         Label = "Major"
	LabelCourse        Label = "Course"
	LabelCompany       Label = "Company"
	LabelPosition      Label = "Position"
	LabelSkill         Label = "Skill"
	LabelTechnology    Label = "Technology"
	LabelCertification Label = "Certification"
	LabelLanguage      Label = "Language"
	LabelLocation      Label = "Location"
)

// RecordLabels are the record-scoped labels. Their nodes are keyed by "id"
// and are never merged across ingested records.
var RecordLabels = []Label{LabelResume, LabelJob, LabelProject}

// CanonicalLabels are the shared labels. Their nodes are keyed by the
// normalized "name" and deduplicated across all ingestions.
var CanonicalLabels = []Label{
	LabelInstitute,
	LabelDegree,
	LabelMajor,
	LabelCourse,
	LabelCompany,
	LabelPosition,
	LabelSkill,
	LabelTechnology,
	LabelCertification,
	LabelLanguage,
	LabelLocation,
}

// AllLabels lists every label, record-scoped first.
var AllLabels = append(append([]Label{}, RecordLabels...), CanonicalLabels...)

// IsCanonical reports whether nodes with this label are shared entities.
func (l Label) IsCanonical() bool {
	for _, c := range CanonicalLabels {
		if c == l {
			return true
		}
	}
	return false
}

// Valid reports whether l is part of the schema.
func (l Label) Valid() bool {
	for _, c := range AllLabels {
		if c == l {
			return true
		}
	}
	return false
}

// KeyProperty returns the identity property of nodes with this label.
func (l Label) KeyProperty() string {
	if l.IsCanonical() {
		return PropName
	}
	return PropID
}

// EdgeType is a relationship type in the persisted graph.
type EdgeType string

// Relationship types. The first block is written for resumes, the second for jobs.
const (
	EdgeHasEducation     EdgeType = "HAS_EDUCATION"
	EdgeOffers           EdgeType = "OFFERS"
	EdgeHasMajor         EdgeType = "HAS_MAJOR"
	EdgeOffersCourse     EdgeType = "OFFERS_COURSE"
	EdgeHasExperience    EdgeType = "HAS_EXPERIENCE"
	EdgeHasPosition      EdgeType = "HAS_POSITION"
	EdgeRequiresSkill    EdgeType = "REQUIRES_SKILL"
	EdgeUsesSkill        EdgeType = "USES_SKILL"
	EdgeHasSkill         EdgeType = "HAS_SKILL"
	EdgeHasProject       EdgeType = "HAS_PROJECT"
	EdgeUsesTechnology   EdgeType = "USES_TECHNOLOGY"
	EdgeHasCertification EdgeType = "HAS_CERTIFICATION"
	EdgeSpeaksLanguage   EdgeType = "SPEAKS_LANGUAGE"

	EdgePostedBy    EdgeType = "POSTED_BY"
	EdgeForPosition EdgeType = "FOR_POSITION"
	EdgeLocatedIn   EdgeType = "LOCATED_IN"
)

// AllEdgeTypes lists every relationship type.
var AllEdgeTypes = []EdgeType{
	EdgeHasEducation,
	EdgeOffers,
	EdgeHasMajor,
	EdgeOffersCourse,
	EdgeHasExperience,
	EdgeHasPosition,
	EdgeRequiresSkill,
	EdgeUsesSkill,
	EdgeHasSkill,
	EdgeHasProject,
	EdgeUsesTechnology,
	EdgeHasCertification,
	EdgeSpeaksLanguage,
	EdgePostedBy,
	EdgeForPosition,
	EdgeLocatedIn,
}

// DemandEdgeTypes are the incoming Skill edges counted as demand.
var DemandEdgeTypes = []EdgeType{EdgeRequiresSkill, EdgeUsesSkill, EdgeHasSkill}

// Valid reports whether t is part of the schema.
func (t EdgeType) Valid() bool {
	for _, c := range AllEdgeTypes {
		if c == t {
			return true
		}
	}
	return false
}

// Property names shared by all backends.
const (
	PropID          = "id"
	PropName        = "name"
	PropDisplayName = "display_name"
)

// NodeRef addresses a node by label and identity value: the normalized name
// for canonical labels, the id for record-scoped ones.
type NodeRef struct {
	Label Label  `json:"label"`
	Key   string `json:"key"`
}

// Ref is shorthand for NodeRef{Label: label, Key: key}.
func Ref(label Label, key string) NodeRef {
	return NodeRef{Label: label, Key: key}
}

func (r NodeRef) String() string {
	return fmt.Sprintf("(:%s {%s: %q})", r.Label, r.Label.KeyProperty(), r.Key)
}

// Properties holds node or relationship properties as read from, or written
// to, a backend. Accessors tolerate the representations produced by both the
// Neo4j driver (int64, []any) and JSON round trips (float64, []any).
type Properties map[string]any

// String returns the property as a string, or "" when absent.
func (p Properties) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the property as a float, or nil when absent or not numeric.
func (p Properties) Float(key string) *float64 {
	var f float64
	switch v := p[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	default:
		return nil
	}
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// Bool returns the property as a bool, false when absent.
func (p Properties) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Strings returns a list property as strings, skipping non-string elements.
func (p Properties) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Compact returns a copy without nil values and empty strings, so that
// absent optional attributes are never written.
func (p Properties) Compact() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
		case *float64:
			if val == nil {
				continue
			}
			out[k] = *val
			continue
		case []string:
			if len(val) == 0 {
				continue
			}
		}
		out[k] = v
	}
	return out
}

// DisplayName returns the display name of a canonical node, falling back to its key.
func (p Properties) DisplayName() string {
	if s := p.String(PropDisplayName); s != "" {
		return s
	}
	return p.String(PropName)
}
