package careergraph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/soundprediction/careergraph/pkg/driver"
	"github.com/soundprediction/careergraph/pkg/schema"
	"github.com/soundprediction/careergraph/pkg/telemetry"
	"github.com/soundprediction/careergraph/pkg/types"
	"github.com/soundprediction/careergraph/pkg/utils"
)

// Step names reported in WriteError when no ingestion step was running.
const (
	stepBegin  = "begin"
	stepCommit = "commit"
)

// writeStep is one named unit of an ingestion.
type writeStep struct {
	name string
	run  func(ctx context.Context, tx driver.WriteTx) error
}

// exec runs the step, reporting a panic as a *utils.PanicError.
func (s writeStep) exec(ctx context.Context, tx driver.WriteTx) (err error) {
	defer utils.RecoverAsError(&err)
	return s.run(ctx, tx)
}

// IngestResume implements CareerGraph.
func (c *Client) IngestResume(ctx context.Context, resume *types.Resume, resumeID string) error {
	ctx = telemetry.WithOperation(ctx, "IngestResume", resumeID)
	if resumeID == "" {
		return &types.ValidationError{Field: "id", Reason: types.ErrEmptyID.Error()}
	}
	if resume == nil {
		return &types.ValidationError{Reason: "resume is nil"}
	}

	steps, err := c.resumeSteps(resume, resumeID)
	if err != nil {
		return err
	}

	unlock := c.locks.Lock("resume:" + resumeID)
	defer unlock()
	return c.runSteps(ctx, "IngestResume", resumeID, steps)
}

// IngestJob implements CareerGraph.
func (c *Client) IngestJob(ctx context.Context, job *types.JobPosting, jobID string) error {
	ctx = telemetry.WithOperation(ctx, "IngestJob", jobID)
	if jobID == "" {
		return &types.ValidationError{Field: "id", Reason: types.ErrEmptyID.Error()}
	}
	if job == nil {
		return &types.ValidationError{Reason: "job is nil"}
	}

	steps, err := c.jobSteps(job, jobID)
	if err != nil {
		return err
	}

	unlock := c.locks.Lock("job:" + jobID)
	defer unlock()
	return c.runSteps(ctx, "IngestJob", jobID, steps)
}

// runSteps executes steps in one transaction, or in one transaction per
// step when the client is configured with StepCommit.
func (c *Client) runSteps(ctx context.Context, op, recordID string, steps []writeStep) error {
	start := time.Now()
	log := c.logger.With("operation", op, "record_id", recordID)

	if !c.config.StepCommit {
		current := stepBegin
		err := c.driver.ExecuteWrite(ctx, func(ctx context.Context, tx driver.WriteTx) error {
			for _, s := range steps {
				current = s.name
				if err := s.exec(ctx, tx); err != nil {
					return err
				}
			}
			current = stepCommit
			return nil
		})
		if err != nil {
			return c.writeFailure(ctx, op, recordID, current, 0, err)
		}
	} else {
		for i, s := range steps {
			if err := c.driver.ExecuteWrite(ctx, s.exec); err != nil {
				return c.writeFailure(ctx, op, recordID, s.name, i, err)
			}
			log.Debug("step committed", "step", s.name)
		}
	}

	log.Info("record ingested", "steps", len(steps), "duration", time.Since(start))
	return nil
}

// writeFailure classifies a failed ingestion. A connection failure before
// anything was committed is a ConnectionError; everything else is a
// WriteError naming the step.
func (c *Client) writeFailure(ctx context.Context, op, recordID, step string, committed int, err error) error {
	c.logger.ErrorContext(ctx, "ingestion failed",
		"operation", op, "record_id", recordID, "step", step, "committed_steps", committed, "error", err)

	var cerr *types.ConnectionError
	if committed == 0 && errors.As(err, &cerr) {
		return cerr
	}
	return &types.WriteError{
		Op:       op,
		RecordID: recordID,
		Step:     step,
		Partial:  committed > 0,
		Err:      err,
	}
}

// edgeMode returns EdgeMerge for always-deduplicated edges, and otherwise
// follows the edge policy.
func (c *Client) edgeMode(dedup bool) driver.EdgeMode {
	if dedup || c.config.EdgePolicy == EdgePolicyIdempotent {
		return driver.EdgeMerge
	}
	return driver.EdgeCreate
}

// entity computes the upsert of a canonical node. field names the input
// location for the ValidationError raised when name has no usable key.
func (c *Client) entity(label types.Label, field, name string, extra types.Properties) (driver.Upsert, error) {
	key := c.canon.Key(name)
	if key == "" {
		return driver.Upsert{}, types.NewValidationError(field, "%q has no usable %s name", name, label)
	}
	onCreate := types.Properties{types.PropDisplayName: schema.DisplayName(name)}
	for k, v := range extra {
		onCreate[k] = v
	}
	return driver.Upsert{Ref: types.Ref(label, key), OnCreate: onCreate}, nil
}

// entities computes upserts for a list of names of one label.
func (c *Client) entities(label types.Label, field string, names []string) ([]driver.Upsert, error) {
	out := make([]driver.Upsert, 0, len(names))
	for i, name := range names {
		u, err := c.entity(label, fmt.Sprintf("%s[%d]", field, i), name, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// link upserts target and relates it to from.
func link(ctx context.Context, tx driver.WriteTx, from types.NodeRef, t types.EdgeType, target driver.Upsert, props types.Properties, mode driver.EdgeMode) error {
	return linkEntry(ctx, tx, from, t, target, props, mode, "")
}

// linkEntry is link for edges that carry per-entry attributes; entry keeps
// each input entry on its own edge under EdgeMerge.
func linkEntry(ctx context.Context, tx driver.WriteTx, from types.NodeRef, t types.EdgeType, target driver.Upsert, props types.Properties, mode driver.EdgeMode, entry string) error {
	if err := tx.UpsertNode(ctx, target); err != nil {
		return fmt.Errorf("upsert %s: %w", target.Ref, err)
	}
	r := driver.Relation{From: from, To: target.Ref, Type: t, Properties: props, Mode: mode, Entry: entry}
	if err := tx.Relate(ctx, r); err != nil {
		return fmt.Errorf("%s %s -> %s: %w", t, from, target.Ref, err)
	}
	return nil
}

func relate(ctx context.Context, tx driver.WriteTx, from types.NodeRef, t types.EdgeType, to types.NodeRef, props types.Properties, mode driver.EdgeMode) error {
	if err := tx.Relate(ctx, driver.Relation{From: from, To: to, Type: t, Properties: props, Mode: mode}); err != nil {
		return fmt.Errorf("%s %s -> %s: %w", t, from, to, err)
	}
	return nil
}

// ============================================================================
// Resume
// ============================================================================

func (c *Client) resumeSteps(r *types.Resume, resumeID string) ([]writeStep, error) {
	resumeRef := types.Ref(types.LabelResume, resumeID)
	var steps []writeStep

	profile := types.Properties{
		types.PropID:   resumeID,
		"name":         r.PersonalInfo.Name,
		"email":        r.PersonalInfo.Email,
		"phone":        r.PersonalInfo.Phone,
		"address":      r.PersonalInfo.Address,
		"linkedin":     r.PersonalInfo.LinkedIn,
		"github":       r.PersonalInfo.GitHub,
		"summary":      r.Summary,
		"achievements": r.Achievements,
	}
	steps = append(steps, writeStep{name: "resume", run: func(ctx context.Context, tx driver.WriteTx) error {
		return tx.MergeRecord(ctx, resumeRef, profile)
	}})

	for i, edu := range r.Education {
		field := fmt.Sprintf("education[%d]", i)
		institute, err := c.entity(types.LabelInstitute, field+".institute", edu.Institute, types.Properties{"type": "Educational"})
		if err != nil {
			return nil, err
		}
		var degree *driver.Upsert
		if edu.Degree != "" {
			d, err := c.entity(types.LabelDegree, field+".degree", edu.Degree, nil)
			if err != nil {
				return nil, err
			}
			degree = &d
		}
		majors, err := c.entities(types.LabelMajor, field+".major", edu.Major)
		if err != nil {
			return nil, err
		}
		courses, err := c.entities(types.LabelCourse, field+".courses", edu.Courses)
		if err != nil {
			return nil, err
		}
		period := types.Properties{
			"from_date": edu.Dates.FromDate,
			"to_date":   edu.Dates.ToDate,
			"gpa":       string(edu.GPA),
		}

		steps = append(steps, writeStep{name: field, run: func(ctx context.Context, tx driver.WriteTx) error {
			mode := c.edgeMode(false)
			if err := linkEntry(ctx, tx, resumeRef, types.EdgeHasEducation, institute, period, mode, field); err != nil {
				return err
			}
			if degree != nil {
				if err := link(ctx, tx, institute.Ref, types.EdgeOffers, *degree, nil, mode); err != nil {
					return err
				}
			}
			for _, m := range majors {
				if err := link(ctx, tx, institute.Ref, types.EdgeHasMajor, m, nil, mode); err != nil {
					return err
				}
			}
			for _, course := range courses {
				if err := link(ctx, tx, institute.Ref, types.EdgeOffersCourse, course, nil, mode); err != nil {
					return err
				}
			}
			return nil
		}})
	}

	for i, exp := range r.Experience {
		field := fmt.Sprintf("experience[%d]", i)
		company, err := c.entity(types.LabelCompany, field+".company", exp.Company, types.Properties{"type": "Organization"})
		if err != nil {
			return nil, err
		}
		position, err := c.entity(types.LabelPosition, field+".position", exp.Position, nil)
		if err != nil {
			return nil, err
		}
		skills, err := c.entities(types.LabelSkill, field+".skills_used", exp.SkillsUsed)
		if err != nil {
			return nil, err
		}
		period := types.Properties{
			"from_date":   exp.Dates.FromDate,
			"to_date":     exp.Dates.ToDate,
			"description": exp.Description,
			"location":    exp.Location,
		}

		steps = append(steps, writeStep{name: field, run: func(ctx context.Context, tx driver.WriteTx) error {
			mode := c.edgeMode(false)
			if err := linkEntry(ctx, tx, resumeRef, types.EdgeHasExperience, company, period, mode, field); err != nil {
				return err
			}
			if err := link(ctx, tx, company.Ref, types.EdgeHasPosition, position, nil, mode); err != nil {
				return err
			}
			for _, s := range skills {
				if err := link(ctx, tx, position.Ref, types.EdgeRequiresSkill, s, nil, mode); err != nil {
					return err
				}
				if err := relate(ctx, tx, company.Ref, types.EdgeUsesSkill, s.Ref, nil, mode); err != nil {
					return err
				}
			}
			return nil
		}})
	}

	for i, sk := range r.Skills {
		field := fmt.Sprintf("skills[%d]", i)
		skill, err := c.entity(types.LabelSkill, field+".name", sk.Name, types.Properties{
			"category":    sk.Category,
			"proficiency": sk.Proficiency,
		})
		if err != nil {
			return nil, err
		}
		skill.FillMissing = types.Properties{"category": sk.Category}

		steps = append(steps, writeStep{name: fmt.Sprintf("skill[%d]", i), run: func(ctx context.Context, tx driver.WriteTx) error {
			return link(ctx, tx, resumeRef, types.EdgeHasSkill, skill, nil, c.edgeMode(true))
		}})
	}

	for i, p := range r.Projects {
		field := fmt.Sprintf("projects[%d]", i)
		key := c.canon.Key(p.Name)
		if key == "" {
			return nil, types.NewValidationError(field+".name", "%q has no usable project name", p.Name)
		}
		technologies, err := c.entities(types.LabelTechnology, field+".technologies", p.Technologies)
		if err != nil {
			return nil, err
		}
		projectRef := types.Ref(types.LabelProject, c.projectID(resumeID, i, key))
		props := types.Properties{
			types.PropID:  projectRef.Key,
			"name":        schema.DisplayName(p.Name),
			"description": p.Description,
			"url":         p.URL,
			"resume_id":   resumeID,
		}
		if p.Dates != nil {
			props["from_date"] = p.Dates.FromDate
			props["to_date"] = p.Dates.ToDate
		}

		steps = append(steps, writeStep{name: fmt.Sprintf("project[%d]", i), run: func(ctx context.Context, tx driver.WriteTx) error {
			mode := c.edgeMode(false)
			if err := tx.MergeRecord(ctx, projectRef, props); err != nil {
				return fmt.Errorf("create %s: %w", projectRef, err)
			}
			if err := relate(ctx, tx, resumeRef, types.EdgeHasProject, projectRef, nil, mode); err != nil {
				return err
			}
			for _, t := range technologies {
				if err := link(ctx, tx, projectRef, types.EdgeUsesTechnology, t, nil, mode); err != nil {
					return err
				}
			}
			return nil
		}})
	}

	for i, cert := range r.Certifications {
		certification, err := c.entity(types.LabelCertification, fmt.Sprintf("certifications[%d].name", i), cert.Name, types.Properties{
			"issuer": cert.Issuer,
			"date":   cert.Date,
			"expiry": cert.Expiry,
		})
		if err != nil {
			return nil, err
		}
		steps = append(steps, writeStep{name: fmt.Sprintf("certification[%d]", i), run: func(ctx context.Context, tx driver.WriteTx) error {
			return link(ctx, tx, resumeRef, types.EdgeHasCertification, certification, nil, c.edgeMode(false))
		}})
	}

	for i, lang := range r.Languages {
		language, err := c.entity(types.LabelLanguage, fmt.Sprintf("languages[%d]", i), lang, nil)
		if err != nil {
			return nil, err
		}
		steps = append(steps, writeStep{name: fmt.Sprintf("language[%d]", i), run: func(ctx context.Context, tx driver.WriteTx) error {
			return link(ctx, tx, resumeRef, types.EdgeSpeaksLanguage, language, nil, c.edgeMode(false))
		}})
	}

	return steps, nil
}

// projectNamespace scopes deterministic project ids.
var projectNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/soundprediction/careergraph/project"))

// projectID is stable across re-ingestion of the same resume under the
// idempotent policy, and random under the legacy policy.
func (c *Client) projectID(resumeID string, ordinal int, key string) string {
	if c.config.EdgePolicy == EdgePolicyLegacy {
		return uuid.NewString()
	}
	return uuid.NewSHA1(projectNamespace, []byte(resumeID+"\x00"+strconv.Itoa(ordinal)+"\x00"+key)).String()
}

// ============================================================================
// Job
// ============================================================================

func (c *Client) jobSteps(j *types.JobPosting, jobID string) ([]writeStep, error) {
	jobRef := types.Ref(types.LabelJob, jobID)

	props := types.Properties{
		types.PropID:       jobID,
		"title":            j.Title,
		"company":          j.Company,
		"location":         j.Location,
		"employment_type":  j.EmploymentType,
		"experience_level": j.ExperienceLevel,
		"salary_min":       j.SalaryMin,
		"salary_max":       j.SalaryMax,
		"salary_currency":  j.SalaryCurrency,
		"source":           j.Source,
		"remote_allowed":   j.RemoteAllowed,
		"visa_sponsorship": j.VisaSponsorship,
		"description":      j.Description,
		"url":              j.URL,
	}
	steps := []writeStep{{name: "job", run: func(ctx context.Context, tx driver.WriteTx) error {
		return tx.MergeRecord(ctx, jobRef, props)
	}}}

	var company *driver.Upsert
	if j.Company != "" {
		u, err := c.entity(types.LabelCompany, "company", j.Company, types.Properties{"type": "Organization"})
		if err != nil {
			return nil, err
		}
		company = &u
		steps = append(steps, writeStep{name: "company", run: func(ctx context.Context, tx driver.WriteTx) error {
			return link(ctx, tx, jobRef, types.EdgePostedBy, *company, nil, c.edgeMode(false))
		}})
	}

	position, err := c.entity(types.LabelPosition, "title", j.Title, nil)
	if err != nil {
		return nil, err
	}
	steps = append(steps, writeStep{name: "position", run: func(ctx context.Context, tx driver.WriteTx) error {
		mode := c.edgeMode(false)
		if err := link(ctx, tx, jobRef, types.EdgeForPosition, position, nil, mode); err != nil {
			return err
		}
		if company == nil {
			return nil
		}
		return relate(ctx, tx, company.Ref, types.EdgeHasPosition, position.Ref, nil, mode)
	}})

	if j.Location != "" {
		location, err := c.entity(types.LabelLocation, "location", j.Location, nil)
		if err != nil {
			return nil, err
		}
		steps = append(steps, writeStep{name: "location", run: func(ctx context.Context, tx driver.WriteTx) error {
			return link(ctx, tx, jobRef, types.EdgeLocatedIn, location, nil, c.edgeMode(false))
		}})
	}

	skills, err := c.entities(types.LabelSkill, "skills", j.Skills)
	if err != nil {
		return nil, err
	}
	for i, skill := range skills {
		steps = append(steps, writeStep{name: fmt.Sprintf("skill[%d]", i), run: func(ctx context.Context, tx driver.WriteTx) error {
			return link(ctx, tx, jobRef, types.EdgeRequiresSkill, skill, nil, c.edgeMode(true))
		}})
	}

	return steps, nil
}
