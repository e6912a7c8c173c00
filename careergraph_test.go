package careergraph_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/careergraph"
	"github.com/soundprediction/careergraph/pkg/driver"
	"github.com/soundprediction/careergraph/pkg/schema"
	"github.com/soundprediction/careergraph/pkg/types"
	"github.com/soundprediction/careergraph/pkg/utils"
)

func newTestClient(t *testing.T, cfg *careergraph.Config) (*careergraph.Client, driver.GraphDriver) {
	t.Helper()
	d, err := driver.NewBadgerDriverInMemory()
	require.NoError(t, err)
	return newClientOn(t, d, cfg), d
}

func newClientOn(t *testing.T, d driver.GraphDriver, cfg *careergraph.Config) *careergraph.Client {
	t.Helper()
	client, err := careergraph.NewClient(d, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func sampleResume() *types.Resume {
	return &types.Resume{
		PersonalInfo: types.PersonalInfo{Name: "Ada Lovelace", Email: "ada@example.com"},
		Summary:      "Engineer",
		Education: []types.Education{{
			Institute: "MIT",
			Degree:    "BSc",
			Major:     []string{"Mathematics"},
			Courses:   []string{"Algorithms"},
			Dates:     types.DateRange{FromDate: "2015-09", ToDate: "2019-06"},
			GPA:       "3.9",
		}},
		Experience: []types.Experience{{
			Position:   "Backend Engineer",
			Company:    "Acme",
			Dates:      types.DateRange{FromDate: "2019-07", ToDate: types.DatePresent},
			SkillsUsed: []string{"Go"},
		}},
		Skills: []types.Skill{
			{Name: "Python", Category: "Technical", Proficiency: "Expert"},
			{Name: "SQL", Category: "Technical"},
		},
		Projects: []types.Project{{
			Name:         "Graph Engine",
			Technologies: []string{"Badger"},
		}},
		Certifications: []types.Certification{{Name: "AWS SA", Issuer: "Amazon", Date: "2021-01"}},
		Languages:      []string{"English"},
		Achievements:   []string{"Shipped things"},
	}
}

func stats(t *testing.T, c *careergraph.Client) *types.GraphStats {
	t.Helper()
	s, err := c.GetStats(context.Background())
	require.NoError(t, err)
	return s
}

func TestNewClient(t *testing.T) {
	_, err := careergraph.NewClient(nil, nil, nil)
	assert.Error(t, err)

	d, err := driver.NewBadgerDriverInMemory()
	require.NoError(t, err)
	defer d.Close(context.Background())

	_, err = careergraph.NewClient(d, &careergraph.Config{EdgePolicy: "sometimes"}, nil)
	assert.Error(t, err)

	c, err := careergraph.NewClient(d, &careergraph.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, driver.GraphProviderBadger, c.GetDriver().Provider())
	assert.NoError(t, c.VerifyConnectivity(context.Background()))
	assert.NoError(t, c.CreateIndices(context.Background()))
}

func TestCanonicalEntitiesAreShared(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)

	r1 := &types.Resume{Education: []types.Education{{Institute: "MIT"}}}
	r2 := &types.Resume{Education: []types.Education{{Institute: " mit "}}}
	r3 := &types.Resume{Education: []types.Education{{Institute: "Mit"}}}
	require.NoError(t, c.IngestResume(ctx, r1, "r1"))
	require.NoError(t, c.IngestResume(ctx, r2, "r2"))
	require.NoError(t, c.IngestResume(ctx, r3, "r3"))

	s := stats(t, c)
	assert.Equal(t, int64(1), s.Nodes["Institute"])
	assert.Equal(t, int64(3), s.Nodes["Resume"])

	// first spelling wins
	for _, id := range []string{"r1", "r2", "r3"} {
		summary, err := c.GetResumeSummary(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.Equal(t, []string{"MIT"}, summary.Institutes)
	}
}

func TestAliases(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, &careergraph.Config{Aliases: map[string]string{"golang": "go"}})

	require.NoError(t, c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "Go"}}}, "r1"))
	require.NoError(t, c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "Golang"}}}, "r2"))

	assert.Equal(t, int64(1), stats(t, c).Nodes["Skill"])

	matches, err := c.MatchJobsForResume(ctx, "r2", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestReingestion(t *testing.T) {
	tests := []struct {
		name          string
		policy        careergraph.EdgePolicy
		wantEducation int64
		wantProjects  int64
	}{
		{"legacy duplicates provenance edges", careergraph.EdgePolicyLegacy, 2, 2},
		{"idempotent keeps one edge", careergraph.EdgePolicyIdempotent, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, _ := newTestClient(t, &careergraph.Config{EdgePolicy: tt.policy})

			require.NoError(t, c.IngestResume(ctx, sampleResume(), "r1"))
			require.NoError(t, c.IngestResume(ctx, sampleResume(), "r1"))

			s := stats(t, c)
			assert.Equal(t, int64(1), s.Nodes["Resume"])
			assert.Equal(t, tt.wantEducation, s.Edges["HAS_EDUCATION"])
			assert.Equal(t, tt.wantProjects, s.Nodes["Project"])
			assert.Equal(t, tt.wantProjects, s.Edges["HAS_PROJECT"])
			// HAS_SKILL is deduplicated under both policies
			assert.Equal(t, int64(2), s.Edges["HAS_SKILL"])
			assert.Equal(t, int64(1), s.Nodes["Institute"])
		})
	}
}

func TestRepeatedInstituteAndCompany(t *testing.T) {
	tests := []struct {
		name   string
		policy careergraph.EdgePolicy
		want   int64
	}{
		{"idempotent", careergraph.EdgePolicyIdempotent, 2},
		{"legacy", careergraph.EdgePolicyLegacy, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c, _ := newTestClient(t, &careergraph.Config{EdgePolicy: tt.policy})

			r := &types.Resume{
				PersonalInfo: types.PersonalInfo{Name: "Ada"},
				Education: []types.Education{
					{Institute: "MIT", Degree: "BSc", Dates: types.DateRange{FromDate: "2010-09", ToDate: "2014-06"}, GPA: "3.5"},
					{Institute: "MIT", Degree: "MSc", Dates: types.DateRange{FromDate: "2014-09", ToDate: "2016-06"}, GPA: "3.9"},
				},
				Experience: []types.Experience{
					{Company: "Acme", Position: "Engineer", Dates: types.DateRange{FromDate: "2016-07", ToDate: "2019-01"}},
					{Company: "Acme", Position: "Lead", Dates: types.DateRange{FromDate: "2019-02", ToDate: types.DatePresent}},
				},
			}
			require.NoError(t, c.IngestResume(ctx, r, "r1"))
			require.NoError(t, c.IngestResume(ctx, r, "r1"))

			s := stats(t, c)
			assert.Equal(t, int64(1), s.Nodes["Institute"])
			assert.Equal(t, int64(1), s.Nodes["Company"])
			assert.Equal(t, tt.want, s.Edges["HAS_EDUCATION"])
			assert.Equal(t, tt.want, s.Edges["HAS_EXPERIENCE"])

			summary, err := c.GetResumeSummary(ctx, "r1")
			require.NoError(t, err)
			require.NotNil(t, summary)
			assert.Equal(t, []string{"MIT"}, summary.Institutes)
			assert.Equal(t, []string{"Acme"}, summary.Companies)
		})
	}
}

func TestBlankDegreeIsSkipped(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)

	r, err := schema.DecodeResume([]byte(`{"personal_info": {"name": "Ada"}, "education": [{"institute": "MIT", "degree": "  "}]}`))
	require.NoError(t, err)
	require.NoError(t, c.IngestResume(ctx, r, "r1"))

	s := stats(t, c)
	assert.Equal(t, int64(1), s.Nodes["Institute"])
	assert.Equal(t, int64(0), s.Nodes["Degree"])
	assert.Equal(t, int64(0), s.Edges["OFFERS"])
}

func TestIngestResumeGraphShape(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)
	require.NoError(t, c.IngestResume(ctx, sampleResume(), "r1"))

	s := stats(t, c)
	for label, want := range map[string]int64{
		"Resume": 1, "Institute": 1, "Degree": 1, "Major": 1, "Course": 1,
		"Company": 1, "Position": 1, "Skill": 3, "Project": 1, "Technology": 1,
		"Certification": 1, "Language": 1, "Job": 0, "Location": 0,
	} {
		assert.Equal(t, want, s.Nodes[label], label)
	}
	for edge, want := range map[string]int64{
		"HAS_EDUCATION": 1, "OFFERS": 1, "HAS_MAJOR": 1, "OFFERS_COURSE": 1,
		"HAS_EXPERIENCE": 1, "HAS_POSITION": 1, "REQUIRES_SKILL": 1, "USES_SKILL": 1,
		"HAS_SKILL": 2, "HAS_PROJECT": 1, "USES_TECHNOLOGY": 1,
		"HAS_CERTIFICATION": 1, "SPEAKS_LANGUAGE": 1,
	} {
		assert.Equal(t, want, s.Edges[edge], edge)
	}

	summary, err := c.GetResumeSummary(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "Ada Lovelace", summary.Resume.Name)
	assert.Equal(t, "ada@example.com", summary.Resume.Email)
	assert.Equal(t, []string{"Shipped things"}, summary.Resume.Achievements)
	assert.Equal(t, []string{"Acme"}, summary.Companies)
	assert.Equal(t, []string{"Python", "SQL"}, summary.Skills)

	skills, err := c.GetResumeSkills(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Python", "SQL"}, skills)
}

func TestIngestValidation(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)

	var verr *types.ValidationError
	assert.ErrorAs(t, c.IngestResume(ctx, sampleResume(), ""), &verr)
	assert.ErrorAs(t, c.IngestResume(ctx, nil, "r1"), &verr)
	assert.ErrorAs(t, c.IngestJob(ctx, nil, "j1"), &verr)
	assert.ErrorAs(t, c.IngestJob(ctx, &types.JobPosting{Title: "x"}, ""), &verr)

	err := c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "Go"}, {Name: "\u0000"}}}, "r1")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "skills[1].name", verr.Field)

	// nothing was written
	assert.Equal(t, int64(0), stats(t, c).Nodes["Resume"])
}

func TestGetResumeSummaryMissing(t *testing.T) {
	c, _ := newTestClient(t, nil)

	summary, err := c.GetResumeSummary(context.Background(), "nonexistent-id")
	require.NoError(t, err)
	assert.Nil(t, summary)

	summary, err = c.GetResumeSummary(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestListResumes(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)

	list, err := c.ListResumes(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	require.NoError(t, c.IngestResume(ctx, &types.Resume{PersonalInfo: types.PersonalInfo{Name: "B", Email: "b@x"}}, "b"))
	require.NoError(t, c.IngestResume(ctx, &types.Resume{PersonalInfo: types.PersonalInfo{Name: "A"}}, "a"))

	list, err = c.ListResumes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.ResumeListing{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B", Email: "b@x"},
	}, list)
}

func TestGetSkillDemand(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)

	require.NoError(t, c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "SQL"}}}, "r1"))
	require.NoError(t, c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "sql"}}}, "r2"))
	require.NoError(t, c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "Go"}}}, "r3"))
	require.NoError(t, c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "Rust"}}}, "r4"))

	demand, err := c.GetSkillDemand(ctx)
	require.NoError(t, err)
	require.Len(t, demand, 3)
	assert.Equal(t, types.SkillDemand{Skill: "SQL", Key: "sql", Demand: 2}, demand[0])
	// ties by normalized name
	assert.Equal(t, "go", demand[1].Key)
	assert.Equal(t, "rust", demand[2].Key)
}

func TestSkillDemandCountsJobsAndUsage(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)

	require.NoError(t, c.IngestJob(ctx, &types.JobPosting{Title: "Dev", Skills: []string{"Go"}}, "j1"))
	require.NoError(t, c.IngestResume(ctx, &types.Resume{Experience: []types.Experience{{
		Company: "Acme", Position: "Dev", SkillsUsed: []string{"Go"},
	}}}, "r1"))
	require.NoError(t, c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "SQL"}}}, "r2"))

	demand, err := c.GetSkillDemand(ctx)
	require.NoError(t, err)
	require.Len(t, demand, 2)
	// job REQUIRES_SKILL + position REQUIRES_SKILL + company USES_SKILL
	assert.Equal(t, types.SkillDemand{Skill: "Go", Key: "go", Demand: 3}, demand[0])
	assert.Equal(t, int64(1), demand[1].Demand)
}

func TestGetJobMatches(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)

	require.NoError(t, c.IngestJob(ctx, &types.JobPosting{
		Title: "Backend", Company: "Acme", Location: "Berlin", Skills: []string{"Go", "Rust", "SQL"},
	}, "job-b"))
	require.NoError(t, c.IngestJob(ctx, &types.JobPosting{Title: "Data", Skills: []string{"sql", "Go"}}, "job-a"))
	require.NoError(t, c.IngestJob(ctx, &types.JobPosting{Title: "Frontend", Skills: []string{"TypeScript"}}, "job-c"))
	require.NoError(t, c.IngestJob(ctx, &types.JobPosting{Title: "Ops", Skills: []string{"Go"}}, "job-d"))

	matches, err := c.GetJobMatches(ctx, []string{"Go", "SQL"}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "job-a", matches[0].Job.ID)
	assert.Equal(t, "job-b", matches[1].Job.ID)
	assert.Equal(t, "job-d", matches[2].Job.ID)
	assert.Equal(t, 2, matches[1].SkillCount)
	assert.Equal(t, []string{"Go", "SQL"}, matches[1].MatchingSkills)
	assert.Equal(t, "Backend", matches[1].Job.Title)
	assert.Equal(t, "Berlin", matches[1].Job.Location)
	assert.ElementsMatch(t, []string{"Go", "Rust", "SQL"}, matches[1].Job.Skills)

	matches, err = c.GetJobMatches(ctx, []string{"Go", "SQL"}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "job-a", matches[0].Job.ID)

	matches, err = c.GetJobMatches(ctx, []string{"COBOL"}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	s := stats(t, c)
	assert.Equal(t, int64(1), s.Nodes["Location"])
	assert.Equal(t, int64(1), s.Edges["POSTED_BY"])
	assert.Equal(t, int64(4), s.Edges["FOR_POSITION"])
	assert.Equal(t, int64(1), s.Edges["HAS_POSITION"])
}

func TestMatchJobsForResume(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)

	require.NoError(t, c.IngestJob(ctx, &types.JobPosting{Title: "Backend", Skills: []string{"Go", "Rust", "SQL"}}, "j1"))
	require.NoError(t, c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "go"}, {Name: "SQL"}}}, "r1"))

	matches, err := c.MatchJobsForResume(ctx, "r1", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 2, matches[0].SkillCount)

	matches, err = c.MatchJobsForResume(ctx, "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = c.MatchJobsForResume(ctx, "", 0)
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetResumeSkillsAll(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)
	require.NoError(t, c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "Go"}, {Name: "SQL"}}}, "r1"))
	require.NoError(t, c.IngestResume(ctx, &types.Resume{Skills: []types.Skill{{Name: "go"}, {Name: "Rust"}}}, "r2"))

	skills, err := c.GetResumeSkills(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Rust", "SQL"}, skills)
}

func TestConcurrentIngestSameID(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t, nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.IngestResume(ctx, sampleResume(), "r1")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	s := stats(t, c)
	assert.Equal(t, int64(1), s.Nodes["Resume"])
	assert.Equal(t, int64(1), s.Edges["HAS_EDUCATION"])
	assert.Equal(t, int64(2), s.Edges["HAS_SKILL"])
}

// failingDriver injects an error when a node of failLabel is upserted, and
// panics on panicLabel.
type failingDriver struct {
	driver.GraphDriver
	failLabel  types.Label
	panicLabel types.Label
}

var errInjected = errors.New("injected failure")

func (f *failingDriver) ExecuteWrite(ctx context.Context, fn func(ctx context.Context, tx driver.WriteTx) error) error {
	return f.GraphDriver.ExecuteWrite(ctx, func(ctx context.Context, tx driver.WriteTx) error {
		return fn(ctx, &failingTx{WriteTx: tx, failLabel: f.failLabel, panicLabel: f.panicLabel})
	})
}

type failingTx struct {
	driver.WriteTx
	failLabel  types.Label
	panicLabel types.Label
}

func (t *failingTx) UpsertNode(ctx context.Context, u driver.Upsert) error {
	if t.panicLabel != "" && u.Ref.Label == t.panicLabel {
		panic("upsert exploded")
	}
	if u.Ref.Label == t.failLabel {
		return errInjected
	}
	return t.WriteTx.UpsertNode(ctx, u)
}

func TestPartialWrite(t *testing.T) {
	tests := []struct {
		name        string
		stepCommit  bool
		wantPartial bool
		wantResumes int64
		wantSkills  int64
	}{
		{"step commit keeps earlier steps", true, true, 1, 3},
		{"atomic rolls back", false, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base, err := driver.NewBadgerDriverInMemory()
			require.NoError(t, err)
			c := newClientOn(t, &failingDriver{GraphDriver: base, failLabel: types.LabelCertification},
				&careergraph.Config{StepCommit: tt.stepCommit})

			err = c.IngestResume(ctx, sampleResume(), "r1")
			var werr *types.WriteError
			require.ErrorAs(t, err, &werr)
			assert.Equal(t, "IngestResume", werr.Op)
			assert.Equal(t, "r1", werr.RecordID)
			assert.Equal(t, "certification[0]", werr.Step)
			assert.Equal(t, tt.wantPartial, werr.Partial)
			assert.ErrorIs(t, err, errInjected)

			s := stats(t, c)
			assert.Equal(t, tt.wantResumes, s.Nodes["Resume"])
			assert.Equal(t, tt.wantSkills, s.Nodes["Skill"])
			assert.Equal(t, int64(0), s.Nodes["Language"])
		})
	}
}

func TestStepPanicBecomesWriteError(t *testing.T) {
	tests := []struct {
		name        string
		stepCommit  bool
		wantPartial bool
		wantResumes int64
	}{
		{"step commit", true, true, 1},
		{"atomic", false, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base, err := driver.NewBadgerDriverInMemory()
			require.NoError(t, err)
			c := newClientOn(t, &failingDriver{GraphDriver: base, panicLabel: types.LabelLanguage},
				&careergraph.Config{StepCommit: tt.stepCommit})

			err = c.IngestResume(ctx, sampleResume(), "r1")
			var werr *types.WriteError
			require.ErrorAs(t, err, &werr)
			assert.Equal(t, "language[0]", werr.Step)
			assert.Equal(t, tt.wantPartial, werr.Partial)

			var perr *utils.PanicError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "upsert exploded", perr.Value)

			assert.Equal(t, tt.wantResumes, stats(t, c).Nodes["Resume"])
		})
	}
}

func TestStepCommitFailureAfterFirstStep(t *testing.T) {
	ctx := context.Background()
	base, err := driver.NewBadgerDriverInMemory()
	require.NoError(t, err)
	c := newClientOn(t, &failingDriver{GraphDriver: base, failLabel: types.LabelCompany},
		&careergraph.Config{StepCommit: true})

	err = c.IngestJob(ctx, &types.JobPosting{Title: "Dev", Company: "Acme"}, "j1")
	var werr *types.WriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "company", werr.Step)
	assert.True(t, werr.Partial, "job step was committed before company")
}

func TestConnectionError(t *testing.T) {
	ctx := context.Background()
	c, d := newTestClient(t, nil)
	require.NoError(t, d.Close(ctx))

	var cerr *types.ConnectionError
	assert.ErrorAs(t, c.IngestResume(ctx, sampleResume(), "r1"), &cerr)
	assert.ErrorAs(t, c.VerifyConnectivity(ctx), &cerr)

	_, err := c.ListResumes(ctx)
	assert.ErrorAs(t, err, &cerr)
	_, err = c.GetJobMatches(ctx, []string{"Go"}, 0)
	assert.ErrorAs(t, err, &cerr)
}
