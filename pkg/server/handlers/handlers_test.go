package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/careergraph/pkg/server/dto"
	"github.com/soundprediction/careergraph/pkg/types"
)

// fakeGraph records calls and returns err from every method when set.
type fakeGraph struct {
	err error

	resumes   map[string]*types.Resume
	jobs      map[string]*types.JobPosting
	summary   *types.ResumeSummary
	matches   []types.JobMatch
	gotSkills []string
	gotLimit  int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{resumes: map[string]*types.Resume{}, jobs: map[string]*types.JobPosting{}}
}

func (f *fakeGraph) IngestResume(_ context.Context, r *types.Resume, id string) error {
	if f.err != nil {
		return f.err
	}
	f.resumes[id] = r
	return nil
}

func (f *fakeGraph) IngestJob(_ context.Context, j *types.JobPosting, id string) error {
	if f.err != nil {
		return f.err
	}
	f.jobs[id] = j
	return nil
}

func (f *fakeGraph) GetResumeSummary(_ context.Context, id string) (*types.ResumeSummary, error) {
	if f.summary != nil && f.summary.Resume.ID == id {
		return f.summary, f.err
	}
	return nil, f.err
}

func (f *fakeGraph) ListResumes(context.Context) ([]types.ResumeListing, error) {
	return nil, f.err
}

func (f *fakeGraph) GetSkillDemand(context.Context) ([]types.SkillDemand, error) {
	return []types.SkillDemand{{Skill: "Go", Key: "go", Demand: 2}}, f.err
}

func (f *fakeGraph) GetJobMatches(_ context.Context, skills []string, limit int) ([]types.JobMatch, error) {
	f.gotSkills, f.gotLimit = skills, limit
	return f.matches, f.err
}

func (f *fakeGraph) GetResumeSkills(_ context.Context, id string) ([]string, error) {
	if id == "" {
		return []string{"Go", "SQL"}, f.err
	}
	return []string{"Go"}, f.err
}

func (f *fakeGraph) MatchJobsForResume(_ context.Context, id string, limit int) ([]types.JobMatch, error) {
	f.gotLimit = limit
	return f.matches, f.err
}

func (f *fakeGraph) GetStats(context.Context) (*types.GraphStats, error) {
	return &types.GraphStats{Nodes: map[string]int64{"Resume": 1}, Edges: map[string]int64{}}, f.err
}

func newRouter(g *fakeGraph) *gin.Engine {
	ingest := NewIngestHandler(g, nil)
	retrieve := NewRetrieveHandler(g, nil)

	r := gin.New()
	r.PUT("/resumes/:id", ingest.PutResume)
	r.PUT("/jobs/:id", ingest.PutJob)
	r.GET("/resumes", retrieve.ListResumes)
	r.GET("/resumes/:id", retrieve.GetResume)
	r.GET("/resumes/:id/skills", retrieve.GetResumeSkills)
	r.GET("/resumes/:id/matches", retrieve.GetResumeMatches)
	r.GET("/skills", retrieve.ListSkills)
	r.GET("/skills/demand", retrieve.GetSkillDemand)
	r.POST("/matches", retrieve.MatchJobs)
	r.GET("/stats", retrieve.GetStats)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

const resumeJSON = `{
	"personal_info": {"name": "Ada Lovelace", "email": "ada@example.com"},
	"education": [{"institute": "MIT", "degree": "BSc", "major": ["CS"]}],
	"experience": [{"company": "Acme", "position": "Engineer", "dates": {"from_date": "Jan 2020"}}],
	"skills": [{"name": "Go"}],
}`

func TestPutResume(t *testing.T) {
	g := newFakeGraph()
	w := do(newRouter(g), http.MethodPut, "/resumes/r1", resumeJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp dto.IngestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "resume", resp.Kind)
	assert.Equal(t, "r1", resp.ID)

	require.Contains(t, g.resumes, "r1")
	assert.Equal(t, "Ada Lovelace", g.resumes["r1"].PersonalInfo.Name)
}

func TestPutJob(t *testing.T) {
	g := newFakeGraph()
	w := do(newRouter(g), http.MethodPut, "/jobs/j1", "title: Backend Engineer\ncompany: Acme\nskills: [Go, SQL]\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, g.jobs, "j1")
	assert.Equal(t, []string{"Go", "SQL"}, g.jobs["j1"].Skills)
}

func TestIngestErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		body        string
		wantCode    int
		wantError   string
		wantPartial *bool
	}{
		{"invalid record", nil, `{"title": ""}`, http.StatusBadRequest, "validation_failed", nil},
		{"empty body", nil, ``, http.StatusBadRequest, "validation_failed", nil},
		{
			"datastore down",
			&types.ConnectionError{Op: "IngestJob", Err: errors.New("refused")},
			`{"title": "Dev"}`, http.StatusServiceUnavailable, "datastore_unavailable", nil,
		},
		{
			"partial write",
			&types.WriteError{Op: "IngestJob", RecordID: "j1", Step: "skill[0]", Partial: true, Err: errors.New("boom")},
			`{"title": "Dev"}`, http.StatusInternalServerError, "write_failed", boolPtr(true),
		},
		{
			"connection lost after first step",
			&types.WriteError{
				Op: "IngestJob", RecordID: "j1", Step: "position", Partial: true,
				Err: &types.ConnectionError{Op: "ExecuteWrite", Err: errors.New("connection reset")},
			},
			`{"title": "Dev"}`, http.StatusInternalServerError, "write_failed", boolPtr(true),
		},
		{
			"rolled back write",
			&types.WriteError{Op: "IngestJob", RecordID: "j1", Step: "company", Err: errors.New("boom")},
			`{"title": "Dev"}`, http.StatusInternalServerError, "write_failed", boolPtr(false),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newFakeGraph()
			g.err = tt.err
			w := do(newRouter(g), http.MethodPut, "/jobs/j1", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)

			var resp dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantPartial, resp.Partial)
		})
	}
}

func TestIngestBodyTooLarge(t *testing.T) {
	body := `{"title": "` + strings.Repeat("x", dto.MaxBodyBytes) + `"}`
	w := do(newRouter(newFakeGraph()), http.MethodPut, "/jobs/j1", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestGetResume(t *testing.T) {
	g := newFakeGraph()
	g.summary = &types.ResumeSummary{
		Resume:     types.ResumeProfile{ID: "r1", Name: "Ada"},
		Institutes: []string{"MIT"},
		Companies:  []string{},
		Skills:     []string{"Go"},
	}
	r := newRouter(g)

	w := do(r, http.MethodGet, "/resumes/r1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summary types.ResumeSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, []string{"MIT"}, summary.Institutes)

	w = do(r, http.MethodGet, "/resumes/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEndpoints(t *testing.T) {
	r := newRouter(newFakeGraph())

	tests := []struct {
		path      string
		wantCount float64
	}{
		{"/resumes", 0},
		{"/resumes/r1/skills", 1},
		{"/skills", 2},
		{"/skills/demand", 1},
		{"/resumes/r1/matches", 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCount, body["count"])
			assert.NotNil(t, body["items"], "items must be an array, not null")
		})
	}
}

func TestMatchLimits(t *testing.T) {
	g := newFakeGraph()
	r := newRouter(g)

	w := do(r, http.MethodGet, "/resumes/r1/matches?limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, g.gotLimit)

	w = do(r, http.MethodGet, "/resumes/r1/matches", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.DefaultLimit, g.gotLimit)

	w = do(r, http.MethodGet, "/resumes/r1/matches?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatchJobs(t *testing.T) {
	g := newFakeGraph()
	g.matches = []types.JobMatch{{Job: types.JobListing{ID: "j1"}, MatchingSkills: []string{"Go"}, SkillCount: 1}}
	r := newRouter(g)

	w := do(r, http.MethodPost, "/matches", `{"skills": ["Go", "SQL"], "limit": 0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Go", "SQL"}, g.gotSkills)
	assert.Equal(t, 0, g.gotLimit)

	var body dto.ListResponse[types.JobMatch]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "j1", body.Items[0].Job.ID)

	w = do(r, http.MethodPost, "/matches", `{"skills": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(r, http.MethodPost, "/matches", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryErrors(t *testing.T) {
	g := newFakeGraph()
	r := newRouter(g)

	g.err = &types.QueryError{Op: "GetStats", Err: errors.New("syntax")}
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/stats", "").Code)

	g.err = &types.ConnectionError{Op: "GetStats", Err: errors.New("refused")}
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/stats", "").Code)

	g.err = nil
	w := do(r, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Resume":1`)
}

func boolPtr(b bool) *bool { return &b }
