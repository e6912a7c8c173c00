package careergraph

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/careergraph"
	"github.com/soundprediction/careergraph/pkg/driver"
)

func TestRecordID(t *testing.T) {
	tests := []struct {
		path, explicit, want string
	}{
		{"data/alice.json", "", "alice"},
		{"/tmp/job-42.yaml", "", "job-42"},
		{"resume", "", "resume"},
		{"data/alice.json", "r1", "r1"},
	}
	for _, tt := range tests {
		t.Run(tt.path+"/"+tt.explicit, func(t *testing.T) {
			assert.Equal(t, tt.want, recordID(tt.path, tt.explicit))
		})
	}
}

func TestIngestFiles(t *testing.T) {
	ctx := context.Background()
	d, err := driver.NewBadgerDriverInMemory()
	require.NoError(t, err)
	client, err := careergraph.NewClient(d, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(ctx) })

	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}
	files := []string{
		write("backend.json", `{"title": "Backend", "skills": ["Go"]}`),
		write("data.yaml", "title: Data\nskills: [Python, Go]\n"),
		write("broken.json", `{"skills": ["Go"]}`),
		filepath.Join(dir, "missing.json"),
	}

	results := ingestFiles(ctx, client, "job", files, "", 2)
	require.Len(t, results, 4)
	assert.Equal(t, "backend", results[0].ID)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "data", results[1].ID)
	assert.Empty(t, results[1].Error)
	assert.Contains(t, results[2].Error, "title")
	assert.NotEmpty(t, results[3].Error)

	matches, err := client.GetJobMatches(ctx, []string{"go"}, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestIngestResumeFlags(t *testing.T) {
	ctx := context.Background()
	d, err := driver.NewBadgerDriverInMemory()
	require.NoError(t, err)
	client, err := careergraph.NewClient(d, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(ctx) })

	path := filepath.Join(t.TempDir(), "ada.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"personal_info": {"name": "Ada"},
		"experience": [{"company": "Acme", "position": "Dev", "dates": {"from_date": "sometime"}}]
	}`), 0o644))

	results := ingestFiles(ctx, client, "resume", []string{path}, "r1", 1)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "r1", results[0].ID)
	require.NotEmpty(t, results[0].Flags)

	summary, err := client.GetResumeSummary(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, "Ada", summary.Resume.Name)
}

func TestPrintResult(t *testing.T) {
	defer func(f string) { outputFormat = f }(outputFormat)

	var buf bytes.Buffer
	outputFormat = "yaml"
	require.NoError(t, printResult(&buf, map[string]int{"resumes": 2}))
	assert.Equal(t, "resumes: 2\n", buf.String())

	buf.Reset()
	outputFormat = "json"
	require.NoError(t, printResult(&buf, map[string]int{"resumes": 2}))
	assert.JSONEq(t, `{"resumes": 2}`, buf.String())

	outputFormat = "xml"
	assert.Error(t, printResult(&buf, nil))
}
