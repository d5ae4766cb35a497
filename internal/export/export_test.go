package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"autograder/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	e, err := NewFileExporter(dir)
	require.NoError(t, err)

	record := Record{
		Pipeline:     "html-basics",
		AssignmentID: "a3",
		UserID:       "u42",
		Username:     "ada",
		GradedAt:     time.Now(),
		FinalScore:   87.5,
		ResultTree:   &api.ResultNode{Name: "rubric", Score: 87.5},
	}
	require.NoError(t, e.Export(context.Background(), record))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "html-basics_a3_u42_")

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var read Record
	require.NoError(t, json.Unmarshal(data, &read))
	assert.Equal(t, "u42", read.UserID)
	assert.Equal(t, 87.5, read.FinalScore)
	require.NotNil(t, read.ResultTree)
	assert.Equal(t, "rubric", read.ResultTree.Name)
}

func TestFileExporterRequiresDir(t *testing.T) {
	_, err := NewFileExporter("")
	assert.Error(t, err)
}

func TestFileExporterDistinctFilesPerSubmission(t *testing.T) {
	dir := t.TempDir()
	e, err := NewFileExporter(dir)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		record := Record{
			Pipeline:     "p",
			AssignmentID: "a",
			UserID:       "u",
			GradedAt:     time.Now().Add(time.Duration(i) * time.Nanosecond),
		}
		require.NoError(t, e.Export(context.Background(), record))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "re-submissions never overwrite each other")
}
