// Package export hands finished grading results to external sinks.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"autograder/internal/api"
	"autograder/pkg/logging"
)

const exportSubsystem = "Export"

// Record is the unit handed to a sink: one graded submission.
type Record struct {
	Pipeline     string          `json:"pipeline"`
	AssignmentID string          `json:"assignment_id"`
	UserID       string          `json:"user_id"`
	Username     string          `json:"username,omitempty"`
	GradedAt     time.Time       `json:"graded_at"`
	FinalScore   float64         `json:"final_score"`
	Feedback     string          `json:"feedback,omitempty"`
	ResultTree   *api.ResultNode `json:"result_tree,omitempty"`
}

// Exporter is the sink interface behind the pipeline's export stage.
// External systems (an LMS bridge, a message queue) implement this; the
// built-in implementation writes JSON files.
type Exporter interface {
	Export(ctx context.Context, record Record) error
}

// FileExporter writes one JSON document per graded submission into a
// directory, named <pipeline>_<assignment>_<user>_<unixnano>.json so
// re-submissions never overwrite each other.
type FileExporter struct {
	dir string
}

func NewFileExporter(dir string) (*FileExporter, error) {
	if dir == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	return &FileExporter{dir: dir}, nil
}

func (e *FileExporter) Export(ctx context.Context, record Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialise export record: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s_%d.json",
		record.Pipeline, record.AssignmentID, record.UserID, record.GradedAt.UnixNano())
	path := filepath.Join(e.dir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export record %s: %w", path, err)
	}

	logging.Debug(exportSubsystem, "Exported result to %s", path)
	return nil
}
