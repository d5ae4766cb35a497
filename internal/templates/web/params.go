package web

import (
	"path"
	"strings"

	"autograder/internal/api"
)

// paramString reads a string parameter, empty when absent or mistyped.
func paramString(params map[string]interface{}, key string) string {
	v, _ := params[key].(string)
	return v
}

// paramInt reads an integer parameter. JSON numbers arrive as float64.
func paramInt(params map[string]interface{}, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// htmlFiles narrows a selection to HTML documents.
func htmlFiles(files []api.SubmissionFile) []api.SubmissionFile {
	return filterByExt(files, ".html", ".htm")
}

// cssFiles narrows a selection to stylesheets.
func cssFiles(files []api.SubmissionFile) []api.SubmissionFile {
	return filterByExt(files, ".css")
}

func filterByExt(files []api.SubmissionFile, exts ...string) []api.SubmissionFile {
	var out []api.SubmissionFile
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Name))
		for _, want := range exts {
			if ext == want {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
