// Package cli provides output helpers for the apuntes command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/apuntes/internal/keyword"
	"github.com/hyperjump/apuntes/internal/models"
	"github.com/hyperjump/apuntes/internal/pipeline"
	"github.com/hyperjump/apuntes/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; anything else is an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, result *keyword.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(result.Hits), result.Query)
	for i, hit := range result.Hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. [%s] %s", i+1, hit.Kind, hit.OriginFile)
		if hit.Part != "" {
			fmt.Fprintf(w, " (%s)", hit.Part)
		}
		fmt.Fprintf(w, " | Score: %.4f\n", hit.Score)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(hit.Snippet, 200))
	}
	if len(result.Hits) == 0 && result.Suggestion != "" {
		fmt.Fprintf(w, "Did you mean: %s\n", result.Suggestion)
	}
	return nil
}

// WriteUploads lists stored uploads of one kind.
func WriteUploads(w io.Writer, kind models.Kind, files []*models.UploadedFile, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"kind": kind, "files": files})
	}
	if len(files) == 0 {
		fmt.Fprintf(w, "No %s uploaded.\n", kind)
		return nil
	}
	for _, f := range files {
		fmt.Fprintf(w, "%4d  %-40s %10s  %s\n", f.ID, f.Name, HumanBytes(f.Size), f.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "%d %s\n", len(files), kind)
	return nil
}

// WriteParseStatus prints the message of a finished parse run.
func WriteParseStatus(w io.Writer, status *pipeline.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintln(w, status.Message)
	return nil
}

// WriteQuiz prints the numbered questions of a quiz and the id needed to answer them.
func WriteQuiz(w io.Writer, quiz *models.Quiz, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, quiz)
	}
	fmt.Fprintf(w, "Quiz %s\n\n", quiz.ID)
	for i, q := range quiz.Questions {
		fmt.Fprintf(w, "%d. %s\n", i+1, q)
	}
	fmt.Fprintf(w, "\nAnswer with: apuntes correct -quiz %s -q <n> \"<answer>\"\n", quiz.ID)
	return nil
}

// HumanBytes formats n as B, KB, MB or GB with one decimal.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMG"[exp])
}
