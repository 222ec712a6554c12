package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"streamstats-go/pkg/stats"
)

// Format selects how a report is rendered
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// SeriesResult is the outcome of analyzing one input series
type SeriesResult struct {
	Source   string        `json:"source"`
	Summary  stats.Summary `json:"summary"`
	Lines    int64         `json:"lines"`
	Skipped  int64         `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Report collects the results of one analyze run
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	MaxLag      int            `json:"max_lag"`
	Series      []SeriesResult `json:"series"`
}

// New creates a report with series sorted by source name
func New(maxLag int, results []SeriesResult) *Report {
	sorted := append([]SeriesResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Source < sorted[j].Source
	})
	return &Report{
		GeneratedAt: time.Now().UTC(),
		MaxLag:      maxLag,
		Series:      sorted,
	}
}

// Failed returns how many series could not be analyzed
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Series {
		if s.Error != "" {
			n++
		}
	}
	return n
}

// Write renders the report to w in the given format
func (r *Report) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report to JSON: %w", err)
		}
		data = append(data, '\n')
		_, err = w.Write(data)
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, r.markdown())
		return err
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// WriteFile renders the report to path, creating parent directories.
func (r *Report) WriteFile(path string, format Format) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := r.Write(f, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

func (r *Report) markdown() string {
	var sb strings.Builder

	sb.WriteString("# Series Statistics Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("**Series:** %d (%d failed)\n", len(r.Series), r.Failed()))
	sb.WriteString(fmt.Sprintf("**Max lag:** %d\n\n", r.MaxLag))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Source | Count | Mean | Variance | Std Dev | Min | Max |\n")
	sb.WriteString("|--------|-------|------|----------|---------|-----|-----|\n")
	for _, s := range r.Series {
		if s.Error != "" {
			continue
		}
		sum := s.Summary
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s | %s |\n",
			s.Source, sum.Count,
			formatOptional(sum.Mean), formatOptional(sum.Variance), formatOptional(sum.StdDev),
			formatOptional(sum.Min), formatOptional(sum.Max)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Autocorrelation\n\n")
	header := []string{"Source"}
	for lag := 1; lag <= r.MaxLag; lag++ {
		header = append(header, "r("+strconv.Itoa(lag)+")")
	}
	sb.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat("---|", len(header)) + "\n")
	for _, s := range r.Series {
		if s.Error != "" {
			continue
		}
		row := []string{s.Source}
		for lag := 1; lag <= r.MaxLag; lag++ {
			if v, ok := s.Summary.Autocorrelations[lag]; ok {
				row = append(row, formatFloat(v))
			} else {
				row = append(row, "n/a")
			}
		}
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}

	if r.Failed() > 0 {
		sb.WriteString("\n## Failed Series\n\n")
		sb.WriteString("| Source | Error |\n")
		sb.WriteString("|--------|-------|\n")
		for _, s := range r.Series {
			if s.Error != "" {
				sb.WriteString(fmt.Sprintf("| %s | %s |\n", s.Source, strings.ReplaceAll(s.Error, "|", "\\|")))
			}
		}
	}

	return sb.String()
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
