package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"donorcrm/internal/integrity"
)

var ErrNoReports = errors.New("no integrity reports found")

const (
	filePrefix = "integrity-report-"
	fileLayout = "2006-01-02T150405.000Z"
)

type Report struct {
	RunID              string                      `json:"runId,omitempty"`
	GeneratedAt        time.Time                   `json:"generatedAt"`
	Scope              integrity.Scope             `json:"scope"`
	Summary            integrity.Summary           `json:"summary"`
	Issues             []integrity.Issue           `json:"issues"`
	AwaitingConversion []integrity.AwaitingPayment `json:"awaitingConversion"`
	SkippedRecords     int                         `json:"skippedRecords"`
	RecordErrors       []string                    `json:"recordErrors,omitempty"`
	Fixes              *integrity.FixResult        `json:"fixes,omitempty"`
	// Remaining summarizes the re-audit after fixes were applied.
	Remaining *integrity.Summary `json:"remaining,omitempty"`
}

// FromResult builds a report for one checker run.
func FromResult(res integrity.Result, generatedAt time.Time) Report {
	r := Report{
		GeneratedAt:        generatedAt.UTC(),
		Scope:              res.Scope,
		Summary:            res.Summary,
		Issues:             res.Issues,
		AwaitingConversion: res.Awaiting,
		SkippedRecords:     res.Skipped,
		RecordErrors:       res.RecordErrors,
	}
	if r.Issues == nil {
		r.Issues = []integrity.Issue{}
	}
	if r.AwaitingConversion == nil {
		r.AwaitingConversion = []integrity.AwaitingPayment{}
	}
	return r
}

// FileName orders reports by generation time to the millisecond; the run id
// keeps runs started in the same instant apart.
func FileName(generatedAt time.Time, runID string) string {
	name := filePrefix + generatedAt.UTC().Format(fileLayout)
	if runID != "" {
		name += "-" + runID
	}
	return name + ".json"
}

type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write persists the report and returns its path. The file appears
// atomically so readers never see a partial report.
func (w *Writer) Write(r Report) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(w.dir, FileName(r.GeneratedAt, r.RunID))
	tmp, err := os.CreateTemp(w.dir, ".report-*")
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Latest loads the newest report in dir.
func Latest(dir string) (Report, string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, filePrefix+"*.json"))
	if err != nil {
		return Report{}, "", err
	}
	if len(paths) == 0 {
		return Report{}, "", ErrNoReports
	}
	sort.Strings(paths)
	path := paths[len(paths)-1]
	body, err := os.ReadFile(path)
	if err != nil {
		return Report{}, "", fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(body, &r); err != nil {
		return Report{}, "", fmt.Errorf("decode report %s: %w", filepath.Base(path), err)
	}
	return r, path, nil
}
