// Package braindump locates and parses the braindump.yml descriptor that
// the planner drops into every workflow submit directory.
package braindump

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileName is the descriptor file written by the planner.
const FileName = "braindump.yml"

// ErrNotFound is returned when no descriptor exists at or under the target.
var ErrNotFound = errors.New("braindump.yml not found")

// Info describes a planned workflow run, resolved from braindump.yml.
type Info struct {
	WfUUID         string `yaml:"wf_uuid"`
	RootWfUUID     string `yaml:"root_wf_uuid"`
	DaxLabel       string `yaml:"dax_label"`
	SubmitDir      string `yaml:"submit_dir"`
	User           string `yaml:"user"`
	PlannerVersion string `yaml:"planner_version"`
	DagFile        string `yaml:"dag"`
	CondorLog      string `yaml:"condor_log"`
	Timestamp      string `yaml:"timestamp"`
	Basedir        string `yaml:"basedir"`
}

// Find locates a braindump.yml from various starting points: the file
// itself, a run directory containing one, or a base directory holding
// several runs (the highest-sorting run wins).
func Find(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}

	if fi, err := os.Stat(abs); err == nil && !fi.IsDir() && filepath.Base(abs) == FileName {
		return abs, nil
	}

	direct := filepath.Join(abs, FileName)
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	var candidates []string
	_ = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && d.Name() == FileName {
			candidates = append(candidates, path)
		}
		return nil
	})
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w at or under %s", ErrNotFound, target)
	}
	sort.Strings(candidates)
	return candidates[len(candidates)-1], nil
}

// Load finds and parses the descriptor for target.
func Load(target string) (*Info, error) {
	path, err := Find(target)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var info Info
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if info.SubmitDir == "" {
		info.SubmitDir = filepath.Dir(path)
	}
	if info.Basedir == "" {
		info.Basedir = filepath.Dir(info.SubmitDir)
	}
	return &info, nil
}

// StampedeDB returns the path to the stampede SQLite database written by
// the monitor daemon, and whether it exists yet.
func (i *Info) StampedeDB() (string, bool) {
	stem := strings.TrimSuffix(i.DagFile, ".dag")
	path := filepath.Join(i.SubmitDir, stem+".stampede.db")
	_, err := os.Stat(path)
	return path, err == nil
}

// JobstateLog returns the path to jobstate.log, and whether it exists.
func (i *Info) JobstateLog() (string, bool) {
	path := filepath.Join(i.SubmitDir, "jobstate.log")
	_, err := os.Stat(path)
	return path, err == nil
}

// CondorLogPath returns the path to the HTCondor event log, and whether it
// exists.
func (i *Info) CondorLogPath() (string, bool) {
	if i.CondorLog == "" {
		return "", false
	}
	path := filepath.Join(i.SubmitDir, i.CondorLog)
	_, err := os.Stat(path)
	return path, err == nil
}

// DagPath returns the path to the planned DAG file.
func (i *Info) DagPath() string {
	return filepath.Join(i.SubmitDir, i.DagFile)
}

// ShortUUID returns an abbreviated workflow UUID for display. Invalid
// UUIDs are shown as-is.
func (i *Info) ShortUUID() string {
	if _, err := uuid.Parse(i.WfUUID); err != nil {
		return i.WfUUID
	}
	return i.WfUUID[:8] + "…"
}
