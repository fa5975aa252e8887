// Package state persists a record of every graph build under
//
//	<baseDir>/.jobweaver/runs/<run-id>/run.json
//
// Records are written atomically and never rewritten.
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"jobweaver/internal/fsutil"
)

// ErrRunExists is returned when a record with the same run id is already on disk.
var ErrRunExists = errors.New("run already recorded")

type Store struct {
	fs      afero.Fs
	baseDir string
}

func NewStore(fs afero.Fs, baseDir string) (*Store, error) {
	if fs == nil {
		return nil, errors.New("fs is required")
	}
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	return &Store{fs: fs, baseDir: baseDir}, nil
}

func (s *Store) runsRootDir() string {
	return filepath.Join(s.baseDir, ".jobweaver", "runs")
}

func (s *Store) runPath(runID string) string {
	return filepath.Join(s.runsRootDir(), runID, "run.json")
}

// ListRunIDs returns the ids of every recorded run, sorted lexicographically.
func (s *Store) ListRunIDs() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.runsRootDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if name := strings.TrimSpace(e.Name()); name != "" {
			ids = append(ids, name)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListRuns loads every recorded run, oldest first.
func (s *Store) ListRuns() ([]Run, error) {
	ids, err := s.ListRunIDs()
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.LoadRun(id)
		if err != nil {
			return nil, fmt.Errorf("load run %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartTime.Before(runs[j].StartTime) })
	return runs, nil
}

func (s *Store) SaveRun(run Run) error {
	run.normalize()
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	path := s.runPath(run.RunID)
	exists, err := fsutil.Exists(s.fs, path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrRunExists, run.RunID)
	}
	data, err := jsonMarshalStable(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func (s *Store) LoadRun(runID string) (Run, error) {
	if strings.TrimSpace(runID) == "" {
		return Run{}, errors.New("runID is required")
	}
	var run Run
	if err := s.readJSONStrict(s.runPath(runID), &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return run, nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func (s *Store) readJSONStrict(path string, dst any) error {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}
