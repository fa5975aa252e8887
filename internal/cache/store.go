package cache

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"jobweaver/internal/core"
	"jobweaver/internal/fsutil"
)

// Dir is where digest files live, relative to the workflow root.
const Dir = "output/cache"

// DigestStore reads the digests persisted by previous runs of cache jobs.
//
// Structure:
//
//	output/cache/
//	  {task_id}.digest
type DigestStore struct {
	fs afero.Fs
}

func NewDigestStore(fs afero.Fs) *DigestStore {
	return &DigestStore{fs: fs}
}

// Path returns the digest file of a task.
func (s *DigestStore) Path(taskID string) core.Path {
	return core.Path(Dir + "/" + taskID + ".digest")
}

// Load returns the persisted digest of a task. A missing file reports
// ok=false; surrounding whitespace is not significant.
func (s *DigestStore) Load(taskID string) (digest string, ok bool, err error) {
	p := s.Path(taskID).String()
	exists, err := fsutil.Exists(s.fs, p)
	if err != nil {
		return "", false, fmt.Errorf("stat digest %s: %w", p, err)
	}
	if !exists {
		return "", false, nil
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		return "", false, fmt.Errorf("read digest %s: %w", p, err)
	}
	return strings.TrimSpace(string(data)), true, nil
}
