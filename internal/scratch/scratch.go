// Package scratch rewrites job scripts so that they run inside an ephemeral
// directory on the compute node and publish their outputs back to the
// workflow root.
package scratch

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"jobweaver/internal/core"
)

// Shell variables the generated script relies on. RootVar is exported by the
// execution engine; DirVar is set by the script itself.
const (
	RootVar  = "${GWF_EXEC_WORKFLOW_ROOT}"
	DirVar   = "${SCRATCH_DIR}"
	JobIDVar = "${SLURM_JOB_ID}"
)

// Producer builds a job template from its argument.
type Producer[A any] func(A) (*core.JobTemplate, error)

// WorkDir wraps fn so that its job runs in scratch/<name>/<job id>.
func WorkDir[A any](name string, fn Producer[A]) Producer[A] {
	return Custom(DefaultPath(name), fn)
}

// Custom wraps fn so that its job runs in scratchPath. The path may contain
// shell variables; it is expanded when the job runs.
func Custom[A any](scratchPath string, fn Producer[A]) Producer[A] {
	return func(arg A) (*core.JobTemplate, error) {
		tpl, err := fn(arg)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			return nil, fmt.Errorf("scratch %s: producer returned no template", scratchPath)
		}
		return Rewrite(tpl, scratchPath), nil
	}
}

// DefaultPath is the scratch location used by WorkDir.
func DefaultPath(name string) string {
	return path.Join("scratch", name, JobIDVar)
}

// Rewrite replaces tpl.Spec with a script that stages relative inputs into
// scratchPath as symlinks, runs the original body there and moves relative
// outputs back. Absolute paths are left alone. Only Spec is changed.
func Rewrite(tpl *core.JobTemplate, scratchPath string) *core.JobTemplate {
	mkdirIn, links := newSet(), newSet()
	for _, p := range core.Flatten(tpl.Inputs) {
		if p.IsAbs() {
			continue
		}
		mkdirIn.addDir(p)
		links.add(fmt.Sprintf("ln -s %s/%s %s", RootVar, p, p))
	}

	mkdirOut, moves := newSet(), newSet()
	for _, p := range core.Flatten(tpl.Outputs) {
		if p.IsAbs() {
			continue
		}
		mkdirOut.addDir(p)
		moves.add(fmt.Sprintf("mv %s/%s %s", DirVar, p, p))
	}

	var b strings.Builder
	section := func(title string, lines ...string) {
		b.WriteString("# " + title + "\n")
		for _, l := range lines {
			if l != "" {
				b.WriteString(l + "\n")
			}
		}
		b.WriteString("\n")
	}

	section("Enter scratch",
		`SCRATCH_DIR="`+scratchPath+`"`,
		"mkdir -p "+DirVar,
		"cd "+DirVar)
	section("Stage inputs", append(mkdirIn.sorted(), links.sorted()...)...)
	section("Prepare outputs", mkdirOut.sorted()...)
	section("Run", strings.TrimSpace(tpl.Spec))
	section("Flush", "sync")
	section("Publish outputs",
		append(append([]string{"cd " + RootVar}, mkdirOut.sorted()...), moves.sorted()...)...)
	section("Leave scratch", "rm -rf "+DirVar)

	tpl.Spec = strings.TrimSpace(b.String())
	return tpl
}

type set map[string]struct{}

func newSet() set { return set{} }

func (s set) add(line string) { s[line] = struct{}{} }

func (s set) addDir(p core.Path) {
	if d := p.Dir(); d != "." {
		s.add("mkdir -p " + d)
	}
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
