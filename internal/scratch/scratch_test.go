package scratch

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobweaver/internal/core"
)

func copyJob(src string) (*core.JobTemplate, error) {
	return &core.JobTemplate{
		Inputs:  core.Paths(src),
		Outputs: core.Map{"o": core.Path("c/d.txt")},
		Options: core.Options{Cores: 2, Memory: "4g", Walltime: "00:10:00"},
		Spec:    "\n  cp " + src + " c/d.txt\n",
	}, nil
}

func TestWorkDir_ScriptOrder(t *testing.T) {
	tpl, err := WorkDir("copy", copyJob)("a/b.txt")
	require.NoError(t, err)

	want := strings.Join([]string{
		"# Enter scratch",
		`SCRATCH_DIR="scratch/copy/${SLURM_JOB_ID}"`,
		"mkdir -p ${SCRATCH_DIR}",
		"cd ${SCRATCH_DIR}",
		"",
		"# Stage inputs",
		"mkdir -p a",
		"ln -s ${GWF_EXEC_WORKFLOW_ROOT}/a/b.txt a/b.txt",
		"",
		"# Prepare outputs",
		"mkdir -p c",
		"",
		"# Run",
		"cp a/b.txt c/d.txt",
		"",
		"# Flush",
		"sync",
		"",
		"# Publish outputs",
		"cd ${GWF_EXEC_WORKFLOW_ROOT}",
		"mkdir -p c",
		"mv ${SCRATCH_DIR}/c/d.txt c/d.txt",
		"",
		"# Leave scratch",
		"rm -rf ${SCRATCH_DIR}",
	}, "\n")
	assert.Equal(t, want, tpl.Spec)

	steps := []string{
		"mkdir -p ${SCRATCH_DIR}",
		"cd ${SCRATCH_DIR}",
		"ln -s ${GWF_EXEC_WORKFLOW_ROOT}/a/b.txt a/b.txt",
		"mkdir -p c",
		"cp a/b.txt",
		"sync",
		"cd ${GWF_EXEC_WORKFLOW_ROOT}",
		"mv ${SCRATCH_DIR}/c/d.txt",
		"rm -rf ${SCRATCH_DIR}",
	}
	last := -1
	for _, s := range steps {
		i := strings.Index(tpl.Spec[last+1:], s)
		require.GreaterOrEqual(t, i, 0, "missing or out of order: %s", s)
		last += 1 + i
	}
}

func TestRewrite_LeavesOptionsAndPathsAlone(t *testing.T) {
	tpl, _ := copyJob("a/b.txt")
	inputs, outputs, options := tpl.Inputs, tpl.Outputs, tpl.Options

	got := Rewrite(tpl, "/tmp/x")
	assert.Same(t, tpl, got)
	assert.Equal(t, inputs, got.Inputs)
	assert.Equal(t, outputs, got.Outputs)
	assert.Equal(t, options, got.Options)
	assert.Contains(t, got.Spec, `SCRATCH_DIR="/tmp/x"`)
}

func TestRewrite_DeduplicatesAndSortsCommands(t *testing.T) {
	tpl := &core.JobTemplate{
		Inputs: core.List{
			core.Path("z/1.txt"),
			core.Map{"x": core.Path("a/2.txt"), "y": core.Path("a/1.txt")},
			core.Path("z/1.txt"),
		},
		Outputs: core.Map{"p": core.Paths("out/b", "out/a")},
		Spec:    "true",
	}
	spec := Rewrite(tpl, "s").Spec

	assert.Equal(t, 1, strings.Count(spec, "ln -s ${GWF_EXEC_WORKFLOW_ROOT}/z/1.txt z/1.txt"))
	assert.Equal(t, 1, strings.Count(spec, "mkdir -p a\n"))
	assert.Less(t, strings.Index(spec, "mkdir -p a\n"), strings.Index(spec, "mkdir -p z\n"))
	assert.Less(t,
		strings.Index(spec, "ln -s ${GWF_EXEC_WORKFLOW_ROOT}/a/1.txt"),
		strings.Index(spec, "ln -s ${GWF_EXEC_WORKFLOW_ROOT}/a/2.txt"))
	assert.Less(t, strings.Index(spec, "mv ${SCRATCH_DIR}/out/a"), strings.Index(spec, "mv ${SCRATCH_DIR}/out/b"))
	assert.Equal(t, 2, strings.Count(spec, "mkdir -p out\n"), "output directories exist in scratch and at the root")
}

func TestRewrite_AbsolutePathsPassThrough(t *testing.T) {
	tpl := &core.JobTemplate{
		Inputs:  core.Paths("/ref/genome.fa", "b.txt"),
		Outputs: core.Map{"o": core.Path("/data/out.txt")},
		Spec:    "true",
	}
	spec := Rewrite(tpl, "s").Spec

	assert.NotContains(t, spec, "/ref/genome.fa")
	assert.NotContains(t, spec, "/data/out.txt")
	assert.Contains(t, spec, "ln -s ${GWF_EXEC_WORKFLOW_ROOT}/b.txt b.txt")
	assert.NotContains(t, spec, "mkdir -p .")
}

func TestCustom_PropagatesProducerErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Custom("s", func(int) (*core.JobTemplate, error) { return nil, boom })(1)
	assert.ErrorIs(t, err, boom)

	_, err = Custom("s", func(int) (*core.JobTemplate, error) { return nil, nil })(1)
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, "scratch/align/${SLURM_JOB_ID}", DefaultPath("align"))
}
