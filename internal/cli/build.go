package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobweaver/internal/config"
	"jobweaver/internal/engine"
	"jobweaver/internal/executor"
	"jobweaver/internal/fsutil"
	"jobweaver/internal/manager"
	"jobweaver/internal/pipeline"
	"jobweaver/internal/sample"
	"jobweaver/internal/state"
	"jobweaver/internal/trace"
)

type buildFlags struct {
	pipeline  string
	samples   string
	workflow  string
	trace     string
	dryRun    bool
	noCleanUp bool
}

func newBuildCommand(app *App) *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the job graph and hand it to the engine",
		Long: `Build renders every pipeline step, decides which cached tasks can be left
out and writes the resulting job graph as a workflow document.

Examples:
  jobweaver build --pipeline pipeline.yaml --samples samples.yaml
  jobweaver build --pipeline pipeline.yaml --dry-run`,
		Args: invocationArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.pipeline == "" {
				return invalidInvocationf("--pipeline is required")
			}
			return runBuild(cmd.Context(), app, f)
		},
	}
	cmd.Flags().StringVar(&f.pipeline, "pipeline", "", "Pipeline description (YAML). Required.")
	cmd.Flags().StringVar(&f.samples, "samples", "", "Sample sheet (YAML or JSON)")
	cmd.Flags().StringVar(&f.workflow, "workflow", "workflow.yaml", "Workflow document to write")
	cmd.Flags().StringVar(&f.trace, "trace", "", "Write the build trace to this path")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "List the targets without writing a workflow")
	cmd.Flags().BoolVar(&f.noCleanUp, "no-clean-up", false, "Do not add the clean-up job")
	return cmd
}

func runBuild(ctx context.Context, app *App, f buildFlags) error {
	log := app.logger
	fs := app.workFs()
	started := app.Now().UTC()

	docs, err := config.LoadDocuments(fs, app.settings, log)
	if err != nil {
		return configError(err)
	}
	samples, err := loadSamples(app, f.samples)
	if err != nil {
		return configError(err)
	}
	p, err := pipeline.Load(fs, f.pipeline)
	if err != nil {
		return configError(err)
	}
	executors, err := discoverExecutors(app)
	if err != nil {
		return configError(err)
	}

	var (
		eng   engine.Engine
		runID string
	)
	if f.dryRun {
		eng = engine.NewRecorder()
		runID = uuid.NewString()
	} else {
		w := engine.NewWorkflowWriter(fs, f.workflow)
		w.SetExecutors(executors.Prefixes())
		eng = w
		runID = w.RunID()
	}
	log = log.With(zap.String("run_id", runID))

	events := trace.NewRecorder()
	m := manager.New(eng,
		manager.WithFs(fs),
		manager.WithLogger(log),
		manager.WithTrace(events),
		manager.WithCleanUp(app.settings.CleanUp && !f.noCleanUp),
	)

	buildErr := m.Build(ctx, func(m *manager.Manager) error {
		return pipeline.Run(ctx, p, pipeline.Env{
			Manager:   m,
			Samples:   samples,
			Docs:      docs,
			Executors: executors,
		})
	})

	run := state.Run{
		RunID:     runID,
		GraphHash: m.GraphHash(),
		StartTime: started,
		Pipeline:  f.pipeline,
		Status:    state.StatusEmitted,
	}
	for _, e := range events.Snapshot() {
		switch e.Kind {
		case trace.EventTargetEmitted, trace.EventCleanupEmitted:
			run.Emitted = append(run.Emitted, e.Target)
		case trace.EventTargetSkipped:
			run.Skipped = append(run.Skipped, e.Target)
		}
	}
	switch {
	case buildErr != nil:
		run.Status = state.StatusFailed
		run.Error = buildErr.Error()
	case f.dryRun:
		run.Status = state.StatusDryRun
	}
	if err := recordRun(app, run); err != nil {
		log.Warn("Failed to record build", zap.Error(err))
	}

	if buildErr != nil {
		log.Error("Build failed", zap.Error(buildErr))
		if errors.Is(buildErr, context.Canceled) || errors.Is(buildErr, context.DeadlineExceeded) {
			return buildErr
		}
		return graphError(buildErr)
	}

	if f.trace != "" {
		data, err := events.Trace(m.GraphHash()).CanonicalJSON()
		if err != nil {
			return fmt.Errorf("encode trace: %w", err)
		}
		if err := fsutil.WriteFileAtomic(app.fsFor(f.trace), f.trace, data, 0o644); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
	}

	if f.dryRun {
		for _, name := range eng.(*engine.Recorder).Names() {
			fmt.Fprintln(app.Stdout, name)
		}
	}
	fmt.Fprintf(app.Stdout, "run %s: %d targets emitted, %d skipped, graph %s\n",
		runID, len(run.Emitted), len(run.Skipped), run.GraphHash)
	return nil
}

func loadSamples(app *App, path string) (*sample.List, error) {
	if path == "" {
		return sample.NewList()
	}
	schema := sample.NewSchema(app.settings.MetadataSchema)
	return sample.LoadList(app.fsFor(path), path, schema)
}

// discoverExecutors registers the conda environments found in the configured
// directory. Conda itself is only looked up when an envs directory is set.
func discoverExecutors(app *App) (*executor.Registry, error) {
	s := app.settings
	if s.CondaEnvsDir == "" {
		return executor.NewRegistry(), nil
	}
	exe, err := app.FindConda()
	if err != nil {
		return nil, err
	}
	envsDir := s.CondaEnvsDir
	if !filepath.IsAbs(envsDir) {
		envsDir = filepath.Join(app.workRoot(), envsDir)
	}
	configDir := s.CondaConfigDir
	if configDir != "" && !filepath.IsAbs(configDir) {
		configDir = filepath.Join(app.workRoot(), configDir)
	}
	reg, err := executor.Discover(app.Fs, configDir, envsDir, exe, app.logger)
	if err != nil {
		return nil, err
	}
	missing, err := reg.Missing(app.Fs)
	if err != nil {
		return nil, err
	}
	for _, name := range missing {
		c, _ := reg.Get(name)
		app.logger.Warn("Conda environment does not exist yet",
			zap.String("executor", name),
			zap.Strings("create", c.CreateCommand()))
	}
	return reg, nil
}

func recordRun(app *App, run state.Run) error {
	store, err := state.NewStore(app.Fs, app.workRoot())
	if err != nil {
		return err
	}
	return store.SaveRun(run)
}
