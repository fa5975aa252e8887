// Package cli implements the jobweaver command line.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobweaver/internal/config"
	"jobweaver/internal/executor"
	"jobweaver/internal/observability"
)

// Version information, set at link time.
var (
	Version   = "dev"
	Commit    = "HEAD"
	BuildDate = "unknown"
)

// App carries everything a command touches outside its flags.
type App struct {
	Fs      afero.Fs
	WorkDir string
	Stdout  io.Writer
	Stderr  io.Writer

	// Now and FindConda default to time.Now and executor.FindConda.
	Now       func() time.Time
	FindConda func() (string, error)

	viper    *viper.Viper
	settings *config.Settings
	logger   *zap.Logger
}

// DefaultApp returns an App bound to the OS filesystem and the process
// working directory.
func DefaultApp() (*App, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return &App{Fs: afero.NewOsFs(), WorkDir: wd, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

func (a *App) defaults() {
	if a.Fs == nil {
		a.Fs = afero.NewOsFs()
	}
	if a.Stdout == nil {
		a.Stdout = io.Discard
	}
	if a.Stderr == nil {
		a.Stderr = io.Discard
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.FindConda == nil {
		a.FindConda = executor.FindConda
	}
	if a.viper == nil {
		a.viper = viper.New()
	}
	a.logger = zap.NewNop()
}

// workRoot is the directory all workflow paths are relative to.
func (a *App) workRoot() string {
	root := a.settings.WorkflowRoot
	if !filepath.IsAbs(root) {
		root = filepath.Join(a.WorkDir, root)
	}
	return filepath.Clean(root)
}

// workFs resolves relative paths against workRoot.
func (a *App) workFs() afero.Fs {
	return afero.NewBasePathFs(a.Fs, a.workRoot())
}

// fsFor returns the filesystem p should be opened on.
func (a *App) fsFor(p string) afero.Fs {
	if filepath.IsAbs(p) {
		return a.Fs
	}
	return a.workFs()
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	app.defaults()

	root := &cobra.Command{
		Use:   "jobweaver",
		Short: "Build incremental batch-job graphs from pipeline descriptions",
		Long: `jobweaver turns a pipeline description and a sample sheet into a job graph
for a batch execution engine. Tasks whose inputs have not changed since the
previous build are left out of the graph.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          invocationArgs(cobra.NoArgs),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.loadSettings()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(app.Stdout)
	root.SetErr(app.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "Log format (console, json)")
	_ = app.viper.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = app.viper.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(newBuildCommand(app))
	root.AddCommand(newSamplesCommand(app))
	root.AddCommand(newHistoryCommand(app))
	root.AddCommand(newVersionCommand(app))
	return root
}

// loadSettings resolves settings for app.WorkDir and installs the logger.
func (a *App) loadSettings() error {
	s, err := config.Load(a.Fs, a.WorkDir, a.viper)
	if err != nil {
		return configError(err)
	}
	logger, err := observability.NewLogger(s.Log.Level, s.Log.Format, a.Stderr)
	if err != nil {
		return configError(err)
	}
	a.settings = s
	a.logger = logger
	observability.CLILogger = logger
	if s.Source != "" {
		logger.Debug("Loaded settings", zap.String("source", s.Source))
	}
	return nil
}

// invocationArgs reports positional-argument errors as invocation errors.
func invocationArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return invalidInvocationf("%v", err)
		}
		return nil
	}
}

// Result is the outcome of Run.
type Result struct {
	ExitCode int
}

// Run executes the command line args against app and returns the semantic
// exit code plus any error.
func Run(ctx context.Context, app *App, args []string) (Result, error) {
	root := NewRootCommand(app)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	_ = app.logger.Sync()
	return Result{ExitCode: ExitCode(err)}, err
}
