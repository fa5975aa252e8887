// Package executor describes the environments job scripts run in.
package executor

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// EnvFilePattern matches conda environment files in the config directory.
const EnvFilePattern = "*.{yaml,yml}"

var ErrNoConda = errors.New("neither mamba nor conda is installed")

// Conda runs a job script inside a conda environment.
type Conda struct {
	// Exe is the mamba or conda binary.
	Exe string

	// Env is an environment name or prefix path.
	Env string

	// Debug enables conda's wrapper script debugging.
	Debug bool

	// File is the environment file the env was derived from, if any.
	File string
}

// IsPath reports whether Env is a prefix path rather than a name.
func (c Conda) IsPath() bool {
	return strings.ContainsAny(c.Env, `/\`)
}

// Prefix is the command line without the script path.
func (c Conda) Prefix() []string {
	args := []string{c.Exe, "run", "--live-stream"}
	if c.Debug {
		args = append(args, "--debug-wrapper-scripts", "-vvv")
	}
	if c.IsPath() {
		args = append(args, "-p", c.Env)
	} else {
		args = append(args, "-n", c.Env)
	}
	return args
}

// Command is the command line that runs specPath in the environment.
func (c Conda) Command(specPath string) []string {
	return append(c.Prefix(), specPath)
}

// CreateCommand is the command line that creates a file-derived environment.
// It is empty for named environments.
func (c Conda) CreateCommand() []string {
	if c.File == "" || !c.IsPath() {
		return nil
	}
	return []string{c.Exe, "env", "create", "-f", c.File, "-p", c.Env}
}

var (
	condaOnce sync.Once
	condaExe  string
	condaErr  error
)

// FindConda returns the mamba binary if installed, else conda. The lookup
// happens once per process.
func FindConda() (string, error) {
	condaOnce.Do(func() {
		condaExe, condaErr = findConda(exec.LookPath)
	})
	return condaExe, condaErr
}

func findConda(lookPath func(string) (string, error)) (string, error) {
	for _, name := range []string{"mamba", "conda"} {
		if p, err := lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrNoConda
}

// EnvPath is where the environment built from file lives: the file stem
// joined with the MD5 of its content, under envsDir.
func EnvPath(envsDir, file string, content []byte) string {
	sum := md5.Sum(content)
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(envsDir, stem+"_"+hex.EncodeToString(sum[:]))
}

// Discover registers one Conda executor per environment file in configDir,
// named after the file stem. Nothing is registered when either directory is
// unset. Environments are not created here; see Registry.Missing.
func Discover(fs afero.Fs, configDir, envsDir, exe string, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	reg := NewRegistry()
	if configDir == "" || envsDir == "" {
		log.Debug("Conda directories not configured, skipping executor discovery",
			zap.String("config_dir", configDir),
			zap.String("envs_dir", envsDir))
		return reg, nil
	}

	exists, err := afero.DirExists(fs, configDir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", configDir, err)
	}
	if !exists {
		log.Debug("Conda config directory does not exist", zap.String("config_dir", configDir))
		return reg, nil
	}

	entries, err := afero.ReadDir(fs, configDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", configDir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, err := doublestar.Match(EnvFilePattern, e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		file := filepath.Join(configDir, name)
		content, err := afero.ReadFile(fs, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		env := Conda{Exe: exe, Env: EnvPath(envsDir, file, content), File: file}
		if err := reg.Register(stem, env); err != nil {
			return nil, err
		}
		log.Debug("Registered conda executor", zap.String("name", stem), zap.String("env", env.Env))
	}
	return reg, nil
}
