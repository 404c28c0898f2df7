// Package config resolves the harness settings from, in increasing order of
// precedence, built-in defaults, an optional textest.yaml in the working
// directory, an optional .env file, and TEXTEST_* environment variables.
package config

import (
	"io/fs"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/typeset-tools/textest/internal/util"
)

const (
	configFilename = "textest.yaml"
	envFilename    = ".env"

	DefaultTemplateDir = "templates"
	DefaultSupportDir  = "support"
	DefaultBatchSize   = 10
	DefaultM4Bin       = "m4"
)

// Settings carries everything tunable about a harness run. Testfile paths
// and the update and fail-fast switches stay on the command line; settings
// here shape how runs execute rather than what they mean.
type Settings struct {
	// TemplateDir is the root of the format/template tree.
	TemplateDir string `yaml:"template_dir"`
	// SupportDir holds files copied into every scratch directory.
	SupportDir string `yaml:"support_dir"`
	// BatchSize is the number of testfiles composed into one document.
	BatchSize int `yaml:"batch_size"`
	// Workers is the number of concurrent batch runs.
	Workers int `yaml:"workers"`
	// Verbosity selects the log level, from 0 (warnings only) to 3 (wire).
	Verbosity int `yaml:"verbosity"`
	// M4Bin is the macro processor executable.
	M4Bin string `yaml:"m4"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		TemplateDir: DefaultTemplateDir,
		SupportDir:  DefaultSupportDir,
		BatchSize:   DefaultBatchSize,
		Workers:     runtime.NumCPU(),
		Verbosity:   1,
		M4Bin:       DefaultM4Bin,
	}
}

// Load resolves the effective settings for this run.
func Load() (Settings, error) {
	settings := Default()
	if err := settings.applyFile(configFilename); err != nil {
		return settings, err
	}
	if err := loadDotenv(); err != nil {
		return settings, err
	}
	if err := settings.applyEnv(); err != nil {
		return settings, err
	}
	if err := settings.expandPaths(); err != nil {
		return settings, err
	}
	return settings, settings.validate()
}

func (s *Settings) applyFile(path string) error {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := yaml.Unmarshal(content, s); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}

// loadDotenv pulls a .env file into the environment so applyEnv picks its
// values up. A missing file is the normal case.
func loadDotenv() error {
	err := godotenv.Load(envFilename)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return errors.Wrapf(err, "load %s", envFilename)
}

func (s *Settings) applyEnv() error {
	if v, ok := os.LookupEnv("TEXTEST_TEMPLATE_DIR"); ok {
		s.TemplateDir = v
	}
	if v, ok := os.LookupEnv("TEXTEST_SUPPORT_DIR"); ok {
		s.SupportDir = v
	}
	if v, ok := os.LookupEnv("TEXTEST_M4"); ok {
		s.M4Bin = v
	}
	if err := applyIntEnv("TEXTEST_BATCH_SIZE", &s.BatchSize); err != nil {
		return err
	}
	if err := applyIntEnv("TEXTEST_WORKERS", &s.Workers); err != nil {
		return err
	}
	return applyIntEnv("TEXTEST_VERBOSITY", &s.Verbosity)
}

func applyIntEnv(name string, target *int) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return errors.Errorf("invalid %s: %q is not an integer", name, v)
	}
	*target = parsed
	return nil
}

func (s *Settings) expandPaths() error {
	var err error
	if s.TemplateDir, err = util.ExpandHome(s.TemplateDir); err != nil {
		return err
	}
	s.SupportDir, err = util.ExpandHome(s.SupportDir)
	return err
}

func (s *Settings) validate() error {
	if s.BatchSize < 1 {
		return errors.Errorf("batch size must be at least 1, got %d", s.BatchSize)
	}
	if s.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	return nil
}
