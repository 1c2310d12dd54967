// Package config loads dgrun.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kballard/go-shellquote"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/eykd/dgrun/internal/dgerr"
	"github.com/eykd/dgrun/internal/family"
	"github.com/eykd/dgrun/internal/logging"
	"github.com/eykd/dgrun/internal/selector"
	"github.com/eykd/dgrun/internal/toolchain"
)

// DefaultPath is the config file used when neither --config nor
// DGRUN_CONFIG names one.
const DefaultPath = "dgrun.toml"

// EnvPath names the environment variable holding the config path.
const EnvPath = "DGRUN_CONFIG"

// Config is the contents of dgrun.toml.
type Config struct {
	Target            string              `toml:"target"`
	Build             string              `toml:"build"`
	SrcDir            string              `toml:"srcdir" validate:"required,dir"`
	TmpDir            string              `toml:"tmpdir"`
	ExecutableTimeout int                 `toml:"executable_timeout" validate:"gte=1"`
	CompileTimeout    int                 `toml:"compile_timeout" validate:"gte=1"`
	Compilers         map[string]Compiler `toml:"compilers" validate:"dive"`
	Env               map[string]string   `toml:"env"`
	Families          string              `toml:"families"`
	History           string              `toml:"history"`
	Schedule          string              `toml:"schedule"`
	Gcov              string              `toml:"gcov"`
	Demangler         string              `toml:"demangler"`
	Libstdcxx         Libstdcxx           `toml:"libstdcxx"`
	Log               Log                 `toml:"log"`
}

// Libstdcxx locates the libstdc++ build used by the ABI check.
type Libstdcxx struct {
	// ABICheck is a prebuilt abi_check; when empty it is built in OutDir.
	ABICheck string `toml:"abi_check"`
	OutDir   string `toml:"outdir" validate:"omitempty,dir"`
}

// Compiler configures the compiler for one language.
type Compiler struct {
	Path    string   `toml:"path" validate:"required"`
	Flags   string   `toml:"flags"`
	LDFlags string   `toml:"ldflags"`
	LibDirs []string `toml:"libdirs"`
}

// Log configures the logger.
type Log struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
	Color  bool   `toml:"color"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Target:            HostTriple(),
		SrcDir:            ".",
		ExecutableTimeout: 300,
		CompileTimeout:    300,
		Compilers: map[string]Compiler{
			family.LangC:   {Path: "gcc"},
			family.LangCXX: {Path: "g++"},
		},
		Env: map[string]string{},
		Log: Log{Level: "info", Format: logging.FormatConsole},
	}
}

// HostTriple guesses the GNU triple of the running machine.
func HostTriple() string {
	arch := map[string]string{
		"amd64":   "x86_64",
		"386":     "i686",
		"arm64":   "aarch64",
		"arm":     "arm",
		"ppc64le": "powerpc64le",
		"s390x":   "s390x",
		"riscv64": "riscv64",
	}[runtime.GOARCH]
	if arch == "" {
		arch = runtime.GOARCH
	}
	switch runtime.GOOS {
	case "linux":
		if arch == "x86_64" || arch == "i686" {
			return arch + "-pc-linux-gnu"
		}
		return arch + "-unknown-linux-gnu"
	case "darwin":
		return arch + "-apple-darwin"
	default:
		return arch + "-unknown-" + runtime.GOOS
	}
}

// Resolve picks the config path: the explicit one, then DGRUN_CONFIG, then
// DefaultPath. explicit reports whether the file must exist.
func Resolve(path string) (resolved string, explicit bool) {
	if path != "" {
		return path, true
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env, true
	}
	return DefaultPath, false
}

// Load reads the config at path (see Resolve), applies defaults and
// validates the result. A missing default file yields Default().
func Load(path string) (*Config, error) {
	path, explicit := Resolve(path)
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, dgerr.Wrap(dgerr.Config, "parse "+path, err)
		}
		if err := cfg.resolvePaths(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("resolving paths: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// resolvePaths makes file-relative paths absolute against dir. Scratch
// paths are handed to processes running in another directory, so a
// relative dir is resolved against the working directory too.
func (c *Config) resolvePaths(dir string) error {
	for _, p := range []*string{&c.SrcDir, &c.TmpDir, &c.Families, &c.History, &c.Libstdcxx.ABICheck, &c.Libstdcxx.OutDir} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(dir, *p))
		if err != nil {
			return err
		}
		*p = abs
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and the schedule expression.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return dgerr.Wrap(dgerr.Config, "invalid config", err)
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return dgerr.Wrap(dgerr.Config, "invalid schedule "+c.Schedule, err)
		}
	}
	for lang, comp := range c.Compilers {
		if _, err := shellquote.Split(comp.Flags); err != nil {
			return dgerr.Wrap(dgerr.Config, "compilers."+lang+".flags", err)
		}
		if _, err := shellquote.Split(comp.LDFlags); err != nil {
			return dgerr.Wrap(dgerr.Config, "compilers."+lang+".ldflags", err)
		}
	}
	return nil
}

// Platform returns the target/build pair selectors are evaluated against.
func (c *Config) Platform() selector.Platform {
	return selector.Platform{Target: c.Target, Build: c.Build}
}

// ExecTimeout bounds each run of a built program.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.ExecutableTimeout) * time.Second
}

// Toolchain returns the compiler configured for lang.
func (c *Config) Toolchain(lang string) (*toolchain.GCC, error) {
	comp, ok := c.Compilers[lang]
	if !ok {
		return nil, dgerr.Newf(dgerr.Config, "no compiler configured for %s", lang)
	}
	flags, err := shellquote.Split(comp.Flags)
	if err != nil {
		return nil, dgerr.Wrap(dgerr.Config, "compilers."+lang+".flags", err)
	}
	ldflags, err := shellquote.Split(comp.LDFlags)
	if err != nil {
		return nil, dgerr.Wrap(dgerr.Config, "compilers."+lang+".ldflags", err)
	}
	return &toolchain.GCC{
		Path:      comp.Path,
		Flags:     flags,
		LDFlags:   ldflags,
		LibDirs:   comp.LibDirs,
		Timeout:   time.Duration(c.CompileTimeout) * time.Second,
		Demangler: c.Demangler,
	}, nil
}

// Logging returns the logger options from [log].
func (c *Config) Logging() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format, Color: c.Log.Color}
}
