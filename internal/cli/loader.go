package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/config"
)

// LoadError represents an error that occurred loading a project or an
// options file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProject reads a YAML project file.
func LoadProject(path string) (*blocks.Project, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("project file not found: %s", path)}
	}
	p, err := blocks.LoadProject(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeProject, Message: err.Error()}
	}
	return p, nil
}

// LoadOptions reads a CUE options file, or returns the defaults when path
// is empty.
func LoadOptions(path string) (config.Options, error) {
	if path == "" {
		return config.Default(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return config.Options{}, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("options file not found: %s", path)}
	}
	opts, err := config.Load(path)
	if err != nil {
		var ce *config.ConfigError
		if errors.As(err, &ce) {
			return config.Options{}, &LoadError{Code: ErrCodeConfig, Message: ce.Field + ": " + ce.Message, Pos: ce.Pos}
		}
		return config.Options{}, &LoadError{Code: ErrCodeConfig, Message: err.Error()}
	}
	return opts, nil
}

// loadFailure reports a load error through the formatter as a command
// error.
func loadFailure(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		_ = f.Error(le.Code, le.Message, nil)
		return WrapExitError(ExitCommandError, le.Code, err)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, "load failed", err)
}
