package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/engine"
)

//go:embed schema.cue
var schemaSource []byte

// Options are the runtime and compiler settings of a run.
type Options struct {
	FrameRate     int     `json:"frame_rate"`
	WorkFraction  float64 `json:"work_fraction"`
	Turbo         bool    `json:"turbo"`
	WarpTimer     bool    `json:"warp_timer"`
	StuckInterval int     `json:"stuck_interval"`
	StuckBudgetMS int     `json:"stuck_budget_ms"`
	MaxClones     int     `json:"max_clones"`
	RandSeed      uint64  `json:"rand_seed"`
}

// ConfigError is an options file that does not satisfy the schema.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Default returns the schema defaults.
func Default() Options {
	opts, err := decode(cuecontext.New(), nil, "")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return opts
}

// Load reads a CUE options file and unifies it with the schema. Fields
// the file leaves out take their defaults.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read options file: %w", err)
	}
	return Parse(data, path)
}

// Parse is Load for in-memory CUE source. filename is used in error
// positions.
func Parse(src []byte, filename string) (Options, error) {
	return decode(cuecontext.New(), src, filename)
}

func decode(ctx *cue.Context, src []byte, filename string) (Options, error) {
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Options{}, formatCUEError(err)
	}
	v := schema.LookupPath(cue.ParsePath("#Options"))

	if src != nil {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return Options{}, formatCUEError(err)
		}
		v = v.Unify(user)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Options{}, formatCUEError(err)
	}

	var opts Options
	if err := v.Decode(&opts); err != nil {
		return Options{}, formatCUEError(err)
	}
	return opts, nil
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	ce := &ConfigError{Field: "options", Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		ce.Field = path[len(path)-1]
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[len(positions)-1]
	}
	return ce
}

// EngineOptions maps the options onto engine options.
func (o Options) EngineOptions() []engine.Option {
	opts := []engine.Option{
		engine.WithFrameRate(o.FrameRate),
		engine.WithWorkFraction(o.WorkFraction),
		engine.WithTurbo(o.Turbo),
		engine.WithStuckPolicy(o.StuckInterval, time.Duration(o.StuckBudgetMS)*time.Millisecond),
		engine.WithMaxClones(o.MaxClones),
	}
	if o.RandSeed != 0 {
		opts = append(opts, engine.WithRandSeed(o.RandSeed))
	}
	return opts
}

// Map returns the options keyed by their CUE field names, in the plain
// form canonical JSON accepts.
func (o Options) Map() map[string]any {
	return map[string]any{
		"frame_rate":      o.FrameRate,
		"work_fraction":   o.WorkFraction,
		"turbo":           o.Turbo,
		"warp_timer":      o.WarpTimer,
		"stuck_interval":  o.StuckInterval,
		"stuck_budget_ms": o.StuckBudgetMS,
		"max_clones":      o.MaxClones,
		"rand_seed":       int(o.RandSeed),
	}
}

// CompilerOptions maps the options onto compiler settings.
func (o Options) CompilerOptions() compiler.Options {
	return compiler.Options{WarpTimer: o.WarpTimer}
}
