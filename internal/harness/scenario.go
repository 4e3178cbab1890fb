package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario runs one project from the green flag and checks the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden files.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Project is an inline YAML project document. Exactly one of Project
	// and ProjectFile is set.
	Project string `yaml:"project,omitempty"`

	// ProjectFile is a project path, relative to the scenario file.
	ProjectFile string `yaml:"project_file,omitempty"`

	// Options is CUE source unified with the options schema. Empty means
	// the defaults.
	Options string `yaml:"options,omitempty"`

	// Ticks is the most ticks to run; the run stops early once the engine
	// is idle. Defaults to DefaultTicks.
	Ticks int `yaml:"ticks,omitempty"`

	// Assertions validate the final state and the journal.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultTicks is the tick limit of a scenario that sets none.
const DefaultTicks = 300

// Assertion checks one fact about a finished run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "variable": Target's variable Name reads Equals
	// - "list": Target's list Name holds Items
	// - "said": Target's speech bubble reads Text
	// - "suspensions": Threads at TopBlock suspended Count times in total
	// - "done": Every thread at TopBlock finished without error
	// - "compile_error": TopBlock failed to compile with Code
	// - "trace_count": Kind events at TopBlock happened Count times
	Type string `yaml:"type"`

	Target   string `yaml:"target,omitempty"`
	Name     string `yaml:"name,omitempty"`
	Equals   any    `yaml:"equals,omitempty"`
	Items    []any  `yaml:"items,omitempty"`
	Text     string `yaml:"text,omitempty"`
	TopBlock string `yaml:"top_block,omitempty"`
	Count    int    `yaml:"count,omitempty"`
	Code     string `yaml:"code,omitempty"`
	Kind     string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertVariable     = "variable"
	AssertList         = "list"
	AssertSaid         = "said"
	AssertSuspensions  = "suspensions"
	AssertDone         = "done"
	AssertCompileError = "compile_error"
	AssertTraceCount   = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// ProjectFile is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.ProjectFile != "" && !filepath.IsAbs(s.ProjectFile) {
		s.ProjectFile = filepath.Join(filepath.Dir(path), s.ProjectFile)
	}
	return s, nil
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if (s.Project == "") == (s.ProjectFile == "") {
		return fmt.Errorf("exactly one of project and project_file is required")
	}
	if s.Ticks < 0 {
		return fmt.Errorf("ticks must be non-negative")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertVariable, AssertList:
		if a.Target == "" || a.Name == "" {
			return fmt.Errorf("assertions[%d]: target and name are required for %s", index, a.Type)
		}
	case AssertSaid:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for said", index)
		}
	case AssertSuspensions, AssertDone:
		if a.TopBlock == "" {
			return fmt.Errorf("assertions[%d]: top_block is required for %s", index, a.Type)
		}
	case AssertCompileError:
		if a.TopBlock == "" || a.Code == "" {
			return fmt.Errorf("assertions[%d]: top_block and code are required for compile_error", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
