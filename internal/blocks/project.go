package blocks

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/blockjit/internal/ir"
)

// StageName is the name of the stage target.
const StageName = "Stage"

// Project is a stage plus the original sprite targets.
type Project struct {
	Stage *Target

	// Targets lists every target in execution order, stage first. Clones
	// are appended by the engine as they are created.
	Targets []*Target
}

// AssetNames returns the costume and sound names of every original
// target. Literal inputs matching one of these stay strings.
func (p *Project) AssetNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, t := range p.Targets {
		if !t.IsOriginal {
			continue
		}
		for _, n := range t.Sprite.Costumes {
			names[n] = struct{}{}
		}
		for _, n := range t.Sprite.Sounds {
			names[n] = struct{}{}
		}
	}
	return names
}

// TargetByName returns the original target with the given name.
func (p *Project) TargetByName(name string) (*Target, bool) {
	for _, t := range p.Targets {
		if t.IsOriginal && t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// projectDoc is the YAML form of a project.
type projectDoc struct {
	Stage   targetDoc   `yaml:"stage"`
	Sprites []targetDoc `yaml:"sprites"`
}

type targetDoc struct {
	Name      string                 `yaml:"name"`
	Costumes  []string               `yaml:"costumes,omitempty"`
	Sounds    []string               `yaml:"sounds,omitempty"`
	Variables map[string]variableDoc `yaml:"variables,omitempty"`
	Blocks    map[string]*Block      `yaml:"blocks,omitempty"`
	Comments  map[string]string      `yaml:"comments,omitempty"`
}

type variableDoc struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type,omitempty"`
	Value any    `yaml:"value,omitempty"`
	List  []any  `yaml:"list,omitempty"`
	Cloud bool   `yaml:"cloud,omitempty"`
}

// LoadProject reads a YAML project file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	return DecodeProject(bytes.NewReader(data))
}

// DecodeProject parses a YAML project. Unknown fields are rejected.
func DecodeProject(r io.Reader) (*Project, error) {
	var doc projectDoc
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return buildProject(&doc)
}

func buildProject(doc *projectDoc) (*Project, error) {
	if doc.Stage.Name == "" {
		doc.Stage.Name = StageName
	}
	stage, err := buildTarget(&doc.Stage, true)
	if err != nil {
		return nil, fmt.Errorf("stage: %w", err)
	}
	p := &Project{Stage: stage, Targets: []*Target{stage}}

	seen := map[string]bool{stage.Name: true}
	for i := range doc.Sprites {
		sd := &doc.Sprites[i]
		if sd.Name == "" {
			return nil, fmt.Errorf("sprite %d: name is required", i)
		}
		if seen[sd.Name] {
			return nil, fmt.Errorf("sprite %q: duplicate name", sd.Name)
		}
		seen[sd.Name] = true
		t, err := buildTarget(sd, false)
		if err != nil {
			return nil, fmt.Errorf("sprite %q: %w", sd.Name, err)
		}
		p.Targets = append(p.Targets, t)
	}
	return p, nil
}

func buildTarget(doc *targetDoc, isStage bool) (*Target, error) {
	blocks := make([]*Block, 0, len(doc.Blocks))
	for _, id := range sortedKeys(doc.Blocks) {
		b := doc.Blocks[id]
		if b == nil {
			return nil, fmt.Errorf("block %q: empty definition", id)
		}
		if b.Opcode == "" {
			return nil, fmt.Errorf("block %q: opcode is required", id)
		}
		b.ID = id
		blocks = append(blocks, b)
	}
	for _, b := range blocks {
		for name, ref := range b.Inputs {
			if ref != "" && doc.Blocks[ref] == nil {
				return nil, fmt.Errorf("block %q: input %s references missing block %q", b.ID, name, ref)
			}
		}
		if b.Next != "" && doc.Blocks[b.Next] == nil {
			return nil, fmt.Errorf("block %q: next references missing block %q", b.ID, b.Next)
		}
	}

	sprite := &Sprite{
		Name:      doc.Name,
		Container: NewContainer(blocks...),
		Costumes:  doc.Costumes,
		Sounds:    doc.Sounds,
	}
	t := NewTarget(doc.Name, sprite, isStage)
	for id, c := range doc.Comments {
		t.Comments[id] = c
	}
	for _, id := range sortedKeys(doc.Variables) {
		vd := doc.Variables[id]
		v := NewVariable(id, vd.Name, vd.Type)
		v.IsCloud = vd.Cloud
		switch vd.Type {
		case VariableScalar:
			if vd.Value != nil {
				val, err := literalValue(vd.Value)
				if err != nil {
					return nil, fmt.Errorf("variable %q: %w", vd.Name, err)
				}
				v.Value = val
			}
		case VariableList:
			for i, item := range vd.List {
				val, err := literalValue(item)
				if err != nil {
					return nil, fmt.Errorf("list %q item %d: %w", vd.Name, i, err)
				}
				v.List = append(v.List, val)
			}
		case VariableBroadcast:
		default:
			return nil, fmt.Errorf("variable %q: unknown type %q", vd.Name, vd.Type)
		}
		t.Variables[id] = v
	}
	return t, nil
}

// literalValue converts a decoded YAML scalar into a runtime value.
func literalValue(v any) (ir.Value, error) {
	switch x := v.(type) {
	case string:
		return ir.String(x), nil
	case int:
		return ir.Number(float64(x)), nil
	case float64:
		return ir.Number(x), nil
	case bool:
		return ir.Bool(x), nil
	}
	return nil, fmt.Errorf("unsupported literal %T", v)
}
