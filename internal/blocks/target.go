package blocks

import (
	"github.com/roach88/blockjit/internal/ir"
)

// Variable types.
const (
	VariableScalar    = ""
	VariableList      = "list"
	VariableBroadcast = "broadcast_msg"
)

// Variable is the storage behind a variable or list.
type Variable struct {
	ID      string
	Name    string
	Type    string
	Value   ir.Value
	List    []ir.Value
	IsCloud bool
	Visible bool
}

// NewVariable creates an empty variable. Scalars start at 0 and lists
// start empty.
func NewVariable(id, name, typ string) *Variable {
	v := &Variable{ID: id, Name: name, Type: typ}
	switch typ {
	case VariableList:
		v.List = []ir.Value{}
	case VariableBroadcast:
		v.Value = ir.String(name)
	default:
		v.Value = ir.Number(0)
	}
	return v
}

// Copy returns an independent copy of v.
func (v *Variable) Copy() *Variable {
	c := *v
	if v.List != nil {
		c.List = append([]ir.Value(nil), v.List...)
	}
	return &c
}

// Sprite is the class shared by an original target and its clones.
type Sprite struct {
	Name      string
	Container *Container
	Costumes  []string
	Sounds    []string

	// Clones lists every live instance of the sprite, original included.
	Clones []*Target
}

// Target is a running instance of a sprite or of the stage.
type Target struct {
	ID         string
	Name       string
	IsStage    bool
	IsOriginal bool
	Sprite     *Sprite

	// Variables maps variable id to storage.
	Variables map[string]*Variable

	// Comments maps comment id to its text.
	Comments map[string]string

	// Speech is the last thing the target said or thought.
	Speech string

	edgeValues map[string]bool
}

// NewTarget creates an original target for sprite and registers it as the
// sprite's first instance.
func NewTarget(id string, sprite *Sprite, isStage bool) *Target {
	t := &Target{
		ID:         id,
		Name:       sprite.Name,
		IsStage:    isStage,
		IsOriginal: true,
		Sprite:     sprite,
		Variables:  make(map[string]*Variable),
		Comments:   make(map[string]string),
	}
	sprite.Clones = append(sprite.Clones, t)
	return t
}

// Container returns the block container shared by all instances.
func (t *Target) Container() *Container {
	return t.Sprite.Container
}

// LookupVariableByID returns the variable with the given id on t.
func (t *Target) LookupVariableByID(id string) (*Variable, bool) {
	v, ok := t.Variables[id]
	return v, ok
}

// LookupVariableByNameAndType returns the first variable on t, in id
// order, with the given name and type.
func (t *Target) LookupVariableByNameAndType(name, typ string) (*Variable, bool) {
	for _, id := range sortedKeys(t.Variables) {
		v := t.Variables[id]
		if v.Name == name && v.Type == typ {
			return v, true
		}
	}
	return nil, false
}

// CreateVariable creates a variable on t and on every other instance of
// t's sprite that lacks it. Clones share compiled scripts, so they must
// agree on which variables exist.
func (t *Target) CreateVariable(id, name, typ string) *Variable {
	v := NewVariable(id, name, typ)
	t.Variables[id] = v
	if t.Sprite != nil {
		for _, clone := range t.Sprite.Clones {
			if _, ok := clone.Variables[id]; !ok {
				clone.Variables[id] = NewVariable(id, name, typ)
			}
		}
	}
	return v
}

// HasEdgeValue reports whether an edge-activated hat has been observed.
func (t *Target) HasEdgeValue(blockID string) bool {
	_, ok := t.edgeValues[blockID]
	return ok
}

// UpdateEdgeValue records the value of an edge-activated hat and returns
// the previously recorded one.
func (t *Target) UpdateEdgeValue(blockID string, v bool) bool {
	if t.edgeValues == nil {
		t.edgeValues = make(map[string]bool)
	}
	old := t.edgeValues[blockID]
	t.edgeValues[blockID] = v
	return old
}

// Clone creates a new instance of t's sprite with copies of t's variables.
// The clone shares the sprite's Container.
func (t *Target) Clone(id string) *Target {
	c := &Target{
		ID:        id,
		Name:      t.Name,
		Sprite:    t.Sprite,
		Variables: make(map[string]*Variable, len(t.Variables)),
		Comments:  t.Comments,
	}
	for vid, v := range t.Variables {
		c.Variables[vid] = v.Copy()
	}
	t.Sprite.Clones = append(t.Sprite.Clones, c)
	return c
}

// Dispose removes a clone from its sprite. Originals are never disposed.
func (t *Target) Dispose() {
	if t.IsOriginal {
		return
	}
	clones := t.Sprite.Clones
	for i, c := range clones {
		if c == t {
			t.Sprite.Clones = append(clones[:i:i], clones[i+1:]...)
			return
		}
	}
}
