package blocks

import (
	"sort"
	"sync"

	"github.com/roach88/blockjit/internal/ir"
)

// Opcodes the container understands structurally.
const (
	OpcodeProcedureDefinition = "procedures_definition"
	OpcodeProcedurePrototype  = "procedures_prototype"

	// InputCustomBlock links a definition to its prototype.
	InputCustomBlock = "custom_block"
)

// ProcedureParams describes a procedure's declared parameters, in order.
type ProcedureParams struct {
	Names    []string
	IDs      []string
	Defaults []string
}

// Container holds one sprite's blocks and the compiler caches derived from
// them. It is safe for concurrent use.
type Container struct {
	mu     sync.RWMutex
	blocks map[string]*Block

	// Derived lazily, dropped by Invalidate.
	definitions map[string]string
	prototypes  map[string]string
	params      map[string]*ProcedureParams

	procedureIR map[string]*ir.Script
	programs    map[string]any
}

// NewContainer creates a container holding the given blocks.
func NewContainer(blocks ...*Block) *Container {
	c := &Container{blocks: make(map[string]*Block, len(blocks))}
	for _, b := range blocks {
		c.blocks[b.ID] = b
	}
	return c
}

// Add inserts or replaces a block and invalidates every cache.
func (c *Container) Add(b *Block) {
	c.mu.Lock()
	c.blocks[b.ID] = b
	c.mu.Unlock()
	c.Invalidate()
}

// Block returns the block with the given id, or nil.
func (c *Container) Block(id string) *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[id]
}

// Len returns the number of blocks.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// TopBlocks returns the ids of top-level blocks in sorted order.
func (c *Container) TopBlocks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for id, b := range c.blocks {
		if b.TopLevel {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// TopBlocksByOpcode returns the sorted ids of top-level blocks with the
// given opcode.
func (c *Container) TopBlocksByOpcode(opcode string) []string {
	var ids []string
	for _, id := range c.TopBlocks() {
		if b := c.Block(id); b != nil && b.Opcode == opcode {
			ids = append(ids, id)
		}
	}
	return ids
}

// ProcedureDefinition returns the id of the definition block for a
// procedure signature, or "" if the procedure is not defined here.
func (c *Container) ProcedureDefinition(code string) string {
	c.populateProcedureCache()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.definitions[code]
}

// ProcedurePrototype returns the prototype block of a procedure signature.
func (c *Container) ProcedurePrototype(code string) *Block {
	c.populateProcedureCache()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[c.prototypes[code]]
}

// ProcedureParams returns the declared parameters of a procedure.
func (c *Container) ProcedureParams(code string) (*ProcedureParams, bool) {
	c.populateProcedureCache()
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.params[code]
	return p, ok
}

func (c *Container) populateProcedureCache() {
	c.mu.RLock()
	ready := c.params != nil
	c.mu.RUnlock()
	if ready {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.params != nil {
		return
	}
	c.definitions = make(map[string]string)
	c.prototypes = make(map[string]string)
	c.params = make(map[string]*ProcedureParams)

	for _, id := range sortedKeys(c.blocks) {
		b := c.blocks[id]
		switch b.Opcode {
		case OpcodeProcedurePrototype:
			code := b.ProcCode()
			if code == "" {
				continue
			}
			if _, seen := c.prototypes[code]; !seen {
				c.prototypes[code] = id
				m := b.Mutation
				c.params[code] = &ProcedureParams{
					Names:    m.ArgumentNames,
					IDs:      m.ArgumentIDs,
					Defaults: padDefaults(m.ArgumentDefaults, len(m.ArgumentIDs)),
				}
			}
		case OpcodeProcedureDefinition:
			protoID, ok := b.Input(InputCustomBlock)
			if !ok {
				continue
			}
			proto := c.blocks[protoID]
			if proto == nil || proto.ProcCode() == "" {
				continue
			}
			if _, seen := c.definitions[proto.ProcCode()]; !seen {
				c.definitions[proto.ProcCode()] = id
			}
		}
	}
}

func padDefaults(defaults []string, n int) []string {
	if len(defaults) >= n {
		return defaults
	}
	out := make([]string, n)
	copy(out, defaults)
	return out
}

// ProcedureIR returns the cached IR of a procedure variant.
func (c *Container) ProcedureIR(variant string) (*ir.Script, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.procedureIR[variant]
	return s, ok
}

// StoreProcedureIR caches the IR of a procedure variant.
func (c *Container) StoreProcedureIR(variant string, s *ir.Script) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.procedureIR == nil {
		c.procedureIR = make(map[string]*ir.Script)
	}
	c.procedureIR[variant] = s
}

// CachedProgram returns what the compiler stored for a top block. The value
// is owned by the compiler; a cached compile failure is stored as well.
func (c *Container) CachedProgram(topBlockID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.programs[topBlockID]
	return p, ok
}

// StoreProgram caches the compile outcome for a top block.
func (c *Container) StoreProgram(topBlockID string, p any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = make(map[string]any)
	}
	c.programs[topBlockID] = p
}

// Invalidate drops every derived cache. Called whenever the block graph
// changes.
func (c *Container) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.definitions = nil
	c.prototypes = nil
	c.params = nil
	c.procedureIR = nil
	c.programs = nil
}
