package compiler

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Site is the block being built together with its registration's static
// metadata.
type Site struct {
	Block *blocks.Block
	// Input is the IR opcode of an input registration.
	Input ir.InputOpcode
	// Stack is the IR opcode of a stack registration.
	Stack  ir.StackOpcode
	Type   ir.Type
	Yields bool
	// Preserve keeps literal text that names an asset as text.
	Preserve bool
}

// Node builds an expression node with the site's opcode, type and
// suspension flag.
func (s Site) Node(args ir.Args) *ir.Input {
	return ir.NewInput(s.Input, s.Type, args, s.Yields)
}

// Statement builds a statement node with the site's opcode and suspension
// flag.
func (s Site) Statement(args ir.Args) *ir.StackBlock {
	return ir.NewStackBlock(s.Stack, args, s.Yields)
}

// InputBuilder builds the IR of an expression block.
type InputBuilder func(b *ScriptBuilder, site Site) *ir.Input

// StackBuilder builds the IR of a statement block.
type StackBuilder func(b *ScriptBuilder, site Site) *ir.StackBlock

// InputRegistration is a compiled expression block.
type InputRegistration struct {
	// Opcode is the IR opcode built. Empty derives it from the block
	// opcode: "operator_add" builds "operator.add".
	Opcode ir.InputOpcode
	Type   ir.Type
	Yields bool
	// Dynamic registrations build nodes whose opcode or type depends on
	// the block, so Lower is ignored and the lowerings of every opcode
	// they produce are registered with LowerInput.
	Dynamic bool
	Build   InputBuilder
	Lower   codegen.InputLowerer
}

// StackRegistration is a compiled statement block.
type StackRegistration struct {
	Opcode  ir.StackOpcode
	Yields  bool
	Dynamic bool
	Build   StackBuilder
	Lower   codegen.StackLowerer
}

// ExtensionBlock is the declared shape of a block only the compatibility
// bridge can run.
type ExtensionBlock struct {
	Shape       blocks.Shape
	BranchCount int
}

// Registry is the block library as the compiler and the engine see it.
//
// CRITICAL: a registry is populated once and then frozen. Registering
// into a frozen registry panics, and lookups on a frozen registry take no
// locks.
type Registry struct {
	mu     sync.Mutex
	frozen atomic.Bool

	inputs        map[string]InputRegistration
	stacks        map[string]StackRegistration
	inputLowerers map[ir.InputOpcode]codegen.InputLowerer
	stackLowerers map[ir.StackOpcode]codegen.StackLowerer
	primitives    map[string]engine.Primitive
	hats          map[string]engine.HatInfo
	compatInputs  map[string]bool
	compatStacks  map[string]bool
	extensions    map[string]ExtensionBlock
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		inputs:        make(map[string]InputRegistration),
		stacks:        make(map[string]StackRegistration),
		inputLowerers: make(map[ir.InputOpcode]codegen.InputLowerer),
		stackLowerers: make(map[ir.StackOpcode]codegen.StackLowerer),
		primitives:    make(map[string]engine.Primitive),
		hats:          make(map[string]engine.HatInfo),
		compatInputs:  make(map[string]bool),
		compatStacks:  make(map[string]bool),
		extensions:    make(map[string]ExtensionBlock),
	}
}

// irOpcode derives an IR opcode from a block opcode.
func irOpcode(blockOpcode string) string {
	return strings.Replace(blockOpcode, "_", ".", 1)
}

func (r *Registry) lock(what, opcode string) func() {
	if r.frozen.Load() {
		panic(fmt.Sprintf("compiler: register %s %q after freeze", what, opcode))
	}
	r.mu.Lock()
	return r.mu.Unlock
}

// =============================================================================
// Registration
// =============================================================================

// RegisterInput registers an expression block under one or more block
// opcodes.
func (r *Registry) RegisterInput(reg InputRegistration, opcodes ...string) {
	if reg.Build == nil {
		panic(fmt.Sprintf("compiler: input registration for %v has no builder", opcodes))
	}
	for _, op := range opcodes {
		unlock := r.lock("input", op)
		own := reg
		if own.Opcode == "" {
			own.Opcode = ir.InputOpcode(irOpcode(op))
		}
		r.inputs[op] = own
		if !own.Dynamic && own.Lower != nil {
			r.inputLowerers[own.Opcode] = own.Lower
		}
		unlock()
	}
}

// RegisterStack registers a statement block under one or more block
// opcodes.
func (r *Registry) RegisterStack(reg StackRegistration, opcodes ...string) {
	if reg.Build == nil {
		panic(fmt.Sprintf("compiler: stack registration for %v has no builder", opcodes))
	}
	for _, op := range opcodes {
		unlock := r.lock("stack", op)
		own := reg
		if own.Opcode == "" {
			own.Opcode = ir.StackOpcode(irOpcode(op))
		}
		r.stacks[op] = own
		if !own.Dynamic && own.Lower != nil {
			r.stackLowerers[own.Opcode] = own.Lower
		}
		unlock()
	}
}

// LowerInput registers the lowering of an IR expression opcode.
func (r *Registry) LowerInput(op ir.InputOpcode, fn codegen.InputLowerer) {
	defer r.lock("input lowering", string(op))()
	r.inputLowerers[op] = fn
}

// LowerStack registers the lowering of an IR statement opcode.
func (r *Registry) LowerStack(op ir.StackOpcode, fn codegen.StackLowerer) {
	defer r.lock("stack lowering", string(op))()
	r.stackLowerers[op] = fn
}

// RegisterPrimitive registers a block implementation for the
// compatibility bridge.
func (r *Registry) RegisterPrimitive(opcode string, p engine.Primitive) {
	defer r.lock("primitive", opcode)()
	r.primitives[opcode] = p
}

// RegisterHat declares opcode as a hat.
func (r *Registry) RegisterHat(opcode string, info engine.HatInfo) {
	defer r.lock("hat", opcode)()
	r.hats[opcode] = info
}

// RegisterCompat lists opcodes that are always run through the bridge
// even though they are not extension blocks.
func (r *Registry) RegisterCompat(stacked, inputs []string) {
	defer r.lock("compat list", "")()
	for _, op := range stacked {
		r.compatStacks[op] = true
	}
	for _, op := range inputs {
		r.compatInputs[op] = true
	}
}

// RegisterExtension declares the shape of an extension block.
func (r *Registry) RegisterExtension(opcode string, ext ExtensionBlock) {
	defer r.lock("extension", opcode)()
	r.extensions[opcode] = ext
}

// Freeze makes r immutable.
func (r *Registry) Freeze() *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
	return r
}

// Frozen reports whether r has been frozen.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// =============================================================================
// Lookups
// =============================================================================

// Input returns the registration of an expression block.
func (r *Registry) Input(opcode string) (InputRegistration, bool) {
	reg, ok := r.inputs[opcode]
	return reg, ok
}

// Stack returns the registration of a statement block.
func (r *Registry) Stack(opcode string) (StackRegistration, bool) {
	reg, ok := r.stacks[opcode]
	return reg, ok
}

// InputLowerer implements codegen.Lowerers.
func (r *Registry) InputLowerer(op ir.InputOpcode) (codegen.InputLowerer, bool) {
	fn, ok := r.inputLowerers[op]
	return fn, ok
}

// StackLowerer implements codegen.Lowerers.
func (r *Registry) StackLowerer(op ir.StackOpcode) (codegen.StackLowerer, bool) {
	fn, ok := r.stackLowerers[op]
	return fn, ok
}

// Primitive implements engine.Library.
func (r *Registry) Primitive(opcode string) (engine.Primitive, bool) {
	p, ok := r.primitives[opcode]
	return p, ok
}

// Hat implements engine.Library.
func (r *Registry) Hat(opcode string) (engine.HatInfo, bool) {
	h, ok := r.hats[opcode]
	return h, ok
}

// EdgeActivatedHats implements engine.Library. The result is sorted.
func (r *Registry) EdgeActivatedHats() []string {
	var out []string
	for op, info := range r.hats {
		if info.EdgeActivated {
			out = append(out, op)
		}
	}
	slices.Sort(out)
	return out
}

// IsCompatInput reports whether opcode is listed as a bridge expression.
func (r *Registry) IsCompatInput(opcode string) bool { return r.compatInputs[opcode] }

// IsCompatStack reports whether opcode is listed as a bridge statement.
func (r *Registry) IsCompatStack(opcode string) bool { return r.compatStacks[opcode] }

// Extension returns the declared shape of an extension block.
func (r *Registry) Extension(opcode string) (ExtensionBlock, bool) {
	ext, ok := r.extensions[opcode]
	return ext, ok
}

// Opcodes lists every compiled block opcode, sorted.
func (r *Registry) Opcodes() []string {
	out := make([]string, 0, len(r.inputs)+len(r.stacks))
	for op := range r.inputs {
		out = append(out, op)
	}
	for op := range r.stacks {
		if _, dup := r.inputs[op]; !dup {
			out = append(out, op)
		}
	}
	slices.Sort(out)
	return out
}
