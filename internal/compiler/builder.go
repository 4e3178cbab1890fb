package compiler

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/ir"
)

// substackPrefix names the inputs that hold a block's branches.
const substackPrefix = "SUBSTACK"

// ScriptBuilder builds the IR of one script or procedure variant from the
// block graph of a target.
//
// Builders registered in a Registry call back into the ScriptBuilder to
// descend into inputs, substacks and variables. A failure anywhere in the
// descent aborts the whole script through Fail.
type ScriptBuilder struct {
	reg        *Registry
	target     *blocks.Target
	stage      *blocks.Target
	container  *blocks.Container
	assets     map[string]struct{}
	stackClick bool

	script    *ir.Script
	variables map[string]*ir.Variable
}

// BuildContext is what a ScriptBuilder needs to know about the thread it
// compiles for.
type BuildContext struct {
	Target *blocks.Target
	Stage  *blocks.Target
	// Assets names every costume and sound; literals matching one are
	// kept as text where the block asks for it.
	Assets     map[string]struct{}
	StackClick bool
	WarpTimer  bool
}

// NewScriptBuilder creates a builder for an entry script.
func NewScriptBuilder(reg *Registry, ctx BuildContext) *ScriptBuilder {
	assets := ctx.Assets
	if assets == nil {
		assets = map[string]struct{}{}
	}
	return &ScriptBuilder{
		reg:        reg,
		target:     ctx.Target,
		stage:      ctx.Stage,
		container:  ctx.Target.Container(),
		assets:     assets,
		stackClick: ctx.StackClick,
		script:     &ir.Script{WarpTimer: ctx.WarpTimer},
		variables:  make(map[string]*ir.Variable),
	}
}

// SetProcedureVariant makes the builder build a procedure variant. Its
// warp flag comes from the variant key.
func (b *ScriptBuilder) SetProcedureVariant(variant string) error {
	code, warp, err := ir.ParseVariant(variant)
	if err != nil {
		return err
	}
	b.script.IsProcedure = true
	b.script.ProcedureCode = code
	b.script.ProcedureVariant = variant
	if warp {
		b.EnableWarp()
	}

	params, ok := b.container.ProcedureParams(code)
	if !ok {
		return &CompileError{
			Code:    ErrCodeProcedure,
			Message: fmt.Sprintf("cannot find procedure: %s", variant),
			Variant: variant,
		}
	}
	b.script.Arguments = slices.Clone(params.Names)
	return nil
}

// EnableWarp runs the whole script without screen refresh.
func (b *ScriptBuilder) EnableWarp() { b.script.IsWarp = true }

// Script returns the script being built.
func (b *ScriptBuilder) Script() *ir.Script { return b.script }

// Target returns the target the script is compiled for.
func (b *ScriptBuilder) Target() *blocks.Target { return b.target }

// Stage returns the project's stage, or nil when building without one.
func (b *ScriptBuilder) Stage() *blocks.Target { return b.stage }

// Registry returns the registry the builder resolves opcodes with.
func (b *ScriptBuilder) Registry() *Registry { return b.reg }

// Block returns a block of the target's container, or nil.
func (b *ScriptBuilder) Block(id string) *blocks.Block { return b.container.Block(id) }

// Fail aborts the build of the current script.
func (b *ScriptBuilder) Fail(code, format string, args ...any) {
	panic(bailout{err: &CompileError{Code: code, Message: fmt.Sprintf(format, args...)}})
}

// AnalyzeLoop reports whether a loop in this script must suspend after
// each iteration: always outside warp, and in warp only when stuck
// detection applies.
func (b *ScriptBuilder) AnalyzeLoop() bool {
	return !b.script.IsWarp || b.script.WarpTimer
}

// =============================================================================
// Constants
// =============================================================================

// Constant classifies literal text. With preserve set, text naming an
// asset stays text.
func (b *ScriptBuilder) Constant(raw string, preserve bool) *ir.Input {
	if preserve {
		if _, ok := b.assets[raw]; ok {
			return ir.ClassifyConstant(raw, true)
		}
	}
	return ir.ClassifyConstant(raw, false)
}

// ConstantValue classifies v by its text form.
func (b *ScriptBuilder) ConstantValue(v ir.Value) *ir.Input {
	return b.Constant(ir.ToString(v), false)
}

// =============================================================================
// Inputs
// =============================================================================

// DescendInputOf builds the expression plugged into the named input of
// parent. A missing input or block reads as the constant 0.
func (b *ScriptBuilder) DescendInputOf(parent *blocks.Block, name string, preserve bool) *ir.Input {
	id, ok := parent.Input(name)
	if !ok {
		slog.Warn("IR: missing input", "opcode", parent.Opcode, "block", parent.ID, "input", name)
		return b.ConstantValue(ir.Number(0))
	}
	blk := b.Block(id)
	if blk == nil {
		slog.Warn("IR: missing block", "opcode", parent.Opcode, "block", parent.ID, "input", name, "missing", id)
		return b.ConstantValue(ir.Number(0))
	}
	return b.DescendInput(blk, preserve)
}

// DescendInput builds the expression for blk.
func (b *ScriptBuilder) DescendInput(blk *blocks.Block, preserve bool) *ir.Input {
	node := b.descendInput(blk, preserve)
	if node.Yields {
		b.script.Yields = true
	}
	return node
}

func (b *ScriptBuilder) descendInput(blk *blocks.Block, preserve bool) *ir.Input {
	if reg, ok := b.reg.Input(blk.Opcode); ok {
		node := reg.Build(b, Site{
			Block:    blk,
			Input:    reg.Opcode,
			Type:     reg.Type,
			Yields:   reg.Yields,
			Preserve: preserve,
		})
		if node == nil {
			b.Fail(ErrCodeInvariant, "builder for %s returned no input", blk.Opcode)
		}
		return node
	}

	if _, ok := b.reg.Primitive(blk.Opcode); ok {
		if b.reg.IsCompatInput(blk.Opcode) {
			return b.CompatInput(blk)
		}
		if ext, ok := b.reg.Extension(blk.Opcode); ok && ext.Shape.IsExpression() {
			return b.CompatInput(blk)
		}
	}

	// Menus are shadow blocks with one field and nothing plugged in.
	if len(blk.Inputs) == 0 && len(blk.Fields) == 1 {
		for _, f := range blk.Fields {
			return b.Constant(f.Value, preserve)
		}
	}

	slog.Warn("IR: unknown input", "opcode", blk.Opcode, "block", blk.ID)
	b.Fail(ErrCodeUnknownInput, "IR: Unknown input: %s", blk.Opcode)
	return nil
}

// =============================================================================
// Statements
// =============================================================================

// DescendStacked builds the statement for blk.
func (b *ScriptBuilder) DescendStacked(blk *blocks.Block) *ir.StackBlock {
	if reg, ok := b.reg.Stack(blk.Opcode); ok {
		node := reg.Build(b, Site{
			Block:  blk,
			Stack:  reg.Opcode,
			Yields: reg.Yields,
		})
		if node == nil {
			b.Fail(ErrCodeInvariant, "builder for %s returned no statement", blk.Opcode)
		}
		return node
	}

	if _, ok := b.reg.Primitive(blk.Opcode); ok {
		if b.reg.IsCompatStack(blk.Opcode) {
			return b.CompatStack(blk)
		}
		if ext, ok := b.reg.Extension(blk.Opcode); ok && ext.Shape.IsStatement() {
			return b.CompatStack(blk)
		}
	}

	if node := b.VisualReport(blk); node != nil {
		return node
	}

	slog.Warn("IR: unknown stack block", "opcode", blk.Opcode, "block", blk.ID)
	b.Fail(ErrCodeUnknownStack, "IR: Unknown stack block: %s", blk.Opcode)
	return nil
}

// VisualReport wraps a lone reporter clicked in the editor so its value
// is shown. It returns nil when blk is not such a reporter.
func (b *ScriptBuilder) VisualReport(blk *blocks.Block) (node *ir.StackBlock) {
	if !b.stackClick || blk.Next != "" {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			node = nil
		}
	}()
	in := b.DescendInput(blk, false)
	return ir.NewStackBlock(ir.StackVisualReport, ir.Args{"input": in}, false)
}

// DescendSubstack builds the branch plugged into the named input of
// parent. A missing branch is an empty stack.
func (b *ScriptBuilder) DescendSubstack(parent *blocks.Block, name string) *ir.Stack {
	id, ok := parent.Input(name)
	if !ok {
		return &ir.Stack{}
	}
	return b.WalkStack(id)
}

// WalkStack builds the statements from start to the end of its stack.
func (b *ScriptBuilder) WalkStack(start string) *ir.Stack {
	stack := &ir.Stack{}
	seen := make(map[string]bool)
	for id := start; id != ""; {
		if seen[id] {
			slog.Warn("IR: block stack loops back on itself", "block", id)
			break
		}
		seen[id] = true
		blk := b.Block(id)
		if blk == nil {
			break
		}
		node := b.DescendStacked(blk)
		stack.Blocks = append(stack.Blocks, node)
		if node.Yields {
			b.script.Yields = true
		}
		id = blk.Next
	}
	return stack
}

// =============================================================================
// Variables
// =============================================================================

// Variable resolves the variable or list named by a field of blk. typ is
// one of the blocks.Variable* kinds.
//
// Lookup order: by id on the target, by id on the stage, by name and kind
// on the target, by name and kind on the stage. A variable found nowhere
// is created on the target and on every clone of its sprite.
func (b *ScriptBuilder) Variable(blk *blocks.Block, field, typ string) *ir.Variable {
	f, _ := blk.Field(field)
	if v, ok := b.variables[f.ID]; ok {
		return v
	}
	v := b.resolveVariable(f.ID, f.Value, typ)
	b.variables[f.ID] = v
	return v
}

func (b *ScriptBuilder) resolveVariable(id, name, typ string) *ir.Variable {
	t, stage := b.target, b.stage
	if v, ok := t.LookupVariableByID(id); ok {
		return variableRef(ir.ScopeTarget, v)
	}
	if !t.IsStage && stage != nil {
		if v, ok := stage.LookupVariableByID(id); ok {
			return variableRef(ir.ScopeStage, v)
		}
	}
	if v, ok := t.LookupVariableByNameAndType(name, typ); ok {
		return variableRef(ir.ScopeTarget, v)
	}
	if !t.IsStage && stage != nil {
		if v, ok := stage.LookupVariableByNameAndType(name, typ); ok {
			return variableRef(ir.ScopeStage, v)
		}
	}
	slog.Debug("creating missing variable", "target", t.Name, "id", id, "name", name, "type", typ)
	return variableRef(ir.ScopeTarget, t.CreateVariable(id, name, typ))
}

func variableRef(scope ir.Scope, v *blocks.Variable) *ir.Variable {
	return &ir.Variable{Scope: scope, ID: v.ID, Name: v.Name, IsCloud: v.IsCloud}
}

// =============================================================================
// Procedures
// =============================================================================

// ProcedureCall resolves a procedures_call block into the operands of a
// call node: its signature, variant and arguments. It reports false when
// the procedure has no parameters record or no definition, in which case
// the call does nothing.
//
// The call records a dependency on the variant. A non-warp script calling
// its own signature is recursive and must suspend.
func (b *ScriptBuilder) ProcedureCall(blk *blocks.Block) (ir.Args, bool) {
	code := blk.ProcCode()
	params, ok := b.container.ProcedureParams(code)
	if !ok {
		return nil, false
	}
	def := b.Block(b.container.ProcedureDefinition(code))
	if def == nil {
		return nil, false
	}

	isWarp := b.script.IsWarp
	if !isWarp {
		if protoID, ok := def.Input(blocks.InputCustomBlock); ok {
			if proto := b.Block(protoID); proto != nil && proto.Mutation != nil {
				isWarp = proto.Mutation.Warp
			}
		}
	}

	variant := ir.Variant(code, isWarp)
	b.script.DependsOn(variant)
	if !b.script.IsWarp && code == b.script.ProcedureCode {
		b.script.Yields = true
	}

	args := make([]*ir.Input, len(params.IDs))
	for i, id := range params.IDs {
		if _, ok := blk.Input(id); ok {
			args[i] = b.DescendInputOf(blk, id, true)
		} else {
			args[i] = b.Constant(params.Defaults[i], true)
		}
	}
	return ir.Args{
		codegen.ProcedureCode:      code,
		codegen.ProcedureVariant:   variant,
		codegen.ProcedureArguments: args,
	}, true
}

// ArgumentIndex returns the position of the parameter called name, or -1
// outside a procedure or when no parameter has that name. When several
// parameters share a name the last one wins.
func (b *ScriptBuilder) ArgumentIndex(name string) int {
	if !b.script.IsProcedure {
		return -1
	}
	return lastIndexOf(b.script.Arguments, name)
}

func lastIndexOf(names []string, name string) int {
	for i := len(names) - 1; i >= 0; i-- {
		if names[i] == name {
			return i
		}
	}
	return -1
}

// =============================================================================
// Compatibility bridge
// =============================================================================

func (b *ScriptBuilder) compatOperands(blk *blocks.Block) ir.Args {
	inputs := make(map[string]*ir.Input)
	for _, name := range blk.InputNames() {
		if strings.HasPrefix(name, substackPrefix) {
			continue
		}
		inputs[name] = b.DescendInputOf(blk, name, true)
	}
	fields := make(map[string]string, len(blk.Fields))
	for name, f := range blk.Fields {
		fields[name] = f.Value
	}
	return ir.Args{
		codegen.CompatOpcode: blk.Opcode,
		codegen.CompatID:     blk.ID,
		codegen.CompatInputs: inputs,
		codegen.CompatFields: fields,
	}
}

// CompatInput builds an expression evaluated by calling blk's primitive
// through the bridge.
func (b *ScriptBuilder) CompatInput(blk *blocks.Block) *ir.Input {
	b.script.Yields = true
	return ir.NewInput(ir.InputCompat, ir.TypeAny, b.compatOperands(blk), true)
}

// CompatStack builds a statement run by calling blk's primitive through
// the bridge. Conditionals and loops carry their branches, numbered from
// 1.
func (b *ScriptBuilder) CompatStack(blk *blocks.Block) *ir.StackBlock {
	args := b.compatOperands(blk)
	shape := blocks.ShapeCommand
	ext, ok := b.reg.Extension(blk.Opcode)
	if ok {
		shape = ext.Shape
	}
	args[codegen.CompatBlockType] = shape

	substacks := make(map[int]*ir.Stack)
	if shape == blocks.ShapeConditional || shape == blocks.ShapeLoop {
		for i := range ext.BranchCount {
			name := substackPrefix
			if i > 0 {
				name += strconv.Itoa(i + 1)
			}
			substacks[i+1] = b.DescendSubstack(blk, name)
		}
	}
	args[codegen.CompatSubstacks] = substacks
	b.script.Yields = true
	return ir.NewStackBlock(ir.StackCompat, args, true)
}

// =============================================================================
// Scripts
// =============================================================================

// walkHat builds a hat script. Outside a click in the editor, an edge
// activated hat checks its predicate for a rising edge and a hat with a
// primitive checks it as a guard, before the body runs.
func (b *ScriptBuilder) walkHat(hat *blocks.Block, edgeActivated bool) *ir.Stack {
	_, hasPrimitive := b.reg.Primitive(hat.Opcode)
	if b.stackClick {
		if !hasPrimitive {
			return b.WalkStack(hat.Next)
		}
		head := b.CompatStack(hat)
		body := b.WalkStack(hat.Next)
		return &ir.Stack{Blocks: append([]*ir.StackBlock{head}, body.Blocks...)}
	}

	var guard *ir.StackBlock
	switch {
	case edgeActivated:
		guard = ir.NewStackBlock(ir.StackHatEdge, ir.Args{
			"id":        hat.ID,
			"condition": b.CompatInput(hat).ToType(ir.TypeBoolean),
		}, false)
	case hasPrimitive:
		guard = ir.NewStackBlock(ir.StackHatPredicate, ir.Args{
			"condition": b.CompatInput(hat).ToType(ir.TypeBoolean),
		}, false)
	default:
		return b.WalkStack(hat.Next)
	}
	b.script.Yields = true
	b.script.ExecutableHat = true
	body := b.WalkStack(hat.Next)
	return &ir.Stack{Blocks: append([]*ir.StackBlock{guard}, body.Blocks...)}
}

// Generate builds the script starting at topBlockID. A procedure whose
// definition is missing builds as an empty procedure.
func (b *ScriptBuilder) Generate(topBlockID string) (script *ir.Script, err error) {
	defer func() {
		if r := recover(); r != nil {
			bo, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			bo.err.BlockID = topBlockID
			bo.err.Variant = b.script.ProcedureVariant
			script, err = nil, bo.err
		}
	}()

	b.script.TopBlockID = topBlockID
	top := b.Block(topBlockID)
	if top == nil {
		if b.script.IsProcedure {
			return b.script, nil
		}
		b.Fail(ErrCodeTopBlock, "Cannot find top block")
	}

	if top.Comment != "" {
		d := ParseDirectives(b.target.Comments[top.Comment])
		if d.NoCompile {
			b.Fail(ErrCodeDisabled, "Script explicitly disables compilation")
		}
		if d.Stuck {
			b.script.WarpTimer = true
		}
	}

	if info, ok := b.reg.Hat(top.Opcode); ok {
		b.script.Stack = b.walkHat(top, info.EdgeActivated)
		return b.script, nil
	}

	entry := topBlockID
	if top.Opcode == blocks.OpcodeProcedureDefinition {
		entry = top.Next
	}
	if entry != "" {
		b.script.Stack = b.WalkStack(entry)
	}
	return b.script, nil
}
