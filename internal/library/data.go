package library

import (
	"fmt"

	"github.com/roach88/blockjit/internal/blocks"
	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Data IR opcodes.
const (
	OpVariable      ir.InputOpcode = "data.variable"
	OpItemOfList    ir.InputOpcode = "data.itemoflist"
	OpLengthOfList  ir.InputOpcode = "data.lengthoflist"
	OpListContains  ir.InputOpcode = "data.listcontainsitem"
	OpItemNumOfList ir.InputOpcode = "data.itemnumoflist"
	OpListContents  ir.InputOpcode = "data.listcontents"

	fieldVariable = "VARIABLE"
	fieldList     = "LIST"
)

// variableInput reads a scalar variable.
func variableInput(v *ir.Variable) *ir.Input {
	return ir.NewInput(OpVariable, ir.TypeAny, ir.Args{"variable": v}, false)
}

func registerData(r *compiler.Registry) {
	scalar := func(b *compiler.ScriptBuilder, blk *blocks.Block) *ir.Variable {
		return b.Variable(blk, fieldVariable, blocks.VariableScalar)
	}
	list := func(b *compiler.ScriptBuilder, blk *blocks.Block) *ir.Variable {
		return b.Variable(blk, fieldList, blocks.VariableList)
	}

	// Statements.

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackVarSet,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{
				"variable": scalar(b, site.Block),
				"value":    b.DescendInputOf(site.Block, "VALUE", true),
			})
		},
	}, "data_setvariableto")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackVarSet,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			v := scalar(b, site.Block)
			sum := ir.NewInput(OpAdd, ir.TypeNumberOrNaN, ir.Args{
				"left":  variableInput(v).ToType(ir.TypeNumber),
				"right": b.DescendInputOf(site.Block, "VALUE", false).ToType(ir.TypeNumber),
			}, false)
			return site.Statement(ir.Args{"variable": v, "value": sum})
		},
	}, "data_changevariableby")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackVarShow,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{"variable": scalar(b, site.Block)})
		},
	}, "data_showvariable")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackVarHide,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{"variable": scalar(b, site.Block)})
		},
	}, "data_hidevariable")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackListAdd,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{
				"list": list(b, site.Block),
				"item": b.DescendInputOf(site.Block, "ITEM", true),
			})
		},
	}, "data_addtolist")

	r.RegisterStack(compiler.StackRegistration{
		Opcode:  ir.StackListDelete,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			index := b.DescendInputOf(site.Block, "INDEX", false)
			if index.IsConstant(ir.String("all")) {
				site.Stack = ir.StackListDeleteAll
				return site.Statement(ir.Args{"list": list(b, site.Block)})
			}
			return site.Statement(ir.Args{"list": list(b, site.Block), "index": index})
		},
	}, "data_deleteoflist")

	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackListDeleteAll,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(ir.Args{"list": list(b, site.Block)})
		},
	}, "data_deletealloflist")

	for block, op := range map[string]ir.StackOpcode{
		"data_insertatlist":      ir.StackListInsert,
		"data_replaceitemoflist": ir.StackListReplace,
	} {
		r.RegisterStack(compiler.StackRegistration{
			Opcode: op,
			Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
				return site.Statement(ir.Args{
					"list":  list(b, site.Block),
					"index": b.DescendInputOf(site.Block, "INDEX", false),
					"item":  b.DescendInputOf(site.Block, "ITEM", true),
				})
			},
		}, block)
	}

	for block, op := range map[string]ir.StackOpcode{
		"data_showlist": ir.StackListShow,
		"data_hidelist": ir.StackListHide,
	} {
		r.RegisterStack(compiler.StackRegistration{
			Opcode: op,
			Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
				return site.Statement(ir.Args{"list": list(b, site.Block)})
			},
		}, block)
	}

	// Reporters.

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeAny,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{"variable": scalar(b, site.Block)})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			ref := g.ReferenceVariable(in.Args.Variable("variable"))
			return codegen.Expr{
				Src:  ref.Name + ".value",
				Eval: func(x *engine.Exec) ir.Value { return ref.Get(x).Value },
			}
		},
	}, "data_variable")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeAny,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{
				"list":  list(b, site.Block),
				"index": b.DescendInputOf(site.Block, "INDEX", false),
			})
		},
		Lower: lowerItemOfList,
	}, "data_itemoflist")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeNumberWhole,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{"list": list(b, site.Block)})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			ref := g.ReferenceVariable(in.Args.Variable("list"))
			return codegen.NumberExpr(ref.Name+".value.length", func(x *engine.Exec) float64 {
				return float64(len(ref.Get(x).List))
			})
		},
	}, "data_lengthoflist")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeBoolean,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{
				"list": list(b, site.Block),
				"item": b.DescendInputOf(site.Block, "ITEM", false),
			})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			ref := g.ReferenceVariable(in.Args.Variable("list"))
			item := g.Input(in.Args.Input("item"))
			g.UseHelper(engine.HelperListContains)
			eval := item.Eval
			return codegen.BoolExpr(fmt.Sprintf("listContains(%s, %s)", ref.Name, item.Src), func(x *engine.Exec) bool {
				return x.Helpers().ListContains(ref.Get(x), eval(x))
			})
		},
	}, "data_listcontainsitem")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeNumberWhole,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{
				"list": list(b, site.Block),
				"item": b.DescendInputOf(site.Block, "ITEM", false),
			})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			ref := g.ReferenceVariable(in.Args.Variable("list"))
			item := g.Input(in.Args.Input("item"))
			g.UseHelper(engine.HelperListIndexOf)
			eval := item.Eval
			return codegen.NumberExpr(fmt.Sprintf("listIndexOf(%s, %s)", ref.Name, item.Src), func(x *engine.Exec) float64 {
				return x.Helpers().ListIndexOf(ref.Get(x), eval(x))
			})
		},
	}, "data_itemnumoflist")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeString,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{"list": list(b, site.Block)})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			ref := g.ReferenceVariable(in.Args.Variable("list"))
			g.UseHelper(engine.HelperListContents)
			return codegen.TextExpr(fmt.Sprintf("listContents(%s)", ref.Name), func(x *engine.Exec) string {
				return x.Helpers().ListContents(ref.Get(x))
			})
		},
	}, "data_listcontents")
}

// lowerItemOfList reads one list item. A numeric index is read directly,
// a constant "last" reads the final item, and anything else goes through
// the listGet helper, which also understands "random".
func lowerItemOfList(g *codegen.Generator, in *ir.Input) codegen.Expr {
	ref := g.ReferenceVariable(in.Args.Variable("list"))
	index := in.Args.Input("index")

	if index.IsAlwaysType(ir.TypeNumberInterpretable | ir.TypeNumberNaN) {
		idx := g.Input(index.ToType(ir.TypeNumberIndex))
		n := idx.Number()
		return codegen.Expr{
			Src: fmt.Sprintf(`(%s.value[%s - 1] ?? "")`, ref.Name, idx.Src),
			Eval: func(x *engine.Exec) ir.Value {
				items := ref.Get(x).List
				i := n(x)
				if !(i >= 1 && i <= float64(len(items))) {
					return ir.String("")
				}
				return items[int(i)-1]
			},
		}
	}
	if index.IsConstant(ir.String("last")) {
		return codegen.Expr{
			Src: fmt.Sprintf(`(%[1]s.value[%[1]s.value.length - 1] ?? "")`, ref.Name),
			Eval: func(x *engine.Exec) ir.Value {
				items := ref.Get(x).List
				if len(items) == 0 {
					return ir.String("")
				}
				return items[len(items)-1]
			},
		}
	}

	idx := g.Input(index)
	g.UseHelper(engine.HelperListGet)
	eval := idx.Eval
	return codegen.Expr{
		Src: fmt.Sprintf("listGet(%s.value, %s)", ref.Name, idx.Src),
		Eval: func(x *engine.Exec) ir.Value {
			return x.Helpers().ListGet(x, ref.Get(x).List, eval(x))
		},
	}
}
