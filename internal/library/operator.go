package library

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Operator IR opcodes. Arithmetic and join are the foldable ones declared
// by codegen.
const (
	OpAdd      = codegen.OpAdd
	OpSubtract = codegen.OpSubtract
	OpMultiply = codegen.OpMultiply
	OpDivide   = codegen.OpDivide
	OpExponent = codegen.OpExponent
	OpJoin     = codegen.OpJoin

	OpMod          ir.InputOpcode = "operator.mod"
	OpMin          ir.InputOpcode = "operator.min"
	OpMax          ir.InputOpcode = "operator.max"
	OpAnd          ir.InputOpcode = "operator.and"
	OpOr           ir.InputOpcode = "operator.or"
	OpXor          ir.InputOpcode = "operator.xor"
	OpNot          ir.InputOpcode = "operator.not"
	OpEquals       ir.InputOpcode = "operator.equals"
	OpGreater      ir.InputOpcode = "operator.gt"
	OpGreaterEqual ir.InputOpcode = "operator.gt_equals"
	OpLess         ir.InputOpcode = "operator.lt"
	OpLessEqual    ir.InputOpcode = "operator.lt_equals"
	OpContains     ir.InputOpcode = "operator.contains"
	OpLength       ir.InputOpcode = "operator.length"
	OpLetterOf     ir.InputOpcode = "operator.letter_of"
	OpRound        ir.InputOpcode = "operator.round"
	OpRandom       ir.InputOpcode = "operator.random"
)

// mathop functions, one IR opcode each.
const (
	OpMathAbs     ir.InputOpcode = "operator.mathop.abs"
	OpMathFloor   ir.InputOpcode = "operator.mathop.floor"
	OpMathCeiling ir.InputOpcode = "operator.mathop.ceiling"
	OpMathSqrt    ir.InputOpcode = "operator.mathop.sqrt"
	OpMathSin     ir.InputOpcode = "operator.mathop.sin"
	OpMathCos     ir.InputOpcode = "operator.mathop.cos"
	OpMathTan     ir.InputOpcode = "operator.mathop.tan"
	OpMathAsin    ir.InputOpcode = "operator.mathop.asin"
	OpMathAcos    ir.InputOpcode = "operator.mathop.acos"
	OpMathAtan    ir.InputOpcode = "operator.mathop.atan"
	OpMathLn      ir.InputOpcode = "operator.mathop.log_e"
	OpMathLog     ir.InputOpcode = "operator.mathop.log_10"
	OpMathPowE    ir.InputOpcode = "operator.mathop.pow_e"
	OpMathPow10   ir.InputOpcode = "operator.mathop.pow_10"
)

type mathop struct {
	op   ir.InputOpcode
	typ  ir.Type
	src  string
	eval func(float64) float64
}

// roundTrig rounds a trigonometric result to ten decimal places so that
// sin 180 is exactly 0.
func roundTrig(f float64) float64 {
	return ir.Round(f*1e10) / 1e10
}

// mathops is keyed by the lowercased OPERATOR field.
var mathops = map[string]mathop{
	"abs":     {OpMathAbs, ir.TypeNumberPos | ir.TypeNumberZero, "Math.abs(%s)", math.Abs},
	"floor":   {OpMathFloor, ir.TypeNumber, "Math.floor(%s)", math.Floor},
	"ceiling": {OpMathCeiling, ir.TypeNumber, "Math.ceil(%s)", math.Ceil},
	"sqrt":    {OpMathSqrt, ir.TypeNumberOrNaN, "Math.sqrt(%s)", math.Sqrt},
	"sin": {OpMathSin, ir.TypeNumberOrNaN, "(Math.round(Math.sin((Math.PI * %s) / 180) * 1e10) / 1e10)", func(f float64) float64 {
		return roundTrig(math.Sin(math.Pi * f / 180))
	}},
	"cos": {OpMathCos, ir.TypeNumberOrNaN, "(Math.round(Math.cos((Math.PI * %s) / 180) * 1e10) / 1e10)", func(f float64) float64 {
		return roundTrig(math.Cos(math.Pi * f / 180))
	}},
	"tan": {OpMathTan, ir.TypeNumberOrNaN, "tan(%s)", nil},
	"asin": {OpMathAsin, ir.TypeNumberOrNaN, "((Math.asin(%s) * 180) / Math.PI)", func(f float64) float64 {
		return math.Asin(f) * 180 / math.Pi
	}},
	"acos": {OpMathAcos, ir.TypeNumberOrNaN, "((Math.acos(%s) * 180) / Math.PI)", func(f float64) float64 {
		return math.Acos(f) * 180 / math.Pi
	}},
	"atan": {OpMathAtan, ir.TypeNumber, "((Math.atan(%s) * 180) / Math.PI)", func(f float64) float64 {
		return math.Atan(f) * 180 / math.Pi
	}},
	"ln":    {OpMathLn, ir.TypeNumberOrNaN, "Math.log(%s)", math.Log},
	"log":   {OpMathLog, ir.TypeNumberOrNaN, "(Math.log(%s) / Math.LN10)", func(f float64) float64 { return math.Log(f) / math.Ln10 }},
	"e ^":   {OpMathPowE, ir.TypeNumber, "Math.exp(%s)", math.Exp},
	"10 ^":  {OpMathPow10, ir.TypeNumber, "(10 ** %s)", func(f float64) float64 { return ir.Pow(10, f) }},
}

func registerOperators(r *compiler.Registry) {
	arith := []struct {
		block string
		src   string
		fn    func(a, b float64) float64
	}{
		{"operator_add", "(%s + %s)", func(a, b float64) float64 { return a + b }},
		{"operator_subtract", "(%s - %s)", func(a, b float64) float64 { return a - b }},
		{"operator_multiply", "(%s * %s)", func(a, b float64) float64 { return a * b }},
		{"operator_divide", "(%s / %s)", func(a, b float64) float64 { return a / b }},
		{"operator_min", "Math.min(%s, %s)", math.Min},
		{"operator_max", "Math.max(%s, %s)", math.Max},
		{"operator_exponent", "(%s ** %s)", ir.Pow},
	}
	for _, a := range arith {
		r.RegisterInput(compiler.InputRegistration{
			Type:  ir.TypeNumberOrNaN,
			Build: buildNumberPair,
			Lower: lowerArithmetic(a.src, a.fn),
		}, a.block)
	}
	r.RegisterInput(compiler.InputRegistration{
		Type:  ir.TypeNumberOrNaN,
		Build: buildNumberPair,
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			l, rr := g.Input(in.Args.Input("left")), g.Input(in.Args.Input("right"))
			g.UseHelper(engine.HelperMod)
			a, b := l.Number(), rr.Number()
			return codegen.NumberExpr(fmt.Sprintf("mod(%s, %s)", l.Src, rr.Src), func(x *engine.Exec) float64 {
				return x.Helpers().Mod(a(x), b(x))
			})
		},
	}, "operator_mod")

	registerLogic(r)
	registerComparisons(r)
	registerText(r)

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeNumber,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{"value": b.DescendInputOf(site.Block, "NUM", false).ToType(ir.TypeNumber)})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			v := g.Input(in.Args.Input("value"))
			f := v.Number()
			return codegen.NumberExpr(fmt.Sprintf("Math.round(%s)", v.Src), func(x *engine.Exec) float64 {
				return ir.Round(f(x))
			})
		},
	}, "operator_round")

	r.RegisterInput(compiler.InputRegistration{
		Type:    ir.TypeNumberOrNaN,
		Dynamic: true,
		Build:   buildMathop,
	}, "operator_mathop")
	for _, m := range mathops {
		r.LowerInput(m.op, lowerMathop(m))
	}

	r.RegisterInput(compiler.InputRegistration{
		Type:    ir.TypeNumberOrNaN,
		Dynamic: true,
		Build:   buildRandom,
	}, "operator_random")
	r.LowerInput(OpRandom, lowerRandom)
}

func buildNumberPair(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
	return binary(b, site, "NUM1", "NUM2", ir.TypeNumber)
}

func lowerArithmetic(format string, fn func(a, b float64) float64) codegen.InputLowerer {
	return func(g *codegen.Generator, in *ir.Input) codegen.Expr {
		l, r := g.Input(in.Args.Input("left")), g.Input(in.Args.Input("right"))
		a, b := l.Number(), r.Number()
		return codegen.NumberExpr(fmt.Sprintf(format, l.Src, r.Src), func(x *engine.Exec) float64 {
			return fn(a(x), b(x))
		})
	}
}

// =============================================================================
// Logic and comparison
// =============================================================================

func registerLogic(r *compiler.Registry) {
	boolPair := func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
		return binary(b, site, "OPERAND1", "OPERAND2", ir.TypeBoolean)
	}
	r.RegisterInput(compiler.InputRegistration{
		Type:  ir.TypeBoolean,
		Build: boolPair,
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			l, r := g.Input(in.Args.Input("left")), g.Input(in.Args.Input("right"))
			a, b := l.Bool(), r.Bool()
			return codegen.BoolExpr(fmt.Sprintf("(%s && %s)", l.Src, r.Src), func(x *engine.Exec) bool {
				return a(x) && b(x)
			})
		},
	}, "operator_and")
	r.RegisterInput(compiler.InputRegistration{
		Type:  ir.TypeBoolean,
		Build: boolPair,
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			l, r := g.Input(in.Args.Input("left")), g.Input(in.Args.Input("right"))
			a, b := l.Bool(), r.Bool()
			return codegen.BoolExpr(fmt.Sprintf("(%s || %s)", l.Src, r.Src), func(x *engine.Exec) bool {
				return a(x) || b(x)
			})
		},
	}, "operator_or")
	r.RegisterInput(compiler.InputRegistration{
		Type:  ir.TypeBoolean,
		Build: boolPair,
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			l, r := g.Input(in.Args.Input("left")), g.Input(in.Args.Input("right"))
			a, b := l.Bool(), r.Bool()
			return codegen.BoolExpr(fmt.Sprintf("(!!(!%s ^ !%s))", l.Src, r.Src), func(x *engine.Exec) bool {
				return a(x) != b(x)
			})
		},
	}, "operator_xor")
	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeBoolean,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{"operand": b.DescendInputOf(site.Block, "OPERAND", false)})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			v := g.Input(in.Args.Input("operand").ToType(ir.TypeBoolean))
			f := v.Bool()
			return codegen.BoolExpr("!"+v.Src, func(x *engine.Exec) bool { return !f(x) })
		},
	}, "operator_not")
}

func registerComparisons(r *compiler.Registry) {
	comparisons := []struct {
		block string
		cmp   func(g *codegen.Generator, left, right *ir.Input) codegen.Expr
	}{
		{"operator_equals", (*codegen.Generator).Equals},
		{"operator_gt", (*codegen.Generator).GreaterThan},
		{"operator_gt_equals", (*codegen.Generator).GreaterOrEqual},
		{"operator_lt", (*codegen.Generator).LessThan},
		{"operator_lt_equals", (*codegen.Generator).LessOrEqual},
	}
	for _, c := range comparisons {
		cmp := c.cmp
		r.RegisterInput(compiler.InputRegistration{
			Type: ir.TypeBoolean,
			Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
				return binary(b, site, "OPERAND1", "OPERAND2", 0)
			},
			Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
				return cmp(g, in.Args.Input("left"), in.Args.Input("right"))
			},
		}, c.block)
	}
}

// =============================================================================
// Text
// =============================================================================

func registerText(r *compiler.Registry) {
	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeString,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return binary(b, site, "STRING1", "STRING2", ir.TypeString)
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			l, r := g.Input(in.Args.Input("left")), g.Input(in.Args.Input("right"))
			a, b := l.Text(), r.Text()
			return codegen.TextExpr(fmt.Sprintf("(%s + %s)", l.Src, r.Src), func(x *engine.Exec) string {
				return a(x) + b(x)
			})
		},
	}, "operator_join")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeBoolean,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{
				"string":   b.DescendInputOf(site.Block, "STRING1", false).ToType(ir.TypeString),
				"contains": b.DescendInputOf(site.Block, "STRING2", false).ToType(ir.TypeString),
			})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			s, sub := g.Input(in.Args.Input("string")), g.Input(in.Args.Input("contains"))
			a, b := s.Text(), sub.Text()
			return codegen.BoolExpr(
				fmt.Sprintf("(%s.toLowerCase().indexOf(%s.toLowerCase()) !== -1)", s.Src, sub.Src),
				func(x *engine.Exec) bool { return strings.Contains(ir.Lower(a(x)), ir.Lower(b(x))) },
			)
		},
	}, "operator_contains")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeNumberWhole,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{"string": b.DescendInputOf(site.Block, "STRING", false).ToType(ir.TypeString)})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			s := g.Input(in.Args.Input("string"))
			text := s.Text()
			return codegen.NumberExpr(s.Src+".length", func(x *engine.Exec) float64 {
				return float64(len(codeUnits(text(x))))
			})
		},
	}, "operator_length")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeString,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{
				"letter": b.DescendInputOf(site.Block, "LETTER", false),
				"string": b.DescendInputOf(site.Block, "STRING", false).ToType(ir.TypeString),
			})
		},
		Lower: lowerLetterOf,
	}, "operator_letter_of")
}

// lowerLetterOf reads one character, counted in UTF-16 code units from 1.
// "last" and "random" are understood; anything out of range is "".
func lowerLetterOf(g *codegen.Generator, in *ir.Input) codegen.Expr {
	letter := in.Args.Input("letter")
	s := g.Input(in.Args.Input("string"))
	text := s.Text()

	if letter.IsConstant(ir.String("last")) {
		return codegen.TextExpr(fmt.Sprintf(`((%s).at(-1) || "")`, s.Src), func(x *engine.Exec) string {
			units := codeUnits(text(x))
			return unitAt(units, len(units)-1)
		})
	}
	if letter.IsConstant(ir.String("random")) {
		return codegen.TextExpr(fmt.Sprintf("randomCharacter(%s)", s.Src), func(x *engine.Exec) string {
			units := codeUnits(text(x))
			return unitAt(units, int(x.Engine().Random()*float64(len(units))))
		})
	}

	if letter.IsAlwaysType(ir.TypeNumberInterpretable) {
		n := g.Input(letter.ToType(ir.TypeNumber))
		index := n.Number()
		return codegen.TextExpr(fmt.Sprintf(`(%s[%s - 1] || "")`, s.Src, n.Src), func(x *engine.Exec) string {
			return characterAt(text(x), index(x))
		})
	}
	l := g.Input(letter)
	eval := l.Eval
	return codegen.TextExpr(fmt.Sprintf(`(getCharacter(%s, %s) || "")`, s.Src, l.Src), func(x *engine.Exec) string {
		return characterAt(text(x), ir.ToNumber(eval(x)))
	})
}

// =============================================================================
// mathop and random
// =============================================================================

func buildMathop(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
	value := b.DescendInputOf(site.Block, "NUM", false).ToType(ir.TypeNumber)
	m, ok := mathops[ir.Lower(site.Block.FieldValue("OPERATOR"))]
	if !ok {
		return b.ConstantValue(ir.Number(0))
	}
	site.Input, site.Type = m.op, m.typ
	return site.Node(ir.Args{"value": value})
}

func lowerMathop(m mathop) codegen.InputLowerer {
	return func(g *codegen.Generator, in *ir.Input) codegen.Expr {
		v := g.Input(in.Args.Input("value"))
		f := v.Number()
		src := fmt.Sprintf(m.src, v.Src)
		if m.op == OpMathTan {
			g.UseHelper(engine.HelperTan)
			return codegen.NumberExpr(src, func(x *engine.Exec) float64 {
				return x.Helpers().Tan(f(x))
			})
		}
		eval := m.eval
		return codegen.NumberExpr(src, func(x *engine.Exec) float64 { return eval(f(x)) })
	}
}

// isIntLiteral reports whether random should pick whole numbers for v:
// numbers that are whole (or NaN), text without a decimal point, and
// booleans.
func isIntLiteral(v ir.Value) bool {
	switch x := v.(type) {
	case ir.Number:
		f := float64(x)
		return math.IsNaN(f) || f == math.Floor(f)
	case ir.String:
		return !strings.Contains(string(x), ".")
	case ir.Bool:
		return true
	}
	return false
}

// buildRandom specializes "pick random" when its bounds are known: equal
// bounds fold, whole bounds pick integers, other known bounds pick floats.
func buildRandom(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
	from := b.DescendInputOf(site.Block, "FROM", false)
	to := b.DescendInputOf(site.Block, "TO", false)
	site.Input = OpRandom

	fromValue, fromConst := from.Constant()
	toValue, toConst := to.Constant()
	switch {
	case fromConst && toConst:
		nFrom, nTo := ir.ToNumber(fromValue), ir.ToNumber(toValue)
		if nFrom == nTo {
			return b.ConstantValue(ir.Number(nFrom))
		}
		low, high := from, to
		if nFrom > nTo {
			low, high = to, from
		}
		useInts := isIntLiteral(fromValue) && isIntLiteral(toValue)
		if useInts {
			site.Type = ir.TypeNumber
		}
		return site.Node(ir.Args{
			"low":       low.ToType(ir.TypeNumber),
			"high":      high.ToType(ir.TypeNumber),
			"useInts":   useInts,
			"useFloats": !useInts,
		})
	case fromConst && !isIntLiteral(ir.Number(ir.ToNumber(fromValue))),
		toConst && !isIntLiteral(ir.Number(ir.ToNumber(toValue))):
		return site.Node(ir.Args{
			"low":       from.ToType(ir.TypeNumber),
			"high":      to.ToType(ir.TypeNumber),
			"useInts":   false,
			"useFloats": true,
		})
	}
	return site.Node(ir.Args{"low": from, "high": to, "useInts": false, "useFloats": false})
}

func lowerRandom(g *codegen.Generator, in *ir.Input) codegen.Expr {
	l, h := g.Input(in.Args.Input("low")), g.Input(in.Args.Input("high"))
	switch {
	case in.Args.Bool("useInts"):
		g.UseHelper(engine.HelperRandomInt)
		low, high := l.Number(), h.Number()
		return codegen.NumberExpr(fmt.Sprintf("randomInt(%s, %s)", l.Src, h.Src), func(x *engine.Exec) float64 {
			return x.Helpers().RandomInt(x, low(x), high(x))
		})
	case in.Args.Bool("useFloats"):
		g.UseHelper(engine.HelperRandomFloat)
		low, high := l.Number(), h.Number()
		return codegen.NumberExpr(fmt.Sprintf("randomFloat(%s, %s)", l.Src, h.Src), func(x *engine.Exec) float64 {
			return x.Helpers().RandomFloat(x, low(x), high(x))
		})
	}
	from, to := l.Eval, h.Eval
	return codegen.NumberExpr(
		fmt.Sprintf("runtime.ext_scratch3_operators._random(%s, %s)", l.Src, h.Src),
		func(x *engine.Exec) float64 { return pickRandom(x, from(x), to(x)) },
	)
}

// pickRandom is "pick random" over bounds of unknown type.
func pickRandom(x *engine.Exec, from, to ir.Value) float64 {
	nFrom, nTo := ir.ToNumber(from), ir.ToNumber(to)
	low, high := min(nFrom, nTo), max(nFrom, nTo)
	if low == high {
		return low
	}
	h := x.Helpers()
	if isIntLiteral(from) && isIntLiteral(to) {
		return h.RandomInt(x, low, high)
	}
	return h.RandomFloat(x, low, high)
}
