package library

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// String extension IR opcodes.
const (
	OpStringExactly ir.InputOpcode = "string.exactly"
	OpStringIs      ir.InputOpcode = "string.is"
	OpStringRepeat  ir.InputOpcode = "string.repeat"
	OpStringReplace ir.InputOpcode = "string.replace"
	OpStringReverse ir.InputOpcode = "string.reverse"
)

func registerStrings(r *compiler.Registry) {
	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeBoolean,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return binary(b, site, "STRING1", "STRING2", ir.TypeString)
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			l, r := g.Input(in.Args.Input("left")), g.Input(in.Args.Input("right"))
			a, b := l.Text(), r.Text()
			return codegen.BoolExpr(fmt.Sprintf("(%s === %s)", l.Src, r.Src), func(x *engine.Exec) bool {
				return a(x) == b(x)
			})
		},
	}, "string_exactly")

	// string_is checks the case of the text: CONVERT is "uppercase" or
	// "lowercase".
	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeBoolean,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{
				"left":  b.DescendInputOf(site.Block, "STRING", false).ToType(ir.TypeString),
				"right": ir.Lower(site.Block.FieldValue("CONVERT")),
			})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			s := g.Input(in.Args.Input("left"))
			text := s.Text()
			convert := in.Args.String("right")
			return codegen.BoolExpr(fmt.Sprintf("isCase(%s, %s)", s.Src, codegen.StringLiteral(convert)), func(x *engine.Exec) bool {
				v := text(x)
				if convert == "uppercase" {
					return cases.Upper(language.Und).String(v) == v
				}
				return ir.Lower(v) == v
			})
		},
	}, "string_is")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeString,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{
				"str": b.DescendInputOf(site.Block, "STRING", false).ToType(ir.TypeString),
				"num": b.DescendInputOf(site.Block, "NUMBER", false).ToType(ir.TypeNumber),
			})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			s, n := g.Input(in.Args.Input("str")), g.Input(in.Args.Input("num"))
			text, count := s.Text(), n.Number()
			return codegen.TextExpr(fmt.Sprintf("repeatString(%s, %s)", s.Src, n.Src), func(x *engine.Exec) string {
				return repeatText(text(x), count(x))
			})
		},
	}, "string_repeat")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeString,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{
				"left":  b.DescendInputOf(site.Block, "REPLACE", false).ToType(ir.TypeString),
				"right": b.DescendInputOf(site.Block, "WITH", false).ToType(ir.TypeString),
				"str":   b.DescendInputOf(site.Block, "STRING", false).ToType(ir.TypeString),
			})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			old, repl := g.Input(in.Args.Input("left")), g.Input(in.Args.Input("right"))
			s := g.Input(in.Args.Input("str"))
			o, w, text := old.Text(), repl.Text(), s.Text()
			return codegen.TextExpr(fmt.Sprintf("%s.replaceAll(%s, %s)", s.Src, old.Src, repl.Src), func(x *engine.Exec) string {
				return strings.ReplaceAll(text(x), o(x), w(x))
			})
		},
	}, "string_replace")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeString,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(ir.Args{"str": b.DescendInputOf(site.Block, "STRING", false).ToType(ir.TypeString)})
		},
		Lower: func(g *codegen.Generator, in *ir.Input) codegen.Expr {
			s := g.Input(in.Args.Input("str"))
			text := s.Text()
			return codegen.TextExpr(fmt.Sprintf(`%s.split("").reverse().join("")`, s.Src), func(x *engine.Exec) string {
				runes := []rune(text(x))
				for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
					runes[i], runes[j] = runes[j], runes[i]
				}
				return string(runes)
			})
		},
	}, "string_reverse")
}

// repeatText repeats s n times. n is truncated and capped at 1<<20;
// anything below one gives "".
func repeatText(s string, n float64) string {
	if n < 1 || s == "" {
		return ""
	}
	if n > 1<<20 {
		n = 1 << 20
	}
	return strings.Repeat(s, int(n))
}

// codeUnits splits s into UTF-16 code units, the unit text blocks count
// and index in.
func codeUnits(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// unitAt returns the code unit at i as a string, or "" when i is out of
// range. A lone surrogate half decodes to U+FFFD.
func unitAt(units []uint16, i int) string {
	if i < 0 || i >= len(units) {
		return ""
	}
	return string(utf16.Decode(units[i : i+1]))
}

// characterAt is "letter n of s" for a numeric n counted from 1.
// Fractional positions truncate toward the start of the text.
func characterAt(s string, n float64) string {
	units := codeUnits(s)
	idx := n - 1
	if math.IsNaN(idx) || idx < 0 || idx >= float64(len(units)) {
		return ""
	}
	return unitAt(units, int(idx))
}
