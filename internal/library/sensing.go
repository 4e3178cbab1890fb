package library

import (
	"time"

	"github.com/roach88/blockjit/internal/codegen"
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Sensing IR opcodes.
const (
	OpTimer         ir.InputOpcode = "sensing.timer"
	OpDaysSince2000 ir.InputOpcode = "sensing.dayssince2000"
)

type clockReading struct {
	op   ir.InputOpcode
	typ  ir.Type
	src  string
	read func(t time.Time) float64
}

// currentTime is keyed by the lowercased CURRENTMENU field.
var currentTime = map[string]clockReading{
	"year": {"sensing.currenttime.year", ir.TypeNumberPosReal | ir.TypeNumberZero, "(new Date().getFullYear())",
		func(t time.Time) float64 { return float64(t.Year()) }},
	"month": {"sensing.currenttime.month", ir.TypeNumberPosReal, "(new Date().getMonth() + 1)",
		func(t time.Time) float64 { return float64(t.Month()) }},
	"date": {"sensing.currenttime.date", ir.TypeNumberPosReal, "(new Date().getDate())",
		func(t time.Time) float64 { return float64(t.Day()) }},
	"dayofweek": {"sensing.currenttime.weekday", ir.TypeNumberPosReal, "(new Date().getDay() + 1)",
		func(t time.Time) float64 { return float64(t.Weekday()) + 1 }},
	"hour": {"sensing.currenttime.hour", ir.TypeNumberPosReal | ir.TypeNumberZero, "(new Date().getHours())",
		func(t time.Time) float64 { return float64(t.Hour()) }},
	"minute": {"sensing.currenttime.minute", ir.TypeNumberPosReal | ir.TypeNumberZero, "(new Date().getMinutes())",
		func(t time.Time) float64 { return float64(t.Minute()) }},
	"second": {"sensing.currenttime.second", ir.TypeNumberPosReal | ir.TypeNumberZero, "(new Date().getSeconds())",
		func(t time.Time) float64 { return float64(t.Second()) }},
	"millisecond": {"sensing.currenttime.millisecond", ir.TypeNumberPosReal | ir.TypeNumberZero, "(new Date().getMilliseconds())",
		func(t time.Time) float64 { return float64(t.Nanosecond() / int(time.Millisecond)) }},
}

func registerSensing(r *compiler.Registry) {
	r.RegisterStack(compiler.StackRegistration{
		Opcode: ir.StackTimerReset,
		Build: func(_ *compiler.ScriptBuilder, site compiler.Site) *ir.StackBlock {
			return site.Statement(nil)
		},
	}, "sensing_resettimer")

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeNumberPosReal | ir.TypeNumberZero,
		Build: func(_ *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(nil)
		},
		Lower: func(_ *codegen.Generator, _ *ir.Input) codegen.Expr {
			return codegen.NumberExpr("runtime.ioDevices.clock.projectTimer()", func(x *engine.Exec) float64 {
				return x.Engine().ProjectTimer()
			})
		},
	}, "sensing_timer")

	r.RegisterInput(compiler.InputRegistration{
		Type:    ir.TypeNumberPosReal | ir.TypeNumberZero,
		Dynamic: true,
		Build: func(b *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			c, ok := currentTime[ir.Lower(site.Block.FieldValue("CURRENTMENU"))]
			if !ok {
				return b.ConstantValue(ir.Number(0))
			}
			site.Input, site.Type = c.op, c.typ
			return site.Node(nil)
		},
	}, "sensing_current")
	for _, c := range currentTime {
		read := c.read
		src := c.src
		r.LowerInput(c.op, func(_ *codegen.Generator, _ *ir.Input) codegen.Expr {
			return codegen.NumberExpr(src, func(x *engine.Exec) float64 {
				return read(x.Engine().Now())
			})
		})
	}

	r.RegisterInput(compiler.InputRegistration{
		Type: ir.TypeNumber,
		Build: func(_ *compiler.ScriptBuilder, site compiler.Site) *ir.Input {
			return site.Node(nil)
		},
		Lower: func(_ *codegen.Generator, _ *ir.Input) codegen.Expr {
			return codegen.NumberExpr("daysSince2000()", func(x *engine.Exec) float64 {
				return daysSince2000(x.Engine().Now())
			})
		},
	}, "sensing_dayssince2000")
}

// daysSince2000 counts days, with a fraction, since the start of 2000 in
// UTC.
func daysSince2000(now time.Time) float64 {
	start := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	return float64(now.Sub(start)) / float64(24*time.Hour)
}
