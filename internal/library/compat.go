package library

import (
	"github.com/roach88/blockjit/internal/compiler"
	"github.com/roach88/blockjit/internal/engine"
	"github.com/roach88/blockjit/internal/ir"
)

// Blocks with a primitive that always run through the compatibility
// bridge, even though the compiler could otherwise try them. Keep these
// lists alphabetical within each category.
var (
	CompatStacked = []string{
		"camera_movetoxy",
		"camera_changebyxy",
		"camera_setx",
		"camera_changex",
		"camera_sety",
		"camera_changey",

		"looks_changestretchby",
		"looks_hideallsprites",
		"looks_say",
		"looks_sayforsecs",
		"looks_setstretchto",
		"looks_switchbackdroptoandwait",
		"looks_think",
		"looks_thinkforsecs",
		"motion_align_scene",
		"motion_glidesecstoxy",
		"motion_glideto",
		"motion_goto",
		"motion_changebyxy",
		"motion_pointtowards",
		"motion_pointtowardsxy",
		"motion_scroll_right",
		"motion_scroll_up",
		"sensing_askandwait",
		"sensing_setdragmode",
		"sound_changeeffectby",
		"sound_changevolumeby",
		"sound_cleareffects",
		"sound_play",
		"sound_playuntildone",
		"sound_seteffectto",
		"sound_setvolumeto",
		"sound_stopallsounds",
	}

	CompatInputs = []string{
		"looks_effect",
		"motion_xscroll",
		"motion_yscroll",
		"sensing_loud",
		"sensing_loudness",
		"sensing_userid",
		"sound_volume",

		"operator_letter_of",
		"string_item_split",
		"string_convert",
		"string_index_of",
		"string_ternary",
	}
)

// Hat and primitive opcodes the default library implements.
const (
	HatWhenGreaterThan = "event_whengreaterthan"

	fieldGreaterThanMenu = "WHENGREATERTHANMENU"
	menuTimer            = "TIMER"
)

func registerCompat(r *compiler.Registry) {
	r.RegisterCompat(CompatStacked, CompatInputs)

	r.RegisterPrimitive("looks_say", say)
	r.RegisterPrimitive("looks_think", say)
	r.RegisterPrimitive("looks_sayforsecs", sayForSecs)
	r.RegisterPrimitive("looks_thinkforsecs", sayForSecs)
	r.RegisterPrimitive(HatWhenGreaterThan, whenGreaterThan)

	r.RegisterHat(engine.HatGreenFlag, engine.HatInfo{RestartExistingThreads: true})
	r.RegisterHat(engine.HatBroadcast, engine.HatInfo{RestartExistingThreads: true})
	r.RegisterHat(engine.HatStartAsClone, engine.HatInfo{})
	r.RegisterHat(HatWhenGreaterThan, engine.HatInfo{EdgeActivated: true})
}

func say(args map[string]ir.Value, util *engine.BlockUtility) any {
	util.Target().Speech = ir.ToString(args["MESSAGE"])
	return nil
}

// sayForSecs shows the message, then keeps re-running until SECS have
// passed and clears it.
func sayForSecs(args map[string]ir.Value, util *engine.BlockUtility) any {
	elapsed, started := util.TimerElapsed()
	if !started {
		util.Target().Speech = ir.ToString(args["MESSAGE"])
		util.StartStackTimer()
		util.Yield()
		return nil
	}
	if elapsed < ir.ToNumber(args["SECS"])*1000 {
		util.Yield()
		return nil
	}
	util.Target().Speech = ""
	return nil
}

// whenGreaterThan is the predicate of the "when (timer) > value" hat.
// Loudness has no source here, so only the timer can fire it.
func whenGreaterThan(args map[string]ir.Value, util *engine.BlockUtility) any {
	if ir.Lower(ir.ToString(args[fieldGreaterThanMenu])) != ir.Lower(menuTimer) {
		return false
	}
	return util.Engine().ProjectTimer() > ir.ToNumber(args["VALUE"])
}
