package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allHelpers = []string{
	HelperCompareEqual, HelperCompareGreaterThan, HelperCompareLessThan,
	HelperRandomInt, HelperRandomFloat, HelperTimer,
	HelperListGet, HelperListReplace, HelperListInsert, HelperListDelete,
	HelperListContains, HelperListIndexOf, HelperListContents,
	HelperColorToList, HelperMod, HelperTan, HelperLimitPrecision,
	HelperStartHats, HelperWaitThreads, HelperRetire, HelperIsStuck,
	HelperCallCompat,
}

func TestDefaultHelpers_BindsEveryName(t *testing.T) {
	h := DefaultHelpers()
	for _, name := range allHelpers {
		assert.True(t, h.Has(name), name)
	}
	assert.False(t, h.Has("eval"))
	assert.False(t, (*Helpers)(nil).Has(HelperMod))
}

func TestLoader_Load(t *testing.T) {
	l := NewLoader(DefaultHelpers())
	u, err := l.Load(&Fragment{
		Name:    "factory0",
		Yields:  true,
		Helpers: []string{HelperCompareEqual, HelperListGet},
		Body:    func(x *Exec) Flow { return FlowReturn },
		Source:  "return",
	})
	require.NoError(t, err)
	assert.Equal(t, "factory0", u.Name)
	assert.True(t, u.Yields)
	assert.Equal(t, []string{HelperCompareEqual, HelperListGet}, u.Helpers)
}

func TestLoader_RejectsUnboundHelpers(t *testing.T) {
	h := DefaultHelpers()
	h.Tan = nil
	l := NewLoader(h)

	_, err := l.Load(&Fragment{
		Name:    "fun0_spin",
		Helpers: []string{HelperTan, "mystery", HelperMod},
		Body:    func(x *Exec) Flow { return FlowNext },
		Source:  "tan(mystery)",
	})
	require.Error(t, err)
	assert.True(t, IsLoadError(err))

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "fun0_spin", le.Unit)
	assert.Equal(t, []string{HelperTan, "mystery"}, le.Missing)
	assert.Equal(t, "tan(mystery)", le.Source)
	assert.Contains(t, err.Error(), "unbound helpers tan, mystery")
}

func TestLoader_RejectsMissingBody(t *testing.T) {
	_, err := NewLoader(DefaultHelpers()).Load(&Fragment{Name: "factory1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no body")
}

func TestSetup_RunsOncePerThread(t *testing.T) {
	r := newRig(t)
	runs := 0
	u, err := r.engine.Loader().Load(&Fragment{
		Name:  "factory2",
		Setup: []SetupFunc{func(th *Thread) any { runs++; return th.ID }},
		Body:  func(x *Exec) Flow { return FlowReturn },
	})
	require.NoError(t, err)

	th := newThread(r.engine, "t1", r.cat, "top", false)
	x1 := th.newExec(u, nil)
	x2 := th.newExec(u, nil)
	assert.Equal(t, "t1", x1.Slot(0))
	assert.Equal(t, "t1", x2.Slot(0))
	assert.Equal(t, 1, runs)

	other := newThread(r.engine, "t2", r.cat, "top", false)
	assert.Equal(t, "t2", other.newExec(u, nil).Slot(0))
	assert.Equal(t, 2, runs)
}
