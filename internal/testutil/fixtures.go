package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/blockjit/internal/blocks"
)

// Project decodes an inline YAML project document, failing the test on
// error.
func Project(t testing.TB, doc string) *blocks.Project {
	t.Helper()
	p, err := blocks.DecodeProject(strings.NewReader(doc))
	require.NoError(t, err, "decode project fixture")
	return p
}

// Sprite returns the original target called name.
func Sprite(t testing.TB, p *blocks.Project, name string) *blocks.Target {
	t.Helper()
	target, ok := p.TargetByName(name)
	require.True(t, ok, "sprite %q not in fixture", name)
	return target
}

// Variable returns the variable called name on target, searching by name
// across every variable type.
func Variable(t testing.TB, target *blocks.Target, name string) *blocks.Variable {
	t.Helper()
	for _, v := range target.Variables {
		if v.Name == name {
			return v
		}
	}
	require.Failf(t, "variable not found", "%s has no variable %q", target.Name, name)
	return nil
}
