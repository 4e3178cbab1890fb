package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	got := Default()
	assert.Equal(t, Options{
		FrameRate:     30,
		WorkFraction:  0.75,
		StuckInterval: 100,
		StuckBudgetMS: 500,
		MaxClones:     300,
	}, got)
}

func TestParse_OverridesDefaults(t *testing.T) {
	got, err := Parse([]byte("frame_rate: 60\nturbo: true\nwarp_timer: true\nrand_seed: 7\n"), "opts.cue")
	require.NoError(t, err)

	assert.Equal(t, 60, got.FrameRate)
	assert.True(t, got.Turbo)
	assert.True(t, got.WarpTimer)
	assert.Equal(t, uint64(7), got.RandSeed)
	assert.Equal(t, 500, got.StuckBudgetMS, "untouched fields keep their defaults")
	assert.True(t, got.CompilerOptions().WarpTimer)
	assert.Len(t, got.EngineOptions(), 6)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{name: "out of range", src: "frame_rate: 0\n", field: "frame_rate"},
		{name: "wrong type", src: "turbo: \"yes\"\n", field: "turbo"},
		{name: "fraction above one", src: "work_fraction: 1.5\n", field: "work_fraction"},
		{name: "unknown field", src: "framerate: 30\n", field: "framerate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "opts.cue")
			require.Error(t, err)
			assert.True(t, IsConfigError(err), "got %T: %v", err, err)

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte("frame_rate: {\n"), "broken.cue")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.cue")
	require.NoError(t, os.WriteFile(path, []byte("stuck_budget_ms: 250\n"), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, got.StuckBudgetMS)
	assert.Equal(t, 250*time.Millisecond, time.Duration(got.StuckBudgetMS)*time.Millisecond)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.False(t, IsConfigError(err))
}
