package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()

	assert.Equal(t, "hackflix-demo", s.Name)
	require.NotEmpty(t, s.Steps)

	var clicks, inspects, chaos int
	for _, step := range s.Steps {
		switch step.Action {
		case ActionClick:
			clicks++
		case ActionInspect:
			inspects++
		case ActionChaos:
			chaos++
		}
	}
	assert.Equal(t, 2, clicks)
	assert.Equal(t, 4, inspects)
	assert.Equal(t, 4, chaos)

	// The login click uses a selector that does not exist on the page
	assert.Equal(t, "#msg-btn-login", s.Steps[2].Selector)
	assert.Equal(t, "Sign In", s.Steps[2].Description)
	assert.Equal(t, 5*time.Second, s.Steps[3].Timeout)
}

func TestParse(t *testing.T) {
	s, err := Parse([]byte(`
name: smoke
steps:
  - action: navigate
    url: /login
  - action: sleep
    duration: 250ms
  - action: inspect
`))
	require.NoError(t, err)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, "/login", s.Steps[0].URL)
	assert.Equal(t, 250*time.Millisecond, s.Steps[1].Duration)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "name: [unterminated"},
		{"missing name", "steps:\n  - action: inspect\n"},
		{"no steps", "name: empty\nsteps: []\n"},
		{"unknown action", "name: x\nsteps:\n  - action: dance\n"},
		{"click without description", "name: x\nsteps:\n  - action: click\n    selector: '#go'\n"},
		{"fill without selector", "name: x\nsteps:\n  - action: fill\n    value: hi\n"},
		{"wait_url without pattern", "name: x\nsteps:\n  - action: wait_url\n"},
		{"chaos without mode", "name: x\nsteps:\n  - action: chaos\n"},
		{"negative sleep", "name: x\nsteps:\n  - action: sleep\n    duration: -1s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nsteps:\n  - action: reload\n"), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file", s.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "click #go (Go)", Step{Action: ActionClick, Selector: "#go", Description: "Go"}.String())
	assert.Equal(t, "sleep 2s", Step{Action: ActionSleep, Duration: 2 * time.Second}.String())
	assert.Equal(t, "inspect", Step{Action: ActionInspect}.String())
}
