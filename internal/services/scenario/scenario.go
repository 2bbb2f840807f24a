// Package scenario loads and runs scripted agent sessions.
package scenario

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Step actions
const (
	ActionNavigate = "navigate"
	ActionFill     = "fill"
	ActionClick    = "click"
	ActionWaitURL  = "wait_url"
	ActionSleep    = "sleep"
	ActionInspect  = "inspect"
	ActionChaos    = "chaos"
	ActionReload   = "reload"
)

//go:embed default.yaml
var defaultScenario []byte

// Scenario is an ordered list of steps executed against one session
type Scenario struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps" validate:"required,min=1,dive"`
}

// Step is a single scripted action. Which fields apply depends on Action.
type Step struct {
	Action      string        `yaml:"action" validate:"required,oneof=navigate fill click wait_url sleep inspect chaos reload"`
	URL         string        `yaml:"url"`
	Selector    string        `yaml:"selector" validate:"required_if=Action fill"`
	Value       string        `yaml:"value"`
	Description string        `yaml:"description" validate:"required_if=Action click"`
	Pattern     string        `yaml:"pattern" validate:"required_if=Action wait_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Duration    time.Duration `yaml:"duration" validate:"min=0"`
	Mode        string        `yaml:"mode" validate:"required_if=Action chaos"`
}

// String renders the step for logs and report events
func (s Step) String() string {
	switch s.Action {
	case ActionNavigate:
		return fmt.Sprintf("navigate %s", s.URL)
	case ActionFill:
		return fmt.Sprintf("fill %s", s.Selector)
	case ActionClick:
		return fmt.Sprintf("click %s (%s)", s.Selector, s.Description)
	case ActionWaitURL:
		return fmt.Sprintf("wait_url %s", s.Pattern)
	case ActionSleep:
		return fmt.Sprintf("sleep %s", s.Duration)
	case ActionChaos:
		return fmt.Sprintf("chaos %s", s.Mode)
	}
	return s.Action
}

// Parse decodes and validates a YAML scenario
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := validator.New().Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Load reads a scenario file
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Default returns the built-in streaming demo scenario
func Default() *Scenario {
	s, err := Parse(defaultScenario)
	if err != nil {
		panic(fmt.Sprintf("built-in scenario is invalid: %v", err))
	}
	return s
}
