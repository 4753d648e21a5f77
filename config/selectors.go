package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

//go:embed selectors.yaml
var defaultSelectors []byte

// Step modes understood by the form orchestrator.
const (
	ModeText   = "text"
	ModeSelect = "select"
	ModeClick  = "click"
	ModeSwitch = "switch"
)

var knownTransforms = map[string]bool{
	"":                true,
	"category":        true,
	"iptu_period":     true,
	"integer":         true,
	"address_display": true,
}

// SelectorPlan is the data-driven description of the target form. Every
// control is an ordered list of locator candidates; the first one that
// resolves wins. New site versions only need candidates appended here.
type SelectorPlan struct {
	Cookies       []string        `yaml:"cookies"`
	Login         LoginSelectors  `yaml:"login"`
	CreateListing []string        `yaml:"create_listing"`
	Steps         []Step          `yaml:"steps"`
	Photos        PhotoSelectors  `yaml:"photos"`
	Footer        FooterSelectors `yaml:"footer"`

	// Texts of controls that must never be clicked by automation.
	ForbiddenClicks []string `yaml:"forbidden_clicks"`
}

// LoginSelectors locate the login form controls.
type LoginSelectors struct {
	Email    []string `yaml:"email"`
	Password []string `yaml:"password"`
	Submit   []string `yaml:"submit"`
}

// PhotoSelectors locate the photo section, the buttons that open the file
// picker, the native file inputs and the rendered previews.
type PhotoSelectors struct {
	Section  []string `yaml:"section"`
	Buttons  []string `yaml:"buttons"`
	Inputs   []string `yaml:"inputs"`
	Previews []string `yaml:"previews"`
}

// FooterSelectors locate the form footer and the action buttons expected in
// it once the form is ready.
type FooterSelectors struct {
	Containers []string `yaml:"containers"`
	Buttons    []string `yaml:"buttons"`
}

// Step is one form control to populate. The value comes either from the job
// (Key) or is a constant (Value). Selectors may contain a {value} placeholder
// that is replaced with the transformed value before resolution.
type Step struct {
	Name      string        `yaml:"name"`
	Mode      string        `yaml:"mode"`
	Key       string        `yaml:"key"`
	Value     string        `yaml:"value"`
	Transform string        `yaml:"transform"`
	MaxLen    int           `yaml:"max_len"`
	When      *Condition    `yaml:"when"`
	Settle    time.Duration `yaml:"settle"`
	Selectors []string      `yaml:"selectors"`
}

// Condition gates a step on another job field.
type Condition struct {
	Key     string `yaml:"key"`
	Equals  string `yaml:"equals"`
	Present bool   `yaml:"present"`
}

// LoadSelectorPlan parses the plan at path, or the built-in plan when path is
// empty.
func LoadSelectorPlan(path string) (*SelectorPlan, error) {
	data := defaultSelectors
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("selectors: read %q: %w", path, err)
		}
		data = b
	}
	return ParseSelectorPlan(data)
}

// ParseSelectorPlan decodes and validates a YAML selector plan.
func ParseSelectorPlan(data []byte) (*SelectorPlan, error) {
	var plan SelectorPlan
	if err := yaml.UnmarshalStrict(data, &plan); err != nil {
		return nil, fmt.Errorf("selectors: parse: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks that every step can be executed.
func (p *SelectorPlan) Validate() error {
	if len(p.Login.Email) == 0 || len(p.Login.Password) == 0 || len(p.Login.Submit) == 0 {
		return fmt.Errorf("selectors: login candidates are required")
	}
	if len(p.CreateListing) == 0 {
		return fmt.Errorf("selectors: create_listing candidates are required")
	}
	for i, s := range p.Steps {
		if s.Name == "" {
			return fmt.Errorf("selectors: step %d has no name", i)
		}
		if len(s.Selectors) == 0 {
			return fmt.Errorf("selectors: step %q has no selectors", s.Name)
		}
		switch s.Mode {
		case ModeText, ModeSelect:
			if s.Key == "" && s.Value == "" {
				return fmt.Errorf("selectors: step %q needs a key or a value", s.Name)
			}
		case ModeClick, ModeSwitch:
		default:
			return fmt.Errorf("selectors: step %q has unknown mode %q", s.Name, s.Mode)
		}
		if !knownTransforms[s.Transform] {
			return fmt.Errorf("selectors: step %q has unknown transform %q", s.Name, s.Transform)
		}
		if s.When != nil && s.When.Key == "" {
			return fmt.Errorf("selectors: step %q has a condition without key", s.Name)
		}
	}
	return nil
}
