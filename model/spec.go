package model

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

var ErrNoSource = errors.New("scenario has no program source")

// Scenario is a program plus the properties its trace must satisfy.
type Scenario struct {
	Scenario   ScenarioDetails         `toml:"scenario"`
	Expect     Expectations            `toml:"expect"`
	Properties map[string]PropertySpec `toml:"properties,omitempty"`

	// Name defaults to the scenario file's base name.
	Name string `toml:"-"`
}

type ScenarioDetails struct {
	File    string `toml:"file,omitempty"`
	Source  string `toml:"source,omitempty"`
	Builtin *bool  `toml:"builtin,omitempty"`
}

type Expectations struct {
	Output   []string `toml:"output,omitempty"`
	MinSteps int      `toml:"min_steps,omitempty"`
}

type PropertySpec struct {
	Always           string `toml:"always,omitempty"`
	Eventually       string `toml:"eventually,omitempty"`
	EventuallyAlways string `toml:"eventually_always,omitempty"`
	AlwaysEventually string `toml:"always_eventually,omitempty"`
}

func parseScenario(f io.Reader) (*Scenario, error) {
	var out Scenario
	_, err := toml.NewDecoder(f).Decode(&out)
	return &out, err
}

func LoadScenarioFromFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := parseScenario(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	base := filepath.Base(path)
	s.Name = strings.TrimSuffix(base, filepath.Ext(base))
	if s.Scenario.Source == "" && s.Scenario.File == "" {
		s.Scenario.File = s.Name + ".js"
	}
	if s.Scenario.File != "" {
		s.Scenario.File = filepath.Clean(filepath.Join(filepath.Dir(path), s.Scenario.File))
	}
	return s, nil
}

// LoadSource returns the program text, preferring an inline source.
func (s *Scenario) LoadSource() (string, error) {
	if s.Scenario.Source != "" {
		return s.Scenario.Source, nil
	}
	if s.Scenario.File == "" {
		return "", ErrNoSource
	}
	b, err := os.ReadFile(s.Scenario.File)
	if err != nil {
		return "", fmt.Errorf("reading program for scenario %s: %w", s.Name, err)
	}
	return string(b), nil
}

func (s *Scenario) builtinsEnabled() bool {
	return s.Scenario.Builtin == nil || *s.Scenario.Builtin
}

// BuildChecker compiles the scenario's properties.
func (s *Scenario) BuildChecker() (*Checker, error) {
	c := &Checker{Name: s.Name}
	if s.builtinsEnabled() {
		c.Properties = append(c.Properties, BuiltinProperties()...)
	}
	if s.Expect.Output != nil {
		c.Properties = append(c.Properties, ExpectOutput(s.Expect.Output))
	}
	if s.Expect.MinSteps > 0 {
		c.Properties = append(c.Properties, MinSteps(s.Expect.MinSteps))
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		props, err := s.Properties[name].compile(name)
		if err != nil {
			return nil, err
		}
		c.Properties = append(c.Properties, props...)
	}
	return c, nil
}

func (p PropertySpec) compile(name string) ([]Property, error) {
	var out []Property
	add := func(op Operator, src string) error {
		if src == "" {
			return nil
		}
		prop, err := NewExprProperty(name, op, src)
		if err != nil {
			return err
		}
		out = append(out, prop)
		return nil
	}
	for _, e := range []struct {
		op  Operator
		src string
	}{
		{Always, p.Always},
		{Eventually, p.Eventually},
		{EventuallyAlways, p.EventuallyAlways},
		{AlwaysEventually, p.AlwaysEventually},
	} {
		if err := add(e.op, e.src); err != nil {
			return nil, err
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("property %s: no operator given", name)
	}
	return out, nil
}

// FindScenarios expands directories into the .toml files beneath them. A
// config file found while walking a directory is not a scenario.
func FindScenarios(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".toml") || d.Name() == DefaultConfigFile {
				return nil
			}
			out = append(out, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
