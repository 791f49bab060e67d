package config

import "fmt"

// Validate checks the referential integrity of the model: every name in the
// envlist and every depends_on target must resolve to a defined environment,
// and the dependency relation must be acyclic.
func (m *Model) Validate() error {
	for _, name := range m.EnvList {
		if _, ok := m.Envs[name]; !ok {
			return fmt.Errorf("envlist references undefined environment %q", name)
		}
	}
	for _, name := range m.EnvOrder {
		env := m.Envs[name]
		for _, dep := range env.DependsOn {
			if _, ok := m.Envs[dep]; !ok {
				return fmt.Errorf("environment %q depends on undefined environment %q", name, dep)
			}
		}
	}
	return m.checkCycles()
}

// checkCycles walks the depends_on relation with a three-color DFS.
func (m *Model) checkCycles() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(m.Envs))

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case gray:
			return fmt.Errorf("dependency cycle involving environment %q", name)
		case black:
			return nil
		}
		color[name] = gray
		for _, dep := range m.Envs[name].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for _, name := range m.EnvOrder {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// SelectEnvs resolves the set of environments for a run: the requested names
// (or the envlist when none are requested) plus their transitive
// dependencies, ordered so dependencies come first. Declaration order breaks
// ties.
func (m *Model) SelectEnvs(requested []string) ([]*Environment, error) {
	if len(requested) == 0 {
		requested = m.EnvList
	}
	if len(requested) == 0 {
		return nil, fmt.Errorf("no environments requested and no envlist defined")
	}

	wanted := make(map[string]struct{})
	var mark func(name string) error
	mark = func(name string) error {
		env, ok := m.Envs[name]
		if !ok {
			return fmt.Errorf("unknown environment %q", name)
		}
		if _, done := wanted[name]; done {
			return nil
		}
		wanted[name] = struct{}{}
		for _, dep := range env.DependsOn {
			if err := mark(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range requested {
		if err := mark(name); err != nil {
			return nil, err
		}
	}

	// Kahn's algorithm over the wanted subset, preferring declaration order.
	indegree := make(map[string]int, len(wanted))
	for name := range wanted {
		indegree[name] = 0
	}
	for name := range wanted {
		for _, dep := range m.Envs[name].DependsOn {
			if _, in := wanted[dep]; in {
				indegree[name]++
			}
		}
	}

	declared := append([]string(nil), m.EnvOrder...)
	var ordered []*Environment
	for len(ordered) < len(wanted) {
		progressed := false
		for _, name := range declared {
			if deg, in := indegree[name]; in && deg == 0 {
				ordered = append(ordered, m.Envs[name])
				delete(indegree, name)
				for other := range indegree {
					for _, dep := range m.Envs[other].DependsOn {
						if dep == name {
							indegree[other]--
						}
					}
				}
				progressed = true
			}
		}
		if !progressed {
			return nil, fmt.Errorf("dependency cycle among requested environments")
		}
	}
	return ordered, nil
}
