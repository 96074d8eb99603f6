package fuzzy

import "fmt"

// TermRef points at one term of one variable.
type TermRef struct {
	Variable string
	Term     string
}

func (r TermRef) String() string {
	return r.Variable + "[" + r.Term + "]"
}

// Rule is a Mamdani rule: the conjunction of all antecedents implies the
// consequent.
type Rule struct {
	Antecedents []TermRef
	Consequent  TermRef
}

// Config is an immutable scoring setup: input variables, the output variable
// and the rule base. Build it once and share it by pointer.
type Config struct {
	Inputs []*Variable
	Output *Variable
	Rules  []Rule

	// CollapseThreshold snaps firing strengths below it to zero, so an
	// essentially unmet criterion collapses the conjunction.
	CollapseThreshold float64
}

// Validate checks that every rule refers to known variables and terms.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("fuzzy config is nil")
	}
	if c.Output == nil {
		return fmt.Errorf("fuzzy config has no output variable")
	}
	if len(c.Rules) == 0 {
		return fmt.Errorf("fuzzy config has no rules")
	}
	if c.CollapseThreshold < 0 || c.CollapseThreshold >= 1 {
		return fmt.Errorf("collapse threshold must be in [0,1), got %g", c.CollapseThreshold)
	}

	inputs := make(map[string]*Variable, len(c.Inputs))
	for _, v := range c.Inputs {
		if v == nil {
			return fmt.Errorf("fuzzy config has a nil input variable")
		}
		if _, dup := inputs[v.Name()]; dup {
			return fmt.Errorf("duplicate input variable %s", v.Name())
		}
		inputs[v.Name()] = v
	}

	for i, r := range c.Rules {
		if len(r.Antecedents) == 0 {
			return fmt.Errorf("rule %d has no antecedents", i)
		}
		for _, a := range r.Antecedents {
			v, ok := inputs[a.Variable]
			if !ok {
				return fmt.Errorf("rule %d: unknown input variable %s", i, a.Variable)
			}
			if _, err := v.Membership(a.Term); err != nil {
				return fmt.Errorf("rule %d: %w", i, err)
			}
		}
		if r.Consequent.Variable != c.Output.Name() {
			return fmt.Errorf("rule %d: consequent %s is not on output %s", i, r.Consequent, c.Output.Name())
		}
		if _, err := c.Output.Membership(r.Consequent.Term); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}
