package verb

import (
	"github.com/roach88/csc/internal/ir"
)

// Intent is a normalized, unvalidated action proposal.
// Implemented by SwitchProfile, Press, Regress, ApplyPolicy and Custom.
type Intent interface {
	intent() // Sealed

	// Verb returns the verb name.
	Verb() string
	// Map returns the flat mapping form with a "verb" key.
	Map() ir.IRObject
}

// SwitchProfile asks the controller to change the active betting profile.
type SwitchProfile struct {
	Name string
}

// Press asks to increase a bet by Units.
type Press struct {
	Bet   string
	Units int64
}

// Regress asks to decrease a bet by Units.
type Regress struct {
	Bet   string
	Units int64
}

// ApplyPolicy asks the controller to apply a named policy.
type ApplyPolicy struct {
	Name string
}

// Custom is the intent produced by caller-registered verbs.
type Custom struct {
	Name string
	Args ir.IRObject
}

func (SwitchProfile) intent() {}
func (Press) intent()         {}
func (Regress) intent()       {}
func (ApplyPolicy) intent()   {}
func (Custom) intent()        {}

func (SwitchProfile) Verb() string { return "switch_profile" }
func (Press) Verb() string         { return "press" }
func (Regress) Verb() string       { return "regress" }
func (ApplyPolicy) Verb() string   { return "apply_policy" }
func (c Custom) Verb() string      { return c.Name }

func (i SwitchProfile) Map() ir.IRObject {
	return ir.IRObject{"verb": ir.IRString(i.Verb()), "name": ir.IRString(i.Name)}
}

func (i Press) Map() ir.IRObject {
	return ir.IRObject{"verb": ir.IRString(i.Verb()), "bet": ir.IRString(i.Bet), "units": ir.IRInt(i.Units)}
}

func (i Regress) Map() ir.IRObject {
	return ir.IRObject{"verb": ir.IRString(i.Verb()), "bet": ir.IRString(i.Bet), "units": ir.IRInt(i.Units)}
}

func (i ApplyPolicy) Map() ir.IRObject {
	return ir.IRObject{"verb": ir.IRString(i.Verb()), "name": ir.IRString(i.Name)}
}

func (c Custom) Map() ir.IRObject {
	out := c.Args.Clone()
	out["verb"] = ir.IRString(c.Name)
	return out
}

// Args returns the intent mapping without the "verb" key, as recorded in
// decision attempts.
func Args(i Intent) ir.IRObject {
	m := i.Map()
	delete(m, "verb")
	return m
}
