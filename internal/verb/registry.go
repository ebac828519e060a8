package verb

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/csc/internal/ir"
)

// Signature lists the argument keys a verb accepts.
type Signature struct {
	Required []string
	Optional []string
}

func (s Signature) accepts(key string) bool {
	return slices.Contains(s.Required, key) || slices.Contains(s.Optional, key)
}

// Builder shapes validated arguments into an intent.
type Builder func(args ir.IRObject) (Intent, error)

type registration struct {
	sig     Signature
	builder Builder
}

// Registry is a thread-safe verb table.
type Registry struct {
	mu    sync.RWMutex
	verbs map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{verbs: make(map[string]registration)}
}

// DefaultRegistry returns a registry holding the built-in verbs.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.mustRegister("switch_profile", Signature{Required: []string{"name"}}, buildSwitchProfile)
	r.mustRegister("press", Signature{Required: []string{"bet"}, Optional: []string{"units"}}, buildPress)
	r.mustRegister("regress", Signature{Required: []string{"bet"}, Optional: []string{"units"}}, buildRegress)
	r.mustRegister("apply_policy", Signature{Required: []string{"name"}}, buildApplyPolicy)
	return r
}

// Register associates name with a signature and builder, replacing any
// previous registration. A nil builder yields Custom intents carrying the
// arguments unchanged.
func (r *Registry) Register(name string, sig Signature, builder Builder) error {
	if name == "" {
		return fmt.Errorf("register verb: name cannot be empty")
	}
	if builder == nil {
		builder = func(args ir.IRObject) (Intent, error) {
			return Custom{Name: name, Args: args.Clone()}, nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.verbs[name] = registration{sig: sig, builder: builder}
	return nil
}

func (r *Registry) mustRegister(name string, sig Signature, builder Builder) {
	if err := r.Register(name, sig, builder); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.verbs[name]
	return ok
}

// Signature returns the registered signature for name.
func (r *Registry) Signature(name string) (Signature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.verbs[name]
	return reg.sig, ok
}

// Names returns registered verb names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.verbs))
	for name := range r.verbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks args against the signature of name and dry-runs the
// builder so coercion failures surface before any window is evaluated.
// Missing keys are reported before unknown keys, each in sorted order.
func (r *Registry) Validate(name string, args ir.IRObject) error {
	reg, ok := r.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVerb, name)
	}
	if err := checkSignature(name, reg.sig, args); err != nil {
		return err
	}
	_, err := reg.builder(args)
	return err
}

// Apply builds the intent for name. It fails with ErrUnknownVerb when name is
// not registered and with *ArgError when args do not fit.
func (r *Registry) Apply(name string, args ir.IRObject) (Intent, error) {
	reg, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVerb, name)
	}
	if err := checkSignature(name, reg.sig, args); err != nil {
		return nil, err
	}
	return reg.builder(args)
}

func (r *Registry) lookup(name string) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.verbs[name]
	return reg, ok
}

func checkSignature(name string, sig Signature, args ir.IRObject) error {
	required := append([]string(nil), sig.Required...)
	sort.Strings(required)
	var missing []string
	for _, key := range required {
		if _, ok := args[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) == 1 {
		return &ArgError{Kind: ArgMissing, Verb: name, Arg: missing[0], Args: missing, Message: "required argument is missing"}
	}
	if len(missing) > 1 {
		return &ArgError{Kind: ArgMissing, Verb: name, Arg: missing[0], Args: missing, Message: "required arguments are missing"}
	}
	for _, key := range args.SortedKeys() {
		if !sig.accepts(key) {
			return &ArgError{Kind: ArgUnknown, Verb: name, Arg: key, Message: "unknown argument"}
		}
	}
	return nil
}
