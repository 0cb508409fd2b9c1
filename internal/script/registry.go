package script

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrUnknownMethod is returned for calls to names nobody registered.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrBadArguments is returned when arguments do not fit a method.
	ErrBadArguments = errors.New("bad arguments")
)

// Method is a registered callable.
type Method func(args []Value) (Value, error)

// Variadic marks a method that checks its own argument count.
const Variadic = -1

type entry struct {
	fn    Method
	arity int
	doc   string
}

// Registry maps "object.method" names to callables. Registration and calls
// may come from different goroutines, but the viewer only calls from the
// frame loop.
type Registry struct {
	log *zap.Logger

	mu      sync.RWMutex
	methods map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{log: log, methods: make(map[string]entry)}
}

func key(object, method string) string { return object + "." + method }

// Register adds object.method taking arity arguments, or Variadic.
// Registering a name twice is an error.
func (r *Registry) Register(object, method string, arity int, doc string, fn Method) error {
	if !isIdent(object) || !isIdent(method) {
		return fmt.Errorf("register %q.%q: names must be identifiers", object, method)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(object, method)
	if _, ok := r.methods[k]; ok {
		return fmt.Errorf("register %s: already registered", k)
	}
	r.methods[k] = entry{fn: fn, arity: arity, doc: doc}
	return nil
}

// MustRegister is Register for start-up wiring, panicking on error.
func (r *Registry) MustRegister(object, method string, arity int, doc string, fn Method) {
	if err := r.Register(object, method, arity, doc, fn); err != nil {
		panic(err)
	}
}

// Unregister removes every method of object.
func (r *Registry) Unregister(object string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := object + "."
	for k := range r.methods {
		if strings.HasPrefix(k, prefix) {
			delete(r.methods, k)
		}
	}
}

// Call invokes object.method.
func (r *Registry) Call(object, method string, args ...Value) (Value, error) {
	k := key(object, method)
	r.mu.RLock()
	e, ok := r.methods[k]
	r.mu.RUnlock()
	if !ok {
		return Nil, fmt.Errorf("%w: %s", ErrUnknownMethod, k)
	}
	if e.arity != Variadic && len(args) != e.arity {
		return Nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrBadArguments, k, e.arity, len(args))
	}
	v, err := e.fn(args)
	if err != nil {
		return Nil, fmt.Errorf("%s: %w", k, err)
	}
	return v, nil
}

// Eval parses and runs one "object.method(args)" line. Identifiers among
// the arguments are looked up in env.
func (r *Registry) Eval(line string, env Env) (Value, error) {
	c, err := Parse(line)
	if err != nil {
		return Nil, err
	}
	return c.Run(r, env)
}

// Help describes a registered method.
type Help struct {
	Name  string
	Arity int
	Doc   string
}

// Methods lists every registered method sorted by name.
func (r *Registry) Methods() []Help {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Help, 0, len(r.methods))
	for k, e := range r.methods {
		out = append(out, Help{Name: k, Arity: e.arity, Doc: e.doc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
