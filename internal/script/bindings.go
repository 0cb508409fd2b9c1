package script

import (
	"errors"
	"fmt"
	"sort"
)

// Bindings maps input event names such as "key.p" or "mouse.wheel" to
// parsed calls.
type Bindings struct {
	calls map[string]Call
}

// ParseBindings parses every binding string, reporting all the invalid ones.
func ParseBindings(m map[string]string) (*Bindings, error) {
	b := &Bindings{calls: make(map[string]Call, len(m))}
	var errs []error
	events := make([]string, 0, len(m))
	for ev := range m {
		events = append(events, ev)
	}
	sort.Strings(events)
	for _, ev := range events {
		c, err := Parse(m[ev])
		if err != nil {
			errs = append(errs, fmt.Errorf("binding %s: %w", ev, err))
			continue
		}
		b.calls[ev] = c
	}
	return b, errors.Join(errs...)
}

// Lookup returns the call bound to event.
func (b *Bindings) Lookup(event string) (Call, bool) {
	c, ok := b.calls[event]
	return c, ok
}

// Fire runs the call bound to event. The boolean reports whether anything
// was bound.
func (b *Bindings) Fire(r *Registry, event string, env Env) (Value, bool, error) {
	c, ok := b.calls[event]
	if !ok {
		return Nil, false, nil
	}
	v, err := c.Run(r, env)
	return v, true, err
}

// Len returns the number of bound events.
func (b *Bindings) Len() int { return len(b.calls) }
