package breaker

// Set is an ordered collection of breakers keyed by provider name.
// It is built once at startup and is read-only afterwards.
type Set struct {
	order    []string
	breakers map[string]*Breaker
}

// NewSet creates one breaker per name, in the given order.
func NewSet(names []string, settings Settings, opts ...Option) *Set {
	s := &Set{
		order:    make([]string, 0, len(names)),
		breakers: make(map[string]*Breaker, len(names)),
	}
	for _, name := range names {
		if _, ok := s.breakers[name]; ok {
			continue
		}
		s.order = append(s.order, name)
		s.breakers[name] = New(name, settings, opts...)
	}
	return s
}

// Get returns the breaker for name, or nil.
func (s *Set) Get(name string) *Breaker {
	return s.breakers[name]
}

// Names returns the provider names in configured order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// States returns the current state of every breaker.
func (s *Set) States() map[string]State {
	out := make(map[string]State, len(s.order))
	for _, name := range s.order {
		out[name] = s.breakers[name].State()
	}
	return out
}

// Status describes one breaker for health output.
type Status struct {
	Provider string `json:"provider"`
	State    State  `json:"state"`
	Counts
}

// Statuses returns a status entry per breaker in configured order.
func (s *Set) Statuses() []Status {
	out := make([]Status, 0, len(s.order))
	for _, name := range s.order {
		b := s.breakers[name]
		out = append(out, Status{Provider: name, State: b.State(), Counts: b.Counts()})
	}
	return out
}
