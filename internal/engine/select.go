package engine

// Select computes the ordered candidate list for one request. The list is
// duplicate-free, contains only backends that report ready at the time of the
// call, and is empty only when no registered backend is ready.
//
// Ranking rules, applied in order:
//
//  1. An override naming a ready, registered backend yields a singleton list.
//     The override is a hint, not a hard constraint: when the named backend
//     is unknown or not ready, selection falls through to the rules below.
//  2. In [ModeFixed] the configured primary backend ranks first when ready.
//  3. Backends specialised for the preferred language rank before
//     general-purpose ones; any other preference reverses that order.
//  4. The configured fallback backend is appended, then every remaining
//     ready backend in registration order, so the list is exhaustive over
//     everything currently ready.
//
// Ties are always broken by registration order, which keeps the result
// deterministic for a given readiness state.
func (g *Group[Req, Out]) Select(override, preference string) []Backend[Req, Out] {
	g.mu.RLock()
	mode := g.mode
	primary := g.primary
	fallback := g.fallback
	if preference == "" {
		preference = g.preference
	}
	backends := g.backends
	g.mu.RUnlock()

	ready := make([]Backend[Req, Out], 0, len(backends))
	for _, b := range backends {
		if b.Ready() {
			ready = append(ready, b)
		}
	}
	if len(ready) == 0 {
		return nil
	}

	if override != "" {
		if b := findByName(ready, override); b != nil {
			return []Backend[Req, Out]{b}
		}
	}

	var candidates []Backend[Req, Out]
	seen := make(map[string]bool, len(ready))
	add := func(b Backend[Req, Out]) {
		if b == nil {
			return
		}
		name := b.Describe().Name
		if !seen[name] {
			seen[name] = true
			candidates = append(candidates, b)
		}
	}

	if mode == ModeFixed {
		add(findByName(ready, primary))
	}

	// Language ranking. When the preference matches a backend's
	// specialisation that backend ranks first; any other preference puts the
	// general-purpose backends first and the specialised ones after.
	if preference != "" {
		for _, b := range ready {
			if b.Describe().Language == preference {
				add(b)
			}
		}
		for _, b := range ready {
			if b.Describe().Language == "" {
				add(b)
			}
		}
	} else {
		add(findByName(ready, primary))
	}

	add(findByName(ready, fallback))
	for _, b := range ready {
		add(b)
	}
	return candidates
}

// findByName returns the backend with the given name, or nil.
func findByName[Req, Out any](backends []Backend[Req, Out], name string) Backend[Req, Out] {
	if name == "" {
		return nil
	}
	for _, b := range backends {
		if b.Describe().Name == name {
			return b
		}
	}
	return nil
}
