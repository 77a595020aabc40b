package engine

// Read paths; no privilege required.

// GetAction returns the action record for id.
func (e *Engine) GetAction(id uint64) (Action, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.actions[id]
	return a, ok
}

// GetPromise returns the promise record for id.
func (e *Engine) GetPromise(id uint64) (Promise, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.promises[id]
	if !ok {
		return Promise{}, false
	}
	return *p, true
}

// PromisesByAction returns every promise created under actionID, in id order.
func (e *Engine) PromisesByAction(actionID uint64) []Promise {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []Promise
	for id := uint64(1); id <= e.nextPromiseID; id++ {
		if p, ok := e.promises[id]; ok && p.ActionID == actionID {
			out = append(out, *p)
		}
	}
	return out
}

// Actions returns every action, in id order, for persistence.
func (e *Engine) Actions() []Action {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Action, 0, len(e.actions))
	for id := uint64(1); id <= e.nextActionID; id++ {
		if a, ok := e.actions[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Promises returns every promise, in id order, for persistence.
func (e *Engine) Promises() []Promise {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Promise, 0, len(e.promises))
	for id := uint64(1); id <= e.nextPromiseID; id++ {
		if p, ok := e.promises[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}
