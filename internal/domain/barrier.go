package domain

import "slices"

// generation is one readiness round keyed by the members present when it started.
// Once satisfied it never accepts updates again.
type generation struct {
	target    int
	ready     map[string]bool
	satisfied bool
}

func newGeneration(target int, memberIDs []string) *generation {
	ready := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		ready[id] = false
	}

	return &generation{
		target: target,
		ready:  ready,
	}
}

// mark flips userID to ready and reports whether this call satisfied the generation.
func (g *generation) mark(userID string) (accepted, satisfied bool) {
	if g.satisfied {
		return false, false
	}

	isReady, ok := g.ready[userID]
	if !ok {
		return false, false
	}

	if !isReady {
		g.ready[userID] = true
	}

	for _, r := range g.ready {
		if !r {
			return true, false
		}
	}

	g.satisfied = true
	return true, true
}

func (g *generation) pending() []string {
	ids := make([]string, 0)
	for id, r := range g.ready {
		if !r {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	return ids
}
