package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Alternative is a speculative set of per-agent Updates. It is mutable until
// sealed and may be branched to try a sub-plan: the child is later either
// merged back into the parent or deleted, exactly once.
type Alternative struct {
	updates map[string]*Update
	sealed  bool

	parent   *Alternative
	branched bool // a child branch is outstanding
	resolved bool // this branch was merged or deleted
}

// NewAlternative creates an empty root alternative.
func NewAlternative() *Alternative {
	return &Alternative{updates: make(map[string]*Update)}
}

func (a *Alternative) IsSealed() bool       { return a.sealed }
func (a *Alternative) IsBranched() bool     { return a.branched }
func (a *Alternative) Parent() *Alternative { return a.parent }

// IsEmpty reports whether no update proposes anything.
func (a *Alternative) IsEmpty() bool {
	for _, u := range a.updates {
		if !u.IsEmpty() {
			return false
		}
	}
	return true
}

func (a *Alternative) checkMutable() error {
	switch {
	case a.sealed:
		return fmt.Errorf("%w: alternative is sealed", ErrIllegalState)
	case a.branched:
		return fmt.Errorf("%w: alternative has an outstanding branch", ErrIllegalState)
	case a.resolved:
		return fmt.Errorf("%w: branch was already merged or deleted", ErrIllegalState)
	}
	return nil
}

// Update returns the update for agent, creating it on first use.
func (a *Alternative) Update(agent *Agent) (*Update, error) {
	if err := a.checkMutable(); err != nil {
		return nil, err
	}
	u, ok := a.updates[agent.id]
	if !ok {
		u = newUpdate(a, agent)
		a.updates[agent.id] = u
	} else if u.agent != agent {
		return nil, fmt.Errorf("%w: another agent named %s is already updated", ErrInvalidArgument, agent.id)
	}
	return u, nil
}

// UpdateOf returns the existing update for agentID.
func (a *Alternative) UpdateOf(agentID string) (*Update, bool) {
	u, ok := a.updates[agentID]
	return u, ok
}

// Updates returns the updates sorted by agent id.
func (a *Alternative) Updates() []*Update {
	out := make([]*Update, 0, len(a.updates))
	for _, id := range slices.Sorted(maps.Keys(a.updates)) {
		out = append(out, a.updates[id])
	}
	return out
}

// Jobs returns all proposed jobs.
func (a *Alternative) Jobs() []*Job {
	var out []*Job
	for _, u := range a.Updates() {
		out = append(out, u.jobs...)
	}
	return out
}

// Removals returns all proposed job removals.
func (a *Alternative) Removals() []*Job {
	var out []*Job
	for _, u := range a.Updates() {
		out = append(out, u.removals...)
	}
	return out
}

// Branch creates a child holding a deep copy of the current updates. The
// parent stays frozen until the child is merged or deleted.
func (a *Alternative) Branch() (*Alternative, error) {
	if err := a.checkMutable(); err != nil {
		return nil, err
	}
	child := &Alternative{updates: make(map[string]*Update, len(a.updates)), parent: a}
	for id, u := range a.updates {
		child.updates[id] = u.clone(child)
	}
	a.branched = true
	return child, nil
}

// Merge replaces the parent's updates with the child's.
func (a *Alternative) Merge() error {
	if err := a.checkResolvable(); err != nil {
		return err
	}
	for _, u := range a.updates {
		u.owner = a.parent
	}
	a.parent.updates = a.updates
	a.parent.branched = false
	a.resolved = true
	return nil
}

// Delete discards the child and releases the parent.
func (a *Alternative) Delete() error {
	if err := a.checkResolvable(); err != nil {
		return err
	}
	a.parent.branched = false
	a.resolved = true
	return nil
}

func (a *Alternative) checkResolvable() error {
	switch {
	case a.parent == nil:
		return fmt.Errorf("%w: root alternative cannot be merged or deleted", ErrIllegalState)
	case a.resolved:
		return fmt.Errorf("%w: branch was already merged or deleted", ErrIllegalState)
	case a.branched:
		return fmt.Errorf("%w: branch has an outstanding branch", ErrIllegalState)
	}
	return nil
}

// Seal seals every update and makes the alternative read-only. Empty updates
// are dropped. Only root alternatives can be sealed.
func (a *Alternative) Seal() error {
	if err := a.checkMutable(); err != nil {
		return err
	}
	if a.parent != nil {
		return fmt.Errorf("%w: only root alternatives can be sealed", ErrIllegalState)
	}
	for _, u := range a.Updates() {
		if err := u.checkSelfConsistency(); err != nil {
			return err
		}
	}
	for id, u := range a.updates {
		if u.IsEmpty() {
			delete(a.updates, id)
			continue
		}
		if err := u.Seal(); err != nil {
			return err
		}
	}
	a.sealed = true
	return nil
}

// removeUpdate drops the update of agentID after partial integration.
func (a *Alternative) removeUpdate(agentID string) {
	delete(a.updates, agentID)
}

func (a *Alternative) String() string {
	var sb strings.Builder
	sb.WriteString("Alternative{")
	for i, u := range a.Updates() {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %d jobs, %d removals, %d trajectories",
			u.agent.id, len(u.jobs), len(u.removals), u.trajectories.Len())
	}
	sb.WriteString("}")
	return sb.String()
}
