package types

import (
	"fmt"

	"github.com/orbitsched/orbit/pkg/orberr"
)

// Group is a node in the application tree: a set of apps, a set of nested
// subgroups, and a dependency list over both. Child ids must be
// descendants of the parent id, and the dependency graph across apps and
// groups must be acyclic.
type Group struct {
	ID           PathId
	Apps         map[PathId]RunSpec
	Groups       map[PathId]Group
	Dependencies []PathId
	Version      Version
}

// StoredGroup is the on-disk shape of a Group: apps are referenced by
// (id, version) pairs rather than embedded, so storeRoot can persist app
// versions independently of the group tree that references them.
type StoredGroup struct {
	ID           PathId
	AppRefs      map[PathId]Version
	Groups       []StoredGroup
	Dependencies []PathId
	Version      Version
}

// AllAppIds returns every app id reachable from g, including subgroups.
func (g Group) AllAppIds() []PathId {
	ids := make([]PathId, 0, len(g.Apps))
	for id := range g.Apps {
		ids = append(ids, id)
	}
	for _, sub := range g.Groups {
		ids = append(ids, sub.AllAppIds()...)
	}
	return ids
}

// ValidateTree checks the structural invariants: every child group's
// id must be a descendant of g's id, and the dependency graph (apps and
// groups, by id) must be acyclic.
func (g Group) ValidateTree() error {
	if err := g.validateDescendants(); err != nil {
		return err
	}
	return g.validateAcyclic()
}

func (g Group) validateDescendants() error {
	for id, sub := range g.Groups {
		if !id.IsChildOf(g.ID) && !(g.ID.IsRoot() && id.IsChildOf(RootId)) {
			return &orberr.ValidationFailure{
				Entity: string(g.ID),
				Reason: fmt.Sprintf("subgroup %s is not a descendant of %s", id, g.ID),
			}
		}
		if err := sub.validateDescendants(); err != nil {
			return err
		}
	}
	return nil
}

// validateAcyclic walks the dependency edges of every app and group under
// g and reports a ValidationFailure if a cycle is found.
func (g Group) validateAcyclic() error {
	edges := make(map[PathId][]PathId)
	g.collectEdges(edges)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[PathId]int)

	var visit func(PathId, []PathId) error
	visit = func(id PathId, path []PathId) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return &orberr.ValidationFailure{
				Entity: string(g.ID),
				Reason: fmt.Sprintf("dependency cycle detected at %s", id),
			}
		}
		color[id] = gray
		for _, dep := range edges[id] {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for id := range edges {
		if color[id] == white {
			if err := visit(id, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g Group) collectEdges(edges map[PathId][]PathId) {
	edges[g.ID] = append(edges[g.ID], g.Dependencies...)
	for id, app := range g.Apps {
		edges[id] = append(edges[id], app.Dependencies...)
	}
	for _, sub := range g.Groups {
		sub.collectEdges(edges)
	}
}
