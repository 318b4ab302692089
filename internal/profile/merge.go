package profile

import (
	"path/filepath"

	"github.com/dominikbraun/graph"

	"github.com/hardscan/hardscan/internal/errors"
)

// ResolvedControl is a control plus the profile that contributed it.
// Provenance decides applicability: a control from a profile whose supports
// block excludes the host scans as not-applicable.
type ResolvedControl struct {
	Control
	Origin *Profile
}

// Set is a merged, dependency-resolved collection of profiles ready to scan
type Set struct {
	Name     string
	Version  string
	Profiles []*Profile // merge order, dependencies first
	Controls []ResolvedControl
}

// Resolve loads the transitive dependencies of root and merges everything
// into a Set. Dependency paths are relative to the file that declares them.
// Merge order is the topological order of the dependency graph; profiles
// merged later override same-ID controls from earlier ones.
func Resolve(root *Profile) (*Set, error) {
	byName := map[string]*Profile{}

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	if err := loadInto(root, byName, g); err != nil {
		return nil, err
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidProfile, "resolving dependency order: %v", err)
	}

	ordered := make([]*Profile, 0, len(order))
	for _, name := range order {
		ordered = append(ordered, byName[name])
	}

	return merge(root, ordered), nil
}

// loadInto walks the dependency tree, loading each profile once and
// recording dep -> dependent edges
func loadInto(p *Profile, byName map[string]*Profile, g graph.Graph[string, string]) error {
	if existing, ok := byName[p.Name]; ok {
		if existing.path != p.path {
			return errors.Wrap(errors.ErrAlreadyExists, "profile name %q declared by both %s and %s", p.Name, existing.path, p.path)
		}
		return nil
	}
	byName[p.Name] = p
	_ = g.AddVertex(p.Name)

	for _, dep := range p.Depends {
		depPath := dep.Path
		if !filepath.IsAbs(depPath) {
			depPath = filepath.Join(filepath.Dir(p.path), depPath)
		}

		depProfile, err := Load(depPath)
		if err != nil {
			return errors.Wrap(err, "dependency of %s", p.Name)
		}
		if dep.Name != "" && dep.Name != depProfile.Name {
			return errors.Wrap(errors.ErrInvalidProfile, "dependency %s declares name %q but profile is named %q", depPath, dep.Name, depProfile.Name)
		}

		if err := loadInto(depProfile, byName, g); err != nil {
			return err
		}

		// Dependencies sort before their dependents
		if err := g.AddEdge(depProfile.Name, p.Name); err != nil && err != graph.ErrEdgeAlreadyExists {
			return errors.Wrap(errors.ErrInvalidProfile, "dependency cycle through %s", depProfile.Name)
		}
	}

	return nil
}

// merge flattens ordered profiles into one control list. Later profiles
// override same-ID controls; ordering of the final list is first-seen.
func merge(root *Profile, ordered []*Profile) *Set {
	set := &Set{
		Name:     root.Name,
		Version:  root.Version,
		Profiles: ordered,
	}

	index := map[string]int{}
	for _, p := range ordered {
		for i := range p.Controls {
			rc := ResolvedControl{Control: p.Controls[i], Origin: p}
			if pos, seen := index[rc.ID]; seen {
				set.Controls[pos] = rc
				continue
			}
			index[rc.ID] = len(set.Controls)
			set.Controls = append(set.Controls, rc)
		}
	}

	return set
}

// ResolveAll resolves several root profiles into one Set. Control IDs must
// not collide across roots.
func ResolveAll(roots []*Profile) (*Set, error) {
	if len(roots) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no profiles to resolve")
	}
	if len(roots) == 1 {
		return Resolve(roots[0])
	}

	combined := &Set{Name: roots[0].Name, Version: roots[0].Version}
	seen := map[string]string{}
	seenProfiles := map[string]bool{}
	for _, root := range roots {
		set, err := Resolve(root)
		if err != nil {
			return nil, err
		}
		for _, rc := range set.Controls {
			if origin, dup := seen[rc.ID]; dup {
				if origin != rc.Origin.Name {
					return nil, errors.Wrap(errors.ErrAlreadyExists, "control %q defined by both %s and %s", rc.ID, origin, rc.Origin.Name)
				}
				// shared dependency already merged via an earlier root
				continue
			}
			seen[rc.ID] = rc.Origin.Name
			combined.Controls = append(combined.Controls, rc)
		}
		for _, p := range set.Profiles {
			if !seenProfiles[p.Name] {
				seenProfiles[p.Name] = true
				combined.Profiles = append(combined.Profiles, p)
			}
		}
	}
	return combined, nil
}
