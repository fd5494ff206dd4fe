package preference

import (
	"sort"

	"github.com/turtacn/topk-planner/internal/domain/catalog"
	"github.com/turtacn/topk-planner/pkg/errors"
)

// DefaultProfile is the profile with no overrides.
const DefaultProfile = "default"

// Profile is a named set of scores written against some catalog.
type Profile struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Scores      Overrides `json:"scores,omitempty"`
}

// Registry holds named profiles.  Safe for concurrent reads.
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry builds a Registry; later duplicates replace earlier ones.
func NewRegistry(profiles ...Profile) *Registry {
	r := &Registry{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		p.Scores = p.Scores.Clone()
		r.profiles[p.Name] = p
	}
	return r
}

// DefaultRegistry returns the built-in profiles for the sample gym catalog.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Profile{Name: DefaultProfile, Description: "catalog base scores"},
		Profile{
			Name:        "cardio_lover",
			Description: "favours high-intensity cardio classes",
			Scores:      Overrides{"Yoga": 3, "HIIT": 10, "Pilates": 2, "Spinning": 9, "Boxing": 6, "Zumba": 9},
		},
		Profile{
			Name:        "budget_focused",
			Description: "favours the cheaper classes",
			Scores:      Overrides{"Yoga": 7, "HIIT": 4, "Pilates": 8, "Spinning": 3, "Boxing": 2, "Zumba": 10},
		},
		Profile{
			Name:        "mind_body_fan",
			Description: "favours yoga and pilates",
			Scores:      Overrides{"Yoga": 10, "HIIT": 2, "Pilates": 10, "Spinning": 1, "Boxing": 1, "Zumba": 4},
		},
		Profile{
			Name:        "mixed",
			Description: "likes a bit of everything",
			Scores:      Overrides{"Yoga": 5, "HIIT": 10, "Pilates": 4, "Spinning": 8, "Boxing": 7, "Zumba": 9},
		},
	)
}

// Get returns the named profile.
func (r *Registry) Get(name string) (Profile, bool) {
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, false
	}
	p.Scores = p.Scores.Clone()
	return p, true
}

// List returns every profile sorted by name.
func (r *Registry) List() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		p.Scores = p.Scores.Clone()
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Merge normalizes a profile name plus explicit overrides into the single
// override map the core consumes.  Profile entries for items missing from c
// are dropped; explicit overrides are kept as given, win over the profile,
// and are validated later by NewResolver.  An empty profile name means no
// profile.
func (r *Registry) Merge(c *catalog.Catalog, profile string, overrides Overrides) (Overrides, error) {
	var merged Overrides
	if profile != "" {
		p, ok := r.profiles[profile]
		if !ok {
			return nil, errors.InvalidConfig("unknown preference profile").WithDetail("profile=" + profile)
		}
		for id, s := range p.Scores {
			if c != nil && !c.Contains(id) {
				continue
			}
			if merged == nil {
				merged = make(Overrides)
			}
			merged[id] = s
		}
	}
	for id, s := range overrides {
		if merged == nil {
			merged = make(Overrides, len(overrides))
		}
		merged[id] = s
	}
	return merged, nil
}

// Resolve is Merge followed by NewResolver.
func (r *Registry) Resolve(c *catalog.Catalog, profile string, overrides Overrides) (*Resolver, error) {
	merged, err := r.Merge(c, profile, overrides)
	if err != nil {
		return nil, err
	}
	return NewResolver(c, merged)
}
