package stats

import (
	"sort"

	"github.com/garyjia/smt-log-parser/internal/application/dispatcher"
)

// Summary is a serialisable snapshot of a Stats backend.
type Summary struct {
	Version        dispatcher.VersionInfo `json:"version" yaml:"version"`
	Terms          int                    `json:"terms" yaml:"terms"`
	Quantifiers    int                    `json:"quantifiers" yaml:"quantifiers"`
	Vars           int                    `json:"vars" yaml:"vars"`
	Apps           int                    `json:"apps" yaml:"apps"`
	Meanings       int                    `json:"meanings" yaml:"meanings"`
	Enodes         int                    `json:"enodes" yaml:"enodes"`
	Equalities     map[string]int         `json:"equalities,omitempty" yaml:"equalities,omitempty"`
	Matches        int                    `json:"matches" yaml:"matches"`
	Discovered     int                    `json:"discovered" yaml:"discovered"`
	Instances      int                    `json:"instances" yaml:"instances"`
	OpenInstance   bool                   `json:"open_instance" yaml:"open_instance"`
	Checks         int                    `json:"checks" yaml:"checks"`
	Pushes         int                    `json:"pushes" yaml:"pushes"`
	Pops           int                    `json:"pops" yaml:"pops"`
	MaxScope       int                    `json:"max_scope" yaml:"max_scope"`
	TopQuantifiers []Quantifier           `json:"top_quantifiers,omitempty" yaml:"top_quantifiers,omitempty"`
}

// Summary returns the current counts. The top quantifiers by instance count
// are included, at most top of them.
func (s *Stats) Summary(top int) Summary {
	sum := Summary{
		Version:      s.version,
		Terms:        len(s.terms),
		Quantifiers:  len(s.quantifiers),
		Vars:         s.vars,
		Apps:         s.apps,
		Meanings:     s.meanings,
		Enodes:       s.enodes,
		Matches:      s.matched,
		Discovered:   s.discovered,
		Instances:    len(s.instances),
		OpenInstance: s.open != 0,
		Checks:       s.checks,
		Pushes:       s.pushes,
		Pops:         s.pops,
		MaxScope:     s.maxScope,
	}
	if len(s.equalities) > 0 {
		sum.Equalities = make(map[string]int, len(s.equalities))
		for k, v := range s.equalities {
			sum.Equalities[k] = v
		}
	}
	sum.TopQuantifiers = s.topQuantifiers(top)
	return sum
}

func (s *Stats) topQuantifiers(top int) []Quantifier {
	if top <= 0 || len(s.quantOrder) == 0 {
		return nil
	}
	qs := make([]Quantifier, 0, len(s.quantOrder))
	for _, id := range s.quantOrder {
		qs = append(qs, *s.quantifiers[id])
	}
	// stable on creation order for equal counts
	sort.SliceStable(qs, func(i, j int) bool {
		return qs[i].Instances > qs[j].Instances
	})
	if len(qs) > top {
		qs = qs[:top]
	}
	return qs
}

// Version returns the announced solver version.
func (s *Stats) Version() dispatcher.VersionInfo {
	return s.version
}

// Quantifier returns the quantifier with the given term id.
func (s *Stats) Quantifier(id string) (Quantifier, bool) {
	q, ok := s.quantifiers[id]
	if !ok {
		return Quantifier{}, false
	}
	return *q, true
}

// Match returns the match or discovery recorded for fp.
func (s *Stats) Match(fp dispatcher.Fingerprint) (Match, bool) {
	m, ok := s.matches[fp]
	if !ok {
		return Match{}, false
	}
	return *m, true
}

// Instances returns the instance blocks in log order.
func (s *Stats) Instances() []Instance {
	out := make([]Instance, len(s.instances))
	copy(out, s.instances)
	return out
}

// Scope returns the current push depth.
func (s *Stats) Scope() int {
	return s.scope
}
