package catalog

import "slices"

// Selection is the ordered set of aisle names picked in the survey.
// Clicking a picked aisle again removes it.
type Selection struct {
	names []string
}

func NewSelection(names ...string) *Selection {
	s := &Selection{}
	for _, n := range names {
		if !s.Contains(n) {
			s.names = append(s.names, n)
		}
	}
	return s
}

// Toggle adds or removes name and reports whether it is now selected.
func (s *Selection) Toggle(name string) bool {
	if i := slices.Index(s.names, name); i >= 0 {
		s.names = slices.Delete(s.names, i, i+1)
		return false
	}
	s.names = append(s.names, name)
	return true
}

func (s *Selection) Contains(name string) bool {
	return slices.Contains(s.names, name)
}

func (s *Selection) Names() []string {
	return slices.Clone(s.names)
}

func (s *Selection) Len() int {
	return len(s.names)
}
