package catalog

import (
	"slices"

	"smart-supermarket/internal/apperr"
)

var (
	ErrNoAislesSelected = apperr.New(apperr.KindValidation, "Please select at least one aisle.")
	ErrNoAisleMatch     = apperr.New(apperr.KindValidation, "Failed to match selected aisles with IDs.")
)

type AisleRecord struct {
	AisleID        int    `json:"aisle_id"`
	Name           string `json:"aisle"`
	Department     string `json:"department"`
	TotalPurchases int    `json:"total_purchases"`
}

type DepartmentGroup struct {
	Department string        `json:"department"`
	Aisles     []AisleRecord `json:"aisles"`
}

// Catalog is the immutable aisle reference set of one survey.
type Catalog struct {
	records     []AisleRecord
	byID        map[int]AisleRecord
	byName      map[string]int
	departments []DepartmentGroup
}

// New indexes records. Later duplicates of an aisle id (or name) lose to the first.
func New(records []AisleRecord) *Catalog {
	c := &Catalog{
		byID:   make(map[int]AisleRecord, len(records)),
		byName: make(map[string]int, len(records)),
	}

	groupIndex := make(map[string]int)
	for _, r := range records {
		if _, dup := c.byID[r.AisleID]; dup {
			continue
		}
		c.records = append(c.records, r)
		c.byID[r.AisleID] = r
		if _, seen := c.byName[r.Name]; !seen {
			c.byName[r.Name] = r.AisleID
		}

		i, ok := groupIndex[r.Department]
		if !ok {
			i = len(c.departments)
			groupIndex[r.Department] = i
			c.departments = append(c.departments, DepartmentGroup{Department: r.Department})
		}
		c.departments[i].Aisles = append(c.departments[i].Aisles, r)
	}

	// Biggest departments first, first-seen order among equals.
	slices.SortStableFunc(c.departments, func(a, b DepartmentGroup) int {
		return len(b.Aisles) - len(a.Aisles)
	})

	return c
}

func (c *Catalog) Len() int {
	return len(c.records)
}

func (c *Catalog) Get(aisleID int) (AisleRecord, bool) {
	r, ok := c.byID[aisleID]
	return r, ok
}

// Records returns every aisle in source order.
func (c *Catalog) Records() []AisleRecord {
	return slices.Clone(c.records)
}

func (c *Catalog) Departments() []DepartmentGroup {
	out := make([]DepartmentGroup, len(c.departments))
	for i, g := range c.departments {
		out[i] = DepartmentGroup{Department: g.Department, Aisles: slices.Clone(g.Aisles)}
	}
	return out
}

// Resolve maps selected display names to aisle ids in selection order.
// Unknown names are dropped. An empty selection and a selection where
// nothing matched are reported as different errors.
func (c *Catalog) Resolve(selectedNames []string) ([]int, error) {
	if len(selectedNames) == 0 {
		return nil, ErrNoAislesSelected
	}

	ids := make([]int, 0, len(selectedNames))
	for _, name := range selectedNames {
		if id, ok := c.byName[name]; ok {
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return nil, ErrNoAisleMatch
	}
	return ids, nil
}
