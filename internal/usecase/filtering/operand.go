package filtering

import "sort"

// Category names one filter input.
type Category string

// Filter categories, in combination order.
const (
	Categories           Category = "categories"
	Documents            Category = "documents"
	RelativePathContains Category = "relative_path_contains"
	Templates            Category = "templates"
	MetadataFilters      Category = "metadata_filters"
)

// Operand is one resolved filter category. Operands that were not
// specified take no part in the combination.
type Operand struct {
	Category  Category `json:"category"`
	Specified bool     `json:"specified"`
	Names     []string `json:"names,omitempty"`
}

// Unsatisfied reports a category that was asked for but admitted nothing.
func (o Operand) Unsatisfied() bool { return o.Specified && len(o.Names) == 0 }

// Combine reduces specified operands with one operator: intersection when
// and is true, union otherwise. The result is sorted.
func Combine(operands []Operand, and bool) []string {
	var acc map[string]struct{}
	for _, o := range operands {
		if !o.Specified || (len(o.Names) == 0 && !and) {
			continue
		}
		set := make(map[string]struct{}, len(o.Names))
		for _, n := range o.Names {
			set[n] = struct{}{}
		}
		switch {
		case acc == nil:
			acc = set
		case and:
			for n := range acc {
				if _, ok := set[n]; !ok {
					delete(acc, n)
				}
			}
		default:
			for n := range set {
				acc[n] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(acc))
	for n := range acc {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
