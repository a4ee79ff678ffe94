package stats

import "sort"

// Select walks documents by descending scaled score and returns the
// shortest prefix whose accumulated mass reaches target. A target above 1
// is a percentage. Ties keep table order.
func Select(t *Table, target float64) []string {
	if t.Len() == 0 {
		return []string{}
	}
	if target > 1 {
		target /= 100
	}

	names := t.Names()
	sort.SliceStable(names, func(i, j int) bool {
		return t.rows[names[i]].ScoreWeightedScaled > t.rows[names[j]].ScoreWeightedScaled
	})

	selected := make([]string, 0, len(names))
	accumulated := 0.0
	for _, name := range names {
		if accumulated >= target {
			break
		}
		accumulated += t.rows[name].ScoreWeightedScaled
		selected = append(selected, name)
	}
	return selected
}
