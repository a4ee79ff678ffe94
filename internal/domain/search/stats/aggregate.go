package stats

import (
	"math"
	"sort"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/search/hit"
)

// Aggregate computes per-document stats with the default smoothing floor.
func Aggregate(hits []hit.Hit) (*Table, error) {
	return AggregateWithFloor(hits, DefaultSmoothing)
}

// AggregateWithFloor groups hits by document and computes
//
//	score          = mean hit score
//	score_weighted = ln(score * hits * pages_count)
//
// then rescales weighted scores into shares (see Scale).
// A non-positive product is a *domain.DomainError.
func AggregateWithFloor(hits []hit.Hit, floor float64) (*Table, error) {
	type acc struct {
		relativePath string
		hits         int
		sum          float64
		pages        map[int]struct{}
	}

	order := make([]string, 0)
	accs := make(map[string]*acc)
	for _, h := range hits {
		a, ok := accs[h.DocumentName]
		if !ok {
			a = &acc{relativePath: h.RelativePath, pages: make(map[int]struct{})}
			accs[h.DocumentName] = a
			order = append(order, h.DocumentName)
		}
		a.hits++
		a.sum += h.Score
		a.pages[h.PageNumber] = struct{}{}
	}

	t := NewTable()
	for _, name := range order {
		a := accs[name]
		pages := make([]int, 0, len(a.pages))
		for p := range a.pages {
			pages = append(pages, p)
		}
		sort.Ints(pages)

		mean := a.sum / float64(a.hits)
		product := mean * float64(a.hits) * float64(len(pages))
		if !(product > 0) || math.IsInf(product, 0) {
			return nil, domain.NewDomainError(name, product)
		}

		t.Put(name, DocumentStats{
			RelativePath:  a.relativePath,
			Hits:          a.hits,
			Pages:         pages,
			PagesCount:    len(pages),
			Score:         mean,
			ScoreWeighted: math.Log(product),
		})
	}
	Scale(t, floor)
	return t, nil
}

// Scale sets score_weighted_scaled in place:
//
//	min_w  = |min(score_weighted)|
//	sum_w  = Σ(score_weighted + min_w)
//	scaled = max(floor, (score_weighted + min_w) / sum_w)  if sum_w > 0
//	scaled = 1.0                                            otherwise
//
// Without the floor shares sum to 1; the floor can lift the total by at
// most floor per document.
func Scale(t *Table, floor float64) {
	if t.Len() == 0 {
		return
	}
	minW := math.Inf(1)
	for _, name := range t.order {
		minW = math.Min(minW, t.rows[name].ScoreWeighted)
	}
	minW = math.Abs(minW)

	sumW := 0.0
	for _, name := range t.order {
		sumW += t.rows[name].ScoreWeighted + minW
	}

	for _, name := range t.order {
		s := t.rows[name]
		if sumW > 0 {
			s.ScoreWeightedScaled = math.Max(floor, (s.ScoreWeighted+minW)/sumW)
		} else {
			s.ScoreWeightedScaled = 1.0
		}
		t.rows[name] = s
	}
}
