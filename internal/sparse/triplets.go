package sparse

import "sort"

// Triplets accumulates (row, col, value) entries. Duplicates are summed.
type Triplets struct {
	rows, cols int
	i, j       []int
	v          []float64
}

func NewTriplets(rows, cols int) *Triplets {
	return &Triplets{rows: rows, cols: cols}
}

func (t *Triplets) Add(i, j int, v float64) {
	t.i = append(t.i, i)
	t.j = append(t.j, j)
	t.v = append(t.v, v)
}

// CSC compresses the entries. Explicit zeros are kept as structure.
func (t *Triplets) CSC() *CSC {
	order := make([]int, len(t.v))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := order[a], order[b]
		if t.j[ka] != t.j[kb] {
			return t.j[ka] < t.j[kb]
		}
		return t.i[ka] < t.i[kb]
	})

	c := &CSC{rows: t.rows, cols: t.cols, ColPtr: make([]int, t.cols+1)}
	lastI, lastJ := -1, -1
	for _, k := range order {
		if t.i[k] == lastI && t.j[k] == lastJ {
			c.Val[len(c.Val)-1] += t.v[k]
			continue
		}
		c.RowIdx = append(c.RowIdx, t.i[k])
		c.Val = append(c.Val, t.v[k])
		c.ColPtr[t.j[k]+1]++
		lastI, lastJ = t.i[k], t.j[k]
	}
	for j := 0; j < t.cols; j++ {
		c.ColPtr[j+1] += c.ColPtr[j]
	}
	if c.RowIdx == nil {
		c.RowIdx = []int{}
		c.Val = []float64{}
	}
	return c
}
