package stats

import "sort"

// Cell counts exposures and submits for one (block, source) pair.
type Cell struct {
	Exposures int
	Submits   int
}

// BlockPosteriors is the two-level estimate for one content block.
type BlockPosteriors struct {
	Global    Posterior                  `json:"global"`
	Sources   map[string]SourcePosterior `json:"sources"`
	Exposures int                        `json:"exposures"`
	Submits   int                        `json:"submits"`
}

// Tally accumulates per-(block, source) counts. The zero value is not
// usable; call NewTally.
type Tally struct {
	cells map[string]map[string]*Cell
}

func NewTally() *Tally {
	return &Tally{cells: make(map[string]map[string]*Cell)}
}

func (t *Tally) cell(block, source string) *Cell {
	bySource, ok := t.cells[block]
	if !ok {
		bySource = make(map[string]*Cell)
		t.cells[block] = bySource
	}
	c, ok := bySource[source]
	if !ok {
		c = &Cell{}
		bySource[source] = c
	}
	return c
}

// Touch registers a block/source pair without counting anything.
func (t *Tally) Touch(block, source string) { t.cell(block, source) }

func (t *Tally) AddExposure(block, source string) { t.cell(block, source).Exposures++ }

func (t *Tally) AddSubmit(block, source string) { t.cell(block, source).Submits++ }

// Blocks returns the tallied block ids in sorted order.
func (t *Tally) Blocks() []string {
	ids := make([]string, 0, len(t.cells))
	for id := range t.cells {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cell returns the counts for a pair, zero when absent.
func (t *Tally) Cell(block, source string) Cell {
	if c, ok := t.cells[block][source]; ok {
		return *c
	}
	return Cell{}
}

// Totals sums a block's counts over every source.
func (t *Tally) Totals(block string) Cell {
	var total Cell
	for _, c := range t.cells[block] {
		total.Exposures += c.Exposures
		total.Submits += c.Submits
	}
	return total
}

// Compose computes, per block, the global posterior over all sources and a
// source-segmented posterior per source shrunk toward the global mean.
//
// Counts come from a capped event log, which can retain a submit whose
// exposure was evicted; submits are bounded by exposures per cell before
// estimation.
func (t *Tally) Compose(kappa float64) (map[string]BlockPosteriors, error) {
	out := make(map[string]BlockPosteriors, len(t.cells))
	for _, block := range t.Blocks() {
		var n, k int
		for _, c := range t.cells[block] {
			n += c.Exposures
			k += bounded(*c).Submits
		}

		global, err := GlobalPosterior(k, n)
		if err != nil {
			return nil, err
		}
		global.BlockID = block

		sources := make(map[string]SourcePosterior, len(t.cells[block]))
		for source, c := range t.cells[block] {
			b := bounded(*c)
			sp, err := SourcePosteriorFromGlobal(b.Submits, b.Exposures, global.Mean, kappa, block)
			if err != nil {
				return nil, err
			}
			sources[source] = sp
		}

		out[block] = BlockPosteriors{Global: global, Sources: sources, Exposures: n, Submits: k}
	}
	return out, nil
}

func bounded(c Cell) Cell {
	if c.Submits > c.Exposures {
		c.Submits = c.Exposures
	}
	return c
}
