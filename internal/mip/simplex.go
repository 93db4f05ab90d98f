package mip

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	pivotTol = 1e-9
	feasTol  = 1e-6
	// degenerate pivots in a row before switching to Bland's rule
	blandAfter = 50
	// pivots between checks of the search context
	ctxCheckEvery = 32
)

// errStopped reports that the search context ended during an LP solve
var errStopped = errors.New("mip: search stopped")

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
)

type lpResult struct {
	status    lpStatus
	x         []float64
	objective float64
}

// tableau is a dense bounded-variable simplex tableau. Rows 0..m-1 are
// constraints, row m holds reduced costs; the last column is the right-hand
// side. Every column j lives in [0, upper[j]]. Nonbasic columns sit at zero:
// a variable resting at its upper bound is complemented (x = upper - y) and
// marked in flipped.
type tableau struct {
	t       *mat.Dense
	m, n    int
	basis   []int
	upper   []float64
	flipped []bool
	art     []bool
}

func (tb *tableau) row(i int) []float64 { return tb.t.RawRowView(i) }

func (tb *tableau) rhs(i int) float64 { return tb.t.At(i, tb.n) }

func (tb *tableau) pivot(r, q int) {
	pr := tb.row(r)
	floats.Scale(1/pr[q], pr)
	pr[q] = 1
	for i := 0; i <= tb.m; i++ {
		if i == r {
			continue
		}
		ri := tb.row(i)
		if f := ri[q]; f != 0 {
			floats.AddScaled(ri, -f, pr)
			ri[q] = 0
		}
	}
	tb.basis[r] = q
}

// complement substitutes column j by upper[j] minus itself. j must be nonbasic.
func (tb *tableau) complement(j int) {
	u := tb.upper[j]
	for i := 0; i <= tb.m; i++ {
		ri := tb.row(i)
		if a := ri[j]; a != 0 {
			ri[tb.n] -= a * u
			ri[j] = -a
		}
	}
	tb.flipped[j] = !tb.flipped[j]
}

// setObjective loads reduced costs for maximizing cost·x under the current
// basis. cost is given for the uncomplemented columns.
func (tb *tableau) setObjective(cost []float64) {
	obj := tb.row(tb.m)
	for j := range obj {
		obj[j] = 0
	}
	work := make([]float64, tb.n)
	for j := 0; j < tb.n; j++ {
		work[j] = cost[j]
		if tb.flipped[j] {
			obj[tb.n] += cost[j] * tb.upper[j]
			work[j] = -cost[j]
		}
		obj[j] = -work[j]
	}
	for i := 0; i < tb.m; i++ {
		if cb := work[tb.basis[i]]; cb != 0 {
			floats.AddScaled(obj, cb, tb.row(i))
		}
	}
}

func (tb *tableau) entering(allowed func(int) bool, bland bool) int {
	obj := tb.row(tb.m)
	best, bestVal := -1, -pivotTol
	for j := 0; j < tb.n; j++ {
		if !allowed(j) || obj[j] >= -pivotTol {
			continue
		}
		if bland {
			return j
		}
		if obj[j] < bestVal {
			best, bestVal = j, obj[j]
		}
	}
	return best
}

// ratio finds how far column q can increase. It returns the blocking row, or
// -1 when q reaches its own upper bound first, whether the leaving variable
// stops at its upper bound, and the step length.
func (tb *tableau) ratio(q int) (r int, toUpper bool, step float64) {
	r, step = -1, tb.upper[q]
	for i := 0; i < tb.m; i++ {
		a := tb.t.At(i, q)
		var s float64
		up := false
		switch {
		case a > pivotTol:
			s = math.Max(tb.rhs(i), 0) / a
		case a < -pivotTol:
			u := tb.upper[tb.basis[i]]
			if math.IsInf(u, 1) {
				continue
			}
			s = math.Max(u-tb.rhs(i), 0) / -a
			up = true
		default:
			continue
		}
		switch {
		case s < step-pivotTol:
			r, toUpper, step = i, up, s
		case s <= step+pivotTol && r >= 0 && tb.basis[i] < tb.basis[r]:
			r, toUpper, step = i, up, math.Min(s, step)
		}
	}
	return r, toUpper, step
}

func (tb *tableau) optimize(ctx context.Context, allowed func(int) bool) error {
	maxIter := 50*(tb.m+tb.n) + 1000
	bland := false
	degenerate := 0
	for iter := 0; iter < maxIter; iter++ {
		if iter%ctxCheckEvery == 0 && ctx.Err() != nil {
			return errStopped
		}
		q := tb.entering(allowed, bland)
		if q < 0 {
			return nil
		}
		r, toUpper, step := tb.ratio(q)
		if r < 0 {
			if math.IsInf(step, 1) {
				return ErrUnbounded
			}
			tb.complement(q)
			degenerate = 0
			continue
		}
		if step <= pivotTol {
			degenerate++
			if degenerate > blandAfter {
				bland = true
			}
		} else {
			degenerate = 0
		}
		leaving := tb.basis[r]
		tb.pivot(r, q)
		if toUpper {
			tb.complement(leaving)
		}
	}
	return ErrIterationLimit
}

// simplex solves LP relaxations, reusing its tableau storage between calls
type simplex struct {
	buf *mat.Dense
}

func (sx *simplex) dense(r, c int) *mat.Dense {
	if sx.buf == nil {
		sx.buf = mat.NewDense(r, c, nil)
		return sx.buf
	}
	sx.buf.Reset()
	sx.buf.ReuseAs(r, c)
	return sx.buf
}

type lpRow struct {
	con   *Constraint
	sign  float64
	sense Sense
	rhs   float64
}

// solve maximizes c·x subject to rows and lb <= x <= ub with a two-phase
// bounded primal simplex. Fixed columns are substituted out and the remaining
// columns are shifted to [0, ub-lb]. It returns errStopped once ctx is done.
func (sx *simplex) solve(ctx context.Context, c []float64, rows []*Constraint, lb, ub []float64) (*lpResult, error) {
	n := len(c)
	pos := make([]int, n)
	var free []int
	for j := 0; j < n; j++ {
		if lb[j] > ub[j]+feasTol {
			return &lpResult{status: lpInfeasible}, nil
		}
		if ub[j]-lb[j] > feasTol {
			pos[j] = len(free)
			free = append(free, j)
		} else {
			pos[j] = -1
		}
	}
	nf := len(free)

	lps := make([]lpRow, 0, len(rows))
	for _, con := range rows {
		rhs := con.RHS
		coupled := false
		for _, t := range con.Expr.terms {
			if t.Coef == 0 {
				continue
			}
			rhs -= t.Coef * lb[t.Var.index]
			coupled = coupled || pos[t.Var.index] >= 0
		}
		if !coupled {
			if violatesEmpty(con.Sense, rhs) {
				return &lpResult{status: lpInfeasible}, nil
			}
			continue
		}
		r := lpRow{con: con, sign: 1, sense: con.Sense, rhs: rhs}
		if rhs < 0 {
			r.sign, r.rhs = -1, -rhs
			switch r.sense {
			case LessEqual:
				r.sense = GreaterEqual
			case GreaterEqual:
				r.sense = LessEqual
			}
		}
		lps = append(lps, r)
	}

	x := make([]float64, n)
	copy(x, lb)
	if nf == 0 || len(lps) == 0 {
		// Nothing couples the free columns: push each to its best bound.
		for _, j := range free {
			if c[j] > 0 {
				if math.IsInf(ub[j], 1) {
					return nil, ErrUnbounded
				}
				x[j] = ub[j]
			}
		}
		return &lpResult{status: lpOptimal, x: x, objective: floats.Dot(c, x)}, nil
	}

	m := len(lps)
	nSlack, nArt := 0, 0
	for _, r := range lps {
		if r.sense != Equal {
			nSlack++
		}
		if r.sense != LessEqual {
			nArt++
		}
	}
	cols := nf + nSlack + nArt
	tb := &tableau{
		t:       sx.dense(m+1, cols+1),
		m:       m,
		n:       cols,
		basis:   make([]int, m),
		upper:   make([]float64, cols),
		flipped: make([]bool, cols),
		art:     make([]bool, cols),
	}
	for k, j := range free {
		tb.upper[k] = ub[j] - lb[j]
	}
	for k := nf; k < cols; k++ {
		tb.upper[k] = math.Inf(1)
	}

	slack, artCol := nf, nf+nSlack
	for i, r := range lps {
		row := tb.row(i)
		for _, t := range r.con.Expr.terms {
			if k := pos[t.Var.index]; k >= 0 {
				row[k] += r.sign * t.Coef
			}
		}
		row[cols] = r.rhs
		switch r.sense {
		case LessEqual:
			row[slack] = 1
			tb.basis[i] = slack
			slack++
		case GreaterEqual:
			row[slack] = -1
			slack++
			row[artCol] = 1
			tb.art[artCol] = true
			tb.basis[i] = artCol
			artCol++
		case Equal:
			row[artCol] = 1
			tb.art[artCol] = true
			tb.basis[i] = artCol
			artCol++
		}
	}

	all := func(int) bool { return true }
	if nArt > 0 {
		phase1 := make([]float64, cols)
		for j := range phase1 {
			if tb.art[j] {
				phase1[j] = -1
			}
		}
		tb.setObjective(phase1)
		if err := tb.optimize(ctx, all); err != nil {
			return nil, err
		}
		if tb.rhs(m) < -feasTol {
			return &lpResult{status: lpInfeasible}, nil
		}
		// Drive zero-level artificials out of the basis; rows with no
		// structural or slack entry are redundant and keep theirs.
		for i := 0; i < m; i++ {
			if !tb.art[tb.basis[i]] {
				continue
			}
			row := tb.row(i)
			for j := 0; j < nf+nSlack; j++ {
				if math.Abs(row[j]) > pivotTol {
					tb.pivot(i, j)
					break
				}
			}
		}
	}

	phase2 := make([]float64, cols)
	for k, j := range free {
		phase2[k] = c[j]
	}
	tb.setObjective(phase2)
	if err := tb.optimize(ctx, func(j int) bool { return !tb.art[j] }); err != nil {
		return nil, err
	}

	work := make([]float64, nf)
	for i := 0; i < m; i++ {
		if k := tb.basis[i]; k < nf {
			work[k] = tb.rhs(i)
		}
	}
	for k, j := range free {
		v := math.Min(math.Max(work[k], 0), tb.upper[k])
		if tb.flipped[k] {
			v = tb.upper[k] - v
		}
		x[j] = lb[j] + v
	}
	return &lpResult{status: lpOptimal, x: x, objective: floats.Dot(c, x)}, nil
}

func violatesEmpty(sense Sense, rhs float64) bool {
	switch sense {
	case LessEqual:
		return rhs < -feasTol
	case GreaterEqual:
		return rhs > feasTol
	default:
		return math.Abs(rhs) > feasTol
	}
}
