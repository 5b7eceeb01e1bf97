package analysis

import "math"

// Surface is a day-of-week by hour-of-day grid indexed [day][hour].
type Surface [7][24]float64

// At returns the value of one cell.
func (s *Surface) At(day, hour int) float64 {
	return s[day][hour]
}

// Cell is one surface coordinate with its value.
type Cell struct {
	Day   int
	Hour  int
	Value float64
}

// Cells lists all cells ordered by hour ascending, then day Sun..Sat.
func (s *Surface) Cells() []Cell {
	cells := make([]Cell, 0, 7*24)
	for h := 0; h < 24; h++ {
		for d := 0; d < 7; d++ {
			cells = append(cells, Cell{Day: d, Hour: h, Value: s[d][h]})
		}
	}
	return cells
}

// Max returns the highest cell value, ignoring NaN cells.
func (s *Surface) Max() float64 {
	best := math.Inf(-1)
	for d := 0; d < 7; d++ {
		for h := 0; h < 24; h++ {
			if !math.IsNaN(s[d][h]) {
				best = max(best, s[d][h])
			}
		}
	}
	return best
}

// cellCounter accumulates hits and totals per (day, hour).
type cellCounter struct {
	hits  [7][24]float64
	total [7][24]int
}

func (c *cellCounter) add(day, hour int, hit float64) {
	c.hits[day][hour] += hit
	c.total[day][hour]++
}

// ratio divides hits by totals with the denominator floored at 1.
func (c *cellCounter) ratio() Surface {
	var s Surface
	for d := 0; d < 7; d++ {
		for h := 0; h < 24; h++ {
			s[d][h] = c.hits[d][h] / float64(max(c.total[d][h], 1))
		}
	}
	return s
}
