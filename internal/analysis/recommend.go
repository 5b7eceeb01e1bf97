package analysis

// Recommendation is the best slot to look for a deal.
type Recommendation struct {
	Hour        int
	Day         int
	DayName     string
	Probability float64
}

// BestTimeToBuy picks the cell with the highest value. Ties go to the lowest
// hour, then the lowest day index.
func BestTimeToBuy(s Surface) Recommendation {
	best := Cell{Value: -1}
	for _, c := range s.Cells() {
		if c.Value > best.Value {
			best = c
		}
	}
	return Recommendation{
		Hour:        best.Hour,
		Day:         best.Day,
		DayName:     DayNames[best.Day],
		Probability: round(best.Value, 3),
	}
}
