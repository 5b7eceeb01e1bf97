package analysis

import "time"

// DayNames are surface column labels, Sunday first.
var DayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Enriched is an observation with derived calendar and deal attributes.
type Enriched struct {
	Observation

	DayOfWeek      int
	Hour           int
	Month          int
	DayName        string
	MonthName      string
	Season         string
	IsWeekend      bool
	IsGoodDeal     bool
	DaysSinceStart float64
}

// Enrich derives features for every observation. Calendar fields are taken
// in UTC. DaysSinceStart is relative to the earliest observation in obs.
func Enrich(obs []Observation, rules Ruleset) []Enriched {
	out := make([]Enriched, len(obs))
	if len(obs) == 0 {
		return out
	}

	start := obs[0].ObservedAt
	for _, o := range obs[1:] {
		if o.ObservedAt.Before(start) {
			start = o.ObservedAt
		}
	}

	for i, o := range obs {
		at := o.ObservedAt.UTC()
		day := int(at.Weekday())
		month := int(at.Month())
		out[i] = Enriched{
			Observation:    o,
			DayOfWeek:      day,
			Hour:           at.Hour(),
			Month:          month,
			DayName:        DayNames[day],
			MonthName:      monthNames[month-1],
			Season:         Season(at.Month()),
			IsWeekend:      day == 0 || day == 6,
			IsGoodDeal:     rules.IsGood(o.Tier),
			DaysSinceStart: daysBetween(start, o.ObservedAt),
		}
	}
	return out
}

// Season maps a month to its Northern-hemisphere season.
func Season(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return "Winter"
	case time.March, time.April, time.May:
		return "Spring"
	case time.June, time.July, time.August:
		return "Summer"
	default:
		return "Autumn"
	}
}

func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Seconds() / 86400
}
