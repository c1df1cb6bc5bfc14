package telemetry

import "time"

// LabelLayout formats chart labels as a local wall clock time
const LabelLayout = "3:04:05 PM"

// Transform maps readings to chart points labelled in the local time zone.
// See TransformIn.
func Transform(readings []Reading, mode DisplayMode) []ChartPoint {
	return TransformIn(readings, mode, time.Local)
}

// TransformIn maps readings to chart points labelled in loc. Aggregated
// readings keep their order; Individual readings arrive newest-first and are
// reversed so the series is oldest-first. The output always has the same
// length as the input.
func TransformIn(readings []Reading, mode DisplayMode, loc *time.Location) []ChartPoint {
	if loc == nil {
		loc = time.Local
	}

	points := make([]ChartPoint, len(readings))
	n := len(readings)
	for i, r := range readings {
		idx := i
		if mode == Individual {
			idx = n - 1 - i
		}
		points[idx] = ChartPoint{
			Label: r.Timestamp.In(loc).Format(LabelLayout),
			Value: r.Moisture,
		}
	}
	return points
}
