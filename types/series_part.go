package types

// SeriesPart is one worker's contribution to the per-snapshot series.
//
// Columns hold Interval.Len() values each; value j belongs to snapshot
// index Interval.Start+j. Idle workers send an empty part.
type SeriesPart struct {
	Rank     int                  `json:"rank"`
	Interval WorkInterval         `json:"interval"`
	Columns  map[string][]float64 `json:"columns"`
}
