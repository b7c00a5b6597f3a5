package types

// Detection is the feature-detection result of one snapshot.
//
// The all-zero value means no feature was found: callers must not read it
// as "core at the innermost grid point".
type Detection struct {
	ShockIndex  int     `json:"shockIndex"`
	ShockRadius float64 `json:"shockRadius"`
	CoreIndex   int     `json:"coreIndex"`
	CoreRadius  float64 `json:"coreRadius"`
}

// IsZero reports whether neither a shock nor a core was found.
func (d Detection) IsZero() bool {
	return d == Detection{}
}
