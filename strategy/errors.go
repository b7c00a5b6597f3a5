package strategy

import "github.com/arloliu/shocktrack/types"

// Re-exported partition errors for callers that only import strategy.
var (
	ErrInvalidInput = types.ErrInvalidPartitionInput
	ErrOverlap      = types.ErrPartitionOverlap
	ErrGap          = types.ErrPartitionGap
)
