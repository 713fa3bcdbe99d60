package weights

import "errors"

// ErrWeightsDoNotSumToOne is returned when weights miss 1.0 by 0.01 or more.
var ErrWeightsDoNotSumToOne = errors.New("weights do not sum to 1.0")
