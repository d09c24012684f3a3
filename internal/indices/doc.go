// Package indices provides the integer index tuples, signed floor-division
// arithmetic, lane-mask helpers, and small combinatorics used by the tiling
// engine. All quantities are element or vector counts held as int64 so that
// halo regions may carry negative coordinates.
package indices
