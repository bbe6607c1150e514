//go:build !dim1 && !dim2

package box

// SpaceDim is the number of spatial dimensions. Build with -tags dim1 or
// -tags dim2 for lower dimensional builds.
const SpaceDim = 3
