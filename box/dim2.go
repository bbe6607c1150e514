//go:build dim2 && !dim1

package box

// SpaceDim is the number of spatial dimensions.
const SpaceDim = 2
