//go:build dim1

package box

// SpaceDim is the number of spatial dimensions.
const SpaceDim = 1
