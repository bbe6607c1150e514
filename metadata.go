package fab

import (
	"github.com/qri-io/fab-go/box"
)

// MetaType is the key suffix of a zarr metadata document
type MetaType string

const (
	// MTAttributes stores userland metadata keyed by array name
	MTAttributes MetaType = ".zattrs"
	// MTArray is the key for storing metadata on an array store
	MTArray MetaType = ".zarray"
	// MTGroup is the key for storing group definitions on an array store
	MTGroup MetaType = ".zgroup"
)

// OrderFortran is the ArrayMeta.Order of column-major arrays, the only
// layout a fab uses
const OrderFortran = "F"

// ArrayMeta is the ".zarray" document describing a stored fab
type ArrayMeta struct {
	// Version of the storage specification, always ZarrFormat
	ZarrFormat int `json:"zarr_format"`
	// Length of each dimension. A fab stores its SpaceDim axis lengths
	// followed by the component count.
	Shape []int `json:"shape"`
	// Length of each dimension of a chunk. Fabs are written as a single
	// chunk, so Chunks equals Shape.
	Chunks []int `json:"chunks"`
	// Element type
	Dtype Dtype `json:"dtype"`
	// Primary compression codec, null for none
	Compressor *CompressionMeta `json:"compressor"`
	// Value of slots in chunks that were never written
	FillValue interface{} `json:"fill_value"`
	// "C" for row-major, "F" for column-major
	Order string `json:"order"`
	// Filter codecs, unsupported and written as null
	Filters []Filter `json:"filters"`
	// Separator between chunk indices in chunk keys, "." by default
	DimensionSeparator string `json:"dimension_separator,omitempty"`
}

// MetaType reports the document key
func (a ArrayMeta) MetaType() MetaType { return MTArray }

// Filter is a ".zarray" filter codec. Fabs are written without filters and
// arrays that declare any are rejected when read.
type Filter struct {
	ID     string `json:"id"`
	Delta  string `json:"delta,omitempty"`
	Dtype  string `json:"dtype,omitempty"`
	AsType string `json:"astype,omitempty"`
}

// FabAttrs is the ".zattrs" document of a stored fab. It carries the box
// the array is indexed by and a digest of the uncompressed chunk.
type FabAttrs struct {
	SpaceDim int         `json:"space_dim"`
	Lo       box.IntVect `json:"lo"`
	Hi       box.IntVect `json:"hi"`
	NComp    int         `json:"ncomp"`
	// hex BLAKE3-256 of the uncompressed chunk bytes
	Blake3 string `json:"blake3,omitempty"`
}

// MetaType reports the document key
func (FabAttrs) MetaType() MetaType { return MTAttributes }

// Box returns the domain recorded in the attributes
func (a FabAttrs) Box() box.Box { return box.New(a.Lo, a.Hi) }

// Group is the ".zgroup" document. Arrays can be organized into groups,
// which can also contain other groups.
type Group struct {
	ZarrFormat int `json:"zarr_format"`
}

// MetaType reports the document key
func (Group) MetaType() MetaType { return MTGroup }
