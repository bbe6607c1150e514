package fab

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/qri-io/fab-go/box"
)

const (
	// ZarrFormat is the version of the zarr storage specification fabs are
	// written in
	ZarrFormat = 2
	// chunkSeparator joins chunk indices in chunk keys
	chunkSeparator = "."
)

// Path is a logical store path split into its elements
type Path []string

// NewPath normalizes a logical path: backslashes become slashes, leading
// and trailing slashes are stripped and runs of slashes collapse.
func NewPath(posix string) (Path, error) {
	posix = strings.ReplaceAll(posix, "\\", "/")
	var p Path
	for _, el := range strings.Split(posix, "/") {
		switch el {
		case "":
			continue
		case ".", "..":
			return nil, fmt.Errorf("%w: path %q has a relative element", ErrInvalidArgument, posix)
		}
		p = append(p, el)
	}
	return p, nil
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

// Join returns a new path with elems appended. p is left untouched.
func (p Path) Join(elems ...string) Path {
	joined := make(Path, 0, len(p)+len(elems))
	joined = append(joined, p...)
	return append(joined, elems...)
}

func (p Path) key(mt MetaType) string {
	return p.Join(string(mt)).String()
}

// chunkKey is the key of the single chunk of an array with ndim dimensions
func (p Path) chunkKey(ndim int) string {
	idx := make([]string, ndim)
	for i := range idx {
		idx[i] = "0"
	}
	return p.Join(strings.Join(idx, chunkSeparator)).String()
}

// WriteGroup stores a ".zgroup" document at path
func WriteGroup(store Store, path string) error {
	p, err := NewPath(path)
	if err != nil {
		return err
	}
	return putJSON(store, p.key(MTGroup), Group{ZarrFormat: ZarrFormat})
}

// WriteIArrayBox stores f at path as a column-major zarr array of shape
// [len(axis 0), ..., len(axis SpaceDim-1), NComp] held in one chunk. The
// domain box goes in the array attributes along with a BLAKE3 digest of
// the uncompressed chunk. A nil comp stores the chunk raw.
func WriteIArrayBox(store Store, path string, f *IArrayBox, comp *CompressionMeta) error {
	if !f.IsValid() {
		return fmt.Errorf("%w: fab has no storage", ErrInvalidArgument)
	}
	p, err := NewPath(path)
	if err != nil {
		return err
	}

	dt := DtypeFor[int32]()
	raw := &bytes.Buffer{}
	raw.Grow(f.Size() * dt.ByteSize)
	if err := binary.Write(raw, dt.Order(), f.fab.buf); err != nil {
		return err
	}
	sum := blake3.Sum256(raw.Bytes())

	b := f.Box()
	shape := make([]int, 0, box.SpaceDim+1)
	for d := 0; d < box.SpaceDim; d++ {
		shape = append(shape, b.Length(d))
	}
	shape = append(shape, f.NComp())

	meta := ArrayMeta{
		ZarrFormat:         ZarrFormat,
		Shape:              shape,
		Chunks:             shape,
		Dtype:              dt,
		Compressor:         comp,
		FillValue:          0,
		Order:              OrderFortran,
		DimensionSeparator: chunkSeparator,
	}
	attrs := FabAttrs{
		SpaceDim: box.SpaceDim,
		Lo:       b.Lo,
		Hi:       b.Hi,
		NComp:    f.NComp(),
		Blake3:   hex.EncodeToString(sum[:]),
	}

	chunk := &bytes.Buffer{}
	w, err := comp.Compressor(chunk)
	if err != nil {
		return fmt.Errorf("compressing %s: %w", p, err)
	}
	if _, err := w.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("compressing %s: %w", p, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compressing %s: %w", p, err)
	}

	if err := store.Put(p.chunkKey(len(shape)), chunk); err != nil {
		return err
	}
	if err := putJSON(store, p.key(MTAttributes), attrs); err != nil {
		return err
	}
	return putJSON(store, p.key(MTArray), meta)
}

// ReadArrayMeta loads the ".zarray" document at path
func ReadArrayMeta(store Store, path string) (*ArrayMeta, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	meta := &ArrayMeta{}
	if err := getJSON(store, p.key(MTArray), meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// ReadIArrayBox loads a fab written by WriteIArrayBox. Any single chunk,
// column-major zarr array of SpaceDim+1 integer dimensions can be read;
// arrays without fab attributes are indexed from the origin. Values that
// don't fit an int32 are an error. A missing chunk reads as the fill value.
func ReadIArrayBox(store Store, path string, opts ...Option) (*IArrayBox, error) {
	p, err := NewPath(path)
	if err != nil {
		return nil, err
	}
	meta, err := ReadArrayMeta(store, path)
	if err != nil {
		return nil, err
	}
	if err := checkFabMeta(meta); err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}

	var attrs FabAttrs
	if err := getJSON(store, p.key(MTAttributes), &attrs); err != nil {
		if !errors.Is(err, ErrNotfound) {
			return nil, err
		}
		attrs = FabAttrs{SpaceDim: box.SpaceDim, NComp: meta.Shape[box.SpaceDim]}
		for d := 0; d < box.SpaceDim; d++ {
			attrs.Hi[d] = meta.Shape[d] - 1
		}
	}
	b := attrs.Box()
	if attrs.SpaceDim != box.SpaceDim || b.Size() != box.IntVect(meta.Shape[:box.SpaceDim]) || attrs.NComp != meta.Shape[box.SpaceDim] {
		return nil, fmt.Errorf("reading %s: %w: attributes %s x %d don't match shape %v", p, ErrInvalidArgument, b, attrs.NComp, meta.Shape)
	}

	f, err := NewIArrayBox(b, attrs.NComp, opts...)
	if err != nil {
		return nil, err
	}

	rc, err := store.Get(p.chunkKey(len(meta.Shape)))
	if errors.Is(err, ErrNotfound) {
		fill, err := fillValue(meta.FillValue)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		return f.SetAll(fill), nil
	} else if err != nil {
		return nil, err
	}

	r, err := meta.Compressor.Decompressor(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}

	if attrs.Blake3 != "" {
		sum := blake3.Sum256(raw)
		if got := hex.EncodeToString(sum[:]); got != attrs.Blake3 {
			return nil, fmt.Errorf("reading %s: %w: chunk digest %s, attributes say %s", p, ErrChecksum, got, attrs.Blake3)
		}
	}
	if err := decodeInt32s(f.fab.buf, meta.Dtype, raw); err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}
	return f, nil
}

func checkFabMeta(meta *ArrayMeta) error {
	if meta.Order != OrderFortran {
		return fmt.Errorf("%w: order %q, fabs are column-major", ErrInvalidArgument, meta.Order)
	}
	if len(meta.Shape) != box.SpaceDim+1 {
		return fmt.Errorf("%w: %d dimensions, want %d", ErrInvalidArgument, len(meta.Shape), box.SpaceDim+1)
	}
	for i, n := range meta.Shape {
		// spatial axes of an empty box have length zero
		if n < 0 || (i == box.SpaceDim && n < 1) {
			return fmt.Errorf("%w: dimension %d has length %d", ErrInvalidArgument, i, n)
		}
		if i >= len(meta.Chunks) || meta.Chunks[i] < n {
			return fmt.Errorf("%w: chunked arrays are not supported, chunks %v shape %v", ErrInvalidArgument, meta.Chunks, meta.Shape)
		}
	}
	if len(meta.Filters) > 0 {
		return fmt.Errorf("%w: filters are not supported", ErrInvalidArgument)
	}
	return nil
}

// decodeInt32s decodes raw, a column-major chunk of dt values, into dst
func decodeInt32s(dst []int32, dt Dtype, raw []byte) error {
	if dt.BasicType != BTInteger && dt.BasicType != BTUnsigned {
		return fmt.Errorf("%w: dtype %s is not an integer type", ErrInvalidArgument, dt)
	}
	if len(raw) != len(dst)*dt.ByteSize {
		return fmt.Errorf("%w: chunk holds %d bytes, want %d", ErrInvalidArgument, len(raw), len(dst)*dt.ByteSize)
	}
	if len(dst) == 0 {
		return nil
	}

	vals, err := newValueSlice(dt, len(dst))
	if err != nil {
		return err
	}
	if err := binary.Read(bytes.NewReader(raw), dt.Order(), vals); err != nil {
		return err
	}

	var at func(i int) int64
	switch v := vals.(type) {
	case []int8:
		at = func(i int) int64 { return int64(v[i]) }
	case []int16:
		at = func(i int) int64 { return int64(v[i]) }
	case []int32:
		copy(dst, v)
		return nil
	case []int64:
		at = func(i int) int64 { return v[i] }
	case []uint8:
		at = func(i int) int64 { return int64(v[i]) }
	case []uint16:
		at = func(i int) int64 { return int64(v[i]) }
	case []uint32:
		at = func(i int) int64 { return int64(v[i]) }
	case []uint64:
		at = func(i int) int64 {
			if v[i] > math.MaxInt64 {
				return math.MaxInt64
			}
			return int64(v[i])
		}
	}
	for i := range dst {
		x := at(i)
		if x < math.MinInt32 || x > math.MaxInt32 {
			return fmt.Errorf("%w: value %d at slot %d doesn't fit int32", ErrOverflow, x, i)
		}
		dst[i] = int32(x)
	}
	return nil
}

// newValueSlice allocates a slice of size values of integer dtype dt for
// binary.Read
func newValueSlice(dt Dtype, size int) (interface{}, error) {
	switch dt.BasicType {
	case BTInteger:
		switch dt.ByteSize {
		case 1:
			return make([]int8, size), nil
		case 2:
			return make([]int16, size), nil
		case 4:
			return make([]int32, size), nil
		case 8:
			return make([]int64, size), nil
		}
	case BTUnsigned:
		switch dt.ByteSize {
		case 1:
			return make([]uint8, size), nil
		case 2:
			return make([]uint16, size), nil
		case 4:
			return make([]uint32, size), nil
		case 8:
			return make([]uint64, size), nil
		}
	}
	return nil, fmt.Errorf("%w: unsupported dtype %s", ErrInvalidArgument, dt)
}

// fillValue converts a decoded ".zarray" fill_value to an element
func fillValue(v interface{}) (int32, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt32 || x > math.MaxInt32 {
			return 0, fmt.Errorf("%w: fill value %v is not an int32", ErrInvalidArgument, x)
		}
		return int32(x), nil
	default:
		return 0, fmt.Errorf("%w: fill value %v is not an int32", ErrInvalidArgument, v)
	}
}

func putJSON(store Store, key string, v interface{}) error {
	d, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return store.Put(key, bytes.NewReader(d))
}

func getJSON(store Store, key string, v interface{}) error {
	rc, err := store.Get(key)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}
