package fab

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/qri-io/fab-go/box"
)

func fabFixture(t *testing.T) *IArrayBox {
	t.Helper()
	f, err := NewIArrayBox(box.New(box.Splat(-2), box.Splat(1).With(0, 5)), 2, WithInitVal(false))
	if err != nil {
		t.Fatal(err)
	}
	for c := 0; c < 2; c++ {
		for i, p := range points(f.Box()) {
			f.Set(p, c, int32((i*37+c*1001)%513-256))
		}
	}
	return f
}

func assertSameFab(t *testing.T, want, got *IArrayBox) {
	t.Helper()
	if want.Box() != got.Box() {
		t.Fatalf("box mismatch. want: %s got: %s", want.Box(), got.Box())
	}
	if want.NComp() != got.NComp() {
		t.Fatalf("ncomp mismatch. want: %d got: %d", want.NComp(), got.NComp())
	}
	for c := 0; c < want.NComp(); c++ {
		for _, p := range points(want.Box()) {
			if w, g := want.Get(p, c), got.Get(p, c); w != g {
				t.Fatalf("value mismatch at %s comp %d. want: %d got: %d", p, c, w, g)
			}
		}
	}
}

func TestWriteReadIArrayBox(t *testing.T) {
	local, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	stores := []Store{NewMemoryStore(), local}
	codecs := []string{"none", "zstd", CompressorGzip, CompressorLZ4}

	f := fabFixture(t)
	for _, s := range stores {
		for _, name := range codecs {
			comp, err := ParseCompressor(name)
			if err != nil {
				t.Fatal(err)
			}
			path := "checkpoints/" + name + "/state"
			if err := WriteIArrayBox(s, path, f, comp); err != nil {
				t.Fatalf("%s %s: %s", s.Type(), name, err)
			}
			got, err := ReadIArrayBox(s, path)
			if err != nil {
				t.Fatalf("%s %s: %s", s.Type(), name, err)
			}
			assertSameFab(t, f, got)
		}
	}
}

func TestWriteReadEmptyIArrayBox(t *testing.T) {
	s := NewMemoryStore()
	empty := box.New(box.Splat(2), box.Splat(1))
	f, err := NewIArrayBox(empty, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteIArrayBox(s, "empty", f, nil); err != nil {
		t.Fatal(err)
	}
	got, err := ReadIArrayBox(s, "empty")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsValid() || got.Size() != 0 || got.NComp() != 2 {
		t.Errorf("expected a valid fab with no slots, got: %s x %d size %d", got.Box(), got.NComp(), got.Size())
	}
	if got.Box() != empty {
		t.Errorf("box mismatch. want: %s got: %s", empty, got.Box())
	}
}

func TestWriteIArrayBoxMeta(t *testing.T) {
	s := NewMemoryStore()
	f := fabFixture(t)
	if err := WriteIArrayBox(s, "/a//b/", f, nil); err != nil {
		t.Fatal(err)
	}

	chunk := "a/b/" + "0" + repeat(".0", box.SpaceDim)
	want := []string{"a/b/.zarray", "a/b/.zattrs", chunk}
	got := s.Keys("a/")
	if len(got) != len(want) {
		t.Fatalf("keys mismatch. want: %v got: %v", want, got)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("keys mismatch. want: %v got: %v", want, got)
		}
	}

	meta, err := ReadArrayMeta(s, "a/b")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Order != OrderFortran {
		t.Errorf("order mismatch. want: %q got: %q", OrderFortran, meta.Order)
	}
	if meta.Dtype.String() != "<i4" {
		t.Errorf("dtype mismatch. want: <i4 got: %s", meta.Dtype)
	}
	if meta.Compressor != nil {
		t.Errorf("expected nil compressor, got: %v", meta.Compressor)
	}
	if meta.Shape[0] != f.Box().Length(0) || meta.Shape[box.SpaceDim] != f.NComp() {
		t.Errorf("unexpected shape: %v", meta.Shape)
	}

	// raw chunks are the fab buffer, little-endian
	rc, err := s.Get(chunk)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(rc)
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, f.View().Data)
	if !bytes.Equal(raw, buf.Bytes()) {
		t.Error("chunk bytes don't match the fab buffer")
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func TestReadIArrayBoxChecksum(t *testing.T) {
	s := NewMemoryStore()
	f := fabFixture(t)
	if err := WriteIArrayBox(s, "x", f, nil); err != nil {
		t.Fatal(err)
	}

	chunk := "x/0" + repeat(".0", box.SpaceDim)
	rc, _ := s.Get(chunk)
	raw, _ := io.ReadAll(rc)
	raw[0] ^= 0xff
	if err := s.Put(chunk, bytes.NewReader(raw)); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadIArrayBox(s, "x"); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected checksum error, got: %v", err)
	}
}

func TestReadIArrayBoxMissingChunk(t *testing.T) {
	s := NewMemoryStore()
	shape := make([]int, box.SpaceDim+1)
	for i := range shape {
		shape[i] = 2
	}
	meta := ArrayMeta{
		ZarrFormat: ZarrFormat,
		Shape:      shape,
		Chunks:     shape,
		Dtype:      Dtype{ByteOrder: BOBigEndian, BasicType: BTInteger, ByteSize: 2},
		FillValue:  -3,
		Order:      OrderFortran,
	}
	if err := putJSON(s, "m/.zarray", meta); err != nil {
		t.Fatal(err)
	}

	f, err := ReadIArrayBox(s, "m")
	if err != nil {
		t.Fatal(err)
	}
	if f.Box() != box.New(box.Splat(0), box.Splat(1)) {
		t.Errorf("unexpected box: %s", f.Box())
	}
	n, err := f.Norm(0, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected fill value magnitude 3, got: %d", n)
	}
}

func TestReadIArrayBoxForeignDtype(t *testing.T) {
	s := NewMemoryStore()
	shape := make([]int, box.SpaceDim+1)
	vol := 1
	for i := range shape {
		shape[i] = 2
		vol *= 2
	}
	meta := ArrayMeta{
		ZarrFormat: ZarrFormat,
		Shape:      shape,
		Chunks:     shape,
		Dtype:      Dtype{ByteOrder: BOBigEndian, BasicType: BTInteger, ByteSize: 8},
		Order:      OrderFortran,
	}
	if err := putJSON(s, "w/.zarray", meta); err != nil {
		t.Fatal(err)
	}
	vals := make([]int64, vol)
	for i := range vals {
		vals[i] = int64(i) - 4
	}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, vals)
	chunk := "w/0" + repeat(".0", box.SpaceDim)
	if err := s.Put(chunk, buf); err != nil {
		t.Fatal(err)
	}

	f, err := ReadIArrayBox(s, "w")
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range f.View().Data {
		if int64(v) != vals[i] {
			t.Fatalf("slot %d mismatch. want: %d got: %d", i, vals[i], v)
		}
	}

	vals[1] = 1 << 40
	buf.Reset()
	binary.Write(buf, binary.BigEndian, vals)
	if err := s.Put(chunk, buf); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadIArrayBox(s, "w"); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow error, got: %v", err)
	}
}

func TestReadIArrayBoxRejects(t *testing.T) {
	s := NewMemoryStore()
	if _, err := ReadIArrayBox(s, "nope"); !errors.Is(err, ErrNotfound) {
		t.Fatalf("expected not found, got: %v", err)
	}

	shape := make([]int, box.SpaceDim+1)
	for i := range shape {
		shape[i] = 4
	}
	cases := map[string]ArrayMeta{
		"c-order": {Shape: shape, Chunks: shape, Order: "C", Dtype: DtypeFor[int32]()},
		"rank":    {Shape: shape[1:], Chunks: shape[1:], Order: OrderFortran, Dtype: DtypeFor[int32]()},
		"chunked": {Shape: shape, Chunks: []int{1}, Order: OrderFortran, Dtype: DtypeFor[int32]()},
		"filters": {Shape: shape, Chunks: shape, Order: OrderFortran, Dtype: DtypeFor[int32](), Filters: []Filter{{ID: "delta"}}},
	}
	for name, meta := range cases {
		meta.ZarrFormat = ZarrFormat
		if err := putJSON(s, name+"/.zarray", meta); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadIArrayBox(s, name); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s: expected invalid argument, got: %v", name, err)
		}
	}
}

func TestWriteInvalidFab(t *testing.T) {
	var f IArrayBox
	if err := WriteIArrayBox(NewMemoryStore(), "x", &f, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got: %v", err)
	}
}

func TestWriteGroup(t *testing.T) {
	s := NewMemoryStore()
	if err := WriteGroup(s, "run"); err != nil {
		t.Fatal(err)
	}
	rc, err := s.Get("run/.zgroup")
	if err != nil {
		t.Fatal(err)
	}
	g := Group{}
	if err := json.NewDecoder(rc).Decode(&g); err != nil {
		t.Fatal(err)
	}
	if g.ZarrFormat != ZarrFormat {
		t.Errorf("zarr format mismatch. want: %d got: %d", ZarrFormat, g.ZarrFormat)
	}
}

func TestNewPath(t *testing.T) {
	cases := map[string]string{
		"foo/bar":       "foo/bar",
		"/foo//bar/":    "foo/bar",
		`foo\bar\baz`:   "foo/bar/baz",
		"":              "",
		"///":           "",
		"a/b/c/.zarray": "a/b/c/.zarray",
	}
	for in, want := range cases {
		p, err := NewPath(in)
		if err != nil {
			t.Fatal(err)
		}
		if p.String() != want {
			t.Errorf("%q: want: %q got: %q", in, want, p.String())
		}
	}
	if _, err := NewPath("a/../b"); err == nil {
		t.Error("expected error for relative path element")
	}

	base := Path{"a"}
	x := base.Join("x")
	y := base.Join("y")
	if x.String() != "a/x" || y.String() != "a/y" {
		t.Errorf("join aliased its receiver: %s %s", x, y)
	}
}

func TestLocalStoreNotFound(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotfound) {
		t.Fatalf("expected not found, got: %v", err)
	}
	if err := s.Put("deep/key", bytes.NewReader([]byte("v"))); err != nil {
		t.Fatal(err)
	}
	rc, err := s.Get("deep/key")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	d, _ := io.ReadAll(rc)
	if string(d) != "v" {
		t.Errorf("value mismatch. want: v got: %s", d)
	}
}
