package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qri-io/fab-go/box"
)

func lineBox(n int) string {
	return box.New(box.Splat(0), box.Splat(0).With(0, n-1)).String()
}

func TestRunNorm(t *testing.T) {
	cases := []struct {
		p    string
		want string
	}{
		{"2", "4"},
		{"1", "8"},
		{"0", "2"},
	}
	for _, c := range cases {
		out := &bytes.Buffer{}
		require.NoError(t, run([]string{"norm", "--box", lineBox(4), "--fill", "2", "--p", c.p}, out))
		assert.Equal(t, c.want, strings.TrimSpace(out.String()), "p=%s", c.p)
	}

	out := &bytes.Buffer{}
	require.NoError(t, run([]string{"norm", "--box", lineBox(4), "--fill", "-1", "--p", "1", "--sub", lineBox(2)}, out))
	assert.Equal(t, "2", strings.TrimSpace(out.String()))
}

func TestRunNormErrors(t *testing.T) {
	out := &bytes.Buffer{}
	assert.Error(t, run([]string{"norm", "--box", lineBox(4), "--p", "-1"}, out))
	assert.Error(t, run([]string{"norm", "--fill", "1"}, out))
	assert.Error(t, run([]string{"norm", "--box", "nonsense"}, out))
	assert.Error(t, run([]string{"bogus"}, out))
	assert.Error(t, run(nil, out))
}

func TestRunNormParams(t *testing.T) {
	dir := t.TempDir()
	params := filepath.Join(dir, "fab.yaml")
	require.NoError(t, os.WriteFile(params, []byte("fab:\n  do_initval: true\n  init_value: 3\n"), 0644))

	// the fill overwrites the debug value
	out := &bytes.Buffer{}
	require.NoError(t, run([]string{"norm", "--params", params, "--box", lineBox(4), "--fill", "1", "--p", "1"}, out))
	assert.Equal(t, "4", strings.TrimSpace(out.String()))

	require.NoError(t, os.WriteFile(params, []byte("fab:\n  do_initval: often\n"), 0644))
	assert.Error(t, run([]string{"norm", "--params", params, "--box", lineBox(4)}, out))
}

func TestRunWriteInfo(t *testing.T) {
	dir := t.TempDir()
	out := &bytes.Buffer{}
	require.NoError(t, run([]string{
		"write", "--store", dir, "--path", "run/level0", "--box", lineBox(4), "--ncomp", "2", "--fill", "-3", "--compressor", "lz4",
	}, out))
	assert.Contains(t, out.String(), "wrote run/level0")

	_, err := os.Stat(filepath.Join(dir, "run", ".zgroup"))
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, run([]string{"info", "--store", dir, "--path", "run/level0"}, out))
	info := out.String()
	assert.Contains(t, info, "ncomp:      2")
	assert.Contains(t, info, "dtype:      <i4")
	assert.Contains(t, info, "compressor: lz4")
	assert.Contains(t, info, "comp 1:     max 3  sum 12  l2 6")

	assert.Error(t, run([]string{"info", "--store", dir, "--path", "missing"}, out))
	assert.Error(t, run([]string{"write", "--box", lineBox(4)}, out))
}
