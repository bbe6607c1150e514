// fab is a small tool for building, checkpointing and inspecting integer
// Fortran array boxes.
//
// Usage:
//
//	fab norm  --box "((0,0,0) (3,0,0))" --fill 2 [--p 2] [--sub BOX]
//	fab write --store DIR --path NAME --box BOX --fill V [--compressor zstd]
//	fab info  --store DIR --path NAME
//
// Every subcommand accepts --params FILE, a YAML parameter file whose
// "fab" section configures debug initialization, and --log-level.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	fab "github.com/qri-io/fab-go"
	"github.com/qri-io/fab-go/box"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// common holds the flags shared by every subcommand
type common struct {
	params   string
	logLevel string
}

func (c *common) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.params, "params", "", "YAML parameter file")
	fs.StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
}

// setup configures logging and the process-wide fab settings. The
// returned func undoes it.
func (c *common) setup() (func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	fab.SetLogger(logger)

	src := fab.Chain{fab.EnvParams{}}
	if c.params != "" {
		p, err := fab.LoadParamsFile(c.params)
		if err != nil {
			return nil, err
		}
		src = append(src, p)
	}
	if err := fab.Initialize(src); err != nil {
		return nil, err
	}
	return fab.Finalize, nil
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errors.New("missing subcommand")
	}
	switch args[0] {
	case "norm":
		return runNorm(args[1:], out)
	case "write":
		return runWrite(args[1:], out)
	case "info":
		return runInfo(args[1:], out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `fab builds, checkpoints and inspects integer Fortran array boxes.

Usage:
  fab norm  --box BOX [--ncomp N] [--fill V] [--sub BOX] [--p P] [--scomp C] [--nnorm N]
  fab write --store DIR --path NAME --box BOX [--ncomp N] [--fill V] [--compressor none|zstd|gzip|lz4]
  fab info  --store DIR --path NAME

Boxes are written as "((lo) (hi))", for example "((0,0,0) (3,3,3))".
`)
}

// fabFlags describes a fab built from the command line
type fabFlags struct {
	domain box.Box
	ncomp  int
	fill   int32
}

func (f *fabFlags) addFlags(fs *pflag.FlagSet) {
	fs.Var(&f.domain, "box", "domain of the fab")
	fs.IntVar(&f.ncomp, "ncomp", 1, "number of components")
	fs.Int32Var(&f.fill, "fill", 0, "value assigned to every slot")
}

func (f *fabFlags) build(fs *pflag.FlagSet) (*fab.IArrayBox, error) {
	if !fs.Changed("box") {
		return nil, errors.New("--box is required")
	}
	x, err := fab.NewIArrayBox(f.domain, f.ncomp)
	if err != nil {
		return nil, err
	}
	return x.SetAll(f.fill), nil
}

func runNorm(args []string, out io.Writer) error {
	var (
		c     common
		ff    fabFlags
		sub   box.Box
		p     int
		scomp int
		nnorm int
	)
	fs := pflag.NewFlagSet("fab norm", pflag.ContinueOnError)
	c.addFlags(fs)
	ff.addFlags(fs)
	fs.Var(&sub, "sub", "sub-box to reduce over (default: the whole domain)")
	fs.IntVar(&p, "p", fab.DefaultNormP, "norm exponent: 0 max, 1 sum, >1 Lp")
	fs.IntVar(&scomp, "scomp", fab.DefaultNormComp, "first component")
	fs.IntVar(&nnorm, "nnorm", fab.DefaultNormNComp, "number of components")
	if err := fs.Parse(args); err != nil {
		return err
	}

	teardown, err := c.setup()
	if err != nil {
		return err
	}
	defer teardown()

	x, err := ff.build(fs)
	if err != nil {
		return err
	}
	defer x.Clear()

	if !fs.Changed("sub") {
		sub = x.Box()
	}
	n, err := x.NormBox(sub, p, scomp, nnorm)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, n)
	return nil
}

func runWrite(args []string, out io.Writer) error {
	var (
		c          common
		ff         fabFlags
		storeDir   string
		path       string
		compressor string
	)
	fs := pflag.NewFlagSet("fab write", pflag.ContinueOnError)
	c.addFlags(fs)
	ff.addFlags(fs)
	fs.StringVar(&storeDir, "store", "", "directory of the array store")
	fs.StringVar(&path, "path", "", "array path inside the store")
	fs.StringVar(&compressor, "compressor", "zstd", "chunk compressor: none, zstd, gzip or lz4")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if storeDir == "" || path == "" {
		return errors.New("--store and --path are required")
	}

	teardown, err := c.setup()
	if err != nil {
		return err
	}
	defer teardown()

	comp, err := fab.ParseCompressor(compressor)
	if err != nil {
		return err
	}
	store, err := fab.NewLocalStore(storeDir)
	if err != nil {
		return err
	}
	x, err := ff.build(fs)
	if err != nil {
		return err
	}
	defer x.Clear()

	trimmed := strings.Trim(path, "/")
	if i := strings.LastIndex(trimmed, "/"); i > 0 {
		if err := fab.WriteGroup(store, trimmed[:i]); err != nil {
			return err
		}
	}
	if err := fab.WriteIArrayBox(store, path, x, comp); err != nil {
		return err
	}
	slog.Default().Debug("wrote fab", "path", path, "box", x.Box().String(), "ncomp", x.NComp())
	fmt.Fprintf(out, "wrote %s %s x %d\n", path, x.Box(), x.NComp())
	return nil
}

func runInfo(args []string, out io.Writer) error {
	var (
		c        common
		storeDir string
		path     string
	)
	fs := pflag.NewFlagSet("fab info", pflag.ContinueOnError)
	c.addFlags(fs)
	fs.StringVar(&storeDir, "store", "", "directory of the array store")
	fs.StringVar(&path, "path", "", "array path inside the store")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if storeDir == "" || path == "" {
		return errors.New("--store and --path are required")
	}

	teardown, err := c.setup()
	if err != nil {
		return err
	}
	defer teardown()

	store, err := fab.NewLocalStore(storeDir)
	if err != nil {
		return err
	}
	meta, err := fab.ReadArrayMeta(store, path)
	if err != nil {
		return err
	}
	x, err := fab.ReadIArrayBox(store, path)
	if err != nil {
		return err
	}
	defer x.Clear()

	codec := "none"
	if meta.Compressor != nil {
		codec = meta.Compressor.ID
	}
	fmt.Fprintf(out, "box:        %s\n", x.Box())
	fmt.Fprintf(out, "ncomp:      %d\n", x.NComp())
	fmt.Fprintf(out, "dtype:      %s\n", meta.Dtype)
	fmt.Fprintf(out, "compressor: %s\n", codec)
	for comp := 0; comp < x.NComp(); comp++ {
		var norms [3]int64
		for p := range norms {
			if norms[p], err = x.Norm(p, comp, 1); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "comp %d:     max %d  sum %d  l2 %d\n", comp, norms[0], norms[1], norms[2])
	}
	return nil
}
