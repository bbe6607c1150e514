package fab

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
)

// DebugInitValue is written to every slot of a newly allocated IArrayBox
// while debug initialization is enabled. Reading it back usually means the
// slot was never written.
const DebugInitValue int32 = math.MaxInt32

// Parameter names read by Initialize
const (
	ParamDoInitVal    = "fab.do_initval"
	ParamInitValue    = "fab.init_value"
	ParamNormRounding = "fab.norm_rounding"
	ParamMaxSlots     = "fab.max_slots"
	ParamChecked      = "fab.checked"
)

// Settings is the construction-time configuration of an IArrayBox
type Settings struct {
	// InitVal fills newly allocated buffers with InitValue
	InitVal bool
	// InitValue is the debug fill value
	InitValue int32
	// Rounding converts the real p-th root of a p > 1 norm to an integer
	Rounding Rounding
	// MaxSlots caps the slot count of a single buffer, zero means no cap
	MaxSlots int
	// Checked verifies buffer invariants after every resize
	Checked bool
	// Logger receives debug records, nil discards them
	Logger *slog.Logger
}

// DefaultSettings is the configuration in effect before Initialize and
// after Finalize
func DefaultSettings() Settings {
	return Settings{
		InitValue: DebugInitValue,
		Rounding:  RoundTruncate,
	}
}

func (s Settings) logger() *slog.Logger {
	if s.Logger == nil {
		return discardLogger
	}
	return s.Logger
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var (
	settingsMu sync.RWMutex
	settings   = DefaultSettings()
	pkgLogger  *slog.Logger
)

// SetLogger sets the logger used by Initialize, Finalize and every
// IArrayBox built from the process-wide settings. nil discards.
func SetLogger(l *slog.Logger) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	pkgLogger = l
	settings.Logger = l
}

// CurrentSettings returns the process-wide settings new IArrayBoxes start
// from
func CurrentSettings() Settings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settings
}

// Initialize configures the process-wide settings from src, reading the
// "fab" prefixed parameters. Absent parameters keep their defaults, so an
// empty source leaves debug initialization disabled. Calling Initialize
// again recomputes the settings from scratch; repeated calls with the same
// source converge on the same state.
func Initialize(src ParamSource) error {
	s, err := ParseSettings(src)
	if err != nil {
		return err
	}

	settingsMu.Lock()
	s.Logger = pkgLogger
	settings = s
	settingsMu.Unlock()

	s.logger().Debug("fab settings initialized",
		"do_initval", s.InitVal,
		"init_value", s.InitValue,
		"norm_rounding", s.Rounding.String(),
		"max_slots", s.MaxSlots,
		"checked", s.Checked,
	)
	return nil
}

// Finalize restores the default settings. It is safe to call without a
// prior Initialize and any number of times.
func Finalize() {
	settingsMu.Lock()
	s := DefaultSettings()
	s.Logger = pkgLogger
	settings = s
	settingsMu.Unlock()

	s.logger().Debug("fab settings finalized")
}

// ParseSettings builds Settings from the "fab" parameters of src without
// touching the process-wide state
func ParseSettings(src ParamSource) (Settings, error) {
	s := DefaultSettings()
	if src == nil {
		return s, nil
	}

	if v, ok := lookupParam(src, ParamDoInitVal); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("%w: %s: %s", ErrInvalidArgument, ParamDoInitVal, err)
		}
		s.InitVal = b
	}
	if v, ok := lookupParam(src, ParamInitValue); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return s, fmt.Errorf("%w: %s: %s", ErrInvalidArgument, ParamInitValue, err)
		}
		s.InitValue = int32(n)
	}
	if v, ok := lookupParam(src, ParamNormRounding); ok {
		r, err := ParseRounding(v)
		if err != nil {
			return s, err
		}
		s.Rounding = r
	}
	if v, ok := lookupParam(src, ParamMaxSlots); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return s, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidArgument, ParamMaxSlots, v)
		}
		s.MaxSlots = n
	}
	if v, ok := lookupParam(src, ParamChecked); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("%w: %s: %s", ErrInvalidArgument, ParamChecked, err)
		}
		s.Checked = b
	}
	return s, nil
}

// lookupParam treats blank values as absent
func lookupParam(src ParamSource, key string) (string, bool) {
	v, ok := src.Lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
