package slog

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gookit/color"
)

var l = GetStd()

func GetStd() (ll *Log) {
	ll, _ = New(os.Stderr)
	return
}

func init() {
	switch strings.ToUpper(os.Getenv("GODEBUG")) {
	case "1", "TRUE", "ON", "DEBUG":
		SetLogLevel(Debug)
		l.D.Ln("printing logs at this level and lower")
	case "INFO":
		SetLogLevel(Info)
	case "TRACE":
		SetLogLevel(Trace)
		l.T.Ln("printing logs at this level and lower")
	case "WARN":
		SetLogLevel(Warn)
	case "ERROR":
		SetLogLevel(Error)
	case "FATAL":
		SetLogLevel(Fatal)
	case "0", "OFF", "FALSE":
		SetLogLevel(Off)
	default:
		SetLogLevel(Info)
	}
}

const (
	Off = iota
	Fatal
	Error
	Warn
	Info
	Debug
	Trace
)

type (
	// Ln prints lists of interfaces with spaces in between
	Ln func(a ...interface{})
	// F prints like fmt.Printf surrounded by log details
	F func(format string, a ...interface{})
	// S prints a spew.Sdump for an interface slice
	S func(a ...interface{})
	// C accepts a function so that the extra computation can be avoided if
	// it is not being viewed
	C func(closure func() string)
	// Chk prints and returns true if the error is non-nil
	Chk func(e error) bool
	// Err constructs an error via fmt.Errorf and returns it after printing
	// it to the log
	Err          func(format string, a ...interface{}) error
	LevelPrinter struct {
		Ln
		F
		S
		C
		Chk
		Err
	}
	LevelSpec struct {
		ID        int
		Name      string
		Colorizer func(a ...interface{}) string
	}
)

var (
	currentLevel atomic.Int32
	// LevelSpecs specifies the id, string name and color-printing function
	LevelSpecs = []LevelSpec{
		{Off, "   ", color.Bit24(0, 0, 0, false).Sprint},
		{Fatal, "FTL", color.Bit24(128, 0, 0, false).Sprint},
		{Error, "ERR", color.Bit24(255, 0, 0, false).Sprint},
		{Warn, "WRN", color.Bit24(0, 255, 0, false).Sprint},
		{Info, "INF", color.Bit24(255, 255, 0, false).Sprint},
		{Debug, "DBG", color.Bit24(0, 125, 255, false).Sprint},
		{Trace, "TRC", color.Bit24(125, 0, 255, false).Sprint},
	}
)

// Log is a set of log printers for the various levels.
type Log struct {
	F, E, W, I, D, T LevelPrinter
}

// Check is the set of level printer Chk functions, the syntactic sugar that
// allows `if chk.E(err) { return }`.
type Check struct {
	F, E, W, I, D, T Chk
}

func New(writer io.Writer) (l *Log, c *Check) {
	l = &Log{
		F: getPrinter(Fatal, writer),
		E: getPrinter(Error, writer),
		W: getPrinter(Warn, writer),
		I: getPrinter(Info, writer),
		D: getPrinter(Debug, writer),
		T: getPrinter(Trace, writer),
	}
	c = &Check{
		F: l.F.Chk,
		E: l.E.Chk,
		W: l.W.Chk,
		I: l.I.Chk,
		D: l.D.Chk,
		T: l.T.Chk,
	}
	return
}

func SetLogLevel(l int) {
	currentLevel.Store(int32(l))
}

func GetLogLevel() (l int) {
	return int(currentLevel.Load())
}

// LevelFromString interprets a level name as used in config/CLI flags. Only
// the first letter counts.
func LevelFromString(s string) (l int) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Info
	}
	for i := range LevelSpecs {
		if strings.HasPrefix(strings.ToLower(
			strings.TrimSpace(LevelSpecs[i].Name)), s[:1]) {
			return LevelSpecs[i].ID
		}
	}
	return Info
}

func joinStrings(a ...any) (s string) {
	for i := range a {
		s += fmt.Sprint(a[i])
		if i < len(a)-1 {
			s += " "
		}
	}
	return
}

func enabled(level int32) bool { return currentLevel.Load() >= level }

func getPrinter(level int32, writer io.Writer) LevelPrinter {
	emit := func(text string) {
		fmt.Fprintf(writer, "%s %s %s %s\n",
			time.Now().Format(time.StampMilli),
			LevelSpecs[level].Colorizer(LevelSpecs[level].Name),
			text,
			GetLoc(3),
		)
	}
	return LevelPrinter{
		Ln: func(a ...interface{}) {
			if !enabled(level) {
				return
			}
			emit(joinStrings(a...))
		},
		F: func(format string, a ...interface{}) {
			if !enabled(level) {
				return
			}
			emit(fmt.Sprintf(format, a...))
		},
		S: func(a ...interface{}) {
			if !enabled(level) {
				return
			}
			emit(spew.Sdump(a...))
		},
		C: func(closure func() string) {
			if !enabled(level) {
				return
			}
			emit(closure())
		},
		Chk: func(e error) bool {
			if e != nil {
				if enabled(level) {
					emit(e.Error())
				}
				return true
			}
			return false
		},
		Err: func(format string, a ...interface{}) error {
			if enabled(level) {
				emit(fmt.Sprintf(format, a...))
			}
			return fmt.Errorf(format, a...)
		},
	}
}

func GetLoc(skip int) (output string) {
	_, file, line, _ := runtime.Caller(skip)
	output = color.Bit24(0, 128, 255, false).Sprint(file, ":", line)
	return
}
