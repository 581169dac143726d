package quadsprite

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// logger is the package-wide logger. Warnings are on by default; debug lines
// (grid rebalances, cache stats) only appear after SetDebug(true).
var logger = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l
}

// Logger returns the logger used by the package.
func Logger() *logrus.Logger {
	return logger
}

// SetLogger replaces the package logger. Passing nil restores the default.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = newDefaultLogger()
	}
	logger = l
}

// SetDebug toggles debug logging on the package logger.
func SetDebug(enabled bool) {
	if enabled {
		logger.SetLevel(logrus.DebugLevel)
		return
	}
	logger.SetLevel(logrus.WarnLevel)
}

// SetLogOutput redirects the package logger.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

// CacheStats reports how much a Codec currently holds in its caches.
type CacheStats struct {
	LookupEntries   int    // cached class-name resolutions
	PipelineEntries int    // cached load-pipeline results
	SizedEntries    uint64 // sized sprites admitted to the sizing cache
	SizedBytes      uint64 // cost of the sized sprites currently cached
}

// String formats the stats for a log line.
func (s CacheStats) String() string {
	return "lookup=" + humanize.Comma(int64(s.LookupEntries)) +
		" pipeline=" + humanize.Comma(int64(s.PipelineEntries)) +
		" sized=" + humanize.Comma(int64(s.SizedEntries)) +
		" (" + humanize.Bytes(s.SizedBytes) + ")"
}

// logStats writes the codec's cache stats at debug level.
func (c *Codec) logStats(reason string) {
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logger.WithField("reason", reason).Debugf("quadsprite: codec caches %s", c.Stats())
}

// debugRebalance logs a row or column being recycled by the grid.
func debugRebalance(op string, dir Direction, box Box) {
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logger.WithFields(logrus.Fields{
		"op":     op,
		"dir":    dir.String(),
		"top":    box.Top,
		"right":  box.Right,
		"bottom": box.Bottom,
		"left":   box.Left,
	}).Debug("quadsprite: grid rebalance")
}
