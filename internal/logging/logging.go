// Package logging builds the process logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levelAliases maps the names other tooling uses onto zap levels.
var levelAliases = map[string]string{
	"warning":  "warn",
	"critical": "fatal",
}

// New returns a production JSON logger at the given level (debug, info, warn,
// error, fatal). Level names are case-insensitive; warning and critical are
// accepted for warn and fatal.
func New(level string) (*zap.Logger, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	if alias, ok := levelAliases[name]; ok {
		name = alias
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
