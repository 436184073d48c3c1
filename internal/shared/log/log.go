package log

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

func New(module string) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:           os.Stderr,
		TimeFormat:    "15:04",
		PartsOrder:    []string{"time", "level", "module", "message"},
		FieldsExclude: []string{"module"},
	}

	out.FormatPartValueByName = func(i any, s string) string {
		if s == "module" && i != nil {
			return strings.ToUpper(fmt.Sprintf("%s", i))
		}
		return ""
	}

	out.FormatFieldName = func(i any) string {
		return fmt.Sprintf("\n         \033[30m- \033[36m%s: \033[0m", i)
	}

	out.FormatErrFieldName = func(i any) string {
		return fmt.Sprintf("\n         \033[30m- \033[31m%s: \033[0m", i)
	}

	logger := zerolog.New(out).
		With().
		Timestamp().
		Str("module", module).
		Logger()

	return logger
}

// SetLevel applies a global level such as "debug" or "warn". An empty
// string keeps the current level.
func SetLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// OrNop returns logger, or a disabled logger when logger is nil.
func OrNop(logger *zerolog.Logger) *zerolog.Logger {
	if logger != nil {
		return logger
	}
	nop := zerolog.Nop()
	return &nop
}
