package observability

import (
	"os"
	"time"

	"github.com/danmuck/tensorwire/internal/wire"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the process logger with the peer's identity so every
// line carries the rank it was emitted from.
func InitLogger(app string, rank wire.Rank) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).With().Timestamp().
		Str("app", app).Int32("rank", int32(rank)).Logger()
	log.Logger = logger
	return logger
}
