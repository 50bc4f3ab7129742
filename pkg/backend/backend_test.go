package backend

import (
	"log/slog"

	"github.com/raterudder/energydash/pkg/log"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}
