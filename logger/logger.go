package logger

import (
	"go.uber.org/zap"
)

// Log is safe to use before Init; it discards everything until then.
var Log = zap.NewNop().Sugar()

func Init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	_ = Log.Sync()
}
