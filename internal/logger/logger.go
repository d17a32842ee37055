package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

// Init инициализирует структурированный логгер.
// В production пишем JSON, в development читаемый текст.
func Init(level, env string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if env == "development" {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// L возвращает глобальный логгер. До вызова Init (например, в тестах) используется
// логгер, который ничего не пишет.
func L() *logrus.Logger {
	if Log != nil {
		return Log
	}
	return discard
}

// Escrow возвращает запись лога с полями сделки.
func Escrow(escrowID, actorID interface{}) *logrus.Entry {
	return L().WithFields(logrus.Fields{
		"escrow_id": escrowID,
		"actor_id":  actorID,
	})
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()
