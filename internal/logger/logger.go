package logger

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Log — глобальный логгер приложения.
var Log *logrus.Logger

// Init настраивает глобальный логгер. По умолчанию вывод в JSON;
// формат для разработки переключается через SetTextFormatter.
func Init(level string) {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	Log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
