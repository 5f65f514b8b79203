package pvinstall

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const logFilename = "pvinstall.log"

// NewLogger builds the process logger: human-readable console output on
// stderr, duplicated into an append-only pvinstall.log in the working
// directory. An empty level means info. The returned closer flushes the
// log file and is safe to call when the file could not be opened.
func NewLogger(levelName string) (zerolog.Logger, func(), error) {
	level := zerolog.InfoLevel
	if levelName != "" {
		parsed, err := zerolog.ParseLevel(levelName)
		if err != nil {
			return zerolog.Nop(), func() {}, fmt.Errorf("log level %q: %w", levelName, err)
		}
		level = parsed
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	var writer io.Writer = console
	closer := func() {}
	logfile, err := os.OpenFile(logFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o666)
	if err == nil {
		writer = zerolog.MultiLevelWriter(console, logfile)
		closer = func() { logfile.Close() }
	}
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	if err != nil {
		logger.Warn().Err(err).Msg("cannot open log file, console only")
	}
	return logger, closer, nil
}
