package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bxox[abposre][.-][A-Za-z0-9-]+`),
	regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{8,}`),
}

// maskSecrets replaces Slack tokens and OpenAI keys with a fixed mask
func maskSecrets(text string) string {
	for _, re := range secretPatterns {
		text = re.ReplaceAllStringFunc(text, redact)
	}
	return text
}

// redact keeps only the credential type prefix
func redact(secret string) string {
	if len(secret) <= 5 {
		return "***"
	}
	return secret[:5] + "***masked***"
}

// maskingWriter scrubs secrets from every log line before passing it on
type maskingWriter struct {
	out io.Writer
}

func (w maskingWriter) Write(p []byte) (int, error) {
	if _, err := w.out.Write([]byte(maskSecrets(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// newLogger builds the console logger and, when logFile is set, a JSON file logger.
// The returned closer releases the log file.
func newLogger(level string, logFile string) (zerolog.Logger, io.Closer, error) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: maskingWriter{out: os.Stdout}, TimeFormat: time.RFC3339},
	}

	var closer io.Closer = io.NopCloser(nil)
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, maskingWriter{out: f})
		closer = f
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(logLevel).
		With().
		Timestamp().
		Logger()

	return logger, closer, nil
}
