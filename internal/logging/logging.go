package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

type Options struct {
	Level  string
	Format string // text or json
	Output io.Writer
}

// Setup configures the standard logrus logger.
func Setup(opt Options) error {
	lvl := log.InfoLevel
	if s := strings.TrimSpace(opt.Level); s != "" {
		parsed, err := log.ParseLevel(s)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", s, err)
		}
		lvl = parsed
	}
	log.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(opt.Format)) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q", opt.Format)
	}

	if opt.Output != nil {
		log.SetOutput(opt.Output)
	} else {
		log.SetOutput(os.Stderr)
	}
	return nil
}

// RedirectToFile sends log output to path while a full-screen UI owns the terminal. An
// empty path discards logs. The returned func restores stderr and closes the file.
func RedirectToFile(path string) (func(), error) {
	path = strings.TrimSpace(path)
	if path == "" {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}
