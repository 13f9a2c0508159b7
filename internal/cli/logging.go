package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"yt-ingest/internal/eventlog"
)

// openRunLogger returns a logger writing bracketed lines to the log file
// and to console when it is non-nil. The returned closer closes the log file.
func openRunLogger(fsys afero.Fs, logPath, level string, console io.Writer) (*slog.Logger, io.Closer, error) {
	lvl, err := eventlog.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	var writers []io.Writer
	var closer io.Closer = nopCloser{}
	if logPath != "" {
		f, err := eventlog.OpenFile(fsys, logPath)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closer = f
	}
	if console != nil {
		writers = append(writers, console)
	}
	return slog.New(eventlog.NewHandler(lvl, writers...)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
