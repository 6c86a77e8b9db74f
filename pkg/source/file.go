package source

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/ajitpratap0/krow/pkg/errors"
)

// FileSource serves each file as a single payload. The whole list is
// returned by the first Fetch; later calls return an empty batch.
type FileSource struct {
	paths []string
	stdin io.Reader
	done  bool
}

// NewFileSource creates a source over paths. The path "-" reads stdin.
func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths, stdin: os.Stdin}
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context) ([]Message, error) {
	if s.done {
		return nil, nil
	}
	s.done = true

	msgs := make([]Message, 0, len(s.paths))
	for i, path := range s.paths {
		if err := ctx.Err(); err != nil {
			return msgs, err
		}

		data, modTime, err := s.read(path)
		if err != nil {
			return msgs, errors.Wrap(err, errors.ErrorTypeFile, "failed to read payload file").
				WithDetail("path", path)
		}
		msgs = append(msgs, Message{
			Topic:     path,
			Offset:    int64(i),
			Value:     data,
			Timestamp: modTime,
		})
	}
	return msgs, nil
}

func (s *FileSource) read(path string) ([]byte, time.Time, error) {
	if path == "-" {
		data, err := io.ReadAll(s.stdin)
		return data, time.Now().UTC(), err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: paths come from the operator
	return data, info.ModTime().UTC(), err
}

// Close implements Source.
func (s *FileSource) Close() error { return nil }
