package dataset

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"motorisk/internal/feature"
	"motorisk/internal/risk"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// jsonLineHandler is a slog handler that writes every record as one JSON object
// with an RFC 3339 time and the record attributes at the top level. Message and
// level are dropped: the records are data, not log lines.
type jsonLineHandler struct {
	out   io.Writer
	attrs []slog.Attr
	mu    *sync.Mutex
}

func newJSONLineHandler(out io.Writer) *jsonLineHandler {
	return &jsonLineHandler{out: out, mu: &sync.Mutex{}}
}

func (h *jsonLineHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]any, r.NumAttrs()+len(h.attrs)+1)
	fields["time"] = r.Time.UTC().Format(time.RFC3339)

	collect := func(a slog.Attr) bool {
		if a.Key != "" && a.Value.Any() != nil {
			fields[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(append(data, '\n'))
	return err
}

func (h *jsonLineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &jsonLineHandler{out: h.out, attrs: merged, mu: h.mu}
}

// WithGroup is ignored; dataset records are flat.
func (h *jsonLineHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *jsonLineHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// JsonRepository collects scored listings as JSON lines in a file rotated and
// compressed by lumberjack. The records can later be used to recalibrate the
// residual statistics of the model.
type JsonRepository struct {
	writer io.WriteCloser
	logger *slog.Logger
}

// NewJsonRepository creates a dataset writer.
// Parameters:
//   - file: path to the file where data is written
//   - maxSize: maximum file size in MB before rotation
//   - maxBackups: maximum number of old files to keep
func NewJsonRepository(file string, maxSize, maxBackups int) *JsonRepository {
	return newJsonRepository(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	})
}

func newJsonRepository(w io.WriteCloser) *JsonRepository {
	return &JsonRepository{
		writer: w,
		logger: slog.New(newJSONLineHandler(w)),
	}
}

// Append writes one record with a random record id, the listing id, the features
// as supplied and the report.
func (r *JsonRepository) Append(listing string, row feature.Row, report risk.Report) {
	r.logger.Info("",
		"id", uuid.NewString(),
		"listing", listing,
		"features", row,
		"assessment", report.Assessment,
		"data_quality", report.DataQuality,
	)
}

// Close flushes and closes the underlying file.
func (r *JsonRepository) Close() error {
	return r.writer.Close()
}
