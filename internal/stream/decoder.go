// Package stream consumes a lead-generation event stream on the client side. It accepts
// both framings the server can produce: newline-delimited JSON and SSE data frames.
package stream

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"

	"go.uber.org/zap"

	"github.com/jonathan/lead-engine/internal/pipeline"
	"github.com/jonathan/lead-engine/internal/schemas"
)

// maxLineSize bounds one encoded event. Lead payloads with many contacts stay well under it;
// longer lines are discarded up to the next newline and counted as skipped.
const maxLineSize = 4 << 20

// Decoder reads events from a stream. Bytes are buffered until a full line arrives;
// a final line without a trailing newline is parsed once the stream ends. Malformed
// lines are logged and skipped.
type Decoder struct {
	r       *bufio.Reader
	logger  *zap.Logger
	strict  bool
	maxLine int
	skipped int
	err     error
}

// NewDecoder creates a decoder over r. A nil logger discards skip warnings.
func NewDecoder(r io.Reader, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024), logger: logger, maxLine: maxLineSize}
}

// Strict makes the decoder also check each payload against the event JSON Schema,
// skipping payloads that decode but break the published contract.
func (d *Decoder) Strict() *Decoder {
	d.strict = true
	return d
}

// Next returns the next event, or io.EOF once the stream is exhausted.
func (d *Decoder) Next() (pipeline.Event, error) {
	for {
		line, dropped, readErr := d.readLine()
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, readErr
		}

		if dropped > 0 {
			d.skipped++
			d.logger.Warn("skipping oversized stream line", zap.Int("bytes", dropped), zap.Int("limit", d.maxLine))
		} else if payload, ok := eventPayload(line); ok {
			ev, err := d.decode(payload)
			if err == nil {
				return ev, nil
			}
			d.skipped++
			d.logger.Warn("skipping malformed stream line", zap.ByteString("line", truncate(payload, 200)), zap.Error(err))
		}

		if readErr != nil {
			return nil, io.EOF
		}
	}
}

func (d *Decoder) decode(payload []byte) (pipeline.Event, error) {
	if d.strict {
		if err := schemas.Validate(schemas.Event, payload); err != nil {
			return nil, err
		}
	}
	return pipeline.Decode(payload)
}

// All iterates the remaining events. After the loop, Err reports a read failure, if any.
func (d *Decoder) All() iter.Seq[pipeline.Event] {
	return func(yield func(pipeline.Event) bool) {
		for {
			ev, err := d.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					d.err = err
				}
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Err returns the read error that ended All, or nil for a clean end of stream.
func (d *Decoder) Err() error { return d.err }

// Skipped returns how many malformed lines were dropped.
func (d *Decoder) Skipped() int { return d.skipped }

// readLine returns the next line. A line longer than maxLine is consumed without
// being kept; its length is returned as dropped.
func (d *Decoder) readLine() (line []byte, dropped int, err error) {
	for {
		chunk, err := d.r.ReadSlice('\n')
		switch {
		case dropped > 0:
			dropped += len(chunk)
		case len(line)+len(chunk) > d.maxLine:
			dropped = len(line) + len(chunk)
			line = nil
		default:
			line = append(line, chunk...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, dropped, err
	}
}

// eventPayload extracts the JSON of one line. SSE framing lines other than data lines
// (event names, ids, comments, blank separators) carry no payload.
func eventPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] == ':' {
		return nil, false
	}
	if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
		rest = bytes.TrimSpace(rest)
		return rest, len(rest) > 0
	}
	for _, field := range [][]byte{[]byte("event:"), []byte("id:"), []byte("retry:")} {
		if bytes.HasPrefix(line, field) {
			return nil, false
		}
	}
	return line, true
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
