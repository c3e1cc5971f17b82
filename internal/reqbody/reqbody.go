// Package reqbody normalizes inbound request bodies. Hosting runtimes
// hand request payloads to handlers in incompatible shapes: some parse
// JSON ahead of time, some expose a buffered accessor, some only expose
// a byte stream. Parse probes an opaque request handle for each
// capability in a fixed priority order and returns one parsed JSON
// value regardless of which shape the host used.
package reqbody

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// PreParsed is implemented by request handles whose host has already
// parsed the body.
type PreParsed interface {
	ParsedBody() any
}

// JSONBody is implemented by request handles that can produce the whole
// body as a decoded JSON value.
type JSONBody interface {
	BodyJSON(ctx context.Context) (any, error)
}

// TextBody is implemented by request handles that can produce the whole
// body as text.
type TextBody interface {
	BodyText(ctx context.Context) (string, error)
}

// ChunkStream is implemented by push-based request handles. The data
// channel is closed at end of stream; a stream failure is delivered on
// the error channel.
type ChunkStream interface {
	Stream() (<-chan []byte, <-chan error)
}

// ParseError reports a body that could not be normalized, either
// because no extraction strategy applied or because the extracted bytes
// were not valid JSON.
type ParseError struct {
	msg string
	err error
}

func (e *ParseError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("failed to parse request body: %s", e.err)
	}
	return fmt.Sprintf("failed to parse request body: %s", e.msg)
}

func (e *ParseError) Unwrap() error { return e.err }

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{msg: fmt.Sprintf(format, args...)}
}

func wrapParseError(err error) *ParseError {
	return &ParseError{err: err}
}

// Body holds the normalized outcome of one inbound call.
type Body struct {
	Value any
}

// StringField returns a top-level string field from an object body.
func (b *Body) StringField(name string) (string, bool) {
	obj, ok := b.Value.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := obj[name].(string)
	return s, ok
}

// StringsField returns a top-level array-of-strings field from an
// object body. Non-string elements are skipped.
func (b *Body) StringsField(name string) ([]string, bool) {
	obj, ok := b.Value.(map[string]any)
	if !ok {
		return nil, false
	}
	raw, ok := obj[name].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// Parse extracts a JSON value from req. Capabilities are probed in
// priority order; the first applicable strategy wins and the body is
// consumed at most once. The ordering is part of the contract: a host
// may expose more than one capability, and probing before reading is
// what keeps the body from being consumed twice.
func Parse(ctx context.Context, req any) (*Body, error) {
	switch r := req.(type) {
	case PreParsed:
		return fromPreParsed(r.ParsedBody())
	case JSONBody:
		v, err := r.BodyJSON(ctx)
		if err != nil {
			return nil, wrapParseError(err)
		}
		return &Body{Value: v}, nil
	case TextBody:
		text, err := r.BodyText(ctx)
		if err != nil {
			return nil, wrapParseError(err)
		}
		return fromText(text)
	case io.Reader:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, wrapParseError(err)
		}
		return fromText(string(data))
	case ChunkStream:
		data, err := drainStream(ctx, r)
		if err != nil {
			return nil, err
		}
		return fromText(string(data))
	default:
		return nil, parseErrorf("unsupported request shape %T", req)
	}
}

func fromPreParsed(v any) (*Body, error) {
	// A host that "parsed" the body may still hand us a raw string.
	if s, ok := v.(string); ok {
		return fromText(s)
	}
	return &Body{Value: v}, nil
}

func fromText(text string) (*Body, error) {
	if text == "" {
		return &Body{Value: map[string]any{}}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, wrapParseError(err)
	}
	return &Body{Value: v}, nil
}

func drainStream(ctx context.Context, s ChunkStream) ([]byte, error) {
	data, errc := s.Stream()
	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return nil, wrapParseError(ctx.Err())
		case chunk, ok := <-data:
			if !ok {
				// End of stream; a failure may still be pending.
				select {
				case err := <-errc:
					if err != nil {
						return nil, wrapParseError(err)
					}
				default:
				}
				return buf, nil
			}
			buf = append(buf, chunk...)
		case err := <-errc:
			if err != nil {
				return nil, wrapParseError(err)
			}
		}
	}
}
