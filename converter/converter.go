// Package converter holds the per-format conversion backends. Every
// converter takes raw input bytes plus an options snapshot and returns
// the converted bytes with descriptive metadata. Converters are
// stateless and safe for concurrent use with different inputs.
package converter

import (
	"context"
	"fmt"
	"strconv"
)

// Options is the configuration snapshot applied to a conversion. One
// Options value is shared read-only across all files of a batch.
type Options struct {
	OutputFormat string
	Width        *int
	Height       *int
	Crop         bool
	Quality      int
	Charset      string
	TextCase     string
}

// OptionsFromMap parses the flat option map carried on upload requests
// and batch records.
func OptionsFromMap(m map[string]string) Options {
	opts := Options{
		OutputFormat: m["output_format"],
		Crop:         m["crop"] == "true",
		Quality:      85,
		Charset:      m["charset"],
		TextCase:     m["text_case"],
	}
	if v, err := strconv.Atoi(m["width"]); err == nil && v > 0 {
		opts.Width = &v
	}
	if v, err := strconv.Atoi(m["height"]); err == nil && v > 0 {
		opts.Height = &v
	}
	if v, err := strconv.Atoi(m["quality"]); err == nil && v > 0 && v <= 100 {
		opts.Quality = v
	}
	return opts
}

// Result carries the converted artifact and its metadata. Metadata keys
// are descriptive only; the batch core treats them as opaque.
type Result struct {
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// Error marks a failure inside a conversion backend, as opposed to a
// storage or bookkeeping failure.
type Error struct {
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("conversion %s failed: %v", e.Operation, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Converter converts one file. Implementations must not share mutable
// state across calls.
type Converter interface {
	Convert(ctx context.Context, data []byte, opts Options) (*Result, error)
}

// Registry maps operation names to their converter backend.
type Registry struct {
	converters map[string]Converter
}

func NewRegistry() *Registry {
	return &Registry{converters: make(map[string]Converter)}
}

func (r *Registry) Register(operation string, c Converter) {
	r.converters[operation] = c
}

// Lookup returns the converter for an operation, or an error naming
// the unknown operation.
func (r *Registry) Lookup(operation string) (Converter, error) {
	c, ok := r.converters[operation]
	if !ok {
		return nil, fmt.Errorf("unknown operation: %s", operation)
	}
	return c, nil
}

// Operations lists the registered operation names.
func (r *Registry) Operations() []string {
	ops := make([]string, 0, len(r.converters))
	for op := range r.converters {
		ops = append(ops, op)
	}
	return ops
}
