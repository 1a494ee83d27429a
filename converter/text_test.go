package converter

import (
	"bytes"
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestTextConverter_UpperCase(t *testing.T) {
	conv := NewTextConverter(zaptest.NewLogger(t))

	result, err := conv.Convert(context.Background(), []byte("hello world"), Options{TextCase: "upper"})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if string(result.Data) != "HELLO WORLD" {
		t.Errorf("Expected upper-cased output, got %q", result.Data)
	}
	if result.Metadata["charset"] != "utf-8" {
		t.Errorf("Expected default charset utf-8, got %q", result.Metadata["charset"])
	}
}

func TestTextConverter_TitleCase(t *testing.T) {
	conv := NewTextConverter(zaptest.NewLogger(t))

	result, err := conv.Convert(context.Background(), []byte("hello world"), Options{TextCase: "title"})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if string(result.Data) != "Hello World" {
		t.Errorf("Expected title-cased output, got %q", result.Data)
	}
}

func TestTextConverter_Transcode(t *testing.T) {
	conv := NewTextConverter(zaptest.NewLogger(t))

	result, err := conv.Convert(context.Background(), []byte("café"), Options{Charset: "latin-1"})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	// é is a single 0xE9 byte in latin-1.
	if !bytes.Equal(result.Data, []byte{'c', 'a', 'f', 0xE9}) {
		t.Errorf("Expected latin-1 bytes, got %v", result.Data)
	}
	if result.ContentType != "text/plain; charset=latin-1" {
		t.Errorf("Unexpected content type %q", result.ContentType)
	}
}

func TestTextConverter_UnsupportedCharset(t *testing.T) {
	conv := NewTextConverter(zaptest.NewLogger(t))

	if _, err := conv.Convert(context.Background(), []byte("x"), Options{Charset: "ebcdic"}); err == nil {
		t.Fatal("Expected error for unsupported charset")
	}
}

func TestTextConverter_UnsupportedCase(t *testing.T) {
	conv := NewTextConverter(zaptest.NewLogger(t))

	if _, err := conv.Convert(context.Background(), []byte("x"), Options{TextCase: "sponge"}); err == nil {
		t.Fatal("Expected error for unsupported case transform")
	}
}

func TestRegistry_Lookup(t *testing.T) {
	registry := NewRegistry()
	registry.Register("text_convert", NewTextConverter(zaptest.NewLogger(t)))

	if _, err := registry.Lookup("text_convert"); err != nil {
		t.Errorf("Expected registered operation to resolve: %v", err)
	}
	if _, err := registry.Lookup("pdf_merge"); err == nil {
		t.Error("Expected error for unknown operation")
	}
	if ops := registry.Operations(); len(ops) != 1 || ops[0] != "text_convert" {
		t.Errorf("Unexpected operations list %v", ops)
	}
}

func TestOptionsFromMap(t *testing.T) {
	opts := OptionsFromMap(map[string]string{
		"output_format": "jpg",
		"width":         "640",
		"height":        "480",
		"crop":          "true",
		"quality":       "70",
		"charset":       "utf-16",
	})

	if opts.OutputFormat != "jpg" {
		t.Errorf("Unexpected output format %q", opts.OutputFormat)
	}
	if opts.Width == nil || *opts.Width != 640 || opts.Height == nil || *opts.Height != 480 {
		t.Error("Expected width/height parsed")
	}
	if !opts.Crop {
		t.Error("Expected crop true")
	}
	if opts.Quality != 70 {
		t.Errorf("Expected quality 70, got %d", opts.Quality)
	}

	defaults := OptionsFromMap(map[string]string{"width": "oops", "quality": "500"})
	if defaults.Width != nil {
		t.Error("Expected invalid width ignored")
	}
	if defaults.Quality != 85 {
		t.Errorf("Expected default quality 85, got %d", defaults.Quality)
	}
}
