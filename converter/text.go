package converter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
)

// TextConverter transcodes plain text between character sets and
// optionally applies a case transform. Input is assumed UTF-8.
type TextConverter struct {
	logger *zap.Logger
}

func NewTextConverter(logger *zap.Logger) *TextConverter {
	return &TextConverter{logger: logger}
}

var charsets = map[string]encoding.Encoding{
	"utf-8":        unicode.UTF8,
	"utf-16":       unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"latin-1":      charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
}

func (c *TextConverter) Convert(ctx context.Context, data []byte, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := string(data)

	switch opts.TextCase {
	case "":
	case "upper":
		text = strings.ToUpper(text)
	case "lower":
		text = strings.ToLower(text)
	case "title":
		text = cases.Title(language.Und).String(text)
	default:
		return nil, &Error{Operation: "text_convert", Err: fmt.Errorf("unsupported case transform: %s", opts.TextCase)}
	}

	charset := opts.Charset
	if charset == "" {
		charset = "utf-8"
	}
	enc, ok := charsets[strings.ToLower(charset)]
	if !ok {
		return nil, &Error{Operation: "text_convert", Err: fmt.Errorf("unsupported charset: %s", charset)}
	}

	out, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, &Error{Operation: "text_convert", Err: fmt.Errorf("encode %s: %w", charset, err)}
	}

	return &Result{
		Data:        out,
		ContentType: "text/plain; charset=" + strings.ToLower(charset),
		Metadata: map[string]string{
			"output_format": "txt",
			"charset":       strings.ToLower(charset),
			"output_size":   strconv.Itoa(len(out)),
		},
	}, nil
}
