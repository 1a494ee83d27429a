package validation

import (
	"errors"
	"testing"
)

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want FileType
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, FileTypePNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, FileTypeJPEG},
		{"gif", []byte("GIF89a trailer"), FileTypeGIF},
		{"pdf", []byte("%PDF-1.7 rest"), FileTypePDF},
		{"mp3", []byte("ID3\x04rest of header"), FileTypeMP3},
		{"mp4", []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}, FileTypeMP4},
		{"text", []byte("plain old notes\n"), FileTypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFileType(tt.data)
			if err != nil {
				t.Fatalf("DetectFileType failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDetectFileType_Rejections(t *testing.T) {
	if _, err := DetectFileType(nil); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("Expected ErrEmptyFile, got %v", err)
	}

	binary := []byte{0x00, 0x01, 0x02, 0xFE, 0xFF}
	if _, err := DetectFileType(binary); !errors.Is(err, ErrInvalidFileType) {
		t.Errorf("Expected ErrInvalidFileType for unknown binary, got %v", err)
	}
}

func TestCheckSize(t *testing.T) {
	if err := CheckSize(0, 100); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("Expected ErrEmptyFile, got %v", err)
	}
	if err := CheckSize(101, 100); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Expected ErrFileTooLarge, got %v", err)
	}
	if err := CheckSize(100, 100); err != nil {
		t.Errorf("Expected size at the limit to pass, got %v", err)
	}
	if err := CheckSize(5, 0); err != nil {
		t.Errorf("Expected unlimited max to pass, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"photo.png":              "photo.png",
		"../../etc/passwd":       "passwd",
		"dir\\sub\\evil.exe":     "evil.exe",
		"":                       "upload",
		"/absolute/path/doc.pdf": "doc.pdf",
	}
	for input, want := range tests {
		if got := SanitizeFilename(input); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}
