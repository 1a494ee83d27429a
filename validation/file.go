package validation

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

type FileType string

const (
	FileTypePNG  FileType = "png"
	FileTypeJPEG FileType = "jpeg"
	FileTypeGIF  FileType = "gif"
	FileTypePDF  FileType = "pdf"
	FileTypeMP4  FileType = "mp4"
	FileTypeMP3  FileType = "mp3"
	FileTypeText FileType = "text"
)

var magicBytes = map[FileType][]byte{
	FileTypePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	FileTypeJPEG: {0xFF, 0xD8, 0xFF},
	FileTypeGIF:  {0x47, 0x49, 0x46, 0x38},
	FileTypePDF:  {0x25, 0x50, 0x44, 0x46},
	FileTypeMP3:  {0x49, 0x44, 0x33},
}

// DetectFileType sniffs the payload's leading bytes. Valid UTF-8 that
// matches no binary signature is reported as text.
func DetectFileType(data []byte) (FileType, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}

	for fileType, signature := range magicBytes {
		if bytes.HasPrefix(head, signature) {
			return fileType, nil
		}
	}

	// MP4 carries its signature at offset 4.
	if len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")) {
		return FileTypeMP4, nil
	}

	if utf8.Valid(head) && !bytes.ContainsRune(head, 0) {
		return FileTypeText, nil
	}

	return "", ErrInvalidFileType
}

func IsAllowedImageType(fileType FileType) bool {
	switch fileType {
	case FileTypePNG, FileTypeJPEG, FileTypeGIF:
		return true
	default:
		return false
	}
}

// CheckSize rejects empty payloads and payloads above maxSize.
func CheckSize(size, maxSize int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if maxSize > 0 && size > maxSize {
		return ErrFileTooLarge
	}
	return nil
}

// SanitizeFilename strips any path components from an uploaded name.
func SanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
