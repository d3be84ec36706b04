package aggregator

import (
	"bytes"
	"io/fs"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/conneroisu/visualtree/internal/errors"
)

// sniffLen is how much of a file is inspected for NUL bytes.
const sniffLen = 8000

// loadFile reads the raw bytes of a regular file no larger than maxSize.
func loadFile(path string, maxSize int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, classifyOpenError(path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.NewFileReadError(errors.CodeNotRegular, "not a regular file", path, nil)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, errors.NewFileReadError(errors.CodeFileTooLarge, "file exceeds size limit", path, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyOpenError(path, err)
	}
	return data, nil
}

// decodeText interprets data as text. UTF-16 with a byte order mark is
// transcoded; anything else must already be valid UTF-8.
func decodeText(path string, data []byte) (string, error) {
	utf16 := hasUTF16BOM(data)
	if !utf16 {
		head := data
		if len(head) > sniffLen {
			head = head[:sniffLen]
		}
		if bytes.IndexByte(head, 0) >= 0 {
			return "", errors.NewFileReadError(errors.CodeBinaryContent, "binary content", path, nil)
		}
		if !utf8.Valid(data) {
			return "", errors.NewFileReadError(errors.CodeDecoding, "content is not valid UTF-8", path, nil)
		}
	}

	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", errors.NewFileReadError(errors.CodeDecoding, "content could not be decoded", path, err)
	}
	return string(decoded), nil
}

func hasUTF16BOM(data []byte) bool {
	return len(data) >= 2 &&
		((data[0] == 0xFE && data[1] == 0xFF) || (data[0] == 0xFF && data[1] == 0xFE))
}

func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errors.NewFileReadError(errors.CodeFileNotFound, "no such file", path, nil)
	case errors.Is(err, fs.ErrPermission):
		return errors.NewFileReadError(errors.CodePermissionDenied, "permission denied", path, nil)
	default:
		return errors.NewFileReadError(errors.CodeReadFailed, "read failed", path, err)
	}
}
