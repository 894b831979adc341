package multipart

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
)

// DefaultContentType is used when the content type cannot be determined.
const DefaultContentType = "application/octet-stream"

// sniffLen is how many leading bytes are inspected.
const sniffLen = 3072

// DetectContentType sniffs the head of the file and falls back to its extension.
func DetectContentType(fs billy.Filesystem, path string) string {
	f, err := fs.Open(path)
	if err != nil {
		return contentTypeFromExtension(path)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sniffLen)
	n, _ := f.Read(buf)
	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil && !mt.Is(DefaultContentType) {
			return mt.String()
		}
	}

	return contentTypeFromExtension(path)
}

func contentTypeFromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return DefaultContentType
}
