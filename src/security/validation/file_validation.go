package validation

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/omnifin/omni/backend/src/logger"
)

// AllowedClientContentTypes is a map for quick lookup of allowed client-declared MIME types.
var AllowedClientContentTypes = map[string]bool{
	"application/pdf":   true,
	"text/plain":        true,
	"application/x-ofx": true,
	"text/ofx":          true,
}

// AllowedStatementExtensions mirrors the upload boundary's allow-list.
var AllowedStatementExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".ofx": true,
}

// ValidateStatementUpload checks the client-declared Content-Type and the
// filename extension. Either being on the allow-list is enough: browsers
// report OFX files under wildly inconsistent MIME types.
func ValidateStatementUpload(filename, contentType string) error {
	mimeOK := AllowedClientContentTypes[strings.ToLower(strings.Split(contentType, ";")[0])]
	extOK := AllowedStatementExtensions[strings.ToLower(filepath.Ext(filename))]
	if !mimeOK && !extOK {
		logger.L.Warn("Disallowed statement upload", "filename", filename, "contentType", contentType)
		return fmt.Errorf("formato inválido: use PDF, TXT ou OFX")
	}
	return nil
}

// Issuers export invoices as CSV far more often than banks export
// statements, so invoice uploads additionally accept the CSV MIME zoo.
var allowedInvoiceContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
}

var allowedInvoiceExtensions = map[string]bool{
	".csv": true,
}

// ValidateInvoiceUpload applies the statement allow-list plus CSV.
func ValidateInvoiceUpload(filename, contentType string) error {
	mime := strings.ToLower(strings.Split(contentType, ";")[0])
	ext := strings.ToLower(filepath.Ext(filename))
	if AllowedClientContentTypes[mime] || AllowedStatementExtensions[ext] ||
		allowedInvoiceContentTypes[mime] || allowedInvoiceExtensions[ext] {
		return nil
	}
	logger.L.Warn("Disallowed invoice upload", "filename", filename, "contentType", contentType)
	return fmt.Errorf("formato inválido: use PDF, CSV ou OFX")
}

// isBinaryContent checks if a buffer contains binary control characters (like
// null bytes) which indicate the file is not valid text.
func isBinaryContent(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}
	if !utf8.Valid(buf) {
		return true
	}
	return false
}

// ValidateStatementContent inspects the actual bytes: PDFs must carry the
// %PDF magic prefix, anything else must look like text. The read pointer is
// reset so the extractor can read the full file afterwards.
func ValidateStatementContent(file io.ReadSeeker) error {
	if file == nil {
		return fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 1024)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file for content checking: %w", err)
	}
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}
	if n == 0 {
		return fmt.Errorf("file is empty")
	}

	head := buffer[:n]
	if bytes.HasPrefix(head, []byte("%PDF")) {
		return nil
	}
	if isBinaryContent(head) {
		logger.L.Warn("File rejected: binary content in non-PDF statement upload")
		return fmt.Errorf("o arquivo parece ser binário e não é um PDF válido")
	}
	return nil
}
