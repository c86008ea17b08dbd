package extractor

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/omnifin/omni/backend/src/models"
)

// Sentinel errors let the caller present a targeted remedy: prompting for a
// password is a different conversation from "try a different file".
var (
	ErrUnsupportedFormat = errors.New("unsupported file format, use PDF, TXT or OFX")
	ErrFileTooLarge      = errors.New("file exceeds the maximum allowed size")
	ErrEmptyExtraction   = errors.New("no text could be extracted from the file")
	ErrPasswordRequired  = errors.New("the PDF is password protected")
	ErrPasswordIncorrect = errors.New("the supplied PDF password is incorrect")
)

// MaxStatementBytes caps uploads at 10 MB.
const MaxStatementBytes = 10 * 1024 * 1024

// ExtractText converts an uploaded statement into plain text. No tabular
// parsing happens here; whitespace-tolerant raw text is the contract, turning
// it into transactions is the model's job downstream.
func ExtractText(doc models.StatementDocument) (string, error) {
	if int64(len(doc.Bytes)) > MaxStatementBytes {
		return "", ErrFileTooLarge
	}

	var text string
	var err error
	switch detectFormat(doc.Filename, doc.MediaType) {
	case formatPDF:
		text, err = extractPDFText(doc.Bytes, doc.Password)
	case formatTXT, formatOFX:
		// Plain text and OFX are read as UTF-8 directly, no binary parsing.
		text = string(doc.Bytes)
	default:
		return "", ErrUnsupportedFormat
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyExtraction
	}
	return text, nil
}

type statementFormat int

const (
	formatUnknown statementFormat = iota
	formatPDF
	formatTXT
	formatOFX
)

func detectFormat(filename, mediaType string) statementFormat {
	switch strings.ToLower(strings.Split(mediaType, ";")[0]) {
	case "application/pdf":
		return formatPDF
	case "text/plain":
		return formatTXT
	case "application/x-ofx", "text/ofx":
		return formatOFX
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return formatPDF
	case ".txt":
		return formatTXT
	case ".ofx":
		return formatOFX
	}
	return formatUnknown
}
