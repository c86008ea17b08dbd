package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/omnifin/omni/backend/src/logger"
)

// extractPDFText pulls plain text out of a PDF. Without a password it tries
// a direct read and maps an encryption failure to ErrPasswordRequired so the
// caller can prompt the user once and retry. With a password it tries the
// primary engine first and falls back to a pdfcpu decrypt pass, because PDF
// encryption implementations vary in compatibility; only after both engines
// reject the password is it treated as genuinely incorrect.
func extractPDFText(data []byte, password string) (text string, err error) {
	// The parser is exposed to untrusted documents and can panic on
	// malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			logger.L.Warn("PDF parser panicked on malformed document", "panic", r)
			text = ""
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	if password == "" {
		reader, readErr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if readErr != nil {
			if errors.Is(readErr, pdf.ErrInvalidPassword) {
				return "", ErrPasswordRequired
			}
			return "", fmt.Errorf("reading PDF: %w", readErr)
		}
		return readPlainText(reader)
	}

	reader, readErr := openEncrypted(data, password)
	if readErr == nil {
		return readPlainText(reader)
	}
	if !errors.Is(readErr, pdf.ErrInvalidPassword) {
		return "", fmt.Errorf("reading encrypted PDF: %w", readErr)
	}

	logger.L.Debug("Primary PDF engine rejected password, trying pdfcpu decrypt")
	decrypted, decErr := decryptWithPdfcpu(data, password)
	if decErr != nil {
		return "", ErrPasswordIncorrect
	}
	reader, readErr = pdf.NewReader(bytes.NewReader(decrypted), int64(len(decrypted)))
	if readErr != nil {
		return "", fmt.Errorf("reading decrypted PDF: %w", readErr)
	}
	return readPlainText(reader)
}

func openEncrypted(data []byte, password string) (*pdf.Reader, error) {
	attempted := false
	return pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), func() string {
		// Returning "" on the second call stops the reader's retry loop;
		// a wrong password must not loop silently.
		if attempted {
			return ""
		}
		attempted = true
		return password
	})
}

func decryptWithPdfcpu(data []byte, password string) ([]byte, error) {
	conf := pdfcpumodel.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	var out bytes.Buffer
	if err := pdfcpu.Decrypt(bytes.NewReader(data), &out, conf); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func readPlainText(reader *pdf.Reader) (string, error) {
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting PDF text: %w", err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, content); err != nil {
		return "", fmt.Errorf("reading PDF text: %w", err)
	}
	return sb.String(), nil
}
