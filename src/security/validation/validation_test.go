package validation

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnifin/omni/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestValidateStatementUpload(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		wantErr     bool
	}{
		{"pdf by mime", "anything.bin", "application/pdf", false},
		{"txt by mime", "anything.bin", "text/plain; charset=utf-8", false},
		{"ofx by extension only", "extrato.OFX", "application/octet-stream", false},
		{"csv rejected", "extrato.csv", "text/csv", true},
		{"exe rejected", "virus.exe", "application/octet-stream", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStatementUpload(tt.filename, tt.contentType)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateInvoiceUpload(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		wantErr     bool
	}{
		{"pdf by mime", "fatura.bin", "application/pdf", false},
		{"csv by mime", "fatura.bin", "text/csv", false},
		{"csv legacy excel mime", "fatura.csv", "application/vnd.ms-excel", false},
		{"csv by extension only", "fatura.CSV", "application/octet-stream", false},
		{"ofx by extension", "fatura.ofx", "application/octet-stream", false},
		{"exe rejected", "virus.exe", "application/octet-stream", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInvoiceUpload(tt.filename, tt.contentType)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateStatementContent(t *testing.T) {
	t.Run("pdf magic accepted", func(t *testing.T) {
		r := bytes.NewReader([]byte("%PDF-1.7\nbinary\x00stuff"))
		require.NoError(t, ValidateStatementContent(r))
	})

	t.Run("plain text accepted and pointer reset", func(t *testing.T) {
		content := []byte("01/05 PIX RECEBIDO 100,00\n")
		r := bytes.NewReader(content)
		require.NoError(t, ValidateStatementContent(r))

		rest := make([]byte, len(content))
		n, _ := r.Read(rest)
		assert.Equal(t, len(content), n, "read pointer must be back at the start")
	})

	t.Run("binary without pdf magic rejected", func(t *testing.T) {
		r := bytes.NewReader([]byte{0x4d, 0x5a, 0x00, 0x01, 0x02})
		require.Error(t, ValidateStatementContent(r))
	})

	t.Run("empty file rejected", func(t *testing.T) {
		require.Error(t, ValidateStatementContent(bytes.NewReader(nil)))
	})
}

func TestCleanFreeText(t *testing.T) {
	assert.Equal(t, "Supermercado", CleanFreeText("  <script>alert(1)</script>Supermercado  "))
	assert.Equal(t, "PIX João", CleanFreeText("PIX João\x00\x07"))
	assert.Equal(t, "", CleanFreeText("<b></b>"))
}
