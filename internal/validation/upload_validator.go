package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// Upload validation failures. Handlers match on these to choose the HTTP
// status; the wrapped message carries the specifics.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrEmptyFile           = errors.New("file is empty")
	ErrContentMismatch     = errors.New("file content does not match its extension")
)

// Detected MIME types acceptable for a CSV upload. DetectContentType never
// reports text/csv, so plain text and the generic fallback are the signal.
var csvContentTypes = map[string]bool{
	"text/plain":               true,
	"text/csv":                 true,
	"application/csv":          true,
	"application/octet-stream": true,
}

// UploadValidator checks multipart form files before they reach the
// pipeline: extension whitelist, size bound and a content sniff so a
// renamed executable does not make it to the parser.
type UploadValidator struct {
	maxSize int64
	logger  *slog.Logger
}

// NewUploadValidator creates an upload validator. maxSize <= 0 disables the
// size check.
func NewUploadValidator(maxSize int64, logger *slog.Logger) *UploadValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadValidator{
		maxSize: maxSize,
		logger:  logger,
	}
}

// ValidateUpload checks a single uploaded form file.
func (v *UploadValidator) ValidateUpload(header *multipart.FileHeader) error {
	if header == nil {
		return fmt.Errorf("%w: no file provided", ErrEmptyFile)
	}

	name := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !extensionAllowed(ext) {
		v.logger.Warn("Rejected upload with unsupported extension",
			slog.String("filename", name),
			slog.String("extension", ext))
		return fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	if header.Size <= 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	if v.maxSize > 0 && header.Size > v.maxSize {
		v.logger.Warn("Rejected upload over the size limit",
			slog.String("filename", name),
			slog.Int64("size", header.Size),
			slog.Int64("limit", v.maxSize))
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, name, header.Size, v.maxSize)
	}

	return v.sniffContent(header, name, ext)
}

// sniffContent reads the first 512 bytes and rejects uploads whose bytes
// cannot be the claimed format. XLSX and XLSM are ZIP containers; CSV must
// look like text.
func (v *UploadValidator) sniffContent(header *multipart.FileHeader, name, ext string) error {
	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload %s: %w", name, err)
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read upload %s: %w", name, err)
	}

	detected := strings.ToLower(strings.Split(http.DetectContentType(buffer[:n]), ";")[0])

	switch ext {
	case ".xlsx", ".xlsm":
		if !bytes.HasPrefix(buffer[:n], []byte("PK")) {
			v.logger.Warn("Spreadsheet upload is not a ZIP container",
				slog.String("filename", name),
				slog.String("detected", detected))
			return fmt.Errorf("%w: %s does not contain a spreadsheet (detected %s)", ErrContentMismatch, name, detected)
		}
	default:
		if !csvContentTypes[detected] {
			v.logger.Warn("CSV upload does not look like text",
				slog.String("filename", name),
				slog.String("detected", detected))
			return fmt.Errorf("%w: %s does not contain text data (detected %s)", ErrContentMismatch, name, detected)
		}
	}

	v.logger.Debug("Upload validated",
		slog.String("filename", name),
		slog.Int64("size", header.Size),
		slog.String("detected", detected))
	return nil
}
