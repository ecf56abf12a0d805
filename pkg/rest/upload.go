package rest

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
)

const DefaultMaxImageBytes int64 = 10 << 20

var ImageTypes = []string{"image/jpeg", "image/png"}

// ReadImage loads an uploaded image, sniffing its type from the content rather than the
// client-declared header.
func ReadImage(fh *multipart.FileHeader, maxBytes int64, allowed ...string) ([]byte, string, error) {
	if fh == nil {
		return nil, "", apperror.Validation("La imagen es requerida", nil)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if len(allowed) == 0 {
		allowed = ImageTypes
	}
	if fh.Size > maxBytes {
		return nil, "", apperror.Validation("La imagen excede el tamaño máximo", map[string]any{"maxBytes": maxBytes})
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", apperror.Validation("No se pudo leer la imagen", nil)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, "", apperror.Validation("No se pudo leer la imagen", nil)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", apperror.Validation("La imagen excede el tamaño máximo", map[string]any{"maxBytes": maxBytes})
	}
	if len(data) == 0 {
		return nil, "", apperror.Validation("La imagen está vacía", nil)
	}

	contentType := http.DetectContentType(data)
	for _, t := range allowed {
		if t == contentType {
			return data, contentType, nil
		}
	}
	return nil, "", apperror.Validation("Formato de imagen no soportado", map[string]any{"allowed": allowed})
}
