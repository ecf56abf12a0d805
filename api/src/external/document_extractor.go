package external

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/RIKUY-ORG/Rikuy/api/src/identity"
	"github.com/RIKUY-ORG/Rikuy/pkg/apperror"
)

const documentPrompt = `Extrae los datos de esta cédula de identidad boliviana.
Responde solo en formato JSON:
{"documentNumber": "...", "firstName": "...", "lastName": "...", "confidence": número entre 0 y 1}`

// DocumentExtractor reads CI fields with the vision model. The image is sent inline and
// never stored.
type DocumentExtractor struct {
	ai *AIClient
}

func NewDocumentExtractor(ai *AIClient) *DocumentExtractor {
	return &DocumentExtractor{ai: ai}
}

func (d *DocumentExtractor) Extract(ctx context.Context, image []byte, contentType string) (*identity.ExtractedDocument, error) {
	dataUrl := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))

	var out struct {
		DocumentNumber string  `json:"documentNumber"`
		FirstName      string  `json:"firstName"`
		LastName       string  `json:"lastName"`
		Confidence     float64 `json:"confidence"`
	}
	if err := d.ai.vision(ctx, documentPrompt, dataUrl, &out); err != nil {
		return nil, apperror.ExternalService("ai", err)
	}
	return &identity.ExtractedDocument{
		DocumentNumber: out.DocumentNumber,
		FirstName:      out.FirstName,
		LastName:       out.LastName,
		Confidence:     out.Confidence,
	}, nil
}
