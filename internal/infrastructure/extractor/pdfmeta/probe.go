// Package pdfmeta pulls display metadata out of stored PDF blobs. It never
// looks at content; the analyzer collaborator owns that.
package pdfmeta

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ametelin/docinsights/internal/core/domain"
	"github.com/ametelin/docinsights/internal/core/ports"
)

// probeSizeCap keeps the probe from buffering very large uploads; blobs
// over the cap simply report no page count.
const probeSizeCap = 32 << 20

type Probe struct {
	storage ports.ObjectStorage
}

func NewProbe(storage ports.ObjectStorage) *Probe {
	return &Probe{storage: storage}
}

func (p *Probe) Probe(ctx context.Context, doc *domain.Document) (domain.FileMetadata, error) {
	if !isPDF(doc) {
		return domain.FileMetadata{}, nil
	}
	if doc.SizeBytes > probeSizeCap {
		return domain.FileMetadata{}, nil
	}

	blob, err := p.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.FileMetadata{}, fmt.Errorf("open blob for probe: %w", err)
	}
	defer blob.Close()

	raw, err := io.ReadAll(io.LimitReader(blob, probeSizeCap+1))
	if err != nil {
		return domain.FileMetadata{}, fmt.Errorf("read blob for probe: %w", err)
	}
	if int64(len(raw)) > probeSizeCap {
		return domain.FileMetadata{}, nil
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.FileMetadata{}, fmt.Errorf("parse pdf: %w", err)
	}
	return domain.FileMetadata{PageCount: reader.NumPage()}, nil
}

func isPDF(doc *domain.Document) bool {
	if strings.EqualFold(doc.FileType, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf")
}
