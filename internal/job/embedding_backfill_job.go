package job

import (
	"context"

	"github.com/xxxsen/recall/internal/service"
)

type EmbeddingBackfillJob struct {
	ingest *service.IngestService
	batch  int
}

func NewEmbeddingBackfillJob(ingest *service.IngestService, batch int) *EmbeddingBackfillJob {
	return &EmbeddingBackfillJob{ingest: ingest, batch: batch}
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.ingest == nil {
		return nil
	}
	_, err := j.ingest.BackfillEmbeddings(ctx, j.batch)
	return err
}
