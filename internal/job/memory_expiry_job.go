package job

import (
	"context"

	"github.com/xxxsen/recall/internal/service"
)

type MemoryExpiryJob struct {
	memories *service.MemoryService
}

func NewMemoryExpiryJob(memories *service.MemoryService) *MemoryExpiryJob {
	return &MemoryExpiryJob{memories: memories}
}

func (j *MemoryExpiryJob) Name() string {
	return "memory_expiry"
}

func (j *MemoryExpiryJob) Run(ctx context.Context) error {
	if j.memories == nil {
		return nil
	}
	_, err := j.memories.Sweep(ctx)
	return err
}
