package job

import (
	"context"

	"github.com/xxxsen/recall/internal/service"
)

type MemoryRescoreJob struct {
	memories *service.MemoryService
}

func NewMemoryRescoreJob(memories *service.MemoryService) *MemoryRescoreJob {
	return &MemoryRescoreJob{memories: memories}
}

func (j *MemoryRescoreJob) Name() string {
	return "memory_rescore"
}

func (j *MemoryRescoreJob) Run(ctx context.Context) error {
	if j.memories == nil {
		return nil
	}
	return j.memories.RescoreImportance(ctx)
}
