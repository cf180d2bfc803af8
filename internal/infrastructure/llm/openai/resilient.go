package openai

import (
	"context"

	"github.com/markhub/classifier/internal/core/domain"
	"github.com/markhub/classifier/internal/infrastructure/resilience"
)

// Resilient decorates Client with retry and circuit breaking. Retryable
// failures surface to callers as temporary errors so the pipeline can
// distinguish them from hard rejections.
type Resilient struct {
	client   *Client
	executor *resilience.Executor
}

func NewResilient(client *Client, executor *resilience.Executor) *Resilient {
	return &Resilient{client: client, executor: executor}
}

func (r *Resilient) GetFolderRecommendation(ctx context.Context, bookmark domain.Bookmark, candidates []domain.Folder) (*domain.FolderRecommendation, error) {
	var rec *domain.FolderRecommendation
	err := r.executor.Execute(ctx, "ai.folder_recommendation", func(ctx context.Context) error {
		var callErr error
		rec, callErr = r.client.GetFolderRecommendation(ctx, bookmark, candidates)
		return callErr
	}, classifyAIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ai folder recommendation", err)
	}
	return rec, nil
}

func (r *Resilient) GenerateTags(ctx context.Context, title, pageContent string, existingTags []string) ([]string, error) {
	var tags []string
	err := r.executor.Execute(ctx, "ai.generate_tags", func(ctx context.Context) error {
		var callErr error
		tags, callErr = r.client.GenerateTags(ctx, title, pageContent, existingTags)
		return callErr
	}, classifyAIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ai tag generation", err)
	}
	return tags, nil
}
