package search

import (
	"context"
	"log"

	"taskboard/api/internal/store"
)

// RecordSource lists every comment for a full reindex.
type RecordSource interface {
	ListCommentSearchRows(ctx context.Context) ([]store.CommentSearchRow, error)
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	index    Index
	fallback Searcher
	source   RecordSource
}

// NewService creates a search service. index may be nil if Meilisearch is not configured.
func NewService(index Index, fallback Searcher, source RecordSource) *Service {
	return &Service{index: index, fallback: fallback, source: source}
}

// Search tries the index if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.index != nil && s.index.Healthy() {
		results, total, err := s.index.Search(ctx, q)
		if err == nil {
			return Response{Results: visibleTo(nonNil(results), q.ViewerID), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: visibleTo(nonNil(results), q.ViewerID), Total: total, Query: q.Text}
}

// IndexComment indexes a comment (fire-and-forget).
func (s *Service) IndexComment(c CommentRecord) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	go func() {
		if err := s.index.IndexComment(c); err != nil {
			log.Printf("search: index comment %s: %v", c.ID, err)
		}
	}()
}

// ReindexAllFromPG pushes every stored comment into the index.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.index == nil || !s.index.Healthy() || s.source == nil {
		return
	}
	rows, err := s.source.ListCommentSearchRows(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	records := make([]CommentRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, RecordFromRow(row))
	}
	if err := s.index.IndexComments(records); err != nil {
		log.Printf("search: reindex comments: %v", err)
		return
	}
	log.Printf("search: reindexed %d comments", len(records))
}

// RecordFromRow converts a stored comment row into its index form.
func RecordFromRow(row store.CommentSearchRow) CommentRecord {
	return CommentRecord{
		ID:              row.ID,
		TaskID:          row.TaskID,
		TaskTitle:       row.TaskTitle,
		Content:         row.Content,
		AuthorName:      row.AuthorName,
		AssignedTo:      row.AssignedTo,
		CreatedBy:       row.CreatedBy,
		ParentCommentID: row.ParentCommentID,
		CreatedAt:       row.CreatedAt.UnixMilli(),
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

// visibleTo drops hits on tasks the viewer neither owns nor is assigned to.
func visibleTo(results []Result, viewerID string) []Result {
	if viewerID == "" {
		return results
	}
	filtered := make([]Result, 0, len(results))
	for _, result := range results {
		if result.assignedTo != viewerID && result.createdBy != viewerID {
			continue
		}
		filtered = append(filtered, result)
	}
	return filtered
}
