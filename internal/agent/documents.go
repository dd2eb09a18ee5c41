package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/agentforge/agentd/internal/events"
	"github.com/agentforge/agentd/internal/extractor"
	"github.com/agentforge/agentd/internal/store"
	"github.com/agentforge/agentd/internal/vectorstore"
)

// AddDocument ingests one file into the agent's knowledge base: extract
// text, dedup by content hash, chunk, index, and record. Returns the
// document record and whether it was newly created; an identical re-upload
// returns the existing record untouched.
func (s *Service) AddDocument(ctx context.Context, agentID uint, filename string, content []byte) (*store.Document, bool, error) {
	ctx, span := tracer.Start(ctx, "Service.AddDocument")
	defer span.End()
	span.SetAttributes(
		attribute.Int("agent_id", int(agentID)),
		attribute.String("filename", filename),
	)

	agent, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, false, err
	}

	extracted, err := extractor.Extract(filename, content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	existing, err := s.repo.FindDocumentByHash(ctx, agent.ID, extracted.ContentHash)
	if err == nil {
		s.logger.Info("document already ingested",
			zap.Uint("agent_id", agent.ID),
			zap.String("filename", filename),
		)
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrDocumentNotFound) {
		return nil, false, err
	}

	pieces := s.splitter.Split(extracted.Text)
	if len(pieces) == 0 {
		return nil, false, fmt.Errorf("%w: no chunks produced", extractor.ErrExtractionFailed)
	}

	groupID := uuid.NewString()
	chunks := make([]vectorstore.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = vectorstore.Chunk{
			ID:   fmt.Sprintf("%s_chunk_%d", groupID, i),
			Text: text,
			Metadata: vectorstore.ChunkMetadata{
				AgentID:     collectionID(agent.ID),
				Filename:    filename,
				FileType:    extracted.FileType,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
				GroupID:     groupID,
			},
		}
	}

	if err := s.vectors.Upsert(ctx, collectionID(agent.ID), chunks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, fmt.Errorf("indexing document: %w", err)
	}

	doc := &store.Document{
		AgentID:     agent.ID,
		Filename:    filename,
		ContentHash: extracted.ContentHash,
		FileSize:    int64(extracted.FileSize),
		FileType:    extracted.FileType,
		ChunkCount:  len(pieces),
		GroupID:     groupID,
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		return nil, false, fmt.Errorf("recording document: %w", err)
	}

	s.sink.Emit(ctx, events.New(events.TypeDocumentUploaded, agent.ID, map[string]any{
		"filename":    filename,
		"file_type":   extracted.FileType,
		"chunk_count": len(pieces),
	}))

	s.logger.Info("document ingested",
		zap.Uint("agent_id", agent.ID),
		zap.String("filename", filename),
		zap.Int("chunks", len(pieces)),
	)
	span.SetStatus(codes.Ok, "success")
	return doc, true, nil
}

// ListDocuments returns the agent's document records, newest first.
func (s *Service) ListDocuments(ctx context.Context, agentID uint) ([]store.Document, error) {
	if _, err := s.repo.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	return s.repo.ListDocuments(ctx, agentID)
}

// DeleteDocuments removes the agent's entire knowledge base: the vector
// collection and every document record.
func (s *Service) DeleteDocuments(ctx context.Context, agentID uint) error {
	ctx, span := tracer.Start(ctx, "Service.DeleteDocuments")
	defer span.End()

	if _, err := s.repo.GetAgent(ctx, agentID); err != nil {
		return err
	}
	if err := s.vectors.DeleteCollection(ctx, collectionID(agentID)); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.repo.DeleteDocuments(ctx, agentID); err != nil {
		return err
	}
	s.logger.Info("deleted knowledge base", zap.Uint("agent_id", agentID))
	return nil
}
