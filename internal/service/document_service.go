package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brunoamorim39/greasemonkey-ai/internal/ai"
	"github.com/brunoamorim39/greasemonkey-ai/internal/filestore"
	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
	"github.com/brunoamorim39/greasemonkey-ai/internal/retrieval"
)

const embedConcurrency = 4

type IUploadGate interface {
	CheckUpload(ctx context.Context, userID string, sizeBytes int64) model.Decision
}

type IUsageRecorder interface {
	RecordAfter(ctx context.Context, userID string, kind model.ActionKind, metadata map[string]interface{})
}

type DocumentInput struct {
	Title        string
	Filename     string
	DocumentType model.DocumentType
	Vehicle      model.VehicleInfo
	Tags         []string
	Content      []byte
}

type DocumentService struct {
	docs     IDocumentStore
	index    retrieval.Writer
	embedder ai.IEmbedder
	chunker  *ai.Chunker
	files    filestore.Store
	quota    IUploadGate
	usage    IUsageRecorder
	now      func() time.Time
}

func NewDocumentService(docs IDocumentStore, index retrieval.Writer, embedder ai.IEmbedder, chunker *ai.Chunker, files filestore.Store, quota IUploadGate, usage IUsageRecorder) *DocumentService {
	if chunker == nil {
		chunker = ai.NewChunker(0, 0)
	}
	return &DocumentService{
		docs:     docs,
		index:    index,
		embedder: embedder,
		chunker:  chunker,
		files:    files,
		quota:    quota,
		usage:    usage,
		now:      time.Now,
	}
}

// Upload stores a user's manual in their private collection. The quota gate
// runs first and a denial is returned as *model.PolicyDenied.
func (s *DocumentService) Upload(ctx context.Context, userID string, in DocumentInput) (*model.Document, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", appErr.ErrInvalid)
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	size := int64(len(in.Content))
	if decision := s.quota.CheckUpload(ctx, userID, size); !decision.Allowed {
		return nil, decision.Denial
	}

	doc := s.newDocument(userID, model.UserCollection(userID), in)
	chunks, err := s.embedChunks(ctx, doc, in)
	if err != nil {
		return nil, err
	}
	doc.ChunkCount = len(chunks)
	if s.files != nil {
		doc.StorageKey = doc.ID + strings.ToLower(filepath.Ext(doc.Filename))
		if err := s.files.Save(ctx, doc.StorageKey, bytes.NewReader(in.Content), size); err != nil {
			return nil, fmt.Errorf("save original: %w", appErr.Unavailable(err))
		}
	}
	if err := s.persist(ctx, doc, chunks); err != nil {
		s.removeOriginal(ctx, doc)
		return nil, err
	}
	s.usage.RecordAfter(ctx, userID, model.ActionDocumentUpload, map[string]interface{}{
		"document_id": doc.ID,
		"size_bytes":  doc.SizeBytes,
		"chunks":      doc.ChunkCount,
	})
	logutil.GetLogger(ctx).Info("document uploaded",
		zap.String("user_id", userID),
		zap.String("document_id", doc.ID),
		zap.Int("chunks", doc.ChunkCount),
	)
	return doc, nil
}

// IngestSystem indexes a manual into the shared collection. No quota applies.
func (s *DocumentService) IngestSystem(ctx context.Context, in DocumentInput) (*model.Document, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	doc := s.newDocument(model.SystemOwner, model.SystemCollection, in)
	chunks, err := s.embedChunks(ctx, doc, in)
	if err != nil {
		return nil, err
	}
	doc.ChunkCount = len(chunks)
	if err := s.persist(ctx, doc, chunks); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("system document ingested",
		zap.String("document_id", doc.ID),
		zap.String("title", doc.Title),
		zap.String("vehicle", doc.Vehicle.String()),
		zap.Int("chunks", doc.ChunkCount),
	)
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, userID string, limit, offset uint) ([]*model.Document, error) {
	docs, err := s.docs.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, appErr.Unavailable(err)
	}
	return docs, nil
}

// Delete removes the index entries before the row so a failed index call can be retried.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	doc, err := s.docs.GetByID(ctx, userID, docID)
	if err != nil {
		if appErr.IsNotFound(err) {
			return err
		}
		return appErr.Unavailable(err)
	}
	if err := s.index.DeleteDocument(ctx, doc.Collection, doc.ID); err != nil {
		return appErr.IndexUnavailable(err)
	}
	if err := s.docs.Delete(ctx, userID, docID); err != nil {
		if appErr.IsNotFound(err) {
			return err
		}
		return appErr.Unavailable(err)
	}
	s.removeOriginal(ctx, doc)
	return nil
}

func (s *DocumentService) newDocument(owner, collection string, in DocumentInput) *model.Document {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(in.Filename, filepath.Ext(in.Filename))
	}
	return &model.Document{
		ID:           newID(),
		UserID:       owner,
		Collection:   collection,
		Title:        title,
		Filename:     in.Filename,
		DocumentType: in.DocumentType,
		Vehicle:      retrieval.NormalizeFilter(in.Vehicle),
		SizeBytes:    int64(len(in.Content)),
		Ctime:        s.now().Unix(),
	}
}

func (s *DocumentService) embedChunks(ctx context.Context, doc *model.Document, in DocumentInput) ([]*model.DocumentChunk, error) {
	if s.embedder == nil || s.index == nil {
		return nil, appErr.ErrIndexUnavailable
	}
	pieces := s.chunker.Chunk(ctx, string(in.Content))
	if len(pieces) == 0 {
		return nil, fmt.Errorf("document has no indexable text: %w", appErr.ErrInvalid)
	}
	now := s.now().Unix()
	chunks := make([]*model.DocumentChunk, len(pieces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, piece := range pieces {
		g.Go(func() error {
			vector, err := s.embedder.Embed(gctx, piece.Content, retrieval.TaskTypeDocument)
			if err != nil {
				return err
			}
			chunks[i] = &model.DocumentChunk{
				ID:         fmt.Sprintf("%s:%d", doc.ID, piece.Position),
				Collection: doc.Collection,
				Position:   piece.Position,
				Content:    piece.Content,
				Embedding:  vector,
				Metadata: model.ChunkMetadata{
					DocumentID:   doc.ID,
					Owner:        doc.UserID,
					Vehicle:      doc.Vehicle,
					DocumentType: doc.DocumentType,
					Title:        doc.Title,
					Tags:         in.Tags,
				},
				Ctime: now,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, appErr.IndexUnavailable(err)
	}
	return chunks, nil
}

// persist writes the row and then the chunks. The row is rolled back when the
// index rejects the chunks.
func (s *DocumentService) persist(ctx context.Context, doc *model.Document, chunks []*model.DocumentChunk) error {
	if err := s.docs.Create(ctx, doc); err != nil {
		return appErr.Unavailable(err)
	}
	if err := s.index.Upsert(ctx, chunks); err != nil {
		if derr := s.docs.Delete(context.WithoutCancel(ctx), doc.UserID, doc.ID); derr != nil {
			logutil.GetLogger(ctx).Warn("rollback document row failed",
				zap.String("document_id", doc.ID),
				zap.Error(derr),
			)
		}
		return appErr.IndexUnavailable(err)
	}
	return nil
}

func (s *DocumentService) removeOriginal(ctx context.Context, doc *model.Document) {
	if s.files == nil || doc.StorageKey == "" {
		return
	}
	logger := logutil.GetLogger(ctx).With(zap.String("document_id", doc.ID), zap.String("key", doc.StorageKey))
	if err := s.files.Delete(context.WithoutCancel(ctx), doc.StorageKey); err != nil {
		logger.Warn("delete original failed", zap.String("store", s.files.Type()), zap.Error(err))
	}
}

func validateInput(in *DocumentInput) error {
	in.Filename = filepath.Base(strings.TrimSpace(in.Filename))
	if in.Filename == "" || in.Filename == "." || in.Filename == string(filepath.Separator) {
		return fmt.Errorf("filename is required: %w", appErr.ErrInvalid)
	}
	if len(in.Content) == 0 {
		return fmt.Errorf("document is empty: %w", appErr.ErrInvalid)
	}
	if !isText(in.Content) {
		return fmt.Errorf("only markdown or plain text documents can be indexed: %w", appErr.ErrInvalid)
	}
	if in.DocumentType == "" {
		in.DocumentType = model.DocumentTypeUserUpload
	}
	return nil
}

func isText(data []byte) bool {
	return utf8.Valid(data) && bytes.IndexByte(data, 0) < 0
}
