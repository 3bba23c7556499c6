package service

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunoamorim39/greasemonkey-ai/internal/config"
	"github.com/brunoamorim39/greasemonkey-ai/internal/filestore"
	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	appErr "github.com/brunoamorim39/greasemonkey-ai/internal/pkg/errors"
	"github.com/brunoamorim39/greasemonkey-ai/internal/retrieval"
)

const brakeManual = `# Brakes

## Front pad replacement

Remove the caliper guide bolts and lift the caliper off the rotor.

- Torque caliper guide bolts to 30 Nm.
- Pump the brake pedal before driving.

## Coolant

Bleed the cooling system with the heater valve open.
`

func TestUploadIndexesIntoPrivateCollection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setTier(t, "u1", model.TierGearhead)

	doc, err := env.documents.Upload(ctx, "u1", DocumentInput{
		Filename: "e46-brakes.md",
		Vehicle:  model.VehicleInfo{Make: "BMW", Model: "3 Series", Year: 2003},
		Content:  []byte(brakeManual),
	})
	require.NoError(t, err)
	require.Equal(t, "e46-brakes", doc.Title)
	require.Equal(t, model.UserCollection("u1"), doc.Collection)
	require.Equal(t, model.DocumentTypeUserUpload, doc.DocumentType)
	require.Greater(t, doc.ChunkCount, 0)

	results, err := env.engine.Search(ctx, retrieval.SearchRequest{
		Query:  "caliper guide bolts torque",
		UserID: "u1",
		Filter: model.VehicleInfo{Make: "bmw", Year: 2005},
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, model.UserCollection("u1"), results[0].Collection)
	require.Equal(t, doc.ID, results[0].Metadata.DocumentID)
	require.Contains(t, results[0].Content, "caliper")

	count, err := env.ledger.DailyCount(ctx, "u1", "2026-10-16", model.ActionDocumentUpload)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestUploadDeniedForGarageVisitor(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.documents.Upload(context.Background(), "u1", DocumentInput{
		Filename: "manual.md",
		Content:  []byte(brakeManual),
	})
	var denied *model.PolicyDenied
	require.True(t, errors.As(err, &denied))
	require.Equal(t, model.CeilingFeature, denied.Ceiling)

	n, err := env.docs.CountByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestUploadRejectsBinaryAndEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.setTier(t, "u1", model.TierGearhead)
	_, err := env.documents.Upload(context.Background(), "u1", DocumentInput{
		Filename: "scan.pdf",
		Content:  []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff},
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = env.documents.Upload(context.Background(), "u1", DocumentInput{Filename: "empty.md"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestDeleteRemovesChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setTier(t, "u1", model.TierGearhead)
	doc, err := env.documents.Upload(ctx, "u1", DocumentInput{Filename: "brakes.md", Content: []byte(brakeManual)})
	require.NoError(t, err)

	require.NoError(t, env.documents.Delete(ctx, "u1", doc.ID))
	results, err := env.engine.Search(ctx, retrieval.SearchRequest{Query: "caliper", UserID: "u1"})
	require.NoError(t, err)
	require.Empty(t, results)

	require.ErrorIs(t, env.documents.Delete(ctx, "u1", doc.ID), appErr.ErrNotFound)
	docs, err := env.documents.List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestIngestSystemIsSharedAndUnmetered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc, err := env.documents.IngestSystem(ctx, DocumentInput{
		Title:        "E46 Factory Service Manual",
		Filename:     "e46-fsm.md",
		DocumentType: model.DocumentTypeFSMOfficial,
		Vehicle:      model.VehicleInfo{Make: "BMW", Model: "3 Series", Year: 2003},
		Content:      []byte(brakeManual),
	})
	require.NoError(t, err)
	require.Equal(t, model.SystemCollection, doc.Collection)
	require.Equal(t, model.SystemOwner, doc.UserID)

	results, err := env.engine.Search(ctx, retrieval.SearchRequest{Query: "bleed cooling system heater valve", UserID: "someone"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, model.SystemCollection, results[0].Collection)
	require.Contains(t, results[0].Metadata.Title, "E46")
	require.Empty(t, env.usage.Events())

	results, err = env.engine.Search(ctx, retrieval.SearchRequest{
		Query:  "bleed cooling system",
		UserID: "someone",
		Filter: model.VehicleInfo{Make: "Toyota"},
	})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestUploadKeepsOriginal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setTier(t, "u1", model.TierGearhead)
	files, err := filestore.New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	env.documents.files = files

	doc, err := env.documents.Upload(ctx, "u1", DocumentInput{Filename: "Brakes.MD", Content: []byte(brakeManual)})
	require.NoError(t, err)
	require.Equal(t, doc.ID+".md", doc.StorageKey)

	rc, err := files.Open(ctx, doc.StorageKey)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	require.Equal(t, brakeManual, string(data))

	require.NoError(t, env.documents.Delete(ctx, "u1", doc.ID))
	_, err = files.Open(ctx, doc.StorageKey)
	require.ErrorIs(t, err, fs.ErrNotExist)
}
