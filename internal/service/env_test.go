package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brunoamorim39/greasemonkey-ai/internal/ai"
	"github.com/brunoamorim39/greasemonkey-ai/internal/memstore"
	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
	"github.com/brunoamorim39/greasemonkey-ai/internal/retrieval"
)

var (
	fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	errDown  = errors.New("connection refused")
)

type testEnv struct {
	users     *memstore.UserStore
	overrides *memstore.OverrideStore
	usage     *memstore.UsageStore
	docs      *memstore.DocumentStore
	vehicles  *memstore.VehicleStore
	index     *retrieval.MemoryIndex

	resolver  *TierResolver
	ledger    *UsageLedger
	quota     *QuotaEnforcer
	documents *DocumentService
	garage    *GarageService
	search    *SearchService
	engine    *retrieval.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:     memstore.NewUserStore(),
		overrides: memstore.NewOverrideStore(),
		usage:     memstore.NewUsageStore(),
		docs:      memstore.NewDocumentStore(),
		vehicles:  memstore.NewVehicleStore(),
		index:     retrieval.NewMemoryIndex(),
	}
	clock := func() time.Time { return fixedNow }

	env.resolver = NewTierResolver(env.users, env.overrides, 0)
	env.resolver.now = clock
	env.ledger = NewUsageLedger(env.usage, model.NewUsageCalendar(time.UTC), MonthlySourceRollup, 0)
	env.ledger.now = clock
	env.quota = NewQuotaEnforcer(env.resolver, env.ledger, env.docs, env.vehicles)

	provider, err := ai.NewEmbedProvider("hash", nil)
	require.NoError(t, err)
	embedder := ai.NewEmbedder(provider, "test")
	env.documents = NewDocumentService(env.docs, env.index, embedder, ai.NewChunker(60, 10), nil, env.quota, env.ledger)
	env.documents.now = clock
	env.garage = NewGarageService(env.vehicles, env.quota, env.ledger)
	env.garage.now = clock
	env.engine = retrieval.NewEngine(embedder, env.index)
	env.search = NewSearchService(env.engine, env.garage, env.ledger)
	return env
}

func (e *testEnv) setTier(t *testing.T, userID string, tier model.Tier) {
	t.Helper()
	_, err := e.users.EnsureUser(context.Background(), userID, tier, fixedNow.Unix())
	require.NoError(t, err)
	require.NoError(t, e.users.UpdateTier(context.Background(), userID, tier, fixedNow.Unix()))
}

func (e *testEnv) record(t *testing.T, userID string, kind model.ActionKind, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, e.ledger.Record(context.Background(), userID, kind, nil))
	}
}

type failingOverrides struct{}

func (failingOverrides) Create(ctx context.Context, o *model.TierOverride) error {
	return errDown
}

func (failingOverrides) ListActive(ctx context.Context, userID string, now int64) ([]*model.TierOverride, error) {
	return nil, errDown
}

// failingUsage fails every read and write.
type failingUsage struct {
	memstore.UsageStore
}

func (*failingUsage) Record(ctx context.Context, e *model.UsageEvent) error {
	return errDown
}

func (*failingUsage) DailyCount(ctx context.Context, userID, date string, kind model.ActionKind) (int64, error) {
	return 0, errDown
}

func (*failingUsage) MonthlyCount(ctx context.Context, userID, ym string, kind model.ActionKind) (int64, bool, error) {
	return 0, false, errDown
}

func (*failingUsage) SumDaily(ctx context.Context, userID, from, to string, kind model.ActionKind) (int64, error) {
	return 0, errDown
}
