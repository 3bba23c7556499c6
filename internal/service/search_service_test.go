package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunoamorim39/greasemonkey-ai/internal/model"
)

func TestSearchResolvesFilterAndRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.documents.IngestSystem(ctx, DocumentInput{
		Filename: "e46.md",
		Vehicle:  model.VehicleInfo{Make: "BMW", Model: "3 Series", Year: 2003},
		Content:  []byte(brakeManual),
	})
	require.NoError(t, err)

	out, err := env.search.Search(ctx, "u1", SearchQuery{Query: "caliper guide bolts", Car: "BMW 3 Series 2004"})
	require.NoError(t, err)
	require.Equal(t, model.VehicleInfo{Make: "BMW", Model: "3 Series", Year: 2004}, out.Filter)
	require.NotEmpty(t, out.Results)
	require.Contains(t, out.Context, "Source 1: [User Upload: e46]")

	out, err = env.search.Search(ctx, "u1", SearchQuery{Query: "caliper guide bolts", Car: "BMW 3 Series 2004", Filter: model.VehicleInfo{Year: 2020}})
	require.NoError(t, err)
	require.Empty(t, out.Results)

	count, err := env.ledger.DailyCount(ctx, "u1", "2026-10-16", model.ActionDocumentSearch)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	out, err = env.search.Search(ctx, "u1", SearchQuery{Query: "   "})
	require.NoError(t, err)
	require.Empty(t, out.Results)
	count, err = env.ledger.DailyCount(ctx, "u1", "2026-10-16", model.ActionDocumentSearch)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestSearchUsesSavedVehicle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	v, err := env.garage.Add(ctx, "u1", VehicleInput{Make: "Honda", Model: "Civic", Year: 2010})
	require.NoError(t, err)

	out, err := env.search.Search(ctx, "u1", SearchQuery{Query: "oil", Car: "BMW M3 2008", VehicleID: v.ID})
	require.NoError(t, err)
	require.Equal(t, "Honda", out.Filter.Make)
	require.Empty(t, out.Results)
}

func TestUsageReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.setTier(t, "u1", model.TierGarageVisitor)
	env.record(t, "u1", model.ActionAsk, 2)
	reporter := NewUsageReporter(env.resolver, env.ledger, env.docs, env.vehicles)

	stats, err := reporter.Report(ctx, "u1", "")
	require.NoError(t, err)
	require.Equal(t, "2026-10-16", stats.Date)
	require.Equal(t, "2026-10", stats.YearMonth)
	require.Equal(t, "Garage Visitor", stats.TierName)
	require.EqualValues(t, 2, stats.Today[model.ActionAsk])
	require.NotNil(t, stats.AsksRemainingToday)
	require.EqualValues(t, 1, *stats.AsksRemainingToday)
	require.Nil(t, stats.AsksRemainingMonth)

	_, err = reporter.Report(ctx, "u1", "16/10/2026")
	require.Error(t, err)
}
