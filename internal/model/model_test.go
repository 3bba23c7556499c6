package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEveryTierHasPolicy(t *testing.T) {
	require.NoError(t, ValidatePolicies())
	for _, tier := range AllTiers {
		p, ok := policyFor(tier)
		require.True(t, ok, tier.String())
		require.Equal(t, tier, p.Tier)
	}
	_, ok := policyFor(Tier(99))
	require.False(t, ok)
}

func TestTierOrderAndParse(t *testing.T) {
	require.Less(t, int(TierGarageVisitor), int(TierGearhead))
	require.Less(t, int(TierGearhead), int(TierMasterTech))

	for _, tc := range []struct {
		in   string
		want Tier
	}{
		{"garage_visitor", TierGarageVisitor},
		{"free_tier", TierGarageVisitor},
		{"weekend_warrior", TierGearhead},
		{" Gearhead ", TierGearhead},
		{"master_tech", TierMasterTech},
	} {
		got, err := ParseTier(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
	}
	_, err := ParseTier("platinum")
	require.Error(t, err)

	next, ok := TierGarageVisitor.Next()
	require.True(t, ok)
	require.Equal(t, TierGearhead, next)
	_, ok = TierMasterTech.Next()
	require.False(t, ok)
}

func TestTierJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Tier{"tier": TierGearhead})
	require.NoError(t, err)
	require.JSONEq(t, `{"tier":"gearhead"}`, string(data))

	var out struct {
		Tier Tier `json:"tier"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tier":"master_tech"}`), &out))
	require.Equal(t, TierMasterTech, out.Tier)
}

func TestPolicyTable(t *testing.T) {
	free := PolicyOf(TierGarageVisitor)
	require.Equal(t, int64(3), *free.MaxDailyAsks)
	require.Nil(t, free.MaxMonthlyAsks)
	require.Equal(t, int64(1), *free.MaxVehicles)
	require.False(t, free.FeatureEnabled(ActionDocumentUpload))
	require.True(t, free.FeatureEnabled(ActionTTS))
	require.True(t, free.FeatureEnabled(ActionAsk))

	gear := PolicyOf(TierGearhead)
	require.Nil(t, gear.MaxDailyAsks)
	require.Equal(t, int64(50), *gear.MaxMonthlyAsks)
	require.Equal(t, int64(20), *gear.MaxDocumentUploads)
	require.Equal(t, 1000*mib, *gear.MaxStorageBytes)
	require.Nil(t, gear.MaxVehicles)

	master := PolicyOf(TierMasterTech)
	require.Equal(t, int64(200), *master.MaxMonthlyAsks)
	require.Nil(t, master.MaxDocumentUploads)
	require.Nil(t, master.MaxStorageBytes)

	require.Equal(t, TierGarageVisitor, PolicyOf(Tier(42)).Tier)
}

func TestParseActionKind(t *testing.T) {
	kind, err := ParseActionKind("ask_query")
	require.NoError(t, err)
	require.Equal(t, ActionAsk, kind)
	kind, err = ParseActionKind("document_upload")
	require.NoError(t, err)
	require.Equal(t, ActionDocumentUpload, kind)
	_, err = ParseActionKind("teleport")
	require.Error(t, err)
}

func TestUsageCalendar(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	instant := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)

	utc := NewUsageCalendar(nil)
	require.Equal(t, "2024-03-01", utc.Date(instant))
	require.Equal(t, "2024-03", utc.YearMonth(instant))

	la := NewUsageCalendar(loc)
	require.Equal(t, "2024-02-29", la.Date(instant))
	require.Equal(t, "2024-02", la.YearMonth(instant))

	start, end, err := utc.MonthRange("2024-02")
	require.NoError(t, err)
	require.Equal(t, "2024-02-01", start)
	require.Equal(t, "2024-02-29", end)
	require.Equal(t, "2024-02", YearMonthOfDate("2024-02-17"))
}

func TestPolicyDeniedReasons(t *testing.T) {
	gear := TierGearhead
	daily := &PolicyDenied{Kind: ActionAsk, Ceiling: CeilingDaily, Tier: TierGarageVisitor, Used: 3, Limit: 3, UpgradeTo: &gear}
	require.Equal(t, "Daily limit reached (3/3 questions used). Upgrade to Gearhead for 50 questions/month.", daily.Reason())
	require.True(t, daily.Upgradable())

	master := TierMasterTech
	monthly := &PolicyDenied{Kind: ActionAsk, Ceiling: CeilingMonthly, Tier: TierGearhead, Used: 50, Limit: 50, UpgradeTo: &master}
	require.Equal(t, "Monthly limit reached (50/50 questions used). Upgrade to Master Tech for 200 questions/month.", monthly.Error())

	top := &PolicyDenied{Kind: ActionAsk, Ceiling: CeilingMonthly, Tier: TierMasterTech, Used: 200, Limit: 200}
	require.Equal(t, "Monthly limit reached (200/200 questions used).", top.Reason())
	require.False(t, top.Upgradable())

	vehicles := &PolicyDenied{Kind: ActionAddVehicle, Ceiling: CeilingLifetime, Tier: TierGarageVisitor, Used: 1, Limit: 1, UpgradeTo: &gear}
	require.Equal(t, "Vehicle limit reached (1/1). Upgrade to Gearhead for unlimited vehicles.", vehicles.Reason())

	feature := &PolicyDenied{Kind: ActionDocumentUpload, Ceiling: CeilingFeature, Tier: TierGarageVisitor, UpgradeTo: &gear}
	require.Equal(t, "Document upload is not available on the Garage Visitor tier. Upgrade to Gearhead for document uploads.", feature.Reason())

	decision := Deny(daily)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "3/3")
}

func TestSearchResultLabel(t *testing.T) {
	r := &SearchResult{
		Content:        "Torque caliper bolts to 110 Nm.",
		RelevanceScore: 0.95,
		Metadata:       ChunkMetadata{DocumentType: DocumentTypeHaynesManual, Title: "E90 Brakes"},
	}
	require.Equal(t, "[Haynes Manual: E90 Brakes] (Score: 0.95)", r.Label())
	require.Equal(t, "Custom Notes", DocumentType("custom_notes").Label())
	require.Equal(t, "user_abc", UserCollection("abc"))
}

func TestOverrideActive(t *testing.T) {
	o := &TierOverride{ExpiresAt: 100}
	require.True(t, o.ActiveAt(99))
	require.False(t, o.ActiveAt(100))
}
