package model

import "fmt"

const mib = int64(1024 * 1024)

// TierPolicy is the entitlement bundle of a tier. A nil limit means unlimited.
type TierPolicy struct {
	Tier               Tier   `json:"tier"`
	MaxDailyAsks       *int64 `json:"max_daily_asks"`
	MaxMonthlyAsks     *int64 `json:"max_monthly_asks"`
	MaxDocumentUploads *int64 `json:"max_document_uploads"`
	MaxVehicles        *int64 `json:"max_vehicles"`
	MaxStorageBytes    *int64 `json:"max_storage_bytes"`
	UploadEnabled      bool   `json:"upload_enabled"`
	TTSEnabled         bool   `json:"tts_enabled"`
	STTEnabled         bool   `json:"stt_enabled"`
}

func limit(v int64) *int64 {
	return &v
}

// policyFor has no default branch: a tier added to the enum without a policy
// fails ValidatePolicies at startup and in tests.
func policyFor(t Tier) (TierPolicy, bool) {
	switch t {
	case TierGarageVisitor:
		return TierPolicy{
			Tier:               t,
			MaxDailyAsks:       limit(3),
			MaxDocumentUploads: limit(0),
			MaxVehicles:        limit(1),
			MaxStorageBytes:    limit(0),
			UploadEnabled:      false,
			TTSEnabled:         true,
			STTEnabled:         true,
		}, true
	case TierGearhead:
		return TierPolicy{
			Tier:               t,
			MaxMonthlyAsks:     limit(50),
			MaxDocumentUploads: limit(20),
			MaxStorageBytes:    limit(1000 * mib),
			UploadEnabled:      true,
			TTSEnabled:         true,
			STTEnabled:         true,
		}, true
	case TierMasterTech:
		return TierPolicy{
			Tier:           t,
			MaxMonthlyAsks: limit(200),
			UploadEnabled:  true,
			TTSEnabled:     true,
			STTEnabled:     true,
		}, true
	}
	return TierPolicy{}, false
}

var policies = buildPolicies()

func buildPolicies() map[Tier]TierPolicy {
	out := make(map[Tier]TierPolicy, len(AllTiers))
	for _, t := range AllTiers {
		if p, ok := policyFor(t); ok {
			out[t] = p
		}
	}
	return out
}

// ValidatePolicies reports a tier that has no policy.
func ValidatePolicies() error {
	for _, t := range AllTiers {
		if _, ok := policies[t]; !ok {
			return fmt.Errorf("tier %s has no policy", t)
		}
	}
	return nil
}

// PolicyOf returns the policy of t. Unknown tiers get the default tier's policy.
func PolicyOf(t Tier) TierPolicy {
	if p, ok := policies[t]; ok {
		return p
	}
	return policies[DefaultTier]
}

// FeatureEnabled reports whether kind is behind a feature flag that t has switched off.
func (p TierPolicy) FeatureEnabled(kind ActionKind) bool {
	switch kind {
	case ActionDocumentUpload:
		return p.UploadEnabled
	case ActionTTS:
		return p.TTSEnabled
	case ActionSTT:
		return p.STTEnabled
	}
	return true
}
