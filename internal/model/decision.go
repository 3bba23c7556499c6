package model

import "fmt"

type Ceiling string

const (
	CeilingDaily    Ceiling = "daily"
	CeilingMonthly  Ceiling = "monthly"
	CeilingLifetime Ceiling = "lifetime"
	CeilingStorage  Ceiling = "storage"
	CeilingFeature  Ceiling = "feature"
)

// PolicyDenied is returned when a tier policy rejects an action.
type PolicyDenied struct {
	Kind      ActionKind `json:"action_kind"`
	Ceiling   Ceiling    `json:"ceiling"`
	Tier      Tier       `json:"tier"`
	Used      int64      `json:"used"`
	Limit     int64      `json:"limit"`
	UpgradeTo *Tier      `json:"upgrade_to,omitempty"`
}

func (e *PolicyDenied) Error() string {
	return e.Reason()
}

// Upgradable reports whether a higher tier lifts this denial.
func (e *PolicyDenied) Upgradable() bool {
	return e.UpgradeTo != nil
}

func (e *PolicyDenied) Reason() string {
	msg := e.headline()
	if hint := e.upgradeHint(); hint != "" {
		msg += " " + hint
	}
	return msg
}

func (e *PolicyDenied) headline() string {
	switch e.Ceiling {
	case CeilingFeature:
		return fmt.Sprintf("%s is not available on the %s tier.", featureName(e.Kind), e.Tier.DisplayName())
	case CeilingDaily:
		return fmt.Sprintf("Daily limit reached (%d/%d %s used).", e.Used, e.Limit, unitName(e.Kind))
	case CeilingMonthly:
		return fmt.Sprintf("Monthly limit reached (%d/%d %s used).", e.Used, e.Limit, unitName(e.Kind))
	case CeilingLifetime:
		switch e.Kind {
		case ActionDocumentUpload:
			return fmt.Sprintf("Document upload limit reached (%d/%d).", e.Used, e.Limit)
		case ActionAddVehicle:
			return fmt.Sprintf("Vehicle limit reached (%d/%d).", e.Used, e.Limit)
		}
		return fmt.Sprintf("Limit reached (%d/%d).", e.Used, e.Limit)
	case CeilingStorage:
		return fmt.Sprintf("Storage limit reached (%d/%d MB used).", toMB(e.Used), toMB(e.Limit))
	}
	return fmt.Sprintf("Limit reached (%d/%d).", e.Used, e.Limit)
}

func (e *PolicyDenied) upgradeHint() string {
	if e.UpgradeTo == nil {
		return ""
	}
	next := *e.UpgradeTo
	p := PolicyOf(next)
	name := next.DisplayName()
	switch e.Kind {
	case ActionAsk:
		switch {
		case p.MaxMonthlyAsks != nil:
			return fmt.Sprintf("Upgrade to %s for %d questions/month.", name, *p.MaxMonthlyAsks)
		case p.MaxDailyAsks != nil:
			return fmt.Sprintf("Upgrade to %s for %d questions/day.", name, *p.MaxDailyAsks)
		}
		return fmt.Sprintf("Upgrade to %s for unlimited questions.", name)
	case ActionDocumentUpload:
		if e.Ceiling == CeilingFeature {
			return fmt.Sprintf("Upgrade to %s for document uploads.", name)
		}
		if e.Ceiling == CeilingStorage {
			return fmt.Sprintf("Upgrade to %s for more storage.", name)
		}
		if p.MaxDocumentUploads == nil {
			return fmt.Sprintf("Upgrade to %s for unlimited documents.", name)
		}
		return fmt.Sprintf("Upgrade to %s for %d documents.", name, *p.MaxDocumentUploads)
	case ActionAddVehicle:
		if p.MaxVehicles == nil {
			return fmt.Sprintf("Upgrade to %s for unlimited vehicles.", name)
		}
		return fmt.Sprintf("Upgrade to %s for %d vehicles.", name, *p.MaxVehicles)
	}
	return fmt.Sprintf("Upgrade to %s.", name)
}

func featureName(kind ActionKind) string {
	switch kind {
	case ActionDocumentUpload:
		return "Document upload"
	case ActionTTS:
		return "Voice playback"
	case ActionSTT:
		return "Voice input"
	}
	return string(kind)
}

func unitName(kind ActionKind) string {
	switch kind {
	case ActionAsk:
		return "questions"
	case ActionDocumentSearch:
		return "searches"
	}
	return "requests"
}

func toMB(b int64) int64 {
	return b / mib
}

// Decision is the outcome of a quota check. Denial is set when Allowed is false.
type Decision struct {
	Allowed bool          `json:"allowed"`
	Reason  string        `json:"reason,omitempty"`
	Tier    Tier          `json:"tier"`
	Denial  *PolicyDenied `json:"denial,omitempty"`
}

func Allow(tier Tier) Decision {
	return Decision{Allowed: true, Tier: tier}
}

func Deny(d *PolicyDenied) Decision {
	return Decision{Allowed: false, Reason: d.Reason(), Tier: d.Tier, Denial: d}
}
