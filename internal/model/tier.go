package model

import (
	"fmt"
	"strings"
)

// Tier is a subscription level. Values are ordered by entitlement.
type Tier int

const (
	TierGarageVisitor Tier = iota
	TierGearhead
	TierMasterTech
)

const DefaultTier = TierGarageVisitor

var AllTiers = []Tier{TierGarageVisitor, TierGearhead, TierMasterTech}

func (t Tier) String() string {
	switch t {
	case TierGarageVisitor:
		return "garage_visitor"
	case TierGearhead:
		return "gearhead"
	case TierMasterTech:
		return "master_tech"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// DisplayName is used in upgrade prompts.
func (t Tier) DisplayName() string {
	switch t {
	case TierGarageVisitor:
		return "Garage Visitor"
	case TierGearhead:
		return "Gearhead"
	case TierMasterTech:
		return "Master Tech"
	}
	return t.String()
}

func (t Tier) Valid() bool {
	return t >= TierGarageVisitor && t <= TierMasterTech
}

// Next returns the tier above t, or false when t is already the top tier.
func (t Tier) Next() (Tier, bool) {
	if !t.Valid() || t == TierMasterTech {
		return t, false
	}
	return t + 1, true
}

// ParseTier accepts current wire names plus the legacy free_tier / weekend_warrior names.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "garage_visitor", "free_tier", "free":
		return TierGarageVisitor, nil
	case "gearhead", "weekend_warrior":
		return TierGearhead, nil
	case "master_tech":
		return TierMasterTech, nil
	}
	return DefaultTier, fmt.Errorf("unknown tier: %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier: %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(data []byte) error {
	parsed, err := ParseTier(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
