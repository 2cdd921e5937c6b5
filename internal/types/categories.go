// Package types provides the domain vocabularies and request types shared across the deal-tracker system.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ListSeparator joins multi-select category labels at the storage and transport boundary.
const ListSeparator = ", "

// TransactionType is the single-select deal classification.
type TransactionType string

// CapitalSource is a multi-select label describing where deal capital came from.
type CapitalSource string

// Sector is a multi-select industry label.
type Sector string

// Transaction types
const (
	TransactionEquityRound         TransactionType = "Equity Funding Round"
	TransactionAcquisition         TransactionType = "Acquisition"
	TransactionMerger              TransactionType = "Merger"
	TransactionIPO                 TransactionType = "IPO"
	TransactionSPAC                TransactionType = "SPAC"
	TransactionDebtFinancing       TransactionType = "Debt Financing"
	TransactionGovernmentContract  TransactionType = "Government Contract"
	TransactionGrant               TransactionType = "Grant"
	TransactionJointVenture        TransactionType = "Joint Venture"
	TransactionStrategicInvestment TransactionType = "Strategic Investment"
	TransactionOther               TransactionType = "Other"
)

// Capital sources
const (
	CapitalVentureCapital     CapitalSource = "Venture Capital"
	CapitalCorporateVenture   CapitalSource = "Corporate Venture"
	CapitalPrivateEquity      CapitalSource = "Private Equity"
	CapitalGovernment         CapitalSource = "Government"
	CapitalSovereignWealth    CapitalSource = "Sovereign Wealth"
	CapitalStrategicCorporate CapitalSource = "Strategic Corporate"
	CapitalDebt               CapitalSource = "Debt"
	CapitalPublicMarkets      CapitalSource = "Public Markets"
	CapitalAngel              CapitalSource = "Angel"
	CapitalOther              CapitalSource = "Other"
)

// Sectors
const (
	SectorAIML          Sector = "AI/ML"
	SectorAutonomy      Sector = "Autonomy & Drones"
	SectorSpace         Sector = "Space"
	SectorAerospace     Sector = "Aerospace"
	SectorCybersecurity Sector = "Cybersecurity"
	SectorComms         Sector = "Communications"
	SectorSensorsISR    Sector = "Sensors & ISR"
	SectorMunitions     Sector = "Munitions & Weapons"
	SectorLandSystems   Sector = "Land Systems"
	SectorNaval         Sector = "Naval & Maritime"
	SectorEnergy        Sector = "Energy & Power"
	SectorManufacturing Sector = "Advanced Manufacturing"
	SectorBiotech       Sector = "Biotech"
	SectorSoftware      Sector = "Software"
	SectorOther         Sector = "Other"
)

var (
	transactionTypes = newVocabulary(
		TransactionEquityRound, TransactionAcquisition, TransactionMerger, TransactionIPO,
		TransactionSPAC, TransactionDebtFinancing, TransactionGovernmentContract, TransactionGrant,
		TransactionJointVenture, TransactionStrategicInvestment, TransactionOther,
	)
	capitalSources = newVocabulary(
		CapitalVentureCapital, CapitalCorporateVenture, CapitalPrivateEquity, CapitalGovernment,
		CapitalSovereignWealth, CapitalStrategicCorporate, CapitalDebt, CapitalPublicMarkets,
		CapitalAngel, CapitalOther,
	)
	sectors = newVocabulary(
		SectorAIML, SectorAutonomy, SectorSpace, SectorAerospace, SectorCybersecurity,
		SectorComms, SectorSensorsISR, SectorMunitions, SectorLandSystems, SectorNaval,
		SectorEnergy, SectorManufacturing, SectorBiotech, SectorSoftware, SectorOther,
	)
)

// vocabulary is a closed, ordered set of labels with case-insensitive lookup.
type vocabulary[T ~string] struct {
	ordered []T
	lookup  map[string]int
}

func newVocabulary[T ~string](values ...T) vocabulary[T] {
	v := vocabulary[T]{ordered: values, lookup: make(map[string]int, len(values))}
	for i, val := range values {
		v.lookup[lookupKey(string(val))] = i
	}
	return v
}

func lookupKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (v vocabulary[T]) parse(s string) (T, bool) {
	i, ok := v.lookup[lookupKey(s)]
	if !ok {
		var zero T
		return zero, false
	}
	return v.ordered[i], true
}

func (v vocabulary[T]) valid(t T) bool {
	_, ok := v.lookup[lookupKey(string(t))]
	return ok
}

// normalize maps raw labels onto the vocabulary, dropping duplicates and
// ordering the result by vocabulary position. Unknown labels are returned separately.
func (v vocabulary[T]) normalize(raw []string) ([]T, []string) {
	seen := make([]bool, len(v.ordered))
	var unknown []string
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		i, ok := v.lookup[lookupKey(r)]
		if !ok {
			unknown = append(unknown, r)
			continue
		}
		seen[i] = true
	}

	var out []T
	for i, present := range seen {
		if present {
			out = append(out, v.ordered[i])
		}
	}
	return out, unknown
}

func join[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ListSeparator)
}

// SplitList splits a delimited category list. Commas and semicolons are accepted.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// unmarshalLabels accepts either a JSON array of strings or a single delimited string.
func unmarshalLabels(data []byte) ([]string, error) {
	if string(data) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("expected array or string of labels: %w", err)
	}
	return SplitList(s), nil
}

// -----------------------------------------------------------------------------
// TransactionType
// -----------------------------------------------------------------------------

// ParseTransactionType resolves a label against the transaction type vocabulary.
func ParseTransactionType(s string) (TransactionType, bool) {
	return transactionTypes.parse(s)
}

// TransactionTypes returns the transaction type vocabulary in canonical order.
func TransactionTypes() []TransactionType {
	return append([]TransactionType(nil), transactionTypes.ordered...)
}

// Valid reports whether t belongs to the vocabulary.
func (t TransactionType) Valid() bool {
	return transactionTypes.valid(t)
}

// -----------------------------------------------------------------------------
// CapitalSources
// -----------------------------------------------------------------------------

// CapitalSources is a set of capital source labels kept in vocabulary order.
type CapitalSources []CapitalSource

// NewCapitalSources builds a canonical set from raw labels, returning any labels outside the vocabulary.
func NewCapitalSources(raw ...string) (CapitalSources, []string) {
	vals, unknown := capitalSources.normalize(raw)
	return CapitalSources(vals), unknown
}

// ParseCapitalSources parses a delimited list as stored in the database.
func ParseCapitalSources(s string) (CapitalSources, []string) {
	return NewCapitalSources(SplitList(s)...)
}

// CapitalSourceVocabulary returns all capital source labels in canonical order.
func CapitalSourceVocabulary() []CapitalSource {
	return append([]CapitalSource(nil), capitalSources.ordered...)
}

// Valid reports whether c belongs to the vocabulary.
func (c CapitalSource) Valid() bool {
	return capitalSources.valid(c)
}

// String returns the canonical delimited form.
func (s CapitalSources) String() string { return join(s) }

// Contains reports whether c is in the set.
func (s CapitalSources) Contains(c CapitalSource) bool {
	for _, v := range s {
		if v == c {
			return true
		}
	}
	return false
}

// Normalize returns the canonical form of s along with any labels outside the vocabulary.
func (s CapitalSources) Normalize() (CapitalSources, []string) {
	raw := make([]string, len(s))
	for i, v := range s {
		raw[i] = string(v)
	}
	return NewCapitalSources(raw...)
}

// UnmarshalJSON accepts an array or a delimited string. Labels are checked by validation, not here.
func (s *CapitalSources) UnmarshalJSON(data []byte) error {
	labels, err := unmarshalLabels(data)
	if err != nil {
		return err
	}
	out := make(CapitalSources, len(labels))
	for i, l := range labels {
		out[i] = CapitalSource(strings.TrimSpace(l))
	}
	*s = out
	return nil
}

// -----------------------------------------------------------------------------
// Sectors
// -----------------------------------------------------------------------------

// Sectors is a set of sector labels kept in vocabulary order.
type Sectors []Sector

// NewSectors builds a canonical set from raw labels, returning any labels outside the vocabulary.
func NewSectors(raw ...string) (Sectors, []string) {
	vals, unknown := sectors.normalize(raw)
	return Sectors(vals), unknown
}

// ParseSectors parses a delimited list as stored in the database.
func ParseSectors(s string) (Sectors, []string) {
	return NewSectors(SplitList(s)...)
}

// SectorVocabulary returns all sector labels in canonical order.
func SectorVocabulary() []Sector {
	return append([]Sector(nil), sectors.ordered...)
}

// Valid reports whether s belongs to the vocabulary.
func (s Sector) Valid() bool {
	return sectors.valid(s)
}

// String returns the canonical delimited form.
func (s Sectors) String() string { return join(s) }

// Contains reports whether sec is in the set.
func (s Sectors) Contains(sec Sector) bool {
	for _, v := range s {
		if v == sec {
			return true
		}
	}
	return false
}

// Normalize returns the canonical form of s along with any labels outside the vocabulary.
func (s Sectors) Normalize() (Sectors, []string) {
	raw := make([]string, len(s))
	for i, v := range s {
		raw[i] = string(v)
	}
	return NewSectors(raw...)
}

// UnmarshalJSON accepts an array or a delimited string. Labels are checked by validation, not here.
func (s *Sectors) UnmarshalJSON(data []byte) error {
	labels, err := unmarshalLabels(data)
	if err != nil {
		return err
	}
	out := make(Sectors, len(labels))
	for i, l := range labels {
		out[i] = Sector(strings.TrimSpace(l))
	}
	*s = out
	return nil
}
