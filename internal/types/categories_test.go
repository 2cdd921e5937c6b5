package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransactionType(t *testing.T) {
	tests := []struct {
		in     string
		want   TransactionType
		wantOK bool
	}{
		{"Equity Funding Round", TransactionEquityRound, true},
		{"  equity   funding round ", TransactionEquityRound, true},
		{"ipo", TransactionIPO, true},
		{"Series A", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTransactionType(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSectors_CanonicalOrderAndDedup(t *testing.T) {
	got, unknown := NewSectors("Space", "ai/ml", "Space", "Quantum", "")

	assert.Equal(t, Sectors{SectorAIML, SectorSpace}, got)
	assert.Equal(t, []string{"Quantum"}, unknown)
	assert.Equal(t, "AI/ML, Space", got.String())
}

func TestParseCapitalSources_RoundTripThroughStorageForm(t *testing.T) {
	in, _ := NewCapitalSources("Government", "Venture Capital")
	stored := in.String()
	assert.Equal(t, "Venture Capital, Government", stored)

	out, unknown := ParseCapitalSources(stored)
	assert.Empty(t, unknown)
	assert.Equal(t, in, out)
	assert.True(t, out.Contains(CapitalGovernment))
	assert.False(t, out.Contains(CapitalAngel))
}

func TestParseSectors_AcceptsSemicolons(t *testing.T) {
	got, unknown := ParseSectors("Cybersecurity; Software ,, ")
	assert.Empty(t, unknown)
	assert.Equal(t, Sectors{SectorCybersecurity, SectorSoftware}, got)
}

func TestEmptySetsSerializeToEmptyString(t *testing.T) {
	assert.Equal(t, "", Sectors(nil).String())
	assert.Equal(t, "", CapitalSources{}.String())
}

func TestSectors_UnmarshalJSON(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		var s Sectors
		require.NoError(t, json.Unmarshal([]byte(`["Space","Aerospace"]`), &s))
		assert.Equal(t, Sectors{SectorSpace, SectorAerospace}, s)
	})

	t.Run("delimited string", func(t *testing.T) {
		var s Sectors
		require.NoError(t, json.Unmarshal([]byte(`"Space, Aerospace"`), &s))
		assert.Equal(t, Sectors{SectorSpace, SectorAerospace}, s)
	})

	t.Run("wrong type", func(t *testing.T) {
		var s Sectors
		assert.Error(t, json.Unmarshal([]byte(`42`), &s))
	})
}

func TestVocabulariesHaveNoDuplicateKeys(t *testing.T) {
	assert.Len(t, transactionTypes.lookup, len(transactionTypes.ordered))
	assert.Len(t, capitalSources.lookup, len(capitalSources.ordered))
	assert.Len(t, sectors.lookup, len(sectors.ordered))
}
