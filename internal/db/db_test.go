package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemStatus_Valid(t *testing.T) {
	for _, s := range []ItemStatus{StatusNew, StatusScraped, StatusFailed} {
		assert.True(t, s.Valid(), s)
	}
	for _, s := range []ItemStatus{"", "pending_triage", "approved", "SCRAPED"} {
		assert.False(t, s.Valid(), s)
	}
}

func TestOutcome_Opposite(t *testing.T) {
	assert.Equal(t, OutcomeRejected, OutcomeApproved.Opposite())
	assert.Equal(t, OutcomeApproved, OutcomeRejected.Opposite())
}

func TestDecision_Validate(t *testing.T) {
	tests := []struct {
		name    string
		d       Decision
		wantErr string
	}{
		{"approval", Decision{ItemID: 3, Outcome: OutcomeApproved, Approval: &Approval{}}, ""},
		{"rejection", Decision{ItemID: 3, Outcome: OutcomeRejected, Rejection: &Rejection{}}, ""},
		{"approval missing record", Decision{ItemID: 3, Outcome: OutcomeApproved}, "requires an approval record"},
		{"rejection missing record", Decision{ItemID: 3, Outcome: OutcomeRejected}, "requires a rejection record"},
		{"unknown outcome", Decision{ItemID: 3, Outcome: "maybe"}, `unknown decision outcome "maybe"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.validate()
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.d.Approval != nil {
				assert.Equal(t, int64(3), tt.d.Approval.ItemID)
			}
			if tt.d.Rejection != nil {
				assert.Equal(t, int64(3), tt.d.Rejection.ItemID)
			}
		})
	}
}

func TestConstraintViolations(t *testing.T) {
	unique := &pgconn.PgError{Code: uniqueViolation}
	fk := &pgconn.PgError{Code: foreignKeyViolation}

	assert.True(t, isUniqueViolation(unique))
	assert.True(t, isUniqueViolation(errors.Join(errors.New("insert"), unique)))
	assert.False(t, isUniqueViolation(fk))
	assert.True(t, isForeignKeyViolation(fk))
	assert.False(t, isForeignKeyViolation(errors.New("boom")))
}

func TestNullIfEmpty(t *testing.T) {
	assert.Nil(t, nullIfEmpty(""))
	require.NotNil(t, nullIfEmpty("Aerospace"))
	assert.Equal(t, "Aerospace", *nullIfEmpty("Aerospace"))
}

func TestCategoryColumns(t *testing.T) {
	assert.Nil(t, transactionTypeValue(nil))
	assert.Nil(t, parseTransactionType(nil))

	raw := "not a type"
	assert.Nil(t, parseTransactionType(&raw))
	assert.Nil(t, parseSectors(nil))
	assert.Nil(t, parseCapitalSources(nil))
}
