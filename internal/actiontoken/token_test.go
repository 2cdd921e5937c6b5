package actiontoken

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestSigner(c *clock) *Signer {
	return NewSigner("test-secret", DefaultTTL, nil, WithClock(c.now))
}

func TestGenerateVerify_RoundTrip(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSigner(c)

	for _, action := range []Action{ActionApprove, ActionReject} {
		t.Run(string(action), func(t *testing.T) {
			token, err := s.Generate(42, action)
			require.NoError(t, err)

			parts := strings.Split(token, ":")
			require.Len(t, parts, 4)
			assert.Equal(t, "42", parts[0])
			assert.Equal(t, string(action), parts[1])
			assert.Equal(t, "1700000000", parts[2])
			assert.Len(t, parts[3], SignatureLength)

			claims, err := s.Verify(token)
			require.NoError(t, err)
			assert.Equal(t, int64(42), claims.ItemID)
			assert.Equal(t, action, claims.Action)
		})
	}
}

func TestGenerate_InvalidAction(t *testing.T) {
	s := newTestSigner(&clock{t: time.Now()})
	_, err := s.Generate(1, "delete")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestVerify_Expiry(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSigner(c)
	token, err := s.Generate(5, ActionApprove)
	require.NoError(t, err)

	c.t = c.t.Add(DefaultTTL)
	_, err = s.Verify(token)
	require.NoError(t, err, "exactly TTL is still valid")

	c.t = c.t.Add(time.Second)
	_, err = s.Verify(token)

	var expired *ExpiredError
	require.True(t, errors.As(err, &expired))
	assert.Equal(t, int64(5), expired.Claims.ItemID)
	assert.Equal(t, ActionApprove, expired.Claims.Action)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_ExpiryCheckedBeforeSignature(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSigner(c)

	c.t = c.t.Add(48 * time.Hour)
	_, err := s.Verify("5:approve:1700000000:0000000000000000")

	var expired *ExpiredError
	assert.True(t, errors.As(err, &expired))
}

func TestVerify_Tamper(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSigner(c)
	token, err := s.Generate(7, ActionReject)
	require.NoError(t, err)

	sigStart := strings.LastIndex(token, ":") + 1
	for i := sigStart; i < len(token); i++ {
		b := []byte(token)
		if b[i] == 'a' {
			b[i] = 'b'
		} else {
			b[i] = 'a'
		}
		_, err := s.Verify(string(b))
		assert.ErrorIs(t, err, ErrInvalidSignature, "position %d", i)
	}

	// Changing the carried action invalidates the signature too.
	forged := strings.Replace(token, ":reject:", ":approve:", 1)
	_, err = s.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Errors(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	s := newTestSigner(c)
	unknown := "9:archive:1700000000:" + s.sign("9:archive:1700000000")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrInvalidFormat},
		{"too few fields", "1:approve:1700000000", ErrInvalidFormat},
		{"too many fields", "1:approve:1700000000:abc:def", ErrInvalidFormat},
		{"non-numeric id", "x:approve:1700000000:abcdef0123456789", ErrInvalidFormat},
		{"non-numeric timestamp", "1:approve:yesterday:abcdef0123456789", ErrInvalidFormat},
		{"bad signature", "1:approve:1700000000:abcdef0123456789", ErrInvalidSignature},
		{"unknown action", unknown, ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := s.Verify(tt.token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestVerify_DifferentSecret(t *testing.T) {
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	token, err := newTestSigner(c).Generate(1, ActionApprove)
	require.NoError(t, err)

	other := NewSigner("another-secret", DefaultTTL, nil, WithClock(c.now))
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestNewSigner_Defaults(t *testing.T) {
	s := NewSigner("", 0, nil)
	assert.Equal(t, DefaultTTL, s.TTL())

	token, err := s.Generate(3, ActionApprove)
	require.NoError(t, err)
	_, err = s.Verify(token)
	assert.NoError(t, err)
}

func TestActionURL(t *testing.T) {
	assert.Equal(t,
		"https://deals.example/api/action?token=5%3Aapprove%3A100%3Aabc",
		ActionURL("https://deals.example/", "5:approve:100:abc"))
}
