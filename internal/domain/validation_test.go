package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() CreateLimits {
	return CreateLimits{
		MaxToRecipients: 100,
		MaxCcRecipients: 100,
		MaxSubjectChars: 200,
		MaxBodyChars:    10000,
		AllowedTTLDays:  map[int]struct{}{7: {}, 30: {}, 90: {}},
	}
}

func TestNormalizeEmailList(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"Empty list", nil, []string{}},
		{"Trims whitespace", []string{"  a@b.com  "}, []string{"a@b.com"}},
		{"Drops empty entries", []string{"a@b.com", "", "   "}, []string{"a@b.com"}},
		{"Case-insensitive dedupe keeps first form", []string{"A@B.com", "a@b.com", "c@d.com"}, []string{"A@B.com", "c@d.com"}},
		{"Preserves order", []string{"z@y.com", "a@b.com"}, []string{"z@y.com", "a@b.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeEmailList(tt.input))
		})
	}
}

func TestValidateCreateRequest_Valid(t *testing.T) {
	req := &CreateRequest{
		To:      []string{"a@b.com", "c@d.com"},
		Cc:      []string{"e@f.com"},
		Subject: "Hello",
		Body:    "line1\nline2",
		TTLDays: 30,
	}

	v, errs := ValidateCreateRequest(req, testLimits())
	require.Empty(t, errs)
	require.NotNil(t, v)
	assert.Equal(t, []string{"a@b.com", "c@d.com"}, v.Payload.To)
	assert.Equal(t, []string{"e@f.com"}, v.Payload.Cc)
	assert.Equal(t, 30, v.TTLDays)
}

func TestValidateCreateRequest_EmptyToAlwaysFails(t *testing.T) {
	req := &CreateRequest{
		To:      []string{},
		Cc:      []string{"e@f.com"},
		Subject: "Hello",
		TTLDays: 7,
	}

	v, errs := ValidateCreateRequest(req, testLimits())
	assert.Nil(t, v)
	require.Len(t, errs, 1)
	assert.Equal(t, "Recipient is required.", errs[0])
}

func TestValidateCreateRequest_DedupeBeforeCap(t *testing.T) {
	limits := testLimits()
	limits.MaxToRecipients = 2

	// Three raw entries but only two distinct addresses after dedupe.
	req := &CreateRequest{
		To:      []string{"A@b.com", "a@B.com", "c@d.com"},
		TTLDays: 7,
	}

	v, errs := ValidateCreateRequest(req, limits)
	require.Empty(t, errs)
	assert.Equal(t, []string{"A@b.com", "c@d.com"}, v.Payload.To)
}

func TestValidateCreateRequest_CollectsAllErrors(t *testing.T) {
	limits := testLimits()
	limits.MaxSubjectChars = 5
	limits.MaxBodyChars = 5

	req := &CreateRequest{
		To:      []string{"not-an-email"},
		Cc:      []string{"also-bad"},
		Subject: "too long subject",
		Body:    "too long body",
		TTLDays: 14,
	}

	v, errs := ValidateCreateRequest(req, limits)
	assert.Nil(t, v)
	// bad To address, bad CC address, subject cap, body cap, bad TTL
	assert.Len(t, errs, 5)
}

func TestValidateCreateRequest_TTLAllowList(t *testing.T) {
	for _, ttl := range []int{7, 30, 90} {
		req := &CreateRequest{To: []string{"a@b.com"}, TTLDays: ttl}
		_, errs := ValidateCreateRequest(req, testLimits())
		assert.Empty(t, errs, "ttl %d should be allowed", ttl)
	}

	for _, ttl := range []int{0, 1, 14, 365, -7} {
		req := &CreateRequest{To: []string{"a@b.com"}, TTLDays: ttl}
		_, errs := ValidateCreateRequest(req, testLimits())
		require.Len(t, errs, 1, "ttl %d should be rejected", ttl)
		assert.True(t, strings.Contains(errs[0], "Invalid expiration"))
	}
}

func TestValidateCreateRequest_RecipientCaps(t *testing.T) {
	limits := testLimits()
	limits.MaxToRecipients = 1
	limits.MaxCcRecipients = 1

	req := &CreateRequest{
		To:      []string{"a@b.com", "c@d.com"},
		Cc:      []string{"e@f.com", "g@h.com"},
		TTLDays: 7,
	}

	_, errs := ValidateCreateRequest(req, limits)
	assert.Contains(t, errs, "Max 1 recipients in To.")
	assert.Contains(t, errs, "Max 1 recipients in CC.")
}
