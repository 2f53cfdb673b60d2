package badge_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veribadge/veribadge-core/pkg/badge"
	"github.com/veribadge/veribadge-core/pkg/replay"
	"github.com/veribadge/veribadge-core/pkg/signer"
	"github.com/veribadge/veribadge-core/pkg/token"
)

const testContract = "0x1234567890abcdef1234567890abcdef12345678"

// MockStore is a simple in-memory store for testing. Like the real
// store it keeps every issued row, so revoked badges remain findable
// after a replacement is issued.
type MockStore struct {
	Badges     []*badge.Badge // in issuance order
	ForceError error          // if set, all methods return this error
	now        func() time.Time
}

func NewMockStore(now func() time.Time) *MockStore {
	if now == nil {
		now = time.Now
	}
	return &MockStore{now: now}
}

// latest returns the newest badge for a contract, or nil.
func (m *MockStore) latest(addr string) *badge.Badge {
	for i := len(m.Badges) - 1; i >= 0; i-- {
		if m.Badges[i].ContractAddress == addr {
			return m.Badges[i]
		}
	}
	return nil
}

func (m *MockStore) CreateActive(_ context.Context, b *badge.Badge) error {
	if m.ForceError != nil {
		return m.ForceError
	}
	if existing := m.latest(b.ContractAddress); existing != nil && existing.IsActive(m.now()) {
		return badge.ErrConflict.WithDetails(map[string]any{
			"verified_at": existing.VerifiedAt,
			"expires_at":  existing.ExpiresAt,
		})
	}
	m.Badges = append(m.Badges, b)
	return nil
}

func (m *MockStore) FindActiveByContract(_ context.Context, addr string) (*badge.Badge, error) {
	if m.ForceError != nil {
		return nil, m.ForceError
	}
	if b := m.latest(addr); b != nil && b.IsActive(m.now()) {
		return b, nil
	}
	return nil, badge.ErrNotFound
}

func (m *MockStore) FindByTokenHash(_ context.Context, tokenHash string) (*badge.Badge, error) {
	if m.ForceError != nil {
		return nil, m.ForceError
	}
	for _, b := range m.Badges {
		if b.TokenHash == tokenHash {
			return b, nil
		}
	}
	return nil, badge.ErrNotFound
}

func (m *MockStore) Revoke(_ context.Context, addr, userID, reason string, at time.Time) (*badge.Badge, error) {
	if m.ForceError != nil {
		return nil, m.ForceError
	}
	b := m.latest(addr)
	if b == nil || b.UserID != userID {
		return nil, badge.ErrNotFound
	}
	if b.IsRevoked() {
		return nil, badge.ErrAlreadyRevoked
	}
	b.RevokedAt = &at
	b.RevocationReason = reason
	return b, nil
}

func (m *MockStore) Stats(_ context.Context, _ time.Time) (*badge.Stats, error) {
	if m.ForceError != nil {
		return nil, m.ForceError
	}
	var stats badge.Stats
	now := m.now()
	for _, b := range m.Badges {
		stats.TotalBadges++
		switch {
		case b.IsRevoked():
			stats.RevokedBadges++
		case b.IsExpired(now):
			stats.ExpiredBadges++
		default:
			stats.ActiveBadges++
		}
	}
	return &stats, nil
}

// FailingGuard simulates an unavailable replay backend.
type FailingGuard struct{}

func (FailingGuard) RecordIfNew(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	k, err := signer.NewKeyring("v1", map[string][]byte{
		"v1": signer.DeriveSecret("test-app-key-with-enough-entropy", "v1"),
	})
	require.NoError(t, err)
	return signer.New(k)
}

type fixture struct {
	signer   *signer.Signer
	store    *MockStore
	guard    *replay.MemoryGuard
	issuer   *badge.Issuer
	verifier *badge.Verifier
	revoker  *badge.Revoker
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)}
	nowFunc := func() time.Time { return f.now }

	f.signer = testSigner(t)
	f.store = NewMockStore(nowFunc)
	f.guard = replay.NewMemoryGuard()
	t.Cleanup(f.guard.Stop)

	f.issuer = badge.NewIssuer(f.signer, f.store, badge.IssuerConfig{
		BaseURL: "https://badges.example.com",
		Now:     nowFunc,
	}, nil)
	f.verifier = badge.NewVerifier(f.signer, f.guard, f.store, badge.VerifierConfig{Now: nowFunc}, nil)
	f.revoker = badge.NewRevoker(f.store, nowFunc, nil)
	return f
}

func (f *fixture) issue(t *testing.T, req badge.IssueRequest) *badge.IssuedBadge {
	t.Helper()
	if req.ContractAddress == "" {
		req.ContractAddress = testContract
	}
	if req.UserID == "" && req.CallerIP == "" {
		req.UserID = "user-1"
	}
	issued, err := f.issuer.Issue(context.Background(), req)
	require.NoError(t, err)
	return issued
}

func TestIssue_Defaults(t *testing.T) {
	f := newFixture(t)

	issued := f.issue(t, badge.IssueRequest{})
	assert.NotEmpty(t, issued.BadgeID)
	assert.GreaterOrEqual(t, len(issued.Token), token.MinTokenLength)
	assert.Equal(t, f.now, issued.IssuedAt)
	assert.Equal(t, f.now.Add(24*time.Hour), issued.ExpiresAt)
	assert.Contains(t, issued.VerificationURL, "https://badges.example.com/verification/verify/")
	assert.Empty(t, issued.EmbedURL)

	stored := f.store.latest(testContract)
	require.NotNil(t, stored)
	assert.Equal(t, signer.TokenHash(issued.Token), stored.TokenHash)
	assert.NotEqual(t, issued.Token, stored.TokenHash)
	assert.Equal(t, badge.VerificationMethod, stored.VerificationMethod)
}

func TestIssue_InvalidAddress(t *testing.T) {
	f := newFixture(t)

	_, err := f.issuer.Issue(context.Background(), badge.IssueRequest{
		ContractAddress: "not-an-address",
		UserID:          "user-1",
	})
	require.Error(t, err)
	assert.Equal(t, badge.ErrCodeValidation, badge.GetErrorCode(err))
}

func TestIssue_AddressNormalization(t *testing.T) {
	f := newFixture(t)

	issued, err := f.issuer.Issue(context.Background(), badge.IssueRequest{
		ContractAddress: strings.ToUpper(testContract[2:]),
		UserID:          "user-1",
	})
	require.Error(t, err)
	assert.Nil(t, issued)

	issued, err = f.issuer.Issue(context.Background(), badge.IssueRequest{
		ContractAddress: "0x" + strings.ToUpper(testContract[2:]),
		UserID:          "user-1",
	})
	require.NoError(t, err)
	require.NotNil(t, f.store.latest(testContract))
	assert.NotNil(t, issued)
}

func TestIssue_ConflictWhenActiveExists(t *testing.T) {
	f := newFixture(t)
	f.issue(t, badge.IssueRequest{})

	_, err := f.issuer.Issue(context.Background(), badge.IssueRequest{
		ContractAddress: testContract,
		UserID:          "user-2",
	})
	require.Error(t, err)
	assert.Equal(t, badge.ErrCodeConflict, badge.GetErrorCode(err))
}

func TestIssue_CustomExpiryCapped(t *testing.T) {
	f := newFixture(t)

	issued := f.issue(t, badge.IssueRequest{
		UserID:  "user-1",
		Options: badge.IssueOptions{CustomExpiryHours: 1000},
	})
	assert.Equal(t, f.now.Add(badge.MaxExpiryHours*time.Hour), issued.ExpiresAt)
}

func TestIssue_AnonymousFallbackUserID(t *testing.T) {
	f := newFixture(t)

	issued := f.issue(t, badge.IssueRequest{CallerIP: "203.0.113.7"})
	stored := f.store.latest(testContract)
	require.NotNil(t, stored)
	assert.Equal(t, badge.FallbackUserID("203.0.113.7"), stored.UserID)
	assert.True(t, strings.HasPrefix(stored.UserID, "ip:"))
	assert.NotNil(t, issued)
}

func TestIssue_EmbedURL(t *testing.T) {
	f := newFixture(t)

	issued := f.issue(t, badge.IssueRequest{
		UserID:  "user-1",
		Options: badge.IssueOptions{EnableEmbed: true},
	})
	assert.Contains(t, issued.EmbedURL, "/verification/embed/")
}

func TestVerify_ValidToken(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{})

	result, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: true})
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, badge.StateValid, result.State)
	require.NotNil(t, result.Badge)
	assert.Equal(t, testContract, result.Badge.ContractAddress)
}

func TestVerify_Replayed(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{})

	_, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: true})
	require.NoError(t, err)

	result, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: true})
	require.Error(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, badge.StateReplayed, result.State)
	assert.Equal(t, badge.ErrCodeReplayed, result.Code)
}

func TestVerify_NonConsumingRepeats(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{})

	for i := 0; i < 3; i++ {
		result, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: false})
		require.NoError(t, err)
		assert.True(t, result.Verified)
	}

	// Display checks never burn the nonce.
	result, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: true})
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestVerify_Expired(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{})

	f.now = f.now.Add(25 * time.Hour)

	result, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: true})
	require.Error(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, badge.StateExpired, result.State)
	assert.Equal(t, badge.ErrCodeExpired, result.Code)
}

func TestVerify_ExpiredDoesNotConsumeNonce(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{})

	f.now = f.now.Add(25 * time.Hour)
	_, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: true})
	require.Error(t, err)
	assert.Equal(t, 0, f.guard.Size())
}

func TestVerify_Malformed(t *testing.T) {
	f := newFixture(t)

	result, err := f.verifier.Verify(context.Background(), "junk", badge.VerifyContext{})
	require.Error(t, err)
	assert.Equal(t, badge.StateMalformed, result.State)
	assert.Equal(t, badge.ErrCodeTokenTooShort, result.Code)
}

func TestVerify_WrongKey(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{})

	otherRing, err := signer.NewKeyring("v1", map[string][]byte{
		"v1": signer.DeriveSecret("a-completely-different-app-key!!", "v1"),
	})
	require.NoError(t, err)
	hostile := badge.NewVerifier(signer.New(otherRing), f.guard, f.store,
		badge.VerifierConfig{Now: func() time.Time { return f.now }}, nil)

	result, verr := hostile.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: true})
	require.Error(t, verr)
	assert.Equal(t, badge.StateSignatureInvalid, result.State)
	assert.Equal(t, badge.ErrCodeSignatureInvalid, result.Code)
}

func TestVerify_Revoked(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{})

	_, err := f.revoker.Revoke(context.Background(), testContract, "compromised", "user-1")
	require.NoError(t, err)

	result, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: false})
	require.Error(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, badge.StateRevoked, result.State)
	assert.Equal(t, badge.ErrCodeRevoked, result.Code)
}

func TestVerify_RevokedTokenStaysRevokedAfterReissue(t *testing.T) {
	f := newFixture(t)
	first := f.issue(t, badge.IssueRequest{})

	_, err := f.revoker.Revoke(context.Background(), testContract, "compromised", "user-1")
	require.NoError(t, err)

	// A replacement badge for the same contract and owner must not
	// resurrect the revoked token.
	second := f.issue(t, badge.IssueRequest{})

	result, err := f.verifier.Verify(context.Background(), first.Token, badge.VerifyContext{Consume: false})
	require.Error(t, err)
	assert.False(t, result.Verified)
	assert.Equal(t, badge.StateRevoked, result.State)
	assert.Equal(t, badge.ErrCodeRevoked, result.Code)

	result, err = f.verifier.Verify(context.Background(), second.Token, badge.VerifyContext{Consume: false})
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestVerify_IPBinding(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{
		UserID:   "user-1",
		CallerIP: "203.0.113.7",
		Options:  badge.IssueOptions{RequireIPBinding: true},
	})

	result, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{
		IP: "198.51.100.9", Consume: false,
	})
	require.Error(t, err)
	assert.Equal(t, badge.StateContextMismatch, result.State)
	assert.Equal(t, badge.ErrCodeContextMismatch, result.Code)

	result, err = f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{
		IP: "203.0.113.7", Consume: false,
	})
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestVerify_WrongIPDoesNotConsumeNonce(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{
		UserID:   "user-1",
		CallerIP: "203.0.113.7",
		Options:  badge.IssueOptions{RequireIPBinding: true},
	})

	// A rejected wrong-IP redemption attempt must not burn the nonce.
	result, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{
		IP: "198.51.100.9", Consume: true,
	})
	require.Error(t, err)
	assert.Equal(t, badge.StateContextMismatch, result.State)
	assert.Equal(t, 0, f.guard.Size())

	// The legitimate holder's redemption still succeeds.
	result, err = f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{
		IP: "203.0.113.7", Consume: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Verified)
}

func TestVerify_NoBadgeRecord(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{})
	f.store.Badges = nil

	result, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: false})
	require.Error(t, err)
	assert.Equal(t, badge.StateNotFound, result.State)
	assert.Equal(t, badge.ErrCodeNotFound, result.Code)
}

func TestVerify_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{})
	f.store.ForceError = errors.New("database is locked")

	result, err := f.verifier.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: false})
	assert.Nil(t, result)
	assert.Equal(t, badge.ErrCodeStoreUnavailable, badge.GetErrorCode(err))
}

func TestVerify_GuardUnavailable(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t, badge.IssueRequest{})

	broken := badge.NewVerifier(f.signer, FailingGuard{}, f.store,
		badge.VerifierConfig{Now: func() time.Time { return f.now }}, nil)

	result, err := broken.Verify(context.Background(), issued.Token, badge.VerifyContext{Consume: true})
	assert.Nil(t, result)
	assert.Equal(t, badge.ErrCodeStoreUnavailable, badge.GetErrorCode(err))
}

func TestRevoke_Ownership(t *testing.T) {
	f := newFixture(t)
	f.issue(t, badge.IssueRequest{})

	// A non-owner sees not-found, not another user's badge.
	_, err := f.revoker.Revoke(context.Background(), testContract, "", "someone-else")
	assert.Equal(t, badge.ErrCodeNotFound, badge.GetErrorCode(err))

	b, err := f.revoker.Revoke(context.Background(), testContract, "", "user-1")
	require.NoError(t, err)
	assert.True(t, b.IsRevoked())
	assert.Equal(t, "manual revocation", b.RevocationReason)
}

func TestRevoke_AlreadyRevoked(t *testing.T) {
	f := newFixture(t)
	f.issue(t, badge.IssueRequest{})

	_, err := f.revoker.Revoke(context.Background(), testContract, "first", "user-1")
	require.NoError(t, err)

	_, err = f.revoker.Revoke(context.Background(), testContract, "second", "user-1")
	assert.Equal(t, badge.ErrCodeAlreadyRevoked, badge.GetErrorCode(err))
}

func TestRevoke_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.revoker.Revoke(context.Background(), "bogus", "", "user-1")
	assert.Equal(t, badge.ErrCodeValidation, badge.GetErrorCode(err))

	_, err = f.revoker.Revoke(context.Background(), testContract, "", "")
	assert.Equal(t, badge.ErrCodeValidation, badge.GetErrorCode(err))
}

func TestBadge_TruncatedAddress(t *testing.T) {
	b := &badge.Badge{ContractAddress: testContract}
	short := b.TruncatedAddress()
	assert.NotEqual(t, testContract, short)
	assert.True(t, strings.HasPrefix(short, "0x1234"))
	assert.True(t, strings.HasSuffix(short, "5678"))
}

func TestLevels_Catalog(t *testing.T) {
	levels := badge.Levels()
	assert.Len(t, levels, 4)
	for _, key := range []string{token.LevelBasic, token.LevelStandard, token.LevelPremium, token.LevelEnterprise} {
		level, ok := levels[key]
		require.True(t, ok, key)
		assert.NotEmpty(t, level.Name)
		assert.NotEmpty(t, level.Features)
	}
}

func TestDisplay_SVG(t *testing.T) {
	now := time.Now()
	b := &badge.Badge{
		ContractAddress: testContract,
		Metadata:        token.Metadata{ProjectName: "Example DEX", VerificationLevel: token.LevelPremium},
		VerifiedAt:      now,
	}

	data := badge.NewDisplayData(b)
	assert.Equal(t, "Example DEX", data.ProjectName)
	assert.Equal(t, token.LevelPremium, data.Level)
	assert.NotEmpty(t, data.Color)

	svg := badge.RenderSVG(data, badge.DisplayOptions{ShowDetails: true})
	assert.Contains(t, svg, "<svg")
	assert.Contains(t, svg, data.Label)
	assert.Contains(t, svg, data.TruncatedAddress)

	errSVG := badge.RenderErrorSVG("NOT_VERIFIED")
	assert.Contains(t, errSVG, "Not Verified")
}
