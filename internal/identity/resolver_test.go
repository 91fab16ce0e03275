package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeridepros/ticketwatch/internal/domain"
)

// mockAccountStore is a map-backed AccountStore.
type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	err      error
	calls    int
}

func (m *mockAccountStore) GetAccount(_ context.Context, key string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	account, ok := m.accounts[key]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// mockTokenStore records query batch sizes and returns canned tokens.
type mockTokenStore struct {
	mu          sync.Mutex
	byEmail     map[string][]string
	byUserID    map[string][]string
	emailBatch  []int
	userIDBatch []int
	err         error
}

func (m *mockTokenStore) TokensByEmails(_ context.Context, emails []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.emailBatch = append(m.emailBatch, len(emails))
	if m.err != nil {
		return nil, m.err
	}
	var out []string
	for _, e := range emails {
		out = append(out, m.byEmail[e]...)
	}
	return out, nil
}

func (m *mockTokenStore) TokensByUserIDs(_ context.Context, userIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.userIDBatch = append(m.userIDBatch, len(userIDs))
	if m.err != nil {
		return nil, m.err
	}
	var out []string
	for _, id := range userIDs {
		out = append(out, m.byUserID[id]...)
	}
	return out, nil
}

func TestResolverDeduplicatesReferences(t *testing.T) {
	tokens := &mockTokenStore{byEmail: map[string][]string{
		"nate@lakeridepros.com": {"token-1"},
	}}
	resolver := NewResolver(&mockAccountStore{}, &mockAccountStore{}, tokens)

	// Same person referenced three different ways.
	targets := resolver.Resolve(context.Background(), []string{
		"nate",
		"nate@lakeridepros.com",
		"NATE@lakeridepros.com",
	})

	require.Len(t, targets, 2)
	assert.Equal(t, domain.NotificationTarget{Type: domain.TargetTypeEmail, To: "nate@lakeridepros.com"}, targets[0])
	assert.Equal(t, domain.NotificationTarget{Type: domain.TargetTypeFCM, To: "token-1"}, targets[1])
}

func TestResolverAccountKeyLookup(t *testing.T) {
	access := &mockAccountStore{accounts: map[string]*Account{
		"acct-1": {Email: "driver@example.com", Phone: "+15551234567"},
	}}
	profile := &mockAccountStore{accounts: map[string]*Account{
		"acct-2": {Email: "backup@example.com"},
	}}
	resolver := NewResolver(access, profile, &mockTokenStore{})

	targets := resolver.Resolve(context.Background(), []string{"acct-1", "acct-2"})

	assert.ElementsMatch(t, []domain.NotificationTarget{
		{Type: domain.TargetTypeEmail, To: "driver@example.com"},
		{Type: domain.TargetTypeEmail, To: "backup@example.com"},
		{Type: domain.TargetTypeSMS, To: "+15551234567"},
	}, targets)
}

func TestResolverToleratesLookupFailures(t *testing.T) {
	access := &mockAccountStore{err: errors.New("store down")}
	profile := &mockAccountStore{accounts: map[string]*Account{
		"acct-1": {Email: "driver@example.com"},
	}}
	resolver := NewResolver(access, profile, &mockTokenStore{err: errors.New("tokens down")})

	targets := resolver.Resolve(context.Background(), []string{"acct-1", "ghost", "jim"})

	// The failing access store and token store are treated as misses; the
	// profile hit and the alias still resolve.
	assert.ElementsMatch(t, []domain.NotificationTarget{
		{Type: domain.TargetTypeEmail, To: "jim@lakeridepros.com"},
		{Type: domain.TargetTypeEmail, To: "driver@example.com"},
	}, targets)
}

func TestResolverEmptyResultIsNotAnError(t *testing.T) {
	resolver := NewResolver(&mockAccountStore{}, &mockAccountStore{}, &mockTokenStore{})

	targets := resolver.Resolve(context.Background(), []string{"ghost", "", "  "})
	assert.Empty(t, targets)
}

func TestResolverChunksTokenQueries(t *testing.T) {
	tokens := &mockTokenStore{byEmail: map[string][]string{}}
	resolver := NewResolver(&mockAccountStore{}, &mockAccountStore{}, tokens)

	refs := make([]string, 25)
	for i := range refs {
		refs[i] = fmt.Sprintf("user%02d@example.com", i)
	}

	resolver.Resolve(context.Background(), refs)

	// 25 emails split into batches of at most 10.
	require.Equal(t, []int{10, 10, 5}, tokens.emailBatch)
	for _, size := range tokens.emailBatch {
		assert.LessOrEqual(t, size, tokenQueryLimit)
	}
}

func TestResolverPreservesAccountKeyCasing(t *testing.T) {
	// Opaque account keys are case-sensitive in the backing stores; a
	// mixed-case key must be looked up exactly as written.
	access := &mockAccountStore{accounts: map[string]*Account{
		"Xk9Qw2LmN": {Email: "driver@example.com"},
	}}
	resolver := NewResolver(access, &mockAccountStore{}, &mockTokenStore{})

	targets := resolver.Resolve(context.Background(), []string{"Xk9Qw2LmN"})

	require.Len(t, targets, 1)
	assert.Equal(t, domain.NotificationTarget{Type: domain.TargetTypeEmail, To: "driver@example.com"}, targets[0])
}

func TestResolverDedupesAccountKeysCaseInsensitively(t *testing.T) {
	access := &mockAccountStore{accounts: map[string]*Account{
		"Acct-1": {Email: "driver@example.com"},
	}}
	resolver := NewResolver(access, &mockAccountStore{}, &mockTokenStore{})

	targets := resolver.Resolve(context.Background(), []string{"Acct-1", "ACCT-1", "acct-1"})

	// One lookup, with the first-seen casing.
	assert.Equal(t, 1, access.calls)
	require.Len(t, targets, 1)
	assert.Equal(t, "driver@example.com", targets[0].To)
}

func TestResolverNilTokenStore(t *testing.T) {
	resolver := NewResolver(&mockAccountStore{}, &mockAccountStore{}, nil)

	targets := resolver.Resolve(context.Background(), []string{"nate"})
	require.Len(t, targets, 1)
	assert.Equal(t, domain.TargetTypeEmail, targets[0].Type)
}

func TestClassify(t *testing.T) {
	ref, ok := classify("Driver@Example.com")
	require.True(t, ok)
	assert.Equal(t, reference{kind: refLiteral, value: "driver@example.com"}, ref)

	ref, ok = classify("michael")
	require.True(t, ok)
	assert.Equal(t, reference{kind: refAlias, value: "michael@lakeridepros.com"}, ref)

	ref, ok = classify("acct-42")
	require.True(t, ok)
	assert.Equal(t, refAccountKey, ref.kind)

	_, ok = classify("   ")
	assert.False(t, ok)
}
