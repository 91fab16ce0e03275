package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/lakeridepros/ticketwatch/internal/domain"
)

// tokenQueryLimit caps the number of values per token-store query, matching
// the "IN" filter limit of the backing store.
const tokenQueryLimit = 10

// refKind tags a classified raw reference.
type refKind int

const (
	refLiteral    refKind = iota // a raw email address
	refAlias                     // a short alias with a known canonical email
	refAccountKey                // an opaque account key needing store lookup
)

// reference is a classified user reference. For refLiteral and refAlias the
// value is the canonical lower-cased email; for refAccountKey it is the raw
// key.
type reference struct {
	kind  refKind
	value string
}

// classify turns a raw reference string into a tagged reference. Blank
// strings are rejected.
func classify(raw string) (reference, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return reference{}, false
	}
	if strings.Contains(trimmed, "@") {
		return reference{kind: refLiteral, value: strings.ToLower(trimmed)}, true
	}
	if email := ResolveAliasEmail(trimmed); email != "" {
		return reference{kind: refAlias, value: email}, true
	}
	return reference{kind: refAccountKey, value: trimmed}, true
}

// Resolver maps raw user references to deduplicated deliverable endpoints.
// It performs read-only lookups and caches nothing; every resolution is
// computed fresh from store state.
type Resolver struct {
	access  AccountStore
	profile AccountStore
	tokens  TokenStore
}

// NewResolver creates a resolver over the given stores. The access store is
// consulted before the profile store. The token store may be nil, in which
// case no push targets are produced.
func NewResolver(access, profile AccountStore, tokens TokenStore) *Resolver {
	return &Resolver{
		access:  access,
		profile: profile,
		tokens:  tokens,
	}
}

// accountResult is the outcome of one account-key lookup.
type accountResult struct {
	key   string
	email string
	phone string
}

// Resolve turns an ordered list of raw references into a deduplicated set
// of notification targets. Individual lookup failures are logged and treated
// as misses; they never abort resolution of sibling references. An empty
// result is a legitimate outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, rawRefs []string) []domain.NotificationTarget {
	emails := newOrderedSet()
	phones := newOrderedSet()

	// Account keys dedup case-insensitively but keep their original
	// casing: the backing stores key them case-sensitively.
	seenKeys := make(map[string]struct{})
	var keys []string

	for _, raw := range rawRefs {
		ref, ok := classify(raw)
		if !ok {
			continue
		}
		switch ref.kind {
		case refLiteral, refAlias:
			emails.add(ref.value)
		case refAccountKey:
			lower := strings.ToLower(ref.value)
			if _, dup := seenKeys[lower]; dup {
				continue
			}
			seenKeys[lower] = struct{}{}
			keys = append(keys, ref.value)
		}
	}

	// Batched phase: one concurrent lookup per unresolved key, collecting
	// every outcome before proceeding.
	for _, res := range r.lookupAccounts(ctx, keys) {
		if res.email != "" {
			emails.add(res.email)
		}
		if res.phone != "" {
			phones.add(res.phone)
		}
	}

	tokens := r.lookupTokens(ctx, emails.values(), keys)

	targets := make([]domain.NotificationTarget, 0, emails.len()+phones.len()+len(tokens))
	for _, email := range emails.values() {
		targets = append(targets, domain.NotificationTarget{Type: domain.TargetTypeEmail, To: email})
	}
	for _, phone := range phones.values() {
		targets = append(targets, domain.NotificationTarget{Type: domain.TargetTypeSMS, To: phone})
	}
	for _, token := range tokens {
		targets = append(targets, domain.NotificationTarget{Type: domain.TargetTypeFCM, To: token})
	}
	return targets
}

// lookupAccounts fans out one lookup per key and fans the outcomes back in.
// Each key tries the access store first, then the profile store, taking the
// first record with an "@"-containing email. Failures count as misses.
func (r *Resolver) lookupAccounts(ctx context.Context, keys []string) []accountResult {
	if len(keys) == 0 {
		return nil
	}

	results := make([]accountResult, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			results[i] = r.lookupAccount(ctx, key)
		}(i, key)
	}
	wg.Wait()

	return results
}

func (r *Resolver) lookupAccount(ctx context.Context, key string) accountResult {
	res := accountResult{key: key}

	for _, store := range []AccountStore{r.access, r.profile} {
		if store == nil {
			continue
		}
		account, err := store.GetAccount(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrAccountNotFound) {
				slog.Warn("account lookup failed", "key", key, "error", err)
				recordLookupFailure()
			}
			continue
		}
		if account == nil {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(account.Email))
		if res.email == "" && strings.Contains(email, "@") {
			res.email = email
		}
		if res.phone == "" {
			res.phone = strings.TrimSpace(account.Phone)
		}
		if res.email != "" {
			break
		}
	}
	return res
}

// lookupTokens resolves push tokens for the known emails and account keys,
// chunked to the store's query cardinality cap. Query failures are logged
// and skipped.
func (r *Resolver) lookupTokens(ctx context.Context, emails, userIDs []string) []string {
	if r.tokens == nil {
		return nil
	}

	out := newOrderedSet()

	for _, group := range chunk(emails, tokenQueryLimit) {
		tokens, err := r.tokens.TokensByEmails(ctx, group)
		if err != nil {
			slog.Warn("token lookup by email failed", "count", len(group), "error", err)
			recordLookupFailure()
			continue
		}
		for _, t := range tokens {
			out.add(t)
		}
	}

	for _, group := range chunk(userIDs, tokenQueryLimit) {
		tokens, err := r.tokens.TokensByUserIDs(ctx, group)
		if err != nil {
			slog.Warn("token lookup by user id failed", "count", len(group), "error", err)
			recordLookupFailure()
			continue
		}
		for _, t := range tokens {
			out.add(t)
		}
	}

	return out.values()
}

// chunk splits values into groups of at most size elements.
func chunk(values []string, size int) [][]string {
	var groups [][]string
	for i := 0; i < len(values); i += size {
		end := min(i+size, len(values))
		groups = append(groups, values[i:end])
	}
	return groups
}

// orderedSet preserves first-insertion order while deduplicating.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(value string) {
	if value == "" {
		return
	}
	if _, ok := s.seen[value]; ok {
		return
	}
	s.seen[value] = struct{}{}
	s.items = append(s.items, value)
}

func (s *orderedSet) values() []string { return s.items }

func (s *orderedSet) len() int { return len(s.items) }
