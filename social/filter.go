// Package social answers block and mute questions at read time.
//
// Relationship facts are owned by the write path; this package only consults
// them, either as a pure in-memory [Filter] over facts fetched through a
// [Directory], or as SQL predicates that candidate queries use to drop rows
// at the source.
package social

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pair is a directional relationship: A blocks (or mutes) B.
type Pair struct {
	A string
	B string
}

// PairSet maps a directional pair to the URI of the record behind it.
type PairSet map[Pair]string

func (ps PairSet) Add(a, b, uri string) {
	ps[Pair{A: a, B: b}] = uri
}

func (ps PairSet) Has(a, b string) bool {
	_, ok := ps[Pair{A: a, B: b}]
	return ok
}

type DIDSet map[string]struct{}

func NewDIDSet(dids ...string) DIDSet {
	s := make(DIDSet, len(dids))
	for _, d := range dids {
		s[d] = struct{}{}
	}
	return s
}

func (s DIDSet) Has(did string) bool {
	_, ok := s[did]
	return ok
}

// Directory is the graph/account directory the read path consults.
type Directory interface {
	// BlockedPairs returns every block between any two of dids, in either
	// direction.
	BlockedPairs(ctx context.Context, dids []string) (PairSet, error)
	// MutedBy returns the subset of dids that requester mutes.
	MutedBy(ctx context.Context, requester string, dids []string) (DIDSet, error)
	// Follows returns the follow record URIs between requester and dids,
	// keyed by the followed account.
	Follows(ctx context.Context, requester string, dids []string) (*FollowState, error)
}

// FollowState holds follow record URIs: Following[did] is requester's follow
// of did, FollowedBy[did] is did's follow of requester.
type FollowState struct {
	Following  map[string]string
	FollowedBy map[string]string
}

// Filter is the pure visibility predicate over prefetched relationship facts.
type Filter struct {
	blocks PairSet
	muted  DIDSet
}

func NewFilter(blocks PairSet, muted DIDSet) *Filter {
	if blocks == nil {
		blocks = PairSet{}
	}
	if muted == nil {
		muted = DIDSet{}
	}
	return &Filter{blocks: blocks, muted: muted}
}

// Blocking reports whether requester blocks did.
func (f *Filter) Blocking(requester, did string) bool {
	if requester == "" || did == "" {
		return false
	}
	return f.blocks.Has(requester, did)
}

// BlockingRecord returns the URI of requester's block of did, if any.
func (f *Filter) BlockingRecord(requester, did string) string {
	if !f.Blocking(requester, did) {
		return ""
	}
	return f.blocks[Pair{A: requester, B: did}]
}

// BlockedBy reports whether did blocks requester.
func (f *Filter) BlockedBy(requester, did string) bool {
	if requester == "" || did == "" {
		return false
	}
	return f.blocks.Has(did, requester)
}

// Blocked is true if a block exists in either direction between requester
// and any of dids.
func (f *Filter) Blocked(requester string, dids ...string) bool {
	for _, d := range dids {
		if f.Blocking(requester, d) || f.BlockedBy(requester, d) {
			return true
		}
	}
	return false
}

// Muted is true if requester mutes any of dids. Mutes drop items from
// aggregate feeds but never turn content into a placeholder.
func (f *Filter) Muted(requester string, dids ...string) bool {
	if requester == "" {
		return false
	}
	for _, d := range dids {
		if d != requester && f.muted.Has(d) {
			return true
		}
	}
	return false
}

// LoadFilter fetches block and mute facts for requester against dids
// concurrently.
func LoadFilter(ctx context.Context, dir Directory, requester string, dids []string) (*Filter, error) {
	if requester == "" || len(dids) == 0 {
		return NewFilter(nil, nil), nil
	}

	var blocks PairSet
	var muted DIDSet

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		blocks, err = dir.BlockedPairs(ctx, append([]string{requester}, dids...))
		return err
	})
	eg.Go(func() error {
		var err error
		muted, err = dir.MutedBy(ctx, requester, dids)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return NewFilter(blocks, muted), nil
}
