// Package filter is the declarative query over event fields used both for
// network subscriptions and local store lookups. Each present field narrows
// the matches, absent fields are wildcards.
package filter

import (
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/event"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/kinds"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/tag"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/timestamp"
)

// TagMap is the set of tag queries of a filter, keyed by tag name without
// the wire format's # prefix.
type TagMap map[string]tag.T

func (t TagMap) Clone() (t1 TagMap) {
	if t == nil {
		return
	}
	t1 = make(TagMap)
	for i := range t {
		t1[i] = t[i].Clone()
	}
	return
}

// T is a query where one or all elements can be filled in.
//
// The Tags are a special case on the wire: each key appears at the top level
// of the filter object prefixed with #, so they get hand written codec
// treatment here like everything else in the envelope layer.
type T struct {
	IDs     tag.T        `json:"ids,omitempty"`
	Kinds   kinds.T      `json:"kinds,omitempty"`
	Authors tag.T        `json:"authors,omitempty"`
	Tags    TagMap       `json:"-"`
	Since   *timestamp.T `json:"since,omitempty"`
	Until   *timestamp.T `json:"until,omitempty"`
	Limit   int          `json:"limit,omitempty"`
}

// Matches reports whether the event passes every present constraint of the
// filter.
func (f *T) Matches(ev *event.T) bool {
	if ev == nil {
		return false
	}
	if f.IDs != nil && !f.IDs.Contains(ev.ID.String()) {
		return false
	}
	if f.Kinds != nil && !f.Kinds.Contains(ev.Kind) {
		return false
	}
	if f.Authors != nil && !f.Authors.Contains(ev.PubKey) {
		return false
	}
	for name, v := range f.Tags {
		if v != nil && !ev.Tags.ContainsAny(name, v...) {
			return false
		}
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	return true
}

func arePointerValuesEqual[V comparable](a *V, b *V) bool {
	if a == nil && b == nil {
		return true
	}
	if a != nil && b != nil {
		return *a == *b
	}
	return false
}

// Equal reports whether two filters describe the same query.
func Equal(a, b *T) bool {
	switch {
	case !a.Kinds.Equals(b.Kinds),
		!a.IDs.Equals(b.IDs),
		!a.Authors.Equals(b.Authors),
		len(a.Tags) != len(b.Tags),
		!arePointerValuesEqual(a.Since, b.Since),
		!arePointerValuesEqual(a.Until, b.Until),
		a.Limit != b.Limit:
		return false
	}
	for name, av := range a.Tags {
		if bv, ok := b.Tags[name]; !ok {
			return false
		} else if !av.Equals(bv) {
			return false
		}
	}
	return true
}

func (f *T) Clone() (clone *T) {
	clone = &T{
		IDs:     f.IDs.Clone(),
		Kinds:   f.Kinds.Clone(),
		Authors: f.Authors.Clone(),
		Tags:    f.Tags.Clone(),
		Since:   f.Since.Clone(),
		Until:   f.Until.Clone(),
		Limit:   f.Limit,
	}
	return
}
