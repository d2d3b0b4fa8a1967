package app

import (
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/filter"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/kind"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/timestamp"
)

// Filter assembles the subscription filter from the CLI flags. Flags left
// unset stay wildcards.
func (c *Config) Filter() (f *filter.T) {
	f = &filter.T{}
	for _, k := range c.Kinds {
		f.Kinds = append(f.Kinds, kind.T(k))
	}
	f.Authors = append(f.Authors, c.Authors...)
	f.IDs = append(f.IDs, c.IDs...)
	if c.Since > 0 {
		ts := timestamp.T(c.Since)
		f.Since = &ts
	}
	if c.Until > 0 {
		ts := timestamp.T(c.Until)
		f.Until = &ts
	}
	f.Limit = c.Limit
	return
}
