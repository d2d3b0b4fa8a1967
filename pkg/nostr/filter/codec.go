package filter

import (
	"fmt"
	"sort"

	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/kind"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/tag"
	"github.com/Hubmakerlabs/aggregatr/pkg/nostr/timestamp"
	"github.com/mailru/easyjson/jwriter"
	"github.com/tidwall/gjson"
)

// MarshalWrite writes the wire JSON object form of the filter into a
// jwriter. Tag queries are promoted to the top level of the object with a #
// prefix, per the wire format. Keys are written in a fixed order so output
// is deterministic.
func (f *T) MarshalWrite(w *jwriter.Writer) {
	w.RawString(`{`)
	first := true
	field := func(name string) {
		if !first {
			w.RawString(`,`)
		}
		first = false
		w.RawString(`"` + name + `":`)
	}
	if f.IDs != nil {
		field("ids")
		w.Raw(f.IDs.MarshalTo(nil), nil)
	}
	if f.Kinds != nil {
		field("kinds")
		w.RawString(`[`)
		for i, k := range f.Kinds {
			if i > 0 {
				w.RawString(`,`)
			}
			w.RawString(fmt.Sprintf("%d", k))
		}
		w.RawString(`]`)
	}
	if f.Authors != nil {
		field("authors")
		w.Raw(f.Authors.MarshalTo(nil), nil)
	}
	// nondeterministic map iteration, so sort the keys
	tagKeys := make([]string, 0, len(f.Tags))
	for name := range f.Tags {
		tagKeys = append(tagKeys, name)
	}
	sort.Strings(tagKeys)
	for _, name := range tagKeys {
		field("#" + name)
		w.Raw(f.Tags[name].MarshalTo(nil), nil)
	}
	if f.Since != nil {
		field("since")
		w.RawString(fmt.Sprintf("%d", *f.Since))
	}
	if f.Until != nil {
		field("until")
		w.RawString(fmt.Sprintf("%d", *f.Until))
	}
	if f.Limit != 0 {
		field("limit")
		w.RawString(fmt.Sprintf("%d", f.Limit))
	}
	w.RawString(`}`)
}

func (f *T) MarshalJSON() (b []byte, err error) {
	w := jwriter.Writer{}
	f.MarshalWrite(&w)
	return w.BuildBytes()
}

func (f *T) UnmarshalJSON(b []byte) (err error) {
	return f.FromResult(gjson.ParseBytes(b))
}

// FromResult populates a filter from an already parsed gjson result,
// rolling up the #-prefixed tag queries into the Tags map.
func (f *T) FromResult(r gjson.Result) (err error) {
	if !r.IsObject() {
		return fmt.Errorf("filter is not a JSON object: %s", r.Raw)
	}
	var iterErr error
	r.ForEach(func(key, value gjson.Result) bool {
		switch {
		case key.Str == "ids":
			f.IDs = resultToTag(value)
		case key.Str == "authors":
			f.Authors = resultToTag(value)
		case key.Str == "kinds":
			for _, k := range value.Array() {
				f.Kinds = append(f.Kinds, kind.T(k.Int()))
			}
		case key.Str == "since":
			ts := timestamp.T(value.Int())
			f.Since = &ts
		case key.Str == "until":
			ts := timestamp.T(value.Int())
			f.Until = &ts
		case key.Str == "limit":
			f.Limit = int(value.Int())
		case len(key.Str) > 1 && key.Str[0] == '#':
			if f.Tags == nil {
				f.Tags = make(TagMap)
			}
			f.Tags[key.Str[1:]] = resultToTag(value)
		default:
			// unknown keys are ignored, not fatal
		}
		return true
	})
	return iterErr
}

func resultToTag(r gjson.Result) (t tag.T) {
	t = tag.T{}
	for _, el := range r.Array() {
		t = append(t, el.Str)
	}
	return
}

func (f *T) String() string {
	b, _ := f.MarshalJSON()
	return string(b)
}
