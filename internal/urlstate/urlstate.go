// Package urlstate converts pipeline state to and from URL query strings so
// a collection view can be deep-linked. It is the only place that knows the
// query parameter names.
package urlstate

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abelbrown/consonant/internal/pipeline"
	"github.com/abelbrown/consonant/internal/sorting"
)

// Query parameter names.
const (
	ParamFilter     = "filter"
	ParamQuery      = "q"
	ParamSort       = "sort"
	ParamPage       = "page"
	ParamBookmarks  = "bookmarks"
	ParamServerTime = "servertime"
)

// Decode reads the view state from v on top of defaults. Absent parameters
// keep the default value. An unknown sort key is an error.
func Decode(v url.Values, defaults pipeline.State) (pipeline.State, error) {
	st := defaults

	if ids, ok := v[ParamFilter]; ok {
		st.ActiveFilterIDs = splitIDs(ids)
	}
	if v.Has(ParamQuery) {
		st.Query = v.Get(ParamQuery)
	}
	if s := v.Get(ParamSort); s != "" {
		t, err := sorting.ParseType(s)
		if err != nil {
			return defaults, fmt.Errorf("decode %s: %w", ParamSort, err)
		}
		st.Sort = sorting.Option{Sort: t}
	}
	if p := v.Get(ParamPage); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return defaults, fmt.Errorf("decode %s: invalid page %q", ParamPage, p)
		}
		st.Page = n
	}
	if b := v.Get(ParamBookmarks); b != "" {
		on, err := strconv.ParseBool(b)
		if err != nil {
			return defaults, fmt.Errorf("decode %s: %w", ParamBookmarks, err)
		}
		st.ShowBookmarks = on
	}
	return st, nil
}

// splitIDs accepts both repeated parameters and comma separated lists.
func splitIDs(values []string) []string {
	ids := []string{}
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Encode writes the deep-linkable part of st into a fresh url.Values.
func Encode(st pipeline.State) url.Values {
	return Apply(url.Values{}, st)
}

// Apply overwrites the view parameters of v with st and leaves every other
// parameter alone. Zero values are removed rather than written.
func Apply(v url.Values, st pipeline.State) url.Values {
	out := url.Values{}
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}

	out.Del(ParamFilter)
	for _, id := range st.ActiveFilterIDs {
		out.Add(ParamFilter, id)
	}
	setOrDel(out, ParamQuery, st.Query)
	setOrDel(out, ParamSort, string(st.Sort.Sort))
	if st.Page > 1 {
		out.Set(ParamPage, strconv.Itoa(st.Page))
	} else {
		out.Del(ParamPage)
	}
	if st.ShowBookmarks {
		out.Set(ParamBookmarks, "true")
	} else {
		out.Del(ParamBookmarks)
	}
	return out
}

func setOrDel(v url.Values, key, value string) {
	if value == "" {
		v.Del(key)
		return
	}
	v.Set(key, value)
}

// ServerTime returns the clock override carried by v, in Unix milliseconds.
func ServerTime(v url.Values) (time.Time, bool) {
	s := v.Get(ParamServerTime)
	if s == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// UpdateTimeOverride rewrites the servertime parameter of rawURL to
// base+incrementMs. Other parameters keep their order and encoding; the
// parameter is appended when absent.
func UpdateTimeOverride(rawURL string, base, incrementMs int64) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	value := ParamServerTime + "=" + strconv.FormatInt(base+incrementMs, 10)
	var parts []string
	if u.RawQuery != "" {
		parts = strings.Split(u.RawQuery, "&")
	}

	replaced := false
	for i, p := range parts {
		key, _, _ := strings.Cut(p, "=")
		if key == ParamServerTime {
			parts[i] = value
			replaced = true
		}
	}
	if !replaced {
		parts = append(parts, value)
	}

	u.RawQuery = strings.Join(parts, "&")
	u.ForceQuery = false
	return u.String(), nil
}
