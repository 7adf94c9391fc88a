package wire

import (
	"maps"
)

// Extensions holds payload fields a record does not declare. Embed it with a
// `json:"-"` tag to keep server-added fields through a decode.
type Extensions struct {
	extra map[string]any
}

// Extra returns a copy of the retained fields.
func (e Extensions) Extra() map[string]any {
	return maps.Clone(e.extra)
}

// Lookup returns a single retained field.
func (e Extensions) Lookup(key string) (any, bool) {
	v, ok := e.extra[key]
	return v, ok
}

func (e *Extensions) SetExtra(extra map[string]any) {
	if len(extra) == 0 {
		e.extra = nil
		return
	}
	e.extra = maps.Clone(extra)
}
