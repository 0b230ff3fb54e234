package engine

import (
	"encoding/json"
	"reflect"
)

// normalizeValue round-trips v through JSON so values compare by their
// wire shape: numbers become float64, typed maps and slices become
// map[string]any and []any. Planned snapshots and handler-returned
// attributes reach comparison from different origins; normalizing both
// sides keeps in-memory type differences from reading as drift.
func normalizeValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// fieldEqual compares one planned field value against its prior value.
// Map values compare partially: only keys the planned map declares must
// match, prior-only keys (remote-side defaults echoed back on read) are
// ignored, and an empty planned map expresses no opinion and compares
// equal to anything. Values inside a partially-compared map, nested
// maps included, compare strictly. Scalars and lists compare strictly.
func fieldEqual(planned, prior any) bool {
	p := normalizeValue(planned)
	q := normalizeValue(prior)
	if pm, ok := p.(map[string]any); ok {
		if len(pm) == 0 {
			return true
		}
		qm, ok := q.(map[string]any)
		if !ok {
			return false
		}
		for k, pv := range pm {
			qv, present := qm[k]
			if !present || !reflect.DeepEqual(pv, qv) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(p, q)
}

// diffAttributes compares a planned snapshot against the tracked prior
// attributes and returns the per-field transitions. Only fields the
// planned snapshot declares participate. An empty result means NOOP.
func diffAttributes(planned, prior map[string]any) map[string]FieldDiff {
	diff := make(map[string]FieldDiff)
	for k, v := range planned {
		priorV := prior[k]
		if !fieldEqual(v, priorV) {
			diff[k] = FieldDiff{From: priorV, To: v}
		}
	}
	return diff
}

// attributesEqual reports whether two attribute maps are identical in
// their normalized form. Used by refresh, where any difference counts,
// unlike the planned-key diffing above.
func attributesEqual(a, b map[string]any) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}
