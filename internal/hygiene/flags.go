package hygiene

import "encoding/json"

// Quality flags are persisted as a JSON-encoded string array on the record.
// Membership is the only observable property; order is not significant.

// AddFlag returns the serialized flag set with flag present. Idempotent.
func AddFlag(current, flag string) string {
	flags := parseFlags(current)
	for _, f := range flags {
		if f == flag {
			return marshalFlags(flags)
		}
	}
	return marshalFlags(append(flags, flag))
}

// RemoveFlag returns the serialized flag set with flag absent. A nil or
// empty input yields an empty set.
func RemoveFlag(current, flag string) string {
	flags := parseFlags(current)
	kept := flags[:0]
	for _, f := range flags {
		if f != flag {
			kept = append(kept, f)
		}
	}
	return marshalFlags(kept)
}

// HasFlag reports whether flag is present in the serialized set.
func HasFlag(current, flag string) bool {
	for _, f := range parseFlags(current) {
		if f == flag {
			return true
		}
	}
	return false
}

// parseFlags tolerates empty and malformed input, treating both as the
// empty set rather than failing the pass over one bad row.
func parseFlags(current string) []string {
	if current == "" {
		return nil
	}
	var flags []string
	if err := json.Unmarshal([]byte(current), &flags); err != nil {
		return nil
	}
	return flags
}

func marshalFlags(flags []string) string {
	if len(flags) == 0 {
		return "[]"
	}
	b, err := json.Marshal(flags)
	if err != nil {
		return "[]"
	}
	return string(b)
}
