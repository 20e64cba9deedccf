package validation

import (
	"sort"
	"strings"
)

var (
	RegisterKeys = []string{"name", "email", "password", "phones"}
	LoginKeys    = []string{"email", "password"}
	PhoneKeys    = []string{"ddd", "number"}
)

// KeyError lists every key that is missing from or not allowed in a payload.
type KeyError struct {
	Missing []string
	Extra   []string
}

func (e *KeyError) Error() string {
	parts := make([]string, 0, len(e.Missing)+len(e.Extra))
	for _, key := range e.Missing {
		parts = append(parts, "Required key: "+key)
	}
	for _, key := range e.Extra {
		parts = append(parts, "Invalid key: "+key)
	}
	return strings.Join(parts, "; ")
}

// CheckKeys compares the key set of payload with required. It returns a
// *KeyError naming all missing and extra keys, both sorted, or nil when the
// sets are equal.
func CheckKeys[V any](required []string, payload map[string]V) error {
	expected := make(map[string]struct{}, len(required))
	for _, key := range required {
		expected[key] = struct{}{}
	}

	var missing, extra []string
	for key := range expected {
		if _, ok := payload[key]; !ok {
			missing = append(missing, key)
		}
	}
	for key := range payload {
		if _, ok := expected[key]; !ok {
			extra = append(extra, key)
		}
	}

	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}

	sort.Strings(missing)
	sort.Strings(extra)

	return &KeyError{Missing: missing, Extra: extra}
}
