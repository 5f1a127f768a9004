package bridge

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"mediafetch/internal/errs"
)

// Modifier order used by Hotkey.String.
var modifierOrder = []string{"ctrl", "alt", "shift", "super"}

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
	"super":   "super",
	"cmd":     "super",
	"win":     "super",
	"meta":    "super",
}

var (
	reFunctionKey = regexp.MustCompile(`^f([1-9]|1[0-9]|2[0-4])$`)
	namedKeys     = []string{"space", "enter", "tab", "esc", "insert", "delete", "home", "end", "page_up", "page_down"}
)

// Hotkey is a normalized key combination.
type Hotkey struct {
	Modifiers []string
	Key       string
}

// String formats h as "<ctrl>+<shift>+d".
func (h Hotkey) String() string {
	parts := make([]string, 0, len(h.Modifiers)+1)
	for _, m := range h.Modifiers {
		parts = append(parts, "<"+m+">")
	}

	key := h.Key
	if len(key) > 1 {
		key = "<" + key + ">"
	}

	return strings.Join(append(parts, key), "+")
}

// ParseHotkey parses combinations like "<ctrl>+<shift>+d" or "Ctrl+Alt+F5".
// At least one modifier and exactly one key are required.
func ParseHotkey(combo string) (Hotkey, error) {
	var (
		h    Hotkey
		mods = map[string]bool{}
	)

	for part := range strings.SplitSeq(combo, "+") {
		token := strings.ToLower(strings.TrimSpace(part))
		token = strings.TrimSuffix(strings.TrimPrefix(token, "<"), ">")

		if token == "" {
			return Hotkey{}, fmt.Errorf("%w: empty key in %q", errs.ErrInvalidHotkey, combo)
		}

		if mod, ok := modifierAliases[token]; ok {
			mods[mod] = true

			continue
		}

		if h.Key != "" {
			return Hotkey{}, fmt.Errorf("%w: more than one key in %q", errs.ErrInvalidHotkey, combo)
		}

		if !validKey(token) {
			return Hotkey{}, fmt.Errorf("%w: unknown key %q", errs.ErrInvalidHotkey, token)
		}

		h.Key = token
	}

	if h.Key == "" || len(mods) == 0 {
		return Hotkey{}, fmt.Errorf("%w: %q needs a modifier and a key", errs.ErrInvalidHotkey, combo)
	}

	for _, m := range modifierOrder {
		if mods[m] {
			h.Modifiers = append(h.Modifiers, m)
		}
	}

	return h, nil
}

func validKey(token string) bool {
	if len(token) == 1 {
		c := token[0]

		return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
	}

	return reFunctionKey.MatchString(token) || slices.Contains(namedKeys, token)
}
