package hotkey

import (
	"fmt"
	"sort"
	"strings"
)

// Canonical modifier names. CmdOrCtrl is Cmd on macOS and Ctrl elsewhere.
const (
	ModCtrl      = "Ctrl"
	ModShift     = "Shift"
	ModAlt       = "Alt"
	ModSuper     = "Super"
	ModCmdOrCtrl = "CmdOrCtrl"
)

var modifierAliases = map[string]string{
	"ctrl":             ModCtrl,
	"control":          ModCtrl,
	"shift":            ModShift,
	"alt":              ModAlt,
	"option":           ModAlt,
	"super":            ModSuper,
	"meta":             ModSuper,
	"win":              ModSuper,
	"cmd":              ModSuper,
	"command":          ModSuper,
	"cmdorctrl":        ModCmdOrCtrl,
	"commandorcontrol": ModCmdOrCtrl,
}

var namedKeys = map[string]string{
	"space":  "Space",
	"enter":  "Return",
	"return": "Return",
	"escape": "Escape",
	"esc":    "Escape",
	"tab":    "Tab",
}

// Accelerator is a parsed shortcut such as "Alt+Space": a set of modifiers in
// canonical order plus exactly one non-modifier key.
type Accelerator struct {
	Modifiers []string
	Key       string
}

// String formats the accelerator in canonical form.
func (a Accelerator) String() string {
	return strings.Join(append(append([]string{}, a.Modifiers...), a.Key), "+")
}

// ParseAccelerator parses "Mod+Mod+Key". Names are case-insensitive. Supported
// keys are A-Z, 0-9, F1-F12, Space, Return, Escape and Tab.
func ParseAccelerator(s string) (Accelerator, error) {
	var acc Accelerator
	seen := make(map[string]bool)

	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if mod, ok := modifierAliases[strings.ToLower(part)]; ok {
			if seen[mod] {
				return Accelerator{}, fmt.Errorf("hotkey %q repeats modifier %s", s, mod)
			}
			seen[mod] = true
			acc.Modifiers = append(acc.Modifiers, mod)
			continue
		}
		key, ok := normalizeKey(part)
		if !ok {
			return Accelerator{}, fmt.Errorf("hotkey %q: unknown key %q", s, part)
		}
		if acc.Key != "" {
			return Accelerator{}, fmt.Errorf("hotkey %q has more than one key", s)
		}
		acc.Key = key
	}

	if acc.Key == "" {
		return Accelerator{}, fmt.Errorf("hotkey %q needs a non-modifier key", s)
	}
	sort.Slice(acc.Modifiers, func(i, j int) bool {
		return modifierRank(acc.Modifiers[i]) < modifierRank(acc.Modifiers[j])
	})
	return acc, nil
}

func modifierRank(mod string) int {
	switch mod {
	case ModCmdOrCtrl:
		return 0
	case ModCtrl:
		return 1
	case ModAlt:
		return 2
	case ModShift:
		return 3
	default:
		return 4
	}
}

func normalizeKey(part string) (string, bool) {
	lower := strings.ToLower(part)
	if key, ok := namedKeys[lower]; ok {
		return key, true
	}
	if len(part) == 1 {
		c := strings.ToUpper(part)[0]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return string(c), true
		}
		return "", false
	}
	if n, ok := strings.CutPrefix(lower, "f"); ok {
		switch n {
		case "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12":
			return "F" + n, true
		}
	}
	return "", false
}
