//go:build linux

package hotkey

import "golang.design/x/hotkey"

// X11 maps Alt to Mod1 and Super to Mod4 on practically every keyboard layout.
func platformModifier(name string) hotkey.Modifier {
	switch name {
	case ModShift:
		return hotkey.ModShift
	case ModAlt:
		return hotkey.Mod1
	case ModSuper:
		return hotkey.Mod4
	default: // Ctrl, CmdOrCtrl
		return hotkey.ModCtrl
	}
}
