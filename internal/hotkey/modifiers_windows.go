//go:build windows

package hotkey

import "golang.design/x/hotkey"

func platformModifier(name string) hotkey.Modifier {
	switch name {
	case ModShift:
		return hotkey.ModShift
	case ModAlt:
		return hotkey.ModAlt
	case ModSuper:
		return hotkey.ModWin
	default: // Ctrl, CmdOrCtrl
		return hotkey.ModCtrl
	}
}
