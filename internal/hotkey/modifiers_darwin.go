//go:build darwin

package hotkey

import "golang.design/x/hotkey"

func platformModifier(name string) hotkey.Modifier {
	switch name {
	case ModCtrl:
		return hotkey.ModCtrl
	case ModShift:
		return hotkey.ModShift
	case ModAlt:
		return hotkey.ModOption
	default: // Super, CmdOrCtrl
		return hotkey.ModCmd
	}
}
