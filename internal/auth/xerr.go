package auth

import "github.com/protonlauncher/launcher/internal/lerr"

// xErrKind maps the well-known Xbox Live XSTS XErr codes to a ProtocolKind.
// Codes not in this table surface as lerr.Unknown.
func xErrKind(code int64) lerr.ProtocolKind {
	switch code {
	case 2148916233:
		return lerr.NoXboxAccount
	case 2148916238:
		return lerr.ChildAccount
	case 2148916227:
		return lerr.Banned
	default:
		return lerr.Unknown
	}
}
