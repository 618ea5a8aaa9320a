package mcp

import "github.com/saorsa-labs/fae/pkg/types"

// Transport selects the connection mechanism for an MCP server.
type Transport string

const (
	// TransportStdio spawns a subprocess and communicates over stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// PermissionGate answers whether a permission kind has been granted by the
// user. [github.com/saorsa-labs/fae/internal/config.PermissionsConfig]
// satisfies it; tests substitute fixed maps.
type PermissionGate interface {
	StateOf(kind types.PermissionKind) types.PermissionState
}

// GrantAll is a PermissionGate that reports every permission as granted.
// Useful for tests and for trusted headless deployments.
type GrantAll struct{}

// StateOf implements [PermissionGate].
func (GrantAll) StateOf(types.PermissionKind) types.PermissionState {
	return types.PermissionGranted
}

// Visible reports whether def may be offered to the model under mode and
// gate: read-only mode withholds mutating tools, and a tool that declares a
// required permission is withheld unless that permission is granted.
func Visible(def types.ToolDefinition, mode types.ToolMode, gate PermissionGate) bool {
	if mode == types.ToolModeReadOnly && !def.ReadOnly {
		return false
	}
	if def.Permission == "" {
		return true
	}
	return gate != nil && gate.StateOf(def.Permission) == types.PermissionGranted
}

// GatedTool is the capability interface for tools whose availability depends
// on a permission grant (the Apple-ecosystem tools in the macOS shell).
// Implementers declare the permission they need; [BasePermissionedTool]
// supplies the availability predicate, so concrete tools only implement
// [GatedTool.RequiredPermission] and their execution logic elsewhere.
type GatedTool interface {
	// RequiredPermission names the grant this tool needs.
	RequiredPermission() types.PermissionKind

	// Available reports whether the tool may run under gate.
	Available(gate PermissionGate) bool
}

// BasePermissionedTool provides the default Available implementation.
// Embed it and set Permission:
//
//	type contactsTool struct {
//	    mcp.BasePermissionedTool
//	}
//
//	func newContactsTool() *contactsTool {
//	    return &contactsTool{BasePermissionedTool: mcp.BasePermissionedTool{Permission: types.PermissionContacts}}
//	}
type BasePermissionedTool struct {
	Permission types.PermissionKind
}

// RequiredPermission implements [GatedTool].
func (b BasePermissionedTool) RequiredPermission() types.PermissionKind { return b.Permission }

// Available implements [GatedTool]: granted permissions only.
func (b BasePermissionedTool) Available(gate PermissionGate) bool {
	return gate != nil && gate.StateOf(b.Permission) == types.PermissionGranted
}
