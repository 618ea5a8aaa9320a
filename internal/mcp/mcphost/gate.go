package mcphost

import (
	"cmp"
	"slices"

	"github.com/saorsa-labs/fae/internal/mcp"
	"github.com/saorsa-labs/fae/pkg/types"
)

// filterTools returns only the definitions visible under mode and gate (see
// [mcp.Visible]), excluding degraded tools. The returned slice is sorted by
// estimated latency ascending (fastest first), so the model sees cheap tools
// before expensive ones.
func filterTools(tools []toolEntry, mode types.ToolMode, gate mcp.PermissionGate) []types.ToolDefinition {
	var result []toolEntry
	for i := range tools {
		if tools[i].degraded {
			continue
		}
		if mcp.Visible(tools[i].def, mode, gate) {
			result = append(result, tools[i])
		}
	}

	// Sort by effective latency: prefer measured P50 when available, fall
	// back to declared.
	slices.SortFunc(result, func(a, b toolEntry) int {
		return cmp.Compare(a.effectiveP50(), b.effectiveP50())
	})

	defs := make([]types.ToolDefinition, len(result))
	for i, e := range result {
		defs[i] = e.def
	}
	return defs
}

// effectiveP50 returns the best-known P50 latency for sorting purposes.
// If the rolling window has measurements, that value is used; otherwise the
// declared P50 is returned.
func (e toolEntry) effectiveP50() int64 {
	if e.measurements != nil && e.measurements.Count() > 0 {
		return e.measuredP50Ms
	}
	return e.declaredP50Ms
}
