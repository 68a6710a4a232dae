package record

import "fmt"

// LevelRole names one group of annotated price levels read from a level
// study. The catalog of roles is fixed.
type LevelRole string

const (
	RoleGamma LevelRole = "gamma"
	RoleBlind LevelRole = "blind"
	RoleSwing LevelRole = "swing"
)

// gammaNames maps gamma-study subgraphs to level type names. Subgraphs
// beyond the table fall back to a generic name.
var gammaNames = map[int]string{
	1: "call_resistance",
	2: "put_support",
	3: "hvl",
	4: "1d_max",
	5: "call_resistance_0dte",
	6: "put_support_0dte",
	7: "hvl_0dte",
}

// LevelTypeName returns the wire name for one (role, subgraph) slot of the
// annotation catalog. Same-named levels across sessions stay
// distinguishable through the study/subgraph provenance on the record.
func LevelTypeName(role LevelRole, subgraph int) string {
	switch role {
	case RoleGamma:
		if name, ok := gammaNames[subgraph]; ok {
			return name
		}
		// Subgraphs 8.. carry the gamma exposure ladder.
		if subgraph >= 8 {
			return fmt.Sprintf("gex_%d", subgraph-7)
		}
		return fmt.Sprintf("gamma_sg_%d", subgraph)
	case RoleBlind:
		return fmt.Sprintf("blind_spot_%d", subgraph)
	case RoleSwing:
		return fmt.Sprintf("swing_lvl_%d", subgraph)
	default:
		return fmt.Sprintf("sg_%d", subgraph)
	}
}
