// Bridge: hst_bridge.go
//
// This file bridges internal/hst/ into the public haven package. It
// re-exports types via type aliases so that callers use the top-level haven
// API while the model implementation stays private.

package haven

import (
	"github.com/havenwatch/haven/internal/hst"
)

// Type aliases re-export the half-space-trees model.
type HalfSpaceForest = hst.Forest
type HalfSpaceConfig = hst.Config

// Re-export constructor functions.
var (
	NewHalfSpaceForest     = hst.New
	DefaultHalfSpaceConfig = hst.DefaultConfig
)
