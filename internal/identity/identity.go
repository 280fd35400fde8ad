// Package identity derives the stable hash that names a transfer job in
// the registry. The hash covers exactly the inputs that define which
// bytes land where: direction, source specification, destination root,
// and chunk size. Worker count is deliberately excluded so a job can be
// resumed with different parallelism.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/input-output-hk/catalyst-forge-libs/storage/bulk/bulktypes"
)

// Hash returns the identity hash for a transfer job.
func Hash(direction bulktypes.Direction, source, destination string, chunkSize int64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%s\x00%s\x00%d", direction, source, destination, chunkSize))
	return hex.EncodeToString(sum[:])
}
