package csvimporter

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// HashTransaction digests the normalized transaction fields into the
// duplicate-detection key. This is an approximate uniqueness heuristic: two
// genuinely distinct transactions with identical date, type, payee, memo and
// amount collapse into one record. With bank exports that only carry a
// calendar date, that is an accepted limitation.
func HashTransaction(date, transactionType, name, memo, amount string) string {
	joined := strings.ToLower(date + transactionType + name + memo + amount)
	sum := md5.Sum([]byte(joined))

	return hex.EncodeToString(sum[:])
}
