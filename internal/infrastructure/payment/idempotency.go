package payment

import (
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// IdempotencyKey строит ключ идемпотентности платёжной операции.
// Повторная отправка той же операции для той же версии сделки даёт тот же ключ.
func IdempotencyKey(operation string, transactionID uuid.UUID, version int64) string {
	sum := blake2b.Sum256([]byte(operation + ":" + transactionID.String() + ":" + strconv.FormatInt(version, 10)))
	return hex.EncodeToString(sum[:])
}
