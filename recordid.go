package discovery

import (
	"crypto/md5"

	"github.com/hashicorp/go-uuid"
)

// DeriveRecordID derives the record ID under which userID is published at a central repository.
// The MD5 digest of userID is used as the random part of a version 4 UUID, so equal user IDs
// always map to the same record ID.
func DeriveRecordID(userID string) string {
	sum := md5.Sum([]byte(userID))
	sum[6] = (sum[6] & 0x0f) | 0x40 // version 4
	sum[8] = (sum[8] & 0x3f) | 0x80 // RFC 4122 variant

	id, err := uuid.FormatUUID(sum[:])
	if err != nil {
		// FormatUUID only fails for inputs that are not 16 bytes long.
		panic(err)
	}
	return id
}
