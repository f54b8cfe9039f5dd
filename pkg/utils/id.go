package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateIssueID generates a unique issue identifier.
func GenerateIssueID() string {
	return uuid.NewString()
}

// GenerateSessionID generates a unique streaming session identifier.
func GenerateSessionID() string {
	return fmt.Sprintf("session_%d_%s", time.Now().UnixNano(), randomHex(4))
}

// GenerateClientID generates a unique hub client identifier.
func GenerateClientID() string {
	return fmt.Sprintf("client_%d_%s", time.Now().UnixNano(), randomHex(4))
}

func randomHex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}
