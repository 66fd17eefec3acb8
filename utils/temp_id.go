package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// GenerateTempID returns the short-lived public token that correlates an
// in-progress application across the form, capture and payment pages.
func GenerateTempID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b)
}

// GenerateDraftID keys a server-side form draft. Same entropy as a temp id
// but prefixed so the two token spaces never collide in logs.
func GenerateDraftID() string {
	return "draft_" + GenerateTempID()
}
