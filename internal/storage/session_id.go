package storage

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSessionID 生成新的会话 ID / Generates a new session ID
func NewSessionID() string {
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return "sess_" + time.Now().UTC().Format("20060102") + "_" + short
}
