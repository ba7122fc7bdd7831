package persistence

import (
	"encoding/json"
	"time"
)

// DefaultProfile is used when a caller does not name a profile.
const DefaultProfile = "default"

// SettingRow is one stored key of a profile.
type SettingRow struct {
	Profile   string
	Key       string
	Value     json.RawMessage
	UpdatedAt time.Time
}
