package dto

// StatusDTO 本机服务状态（/api/status）
type StatusDTO struct {
	App       AppStatusDTO     `json:"app"`
	Storage   StorageStatusDTO `json:"storage"`
	Session   SessionStatusDTO `json:"session"`
	Documents []string         `json:"documents"` // 已存在的文档键
}

type AppStatusDTO struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	StartedAt  string `json:"started_at"`
	UptimeSec  int64  `json:"uptime_sec"`
	ConfigPath string `json:"config_path,omitempty"`
}

type StorageStatusDTO struct {
	DBPath         string `json:"db_path"`
	SchemaVersion  int    `json:"schema_version"`
	SafeMode       bool   `json:"safe_mode"`
	SafeModeReason string `json:"safe_mode_reason,omitempty"`
}

type SessionStatusDTO struct {
	Registered bool   `json:"registered"`
	UserID     string `json:"user_id,omitempty"`
	UserName   string `json:"user_name,omitempty"`
}
