package schema

// UserProfile 本机注册的用户档案（ecopulse_user 文档的载荷）
// 注册后不可变，重新注册会整体覆盖
type UserProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"` // Unix 时间戳（毫秒）
}
