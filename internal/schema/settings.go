package schema

// DefaultMonthlyGoal 未设置时的月度减碳目标（千克）
const DefaultMonthlyGoal = 10

// UserSettings 用户设置（ecopulse_user_settings 文档的载荷）
// 按安装全局存一份，整体覆盖写
type UserSettings struct {
	MonthlyGoal float64 `json:"monthly_goal"` // 月度减碳目标，千克，正数
}

// DefaultUserSettings 文档缺失或损坏时的默认值
func DefaultUserSettings() UserSettings {
	return UserSettings{MonthlyGoal: DefaultMonthlyGoal}
}
