package schema

import "sort"

// 出行方式标签
const (
	ModeWalking         = "walking"
	ModeCycling         = "cycling"
	ModePublicTransport = "public_transport"
	ModeCarpooling      = "carpooling"
	ModeElectricVehicle = "electric_vehicle"
)

// AllModes 返回全部合法出行方式（固定顺序）
func AllModes() []string {
	return []string{
		ModeWalking,
		ModeCycling,
		ModePublicTransport,
		ModeCarpooling,
		ModeElectricVehicle,
	}
}

// IsValidMode 判断 mode 是否为已知出行方式
func IsValidMode(mode string) bool {
	switch mode {
	case ModeWalking, ModeCycling, ModePublicTransport, ModeCarpooling, ModeElectricVehicle:
		return true
	}
	return false
}

// CommuteLog 一次通勤记录（ecopulse_commute_logs 文档内的列表元素）
// 只追加，当前范围内不修改不删除
type CommuteLog struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Modes     []string `json:"modes"`     // 本次出行使用的方式，非空
	CO2Saved  float64  `json:"co2_saved"` // 千克，非负
	Date      string   `json:"date"`      // 出行日期 YYYY-MM-DD（区别于记录创建时间）
	CreatedAt int64    `json:"created_at"` // Unix 时间戳（毫秒），时间窗过滤以它为准
}

// SortLogsByDateDesc 按出行日期降序排序（原地）
func SortLogsByDateDesc(logs []CommuteLog) {
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].Date > logs[j].Date
	})
}
