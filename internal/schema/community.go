package schema

// CommunityStats 社区聚合统计（ecopulse_community_stats 文档的载荷）
// 写入时增量更新，不从日志重算，长期可能偏移；
// 修复路径是 doctor 命令的重算，而不是每次读取时重建
type CommunityStats struct {
	TotalUsers            int     `json:"total_users"`
	TotalCO2Saved         float64 `json:"total_co2_saved"`
	TotalCO2SavedThisWeek float64 `json:"total_co2_saved_this_week"`
	MostPopularMode       string  `json:"most_popular_mode"` // 最后写入者胜，不是真实众数
	TotalCommutes         int     `json:"total_commutes"`
}

// DefaultCommunityStats 文档缺失或损坏时的默认值
func DefaultCommunityStats() CommunityStats {
	return CommunityStats{
		TotalUsers:      1,
		MostPopularMode: ModeWalking,
	}
}
