package service

import (
	"math"
	"sort"
	"time"

	"github.com/yuqie6/ecopulse/internal/repository"
	"github.com/yuqie6/ecopulse/internal/schema"
)

// DashboardStats 个人仪表盘统计
// 对记录列表的纯计算，参考时刻由调用方注入
type DashboardStats struct {
	TotalCO2Saved float64 `json:"total_co2_saved"`
	ThisWeekCO2   float64 `json:"this_week_co2"`
	ThisMonthCO2  float64 `json:"this_month_co2"`
	TotalTrips    int     `json:"total_trips"`
	MostUsedMode  string  `json:"most_used_mode"`
	CurrentStreak int     `json:"current_streak"` // 连续出行天数
}

// ComputeDashboard 从完整记录列表计算 userID 的仪表盘统计
// 周/月窗口按记录创建时间过滤，下界开区间（now-N天 < createdAt）
func ComputeDashboard(logs []schema.CommuteLog, userID string, now time.Time) DashboardStats {
	var stats DashboardStats

	weekStart := repository.TrailingWindowStart(now, 7)
	monthStart := repository.TrailingWindowStart(now, 30)

	userLogs := make([]schema.CommuteLog, 0, len(logs))
	for _, log := range logs {
		if log.UserID != userID {
			continue
		}
		userLogs = append(userLogs, log)

		stats.TotalCO2Saved += log.CO2Saved
		if log.CreatedAt > weekStart {
			stats.ThisWeekCO2 += log.CO2Saved
		}
		if log.CreatedAt > monthStart {
			stats.ThisMonthCO2 += log.CO2Saved
		}
	}

	stats.TotalTrips = len(userLogs)
	stats.MostUsedMode = mostUsedMode(userLogs)
	stats.CurrentStreak = currentStreak(userLogs, now)
	return stats
}

// mostUsedMode 统计各出行方式出现次数，取最高者
// 一条记录列了多个方式则各计一次；
// 并列时按方式名升序取第一个，保证结果稳定；无记录回退 walking
func mostUsedMode(logs []schema.CommuteLog) string {
	counts := make(map[string]int)
	for _, log := range logs {
		for _, mode := range log.Modes {
			counts[mode]++
		}
	}
	if len(counts) == 0 {
		return schema.ModeWalking
	}

	modes := make([]string, 0, len(counts))
	for mode := range counts {
		modes = append(modes, mode)
	}
	sort.Strings(modes)

	best := modes[0]
	for _, mode := range modes[1:] {
		if counts[mode] > counts[best] {
			best = mode
		}
	}
	return best
}

// currentStreak 计算截至 now 的连续出行天数
// 按出行日期去重后从今天往回走：同一天可以有多条记录，只算一天；
// 连续模式允许从今天或昨天起算，出现断档立即停止
func currentStreak(logs []schema.CommuteLog, now time.Time) int {
	seen := make(map[string]struct{}, len(logs))
	dates := make([]time.Time, 0, len(logs))
	for _, log := range logs {
		if _, ok := seen[log.Date]; ok {
			continue
		}
		day, err := repository.ParseDay(log.Date)
		if err != nil {
			continue
		}
		seen[log.Date] = struct{}{}
		dates = append(dates, day)
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].After(dates[j])
	})

	today := repository.StartOfDay(now)
	streak := 0
	for _, day := range dates {
		// 四舍五入吸收夏令时导致的 ±1 小时偏差
		daysDiff := int(math.Round(today.Sub(day).Hours() / 24))
		if daysDiff < 0 {
			// 未来日期不参与连续计数
			continue
		}
		switch daysDiff {
		case streak, streak + 1:
			streak++
		default:
			return streak
		}
	}
	return streak
}
