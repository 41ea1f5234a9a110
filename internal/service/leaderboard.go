package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/yuqie6/ecopulse/internal/repository"
	"github.com/yuqie6/ecopulse/internal/schema"
)

// TimeFilter 排行榜时间窗
type TimeFilter string

const (
	FilterAllTime  TimeFilter = "all-time"
	FilterThisWeek TimeFilter = "this-week"
	FilterToday    TimeFilter = "today" // 本地零点起
)

// ParseTimeFilter 解析时间窗参数，未知值回退 all-time
func ParseTimeFilter(s string) TimeFilter {
	switch TimeFilter(s) {
	case FilterThisWeek, FilterToday:
		return TimeFilter(s)
	default:
		return FilterAllTime
	}
}

// maxLeaderboardSize 排行榜最多展示的条目数
const maxLeaderboardSize = 50

// anonymousNamePrefix 非本人条目的匿名展示名前缀
const anonymousNamePrefix = "Green Champion"

// selfFallbackName 本人条目缺少昵称时的兜底文案
const selfFallbackName = "You"

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	UserID        string  `json:"user_id"`
	UserName      string  `json:"user_name"`
	TotalCO2Saved float64 `json:"total_co2_saved"`
	TripCount     int     `json:"trip_count"`
	Rank          int     `json:"rank"` // 1 起始，排序截断后赋值
}

// BuildLeaderboard 从完整记录列表构建排行榜
// 过滤时间窗 → 按用户分组求和 → 减碳量降序（并列按 userId 升序保证确定性）
// → 截断前 50 → 赋 1 起始名次；对记录列表的纯计算
func BuildLeaderboard(logs []schema.CommuteLog, active *schema.UserProfile, filter TimeFilter, now time.Time) []LeaderboardEntry {
	var since int64
	switch filter {
	case FilterToday:
		since = repository.StartOfDay(now).UnixMilli()
	case FilterThisWeek:
		since = repository.TrailingWindowStart(now, 7)
	default:
		since = 0
	}

	type group struct {
		userID string
		co2    float64
		trips  int
	}
	groups := make(map[string]*group)
	for _, log := range logs {
		if since > 0 && log.CreatedAt < since {
			continue
		}
		g, ok := groups[log.UserID]
		if !ok {
			g = &group{userID: log.UserID}
			groups[log.UserID] = g
		}
		g.co2 += log.CO2Saved
		g.trips++
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].co2 != ordered[j].co2 {
			return ordered[i].co2 > ordered[j].co2
		}
		return ordered[i].userID < ordered[j].userID
	})

	if len(ordered) > maxLeaderboardSize {
		ordered = ordered[:maxLeaderboardSize]
	}

	entries := make([]LeaderboardEntry, 0, len(ordered))
	for i, g := range ordered {
		entries = append(entries, LeaderboardEntry{
			UserID:        g.userID,
			UserName:      displayName(g.userID, active),
			TotalCO2Saved: g.co2,
			TripCount:     g.trips,
			Rank:          i + 1,
		})
	}
	return entries
}

// SelfEntry 在排行榜中查找本人条目，不在榜上返回 nil
func SelfEntry(entries []LeaderboardEntry, userID string) *LeaderboardEntry {
	if userID == "" {
		return nil
	}
	for i := range entries {
		if entries[i].UserID == userID {
			return &entries[i]
		}
	}
	return nil
}

// displayName 本人显示昵称，其他用户合成匿名名（userId 末 4 位）
func displayName(userID string, active *schema.UserProfile) string {
	if active != nil && active.ID == userID {
		if active.Name != "" {
			return active.Name
		}
		return selfFallbackName
	}
	suffix := userID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return fmt.Sprintf("%s %s", anonymousNamePrefix, suffix)
}
