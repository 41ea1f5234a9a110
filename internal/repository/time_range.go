package repository

import (
	"fmt"
	"time"
)

// DateLayout 出行日期的存储格式
const DateLayout = "2006-01-02"

// ParseDay 将 YYYY-MM-DD 解析为本地时区的零点时刻
func ParseDay(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("解析日期失败: %w", err)
	}
	return t, nil
}

// StartOfDay 返回 t 所在本地日的零点
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// TrailingWindowStart 返回 now 往前 days 天的毫秒时间戳
func TrailingWindowStart(now time.Time, days int) int64 {
	return now.AddDate(0, 0, -days).UnixMilli()
}
