package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/ecopulse/internal/eventbus"
	"github.com/yuqie6/ecopulse/internal/repository"
	"github.com/yuqie6/ecopulse/internal/schema"
)

// 调用方可见的操作级错误
var (
	ErrNoActiveUser = errors.New("没有已注册的用户，请先注册")
	ErrInvalidGoal  = errors.New("月度目标必须是正数")
	ErrInvalidName  = errors.New("昵称不能为空")
	ErrInvalidModes = errors.New("至少选择一种出行方式")
	ErrNegativeCO2  = errors.New("减碳量不能为负")
)

// CommuteService 通勤记录核心服务
// 会话状态显式化：每次操作都从存储读当前档案，不持有全局活跃用户
type CommuteService struct {
	profiles  *repository.ProfileRepository
	logs      *repository.CommuteLogRepository
	settings  *repository.SettingsRepository
	community *repository.CommunityRepository
	hub       *eventbus.Hub

	nowFn func() time.Time
	idFn  func() string
}

// NewCommuteService 创建服务
func NewCommuteService(
	profiles *repository.ProfileRepository,
	logs *repository.CommuteLogRepository,
	settings *repository.SettingsRepository,
	community *repository.CommunityRepository,
	hub *eventbus.Hub,
) *CommuteService {
	return &CommuteService{
		profiles:  profiles,
		logs:      logs,
		settings:  settings,
		community: community,
		hub:       hub,
		nowFn:     time.Now,
		idFn:      uuid.NewString,
	}
}

// SetNowFunc 注入参考时钟（测试用）
func (s *CommuteService) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// SetIDFunc 注入 ID 生成器（测试用）
func (s *CommuteService) SetIDFunc(fn func() string) {
	if fn != nil {
		s.idFn = fn
	}
}

// ActiveProfile 返回当前注册用户，未注册返回 nil
func (s *CommuteService) ActiveProfile(ctx context.Context) *schema.UserProfile {
	return s.profiles.Get(ctx)
}

// Register 注册新用户并递增社区用户数
// 重复注册整体覆盖旧档案（原设计即如此）
func (s *CommuteService) Register(ctx context.Context, name string) (*schema.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	profile := &schema.UserProfile{
		ID:        s.idFn(),
		Name:      name,
		CreatedAt: s.nowFn().UnixMilli(),
	}
	if err := s.profiles.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("保存用户档案失败: %w", err)
	}

	// 社区统计单独写入，与档案写入之间没有事务
	stats := s.community.Get(ctx)
	stats.TotalUsers++
	if err := s.community.Save(ctx, stats); err != nil {
		return nil, fmt.Errorf("更新社区统计失败: %w", err)
	}

	s.hub.Publish(eventbus.Event{Type: eventbus.TypeProfileUpdated})
	s.hub.Publish(eventbus.Event{Type: eventbus.TypeCommunityUpdated})

	slog.Info("用户注册成功", "user_id", profile.ID, "name", profile.Name)
	return profile, nil
}

// AddCommuteLog 追加一条通勤记录并增量更新社区统计
// 无活跃用户时操作整体失败，不产生任何写入
func (s *CommuteService) AddCommuteLog(ctx context.Context, modes []string, co2Saved float64, date string) (*schema.CommuteLog, error) {
	profile := s.profiles.Get(ctx)
	if profile == nil {
		return nil, ErrNoActiveUser
	}
	if len(modes) == 0 {
		return nil, ErrInvalidModes
	}
	for _, mode := range modes {
		if !schema.IsValidMode(mode) {
			return nil, fmt.Errorf("未知的出行方式: %s", mode)
		}
	}
	if co2Saved < 0 || math.IsNaN(co2Saved) || math.IsInf(co2Saved, 0) {
		return nil, ErrNegativeCO2
	}

	now := s.nowFn()
	if date == "" {
		date = now.Format(repository.DateLayout)
	} else if _, err := repository.ParseDay(date); err != nil {
		return nil, err
	}

	log := &schema.CommuteLog{
		ID:        s.idFn(),
		UserID:    profile.ID,
		Modes:     modes,
		CO2Saved:  co2Saved,
		Date:      date,
		CreatedAt: now.UnixMilli(),
	}
	if err := s.logs.Append(ctx, log); err != nil {
		return nil, fmt.Errorf("保存通勤记录失败: %w", err)
	}

	stats := s.community.Get(ctx)
	ApplyLogDelta(&stats, log, now)
	if err := s.community.Save(ctx, stats); err != nil {
		// 记录已落盘而统计写入失败：两文档失配，留给 doctor 重算修复
		return nil, fmt.Errorf("更新社区统计失败: %w", err)
	}

	s.hub.Publish(eventbus.Event{Type: eventbus.TypeLogsUpdated})
	s.hub.Publish(eventbus.Event{Type: eventbus.TypeCommunityUpdated})

	slog.Info("记录通勤成功", "log_id", log.ID, "modes", modes, "co2_saved", co2Saved)
	return log, nil
}

// ApplyLogDelta 将一条新记录的增量应用到社区统计
// mostPopularMode 采用"最后写入者胜"：取新记录的第一个方式，不是真实众数
func ApplyLogDelta(stats *schema.CommunityStats, log *schema.CommuteLog, now time.Time) {
	if stats == nil || log == nil {
		return
	}
	stats.TotalCO2Saved += log.CO2Saved
	if log.CreatedAt > repository.TrailingWindowStart(now, 7) {
		stats.TotalCO2SavedThisWeek += log.CO2Saved
	}
	stats.TotalCommutes++
	if len(log.Modes) > 0 {
		stats.MostPopularMode = log.Modes[0]
	}
}

// UpdateSettings 校验并整体覆盖用户设置
// 非法目标在任何写入之前拒绝
func (s *CommuteService) UpdateSettings(ctx context.Context, monthlyGoal float64) error {
	if monthlyGoal <= 0 || math.IsNaN(monthlyGoal) || math.IsInf(monthlyGoal, 0) {
		return ErrInvalidGoal
	}
	if err := s.settings.Save(ctx, schema.UserSettings{MonthlyGoal: monthlyGoal}); err != nil {
		return fmt.Errorf("保存设置失败: %w", err)
	}
	s.hub.Publish(eventbus.Event{Type: eventbus.TypeSettingsUpdated})
	return nil
}

// Settings 读取当前设置（缺失时为默认值）
func (s *CommuteService) Settings(ctx context.Context) schema.UserSettings {
	return s.settings.Get(ctx)
}

// Logout 清除用户档案文档，通勤记录与设置保留
func (s *CommuteService) Logout(ctx context.Context) error {
	if err := s.profiles.Clear(ctx); err != nil {
		return fmt.Errorf("清除用户档案失败: %w", err)
	}
	s.hub.Publish(eventbus.Event{Type: eventbus.TypeProfileUpdated})
	return nil
}

// DashboardView 仪表盘视图：个人统计 + 目标进度 + 社区统计
type DashboardView struct {
	Stats        DashboardStats        `json:"stats"`
	MonthlyGoal  float64               `json:"monthly_goal"`
	GoalProgress float64               `json:"goal_progress"` // 本月减碳 / 月度目标，0~1 截断
	Community    schema.CommunityStats `json:"community"`
}

// Dashboard 计算当前用户的仪表盘视图
func (s *CommuteService) Dashboard(ctx context.Context) (*DashboardView, error) {
	profile := s.profiles.Get(ctx)
	if profile == nil {
		return nil, ErrNoActiveUser
	}

	logs := s.logs.List(ctx)
	settings := s.settings.Get(ctx)
	stats := ComputeDashboard(logs, profile.ID, s.nowFn())

	progress := 0.0
	if settings.MonthlyGoal > 0 {
		progress = stats.ThisMonthCO2 / settings.MonthlyGoal
		if progress > 1 {
			progress = 1
		}
	}

	return &DashboardView{
		Stats:        stats,
		MonthlyGoal:  settings.MonthlyGoal,
		GoalProgress: progress,
		Community:    s.community.Get(ctx),
	}, nil
}

// Leaderboard 构建排行榜并返回本人条目（可能为 nil）
func (s *CommuteService) Leaderboard(ctx context.Context, filter TimeFilter) ([]LeaderboardEntry, *LeaderboardEntry) {
	profile := s.profiles.Get(ctx)
	entries := BuildLeaderboard(s.logs.List(ctx), profile, filter, s.nowFn())

	var self *LeaderboardEntry
	if profile != nil {
		self = SelfEntry(entries, profile.ID)
	}
	return entries, self
}

// CommunityStats 读取社区统计（缺失时为默认值）
func (s *CommuteService) CommunityStats(ctx context.Context) schema.CommunityStats {
	return s.community.Get(ctx)
}

// RecomputeCommunityStats 从通勤记录文档重建社区统计（doctor 命令）
// 增量计数长期可能偏移，这里提供显式的重算修复路径；
// mostPopularMode 在重算时取真实众数，与增量路径的"最后写入者胜"口径不同
func (s *CommuteService) RecomputeCommunityStats(ctx context.Context) (schema.CommunityStats, error) {
	logs := s.logs.List(ctx)
	now := s.nowFn()
	weekStart := repository.TrailingWindowStart(now, 7)

	users := make(map[string]struct{})
	modeCounts := make(map[string]int)
	stats := schema.CommunityStats{MostPopularMode: schema.ModeWalking}

	for _, log := range logs {
		users[log.UserID] = struct{}{}
		stats.TotalCO2Saved += log.CO2Saved
		if log.CreatedAt > weekStart {
			stats.TotalCO2SavedThisWeek += log.CO2Saved
		}
		stats.TotalCommutes++
		for _, mode := range log.Modes {
			modeCounts[mode]++
		}
	}

	if profile := s.profiles.Get(ctx); profile != nil {
		users[profile.ID] = struct{}{}
	}
	stats.TotalUsers = len(users)
	if stats.TotalUsers == 0 {
		stats.TotalUsers = 1
	}

	if len(modeCounts) > 0 {
		modes := make([]string, 0, len(modeCounts))
		for mode := range modeCounts {
			modes = append(modes, mode)
		}
		sort.Strings(modes)
		best := modes[0]
		for _, mode := range modes[1:] {
			if modeCounts[mode] > modeCounts[best] {
				best = mode
			}
		}
		stats.MostPopularMode = best
	}

	if err := s.community.Save(ctx, stats); err != nil {
		return stats, fmt.Errorf("写入重算结果失败: %w", err)
	}
	s.hub.Publish(eventbus.Event{Type: eventbus.TypeCommunityUpdated})

	slog.Info("社区统计重算完成", "total_users", stats.TotalUsers, "total_commutes", stats.TotalCommutes)
	return stats, nil
}
