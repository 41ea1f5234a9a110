package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/yuqie6/ecopulse/internal/repository"
	"github.com/yuqie6/ecopulse/internal/schema"
	"github.com/yuqie6/ecopulse/internal/testutil"
)

func newTestService(t *testing.T) (*CommuteService, *repository.DocumentStore) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	store := repository.NewDocumentStore(db)

	svc := NewCommuteService(
		repository.NewProfileRepository(store),
		repository.NewCommuteLogRepository(store),
		repository.NewSettingsRepository(store),
		repository.NewCommunityRepository(store),
		nil,
	)
	svc.SetNowFunc(fixedNow)

	seq := 0
	svc.SetIDFunc(func() string {
		seq++
		return fmt.Sprintf("id-%04d", seq)
	})
	return svc, store
}

func TestRegisterCreatesProfileAndCountsUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	profile, err := svc.Register(ctx, "Ada")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if profile.ID == "" || profile.Name != "Ada" || profile.CreatedAt != fixedNow().UnixMilli() {
		t.Fatalf("profile=%+v", profile)
	}

	if got := svc.ActiveProfile(ctx); got == nil || got.ID != profile.ID {
		t.Fatalf("active profile=%+v, want %s", got, profile.ID)
	}
	// 默认 totalUsers=1，注册后 +1
	if stats := svc.CommunityStats(ctx); stats.TotalUsers != 2 {
		t.Fatalf("total users=%d, want 2", stats.TotalUsers)
	}
}

func TestRegisterRejectsBlankName(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "   "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("err=%v, want ErrInvalidName", err)
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys error: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("rejected register must not write, got keys %v", keys)
	}
}

func TestAddCommuteLogRequiresActiveUser(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddCommuteLog(ctx, []string{schema.ModeCycling}, 2.5, "")
	if !errors.Is(err, ErrNoActiveUser) {
		t.Fatalf("err=%v, want ErrNoActiveUser", err)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys error: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("failed operation must not write any document, got %v", keys)
	}
}

func TestAddCommuteLogPersistsAndUpdatesCommunity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ada"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	log, err := svc.AddCommuteLog(ctx, []string{schema.ModeCycling}, 2.5, "")
	if err != nil {
		t.Fatalf("AddCommuteLog error: %v", err)
	}
	if log.Date != fixedNow().Format(repository.DateLayout) {
		t.Fatalf("date=%q, want today", log.Date)
	}

	// 一次注册 + 一条 2.5kg 记录的社区统计口径
	stats := svc.CommunityStats(ctx)
	if stats.TotalUsers != 2 || stats.TotalCO2Saved != 2.5 || stats.TotalCommutes != 1 {
		t.Fatalf("stats=%+v, want {2, 2.5, 1}", stats)
	}
	if stats.TotalCO2SavedThisWeek != 2.5 {
		t.Fatalf("week co2=%v, want 2.5", stats.TotalCO2SavedThisWeek)
	}
	if stats.MostPopularMode != schema.ModeCycling {
		t.Fatalf("most popular=%q, want last-writer cycling", stats.MostPopularMode)
	}
}

func TestAddCommuteLogValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "Ada"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if _, err := svc.AddCommuteLog(ctx, nil, 1, ""); !errors.Is(err, ErrInvalidModes) {
		t.Fatalf("err=%v, want ErrInvalidModes", err)
	}
	if _, err := svc.AddCommuteLog(ctx, []string{"jetpack"}, 1, ""); err == nil {
		t.Fatalf("unknown mode must be rejected")
	}
	if _, err := svc.AddCommuteLog(ctx, []string{schema.ModeWalking}, -1, ""); !errors.Is(err, ErrNegativeCO2) {
		t.Fatalf("err=%v, want ErrNegativeCO2", err)
	}
	if _, err := svc.AddCommuteLog(ctx, []string{schema.ModeWalking}, 1, "27-08-2026"); err == nil {
		t.Fatalf("malformed date must be rejected")
	}
}

func TestUpdateSettingsRejectsNonPositiveGoal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, goal := range []float64{0, -5} {
		if err := svc.UpdateSettings(ctx, goal); !errors.Is(err, ErrInvalidGoal) {
			t.Fatalf("goal=%v err=%v, want ErrInvalidGoal", goal, err)
		}
	}
	// 被拒绝的更新不得改动已存设置
	if settings := svc.Settings(ctx); settings.MonthlyGoal != schema.DefaultMonthlyGoal {
		t.Fatalf("settings=%+v, want untouched default", settings)
	}
}

func TestUpdateSettingsOverwrites(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.UpdateSettings(ctx, 42); err != nil {
		t.Fatalf("UpdateSettings error: %v", err)
	}
	if settings := svc.Settings(ctx); settings.MonthlyGoal != 42 {
		t.Fatalf("monthly goal=%v, want 42", settings.MonthlyGoal)
	}
}

func TestLogoutClearsOnlyProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ada"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if _, err := svc.AddCommuteLog(ctx, []string{schema.ModeWalking}, 1.0, ""); err != nil {
		t.Fatalf("AddCommuteLog error: %v", err)
	}
	if err := svc.UpdateSettings(ctx, 20); err != nil {
		t.Fatalf("UpdateSettings error: %v", err)
	}

	if err := svc.Logout(ctx); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	if svc.ActiveProfile(ctx) != nil {
		t.Fatalf("profile must be cleared after logout")
	}
	if settings := svc.Settings(ctx); settings.MonthlyGoal != 20 {
		t.Fatalf("settings=%+v, logout must keep settings", settings)
	}
	entries, _ := svc.Leaderboard(ctx, FilterAllTime)
	if len(entries) != 1 {
		t.Fatalf("logout must keep commute history, entries=%d", len(entries))
	}
}

func TestDashboardRequiresActiveUser(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Dashboard(context.Background()); !errors.Is(err, ErrNoActiveUser) {
		t.Fatalf("err=%v, want ErrNoActiveUser", err)
	}
}

func TestDashboardViewGoalProgress(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ada"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := svc.UpdateSettings(ctx, 10); err != nil {
		t.Fatalf("UpdateSettings error: %v", err)
	}
	if _, err := svc.AddCommuteLog(ctx, []string{schema.ModeCycling}, 4.0, ""); err != nil {
		t.Fatalf("AddCommuteLog error: %v", err)
	}

	view, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard error: %v", err)
	}
	if view.Stats.TotalCO2Saved != 4.0 || view.Stats.CurrentStreak != 1 {
		t.Fatalf("stats=%+v, want total 4.0 streak 1", view.Stats)
	}
	if view.MonthlyGoal != 10 || view.GoalProgress != 0.4 {
		t.Fatalf("goal=%v progress=%v, want 10 / 0.4", view.MonthlyGoal, view.GoalProgress)
	}
}

func TestRecomputeCommunityStatsMatchesIncremental(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ada"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if _, err := svc.AddCommuteLog(ctx, []string{schema.ModeCycling}, 2.5, ""); err != nil {
		t.Fatalf("AddCommuteLog error: %v", err)
	}

	incremental := svc.CommunityStats(ctx)
	recomputed, err := svc.RecomputeCommunityStats(ctx)
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}

	if recomputed.TotalCO2Saved != incremental.TotalCO2Saved ||
		recomputed.TotalCommutes != incremental.TotalCommutes ||
		recomputed.TotalCO2SavedThisWeek != incremental.TotalCO2SavedThisWeek {
		t.Fatalf("recomputed=%+v incremental=%+v, log-derived counters must agree", recomputed, incremental)
	}

	// 用户数口径不同：增量路径从默认基数 1 起步（注册后为 2），
	// 重算只认记录作者 + 当前档案，两者刻意不一致
	if incremental.TotalUsers != 2 {
		t.Fatalf("incremental users=%d, want 2 (baseline 1 + registration)", incremental.TotalUsers)
	}
	if recomputed.TotalUsers != 1 {
		t.Fatalf("recomputed users=%d, want 1 (distinct log authors + profile)", recomputed.TotalUsers)
	}
}

func TestRecomputeCommunityStatsRepairsDrift(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "Ada"); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if _, err := svc.AddCommuteLog(ctx, []string{schema.ModeWalking}, 3.0, ""); err != nil {
		t.Fatalf("AddCommuteLog error: %v", err)
	}

	// 人为制造偏移：统计文档与记录文档失配
	drifted := schema.CommunityStats{TotalUsers: 99, TotalCO2Saved: 1000, TotalCommutes: 77, MostPopularMode: schema.ModeCarpooling}
	if err := store.Write(ctx, repository.DocKeyCommunityStats, drifted); err != nil {
		t.Fatalf("seed drift: %v", err)
	}

	stats, err := svc.RecomputeCommunityStats(ctx)
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	if stats.TotalCO2Saved != 3.0 || stats.TotalCommutes != 1 || stats.TotalUsers != 1 {
		t.Fatalf("stats=%+v, want rebuilt {1, 3.0, 1}", stats)
	}
	if stats.MostPopularMode != schema.ModeWalking {
		t.Fatalf("most popular=%q, want true modal walking", stats.MostPopularMode)
	}
}

func TestRecomputeCommunityStatsEmptyStore(t *testing.T) {
	svc, _ := newTestService(t)

	stats, err := svc.RecomputeCommunityStats(context.Background())
	if err != nil {
		t.Fatalf("Recompute error: %v", err)
	}
	if stats.TotalUsers != 1 || stats.TotalCommutes != 0 || stats.MostPopularMode != schema.ModeWalking {
		t.Fatalf("stats=%+v, want default-shaped stats", stats)
	}
}

func TestApplyLogDeltaWeekWindow(t *testing.T) {
	now := fixedNow()
	stats := schema.DefaultCommunityStats()

	old := &schema.CommuteLog{
		UserID: "u1", Modes: []string{schema.ModePublicTransport}, CO2Saved: 2.0,
		CreatedAt: now.AddDate(0, 0, -10).UnixMilli(),
	}
	ApplyLogDelta(&stats, old, now)

	if stats.TotalCO2Saved != 2.0 {
		t.Fatalf("total=%v, want 2.0", stats.TotalCO2Saved)
	}
	if stats.TotalCO2SavedThisWeek != 0 {
		t.Fatalf("week=%v, old log must not count toward the trailing week", stats.TotalCO2SavedThisWeek)
	}
	if stats.MostPopularMode != schema.ModePublicTransport {
		t.Fatalf("most popular=%q, want last writer public_transport", stats.MostPopularMode)
	}
}
