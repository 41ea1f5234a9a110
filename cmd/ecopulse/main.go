package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yuqie6/ecopulse/internal/bootstrap"
	"github.com/yuqie6/ecopulse/internal/httpapi"
	"github.com/yuqie6/ecopulse/internal/importer"
	"github.com/yuqie6/ecopulse/internal/pkg/buildinfo"
	"github.com/yuqie6/ecopulse/internal/pkg/config"
	"github.com/yuqie6/ecopulse/internal/schema"
	"github.com/yuqie6/ecopulse/internal/service"
)

var (
	cfgFile string
	core    *bootstrap.Core
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ecopulse",
		Short: "EcoPulse - 绿色通勤记录与减碳统计",
		Long:  `EcoPulse 在本地记录你的绿色通勤，统计减碳量、连续打卡与社区排行。`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfgPath := cfgFile
			if cfgPath == "" {
				// 首次运行落一份默认配置，之后用户直接改文件
				if p, err := config.DefaultConfigPath(); err == nil {
					if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
						_ = config.WriteFile(p, config.Default())
					}
					cfgPath = p
				}
			}

			var err error
			core, err = bootstrap.NewCore(cfgPath)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(leaderboardCmd())
	rootCmd.AddCommand(goalCmd())
	rootCmd.AddCommand(communityCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// requireWritable 安全模式下拒绝写入命令，原因由 status 展示
func requireWritable() {
	if core.DB != nil && core.DB.SafeMode {
		fmt.Println("⚠️  数据库处于安全模式，已禁用写入操作")
		fmt.Println("   请运行 'ecopulse status' 查看原因")
		os.Exit(1)
	}
}

// registerCmd 注册用户
func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register [昵称]",
		Short: "注册用户",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireWritable()
			name := strings.Join(args, " ")

			profile, err := core.Services.Commute.Register(ctx, name)
			if err != nil {
				fmt.Printf("❌ 注册失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ 欢迎加入，%s！\n", profile.Name)
			fmt.Printf("   用户 ID: %s\n", profile.ID)
		},
	}
}

// logCmd 记录一次通勤
func logCmd() *cobra.Command {
	var modes []string
	var co2 float64
	var km float64
	var date string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "记录一次绿色通勤",
		Long:  "记录一次通勤：--co2 直接给出减碳量，或 --km 按里程估算。",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireWritable()

			if co2 == 0 && km > 0 {
				policy := service.DefaultSavingsPolicy{}
				co2 = policy.EstimateSavings(modes, km)
				fmt.Printf("🧮 按 %.1f 公里估算减碳 %.2f kg\n", km, co2)
			}

			log, err := core.Services.Commute.AddCommuteLog(ctx, modes, co2, date)
			if err != nil {
				fmt.Printf("❌ 记录失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("🌱 已记录 %s 的通勤\n", log.Date)
			fmt.Printf("   方式: %s\n", strings.Join(log.Modes, ", "))
			fmt.Printf("   减碳: %.2f kg CO₂\n", log.CO2Saved)
		},
	}

	cmd.Flags().StringSliceVarP(&modes, "mode", "m", nil,
		"出行方式（可多选）: "+strings.Join(schema.AllModes(), ", "))
	cmd.Flags().Float64Var(&co2, "co2", 0, "减碳量 (kg)")
	cmd.Flags().Float64Var(&km, "km", 0, "通勤里程（用于估算减碳量）")
	cmd.Flags().StringVar(&date, "date", "", "指定日期 (YYYY-MM-DD)，默认今天")

	return cmd
}

// dashboardCmd 仪表盘
func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "查看个人仪表盘",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			view, err := core.Services.Commute.Dashboard(ctx)
			if err != nil {
				fmt.Printf("❌ %v\n", err)
				os.Exit(1)
			}

			fmt.Println("🌍 EcoPulse 仪表盘")
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("\n📊 我的减碳\n")
			fmt.Printf("  • 累计: %.2f kg CO₂\n", view.Stats.TotalCO2Saved)
			fmt.Printf("  • 近 7 天: %.2f kg\n", view.Stats.ThisWeekCO2)
			fmt.Printf("  • 近 30 天: %.2f kg\n", view.Stats.ThisMonthCO2)
			fmt.Printf("  • 通勤次数: %d 次\n", view.Stats.TotalTrips)
			fmt.Printf("  • 常用方式: %s\n", modeLabel(view.Stats.MostUsedMode))
			fmt.Printf("  • 连续打卡: %d 天\n", view.Stats.CurrentStreak)

			fmt.Printf("\n🎯 月度目标\n")
			fmt.Printf("  • 目标: %.1f kg，进度 %.0f%%\n", view.MonthlyGoal, view.GoalProgress*100)
			fmt.Printf("    [%s]\n", progressBar(view.GoalProgress, 20))

			fmt.Printf("\n👥 社区\n")
			fmt.Printf("  • 成员: %d 人，累计减碳 %.2f kg\n",
				view.Community.TotalUsers, view.Community.TotalCO2Saved)
			fmt.Println("\n═══════════════════════════════════════")
		},
	}
}

// leaderboardCmd 排行榜
func leaderboardCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "查看减碳排行榜",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			tf := service.ParseTimeFilter(filter)
			entries, self := core.Services.Commute.Leaderboard(ctx, tf)

			fmt.Printf("🏆 排行榜 (%s)\n", filterLabel(tf))
			fmt.Println("═══════════════════════════════════════")

			if len(entries) == 0 {
				fmt.Println("\n📚 这个时间段还没有通勤记录")
				return
			}

			for _, e := range entries {
				marker := "  "
				if self != nil && e.UserID == self.UserID {
					marker = "👉"
				}
				fmt.Printf("%s %2d. %-24s %.2f kg (%d 次)\n",
					marker, e.Rank, e.UserName, e.TotalCO2Saved, e.TripCount)
			}

			if self != nil {
				fmt.Printf("\n我的名次: #%d，减碳 %.2f kg\n", self.Rank, self.TotalCO2Saved)
			}
			fmt.Println("═══════════════════════════════════════")
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "all-time",
		"时间窗: all-time / this-week / today")

	return cmd
}

// goalCmd 查看或设置月度目标
func goalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "goal [目标值]",
		Short: "查看或设置月度减碳目标 (kg)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			if len(args) == 0 {
				settings := core.Services.Commute.Settings(ctx)
				fmt.Printf("🎯 当前月度目标: %.1f kg CO₂\n", settings.MonthlyGoal)
				return
			}

			requireWritable()
			goal, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				fmt.Printf("❌ 目标值无效: %s\n", args[0])
				os.Exit(1)
			}
			if err := core.Services.Commute.UpdateSettings(ctx, goal); err != nil {
				fmt.Printf("❌ 设置失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ 月度目标已更新为 %.1f kg CO₂\n", goal)
		},
	}
}

// communityCmd 社区统计
func communityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "community",
		Short: "查看社区统计",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			stats := core.Services.Commute.CommunityStats(ctx)
			fmt.Println("👥 社区统计")
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("  • 成员数: %d 人\n", stats.TotalUsers)
			fmt.Printf("  • 累计减碳: %.2f kg CO₂\n", stats.TotalCO2Saved)
			fmt.Printf("  • 本周减碳: %.2f kg CO₂\n", stats.TotalCO2SavedThisWeek)
			fmt.Printf("  • 通勤总数: %d 次\n", stats.TotalCommutes)
			fmt.Printf("  • 热门方式: %s\n", modeLabel(stats.MostPopularMode))
			fmt.Println("═══════════════════════════════════════")
		},
	}
}

// logoutCmd 退出登录
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "退出登录（保留通勤记录与设置）",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireWritable()

			if err := core.Services.Commute.Logout(ctx); err != nil {
				fmt.Printf("❌ 退出失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("👋 已退出登录，通勤记录已保留")
		},
	}
}

// importCmd 导入他人导出包
func importCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "import [文件...]",
		Short: "导入通勤导出包 (JSON)",
		Long:  "合并他人分享的通勤导出包；--watch 持续监听投递目录。",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireWritable()

			if watch {
				runImportWatch(ctx)
				return
			}

			if len(args) == 0 {
				fmt.Println("⚠️  请指定导出包文件，或使用 --watch 监听投递目录")
				os.Exit(1)
			}

			total := 0
			for _, path := range args {
				added, err := core.Importer.ImportFile(ctx, path)
				if err != nil {
					fmt.Printf("❌ 导入 %s 失败: %v\n", path, err)
					os.Exit(1)
				}
				fmt.Printf("✅ %s: 新增 %d 条记录\n", path, added)
				total += added
			}
			fmt.Printf("🌱 共导入 %d 条通勤记录\n", total)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "监听投递目录，自动导入新文件")

	return cmd
}

func runImportWatch(ctx context.Context) {
	w, err := importer.NewWatcher(core.Importer, &importer.WatcherConfig{
		WatchDir:    core.Cfg.Import.WatchDir,
		DebounceSec: core.Cfg.Import.DebounceSec,
	})
	if err != nil {
		fmt.Printf("❌ 创建监听器失败: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := w.Start(ctx); err != nil {
		fmt.Printf("❌ 启动监听失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("👀 正在监听 %s（Ctrl+C 退出）\n", core.Cfg.Import.WatchDir)

	<-ctx.Done()
	_ = w.Stop()
	fmt.Println("\n👋 已停止监听")
}

// doctorCmd 重算社区统计
func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "从通勤记录重算社区统计，修复增量偏移",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			requireWritable()

			before := core.Services.Commute.CommunityStats(ctx)
			after, err := core.Services.Commute.RecomputeCommunityStats(ctx)
			if err != nil {
				fmt.Printf("❌ 重算失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Println("🩺 社区统计重算完成")
			fmt.Printf("  • 成员数: %d → %d\n", before.TotalUsers, after.TotalUsers)
			fmt.Printf("  • 累计减碳: %.2f → %.2f kg\n", before.TotalCO2Saved, after.TotalCO2Saved)
			fmt.Printf("  • 本周减碳: %.2f → %.2f kg\n", before.TotalCO2SavedThisWeek, after.TotalCO2SavedThisWeek)
			fmt.Printf("  • 通勤总数: %d → %d\n", before.TotalCommutes, after.TotalCommutes)
			fmt.Printf("  • 热门方式: %s → %s\n", modeLabel(before.MostPopularMode), modeLabel(after.MostPopularMode))
		},
	}
}

// serveCmd 启动本机 HTTP API
func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动本机只读 HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			listenAddr := addr
			if listenAddr == "" {
				listenAddr = core.Cfg.Server.ListenAddr
			}

			ls, err := httpapi.Start(ctx, core, httpapi.Options{ListenAddr: listenAddr})
			if err != nil {
				fmt.Printf("❌ 启动失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("🚀 本机 API 已启动: %s（Ctrl+C 退出）\n", ls.BaseURL())

			// 顺便监听导入目录，让 serve 模式下分享包即放即合并；
			// 安全模式下只提供只读视图，不启动写库链路
			if core.Cfg.Import.WatchDir != "" && !core.DB.SafeMode {
				if w, err := importer.NewWatcher(core.Importer, &importer.WatcherConfig{
					WatchDir:    core.Cfg.Import.WatchDir,
					DebounceSec: core.Cfg.Import.DebounceSec,
				}); err == nil {
					if err := w.Start(ctx); err != nil {
						slog.Warn("启动导入监听失败", "error", err)
					}
					defer w.Stop()
				} else {
					slog.Warn("创建导入监听失败", "error", err)
				}
			}

			<-ctx.Done()
			fmt.Println("\n👋 已停止")
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "监听地址，默认取配置 server.listen_addr")

	return cmd
}

// statusCmd 本地状态
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "查看本地存储与会话状态",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			fmt.Println("📦 EcoPulse 状态")
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("  • 数据库: %s (schema v%d)\n", core.Cfg.Storage.DBPath, core.DB.SchemaVersion)
			if core.DB.SafeMode {
				fmt.Printf("  ⚠️ 安全模式: %s\n", core.DB.MigrationError)
			}

			if profile := core.Services.Commute.ActiveProfile(ctx); profile != nil {
				fmt.Printf("  • 当前用户: %s (%s)\n", profile.Name, profile.ID)
			} else {
				fmt.Println("  • 当前用户: 未注册")
			}

			if keys, err := core.Store.Keys(ctx); err == nil {
				fmt.Printf("  • 已存文档: %s\n", strings.Join(keys, ", "))
			}
			fmt.Println("═══════════════════════════════════════")
		},
	}
}

// versionCmd 版本信息
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ecopulse %s (%s)\n", buildinfo.Version, buildinfo.Commit)
		},
	}
}

// progressBar 渲染目标进度条
func progressBar(ratio float64, width int) string {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

// modeLabel 出行方式中文标签
func modeLabel(mode string) string {
	labels := map[string]string{
		schema.ModeWalking:         "🚶 步行",
		schema.ModeCycling:         "🚴 骑行",
		schema.ModePublicTransport: "🚌 公共交通",
		schema.ModeCarpooling:      "🚗 拼车",
		schema.ModeElectricVehicle: "🔋 电动车",
	}
	if label, ok := labels[mode]; ok {
		return label
	}
	return mode
}

// filterLabel 时间窗中文标签
func filterLabel(tf service.TimeFilter) string {
	switch tf {
	case service.FilterToday:
		return "今日"
	case service.FilterThisWeek:
		return "本周"
	default:
		return "总榜"
	}
}
