// Package main 提供 rtsync 命令行入口
//
// 用于在部署目标上检查实时能力、打印生效配置，以及运行一段时间的收发压测。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/dep2p/go-rtsync"
	"github.com/dep2p/go-rtsync/config"
	"github.com/dep2p/go-rtsync/pkg/lib/log"
)

var logger = log.Logger("rtsync/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   - 命令行参数：这次运行想怎么跑
//   - JSON 配置文件：部署目标的固定配置
//
// 优先级：命令行参数 > 环境变量 > 配置文件 > 预设
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// 配置
	// ─────────────────────────────────────────────────────────────────────
	configFile  = flag.String("config", "", "配置文件路径（JSON）")
	preset      = flag.String("preset", "", "预设配置 (realtime/simulated/minimal)")
	simulated   = flag.Bool("simulated", false, "模拟线程模式，不调用调度系统调用")
	printConfig = flag.Bool("print-config", false, "打印生效配置后退出")

	// ─────────────────────────────────────────────────────────────────────
	// 动作
	// ─────────────────────────────────────────────────────────────────────
	check  = flag.Bool("check", true, "检查本机实时能力")
	soak   = flag.Duration("soak", 0, "压测时长（0 = 不压测）")
	period = flag.Duration("period", time.Millisecond, "压测发布周期")

	// ─────────────────────────────────────────────────────────────────────
	// 日志
	// ─────────────────────────────────────────────────────────────────────
	logFile = flag.String("log", "", "日志文件路径（默认输出到控制台）")

	// ─────────────────────────────────────────────────────────────────────
	// 信息显示
	// ─────────────────────────────────────────────────────────────────────
	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}
	if *showHelp {
		printHelp()
		return nil
	}

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	logFileHandle, err := setupLogging(cfg.Log, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "警告: %v\n", err)
		fmt.Fprintln(os.Stderr, "将继续使用控制台输出日志")
	}
	if logFileHandle != nil {
		defer func() { _ = logFileHandle.Close() }()
	}

	if *printConfig {
		data, err := config.ToJSON(cfg)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if *check {
		if err := runCheck(cfg); err != nil {
			return err
		}
	}

	if *soak > 0 {
		return runSoak(cfg, *soak, *period)
	}
	return nil
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// setupLogging 按配置安装日志 handler，path 非空时输出到文件
func setupLogging(lc config.LogConfig, path string) (*os.File, error) {
	lc.Apply()
	if path == "" {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // G304: 用户指定的日志路径
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	def, levels := log.ParseLevels(lc.Level)
	log.Configure(log.Config{
		DefaultLevel:    def,
		ComponentLevels: levels,
		Format:          log.ParseFormat(lc.Format),
		AddSource:       lc.AddSource,
		Output:          f,
	})
	return f, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// 实时能力检查
// ═══════════════════════════════════════════════════════════════════════════

// capCheck 单项检查
type capCheck struct {
	name    string
	builder *rtsync.Builder
}

// runCheck 在本机真实创建一组线程，逐项报告调度类是否可用
//
// 配置的线程参数不可用且未开启模拟模式时返回错误。
func runCheck(cfg *config.Config) error {
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Println("  rtsync 实时能力检查")
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Printf("  平台:         %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  CPU 数量:     %d\n", runtime.NumCPU())
	fmt.Printf("  优先级继承锁: %s\n", yesNo(rtsync.PriorityInheritanceSupported()))
	fmt.Println("───────────────────────────────────────────────────────────────────")

	checks := []capCheck{
		{"other", rtsync.NewBuilder("check-other")},
		{"batch", rtsync.NewBuilder("check-batch").Scheduling(rtsync.SchedulingBatch)},
		{"idle", rtsync.NewBuilder("check-idle").Scheduling(rtsync.SchedulingIdle)},
		{"fifo/1", rtsync.NewBuilder("check-fifo").Scheduling(rtsync.SchedulingFIFO).Priority(1)},
		{"rr/1", rtsync.NewBuilder("check-rr").Scheduling(rtsync.SchedulingRoundRobin).Priority(1)},
		{"cpu 0", rtsync.NewBuilder("check-cpu").CPUs(0)},
	}
	for _, p := range checks {
		fmt.Printf("  %-14s %s\n", p.name, trialResult(p.builder))
	}

	fmt.Println("───────────────────────────────────────────────────────────────────")
	configured := rtsync.NewBuilder("check-config").Params(cfg.Thread.Params())
	result := trialSpawn(configured)
	fmt.Printf("  配置的参数     %s %v\n", statusText(result), cfg.Thread.Params())
	fmt.Println("═══════════════════════════════════════════════════════════════════")

	if result != nil && !cfg.Thread.Simulated {
		return fmt.Errorf("配置的线程参数在本机不可用: %w", result)
	}
	return nil
}

// trialSpawn 真实创建一个空线程并等待其结束
func trialSpawn(b *rtsync.Builder) error {
	task, err := b.Simulated(false).Spawn(func() error { return nil })
	if err != nil {
		return err
	}
	return task.Join()
}

func trialResult(b *rtsync.Builder) string {
	return statusText(trialSpawn(b))
}

func statusText(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, rtsync.ErrInsufficientPrivilege):
		return "权限不足（需要 CAP_SYS_NICE 或 rtprio 限额）"
	case errors.Is(err, rtsync.ErrUnsupported):
		return "平台不支持"
	default:
		return err.Error()
	}
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}

// ═══════════════════════════════════════════════════════════════════════════
// 压测
// ═══════════════════════════════════════════════════════════════════════════

// sample 压测帧
type sample struct {
	seq  uint64
	sent time.Time
}

// soakStats 接收方统计
type soakStats struct {
	received uint64
	maxLag   time.Duration
	totalLag time.Duration
}

// runSoak 按配置启动控制器，周期发布并接收帧，结束时打印统计
func runSoak(cfg *config.Config, d, every time.Duration) error {
	ctrl, err := rtsync.NewController[sample](rtsync.WithConfig(cfg))
	if err != nil {
		return err
	}
	if err := ctrl.RegisterSignals(cfg.Supervisor.JoinTimeout.Duration()); err != nil {
		logger.Warn("注册信号处理失败", "error", err)
	}

	client, err := ctrl.Hub().Subscribe(rtsync.SubscribeName("soak"))
	if err != nil {
		return err
	}

	var stats soakStats
	if err := ctrl.SpawnTask("soak-recv", func(context.Context) error {
		for {
			s, err := client.Recv()
			if err != nil {
				return nil
			}
			lag := time.Since(s.sent)
			stats.received++
			stats.totalLag += lag
			if lag > stats.maxLag {
				stats.maxLag = lag
			}
		}
	}); err != nil {
		return err
	}

	var seq uint64
	if err := ctrl.SpawnPeriodic("soak-pub", every, func(context.Context) error {
		seq++
		if err := ctrl.Hub().Publish(sample{seq: seq, sent: time.Now()}); !errors.Is(err, rtsync.ErrClosed) {
			return err
		}
		return nil
	}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	logger.Info("压测开始", "duration", d, "period", every)

	select {
	case <-ctx.Done():
	case <-ctrl.Done():
	}
	err = ctrl.Shutdown(cfg.Supervisor.JoinTimeout.Duration())

	printSoak(ctrl.Hub().Stats(), &stats, ctrl.Report())
	return err
}

func printSoak(hs rtsync.HubStats, s *soakStats, report rtsync.JoinReport) {
	var avg time.Duration
	if s.received > 0 {
		avg = s.totalLag / time.Duration(s.received)
	}
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Println("  压测结果")
	fmt.Println("═══════════════════════════════════════════════════════════════════")
	fmt.Printf("  发布:     %d\n", hs.Published)
	fmt.Printf("  投递:     %d\n", hs.Delivered)
	fmt.Printf("  丢弃:     %d\n", hs.Missed)
	fmt.Printf("  接收:     %d\n", s.received)
	fmt.Printf("  平均延迟: %s\n", avg)
	fmt.Printf("  最大延迟: %s\n", s.maxLag)
	fmt.Printf("  已停止:   %v\n", report.Stopped)
	if len(report.Alive) > 0 {
		fmt.Printf("  未退出:   %v\n", report.Alive)
	}
	fmt.Println("═══════════════════════════════════════════════════════════════════")
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("rtsync %s\n", rtsync.Version)
	if rtsync.GitCommit != "" {
		fmt.Printf("  commit: %s\n", rtsync.GitCommit)
	}
	if rtsync.BuildDate != "" {
		fmt.Printf("  built:  %s\n", rtsync.BuildDate)
	}
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("rtsync - 实时安全的进程内同步层")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  rtsync [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println("环境变量")
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Println("  RTSYNC_CHANNEL_CAPACITY          通道默认容量")
	fmt.Println("  RTSYNC_CHANNEL_LOCK              通道锁类型 (default/pi)")
	fmt.Println("  RTSYNC_THREAD_SCHEDULING         调度类 (other/fifo/rr/batch/idle)")
	fmt.Println("  RTSYNC_THREAD_PRIORITY           实时优先级")
	fmt.Println("  RTSYNC_THREAD_CPUS               CPU 亲和性（逗号分隔）")
	fmt.Println("  RTSYNC_THREAD_SIMULATED          模拟线程模式 (true/false)")
	fmt.Println("  RTSYNC_SUPERVISOR_JOIN_TIMEOUT   关闭时等待工作线程的时长")
	fmt.Println("  RTSYNC_LOG_LEVEL                 日志级别，例如 core/hub=debug,info")
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println("预设配置")
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Println("  realtime  - 优先级继承锁 + FIFO 调度")
	fmt.Println("  simulated - 模拟线程，用于开发机与 CI")
	fmt.Println("  minimal   - 小容量通道，关闭指标")
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println("使用示例")
	fmt.Println("═══════════════════════════════════════════════════════════════════════════")
	fmt.Println()
	fmt.Println("  # 检查本机能否运行实时预设")
	fmt.Println("  rtsync -preset realtime")
	fmt.Println()
	fmt.Println("  # 打印配置文件与环境变量合并后的结果")
	fmt.Println("  rtsync -config plc.json -print-config")
	fmt.Println()
	fmt.Println("  # 以 500µs 周期压测 30 秒，每 5 秒输出一次指标快照")
	fmt.Println("  RTSYNC_METRICS_SNAPSHOT_INTERVAL=5s rtsync -check=false -soak 30s -period 500us")
	fmt.Println()
}
