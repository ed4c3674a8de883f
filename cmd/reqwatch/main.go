package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cdpadapter "reqwatch/internal/adapter/cdp"
	"reqwatch/internal/config"
	"reqwatch/internal/httpapi"
	"reqwatch/internal/logger"
	"reqwatch/internal/monitor"
	"reqwatch/internal/pool"
	"reqwatch/internal/storage"
	api "reqwatch/pkg/api"

	"github.com/spf13/cobra"
)

var (
	// Version 构建时注入的版本号
	Version = "dev"

	cfgFile     string
	targetID    string
	poolSize    int
	showVersion bool

	flagTargetPaths    []string
	flagAllowedDomains []string
	flagMax            int
	flagDevToolsURL    string
	flagHTTPAddr       string
	flagDBPath         string
	flagLogLevel       string
	flagScript         bool
	flagNoAutoStart    bool
)

var rootCmd = &cobra.Command{
	Use:   "reqwatch",
	Short: "浏览器请求观测器",
	Long:  "reqwatch 通过 Chrome DevTools Protocol 观测页面的 XHR/fetch/script 请求，\n按目标路径与允许域名过滤后持久化最近的捕获记录。",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "YAML 配置文件路径")
	rootCmd.Flags().StringVar(&targetID, "target", "", "附着的目标 ID，为空时附着第一个标签页")
	rootCmd.Flags().IntVar(&poolSize, "pool-size", 4, "响应体处理并发数")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "输出版本号并退出")

	rootCmd.Flags().StringSliceVar(&flagTargetPaths, "target-paths", nil, "目标路径子串列表")
	rootCmd.Flags().StringSliceVar(&flagAllowedDomains, "allowed-domains", nil, "允许域名子串列表")
	rootCmd.Flags().IntVar(&flagMax, "max", 0, "捕获日志容量上限")
	rootCmd.Flags().StringVar(&flagDevToolsURL, "devtools-url", "", "浏览器 DevTools 地址")
	rootCmd.Flags().StringVar(&flagHTTPAddr, "listen", "", "检视接口监听地址，为空时不启动")
	rootCmd.Flags().StringVar(&flagDBPath, "db", "", "持久化数据库文件路径")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "日志级别 (debug|info|warn|error)")
	rootCmd.Flags().BoolVar(&flagScript, "script-channel", false, "观测动态脚本标签通道")
	rootCmd.Flags().BoolVar(&flagNoAutoStart, "no-autostart", false, "启动进程后不自动开启监视")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("reqwatch %s\n", Version)
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := logger.New(cfg)
	log.Info("reqwatch 启动", "version", Version, "devToolsURL", cfg.DevToolsURL)

	// 持久化失败降级为纯内存模式
	var kv storage.KV
	db, err := storage.New(storage.Options{
		FullPath: cfg.DatabasePath,
		Name:     "reqwatch.db",
		Prefix:   "rw_",
		Logger:   storage.NewGormLogger(log),
	})
	if err != nil {
		log.Err(err, "数据库初始化失败，捕获日志不持久化")
	} else {
		repo, err := storage.NewKVRepo(db)
		if err != nil {
			log.Err(err, "存储迁移失败，捕获日志不持久化")
		} else {
			kv = repo
		}
	}

	m := monitor.New(cfg, kv, log)
	mgr := cdpadapter.NewClientManager(cfg.DevToolsURL, log)
	obs := cdpadapter.NewObserver(mgr, m.Interceptor(), pool.New(poolSize, 0), targetID, log)
	m.AddSource(obs)
	svc := api.NewService(m, obs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := waitForDevTools(ctx, mgr, log); err != nil {
		return err
	}

	if cfg.AutoStart {
		if err := m.Start(ctx); err != nil {
			return err
		}
	}

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		httpSrv = &http.Server{Addr: cfg.HTTPAddr, Handler: httpapi.NewServer(svc)}
		go func() {
			log.Info("检视接口已启动", "addr", cfg.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Err(err, "检视接口异常退出")
			}
		}()
	}

	<-ctx.Done()
	log.Info("收到退出信号，正在停止")

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = httpSrv.Shutdown(shutdownCtx)
		cancel()
	}
	m.Stop()
	return nil
}

// loadConfig 装载配置：默认值 ← 配置文件 ← 命令行覆盖
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.LoadFile(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		cfg = loaded
	}

	o := &config.Overrides{}
	if cmd.Flags().Changed("target-paths") {
		o.TargetPaths = &flagTargetPaths
	}
	if cmd.Flags().Changed("allowed-domains") {
		o.AllowedDomains = &flagAllowedDomains
	}
	if cmd.Flags().Changed("max") {
		o.MaxStoredRequests = &flagMax
	}
	if cmd.Flags().Changed("devtools-url") {
		o.DevToolsURL = &flagDevToolsURL
	}
	if cmd.Flags().Changed("listen") {
		o.HTTPAddr = &flagHTTPAddr
	}
	if cmd.Flags().Changed("db") {
		o.DatabasePath = &flagDBPath
	}
	if cmd.Flags().Changed("script-channel") {
		o.EnableScriptChannel = &flagScript
	}
	if cmd.Flags().Changed("no-autostart") {
		auto := !flagNoAutoStart
		o.AutoStart = &auto
	}
	cfg = cfg.Merge(o)

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flagLogLevel
	}
	return cfg, nil
}

// waitForDevTools 等待浏览器 DevTools 可达，指数退避最多重试 5 次
func waitForDevTools(ctx context.Context, mgr *cdpadapter.ClientManager, log logger.Logger) error {
	delay := time.Second
	var lastErr error
	for i := 0; i < 5; i++ {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = mgr.TestConnection(checkCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Warn("DevTools 不可达，稍后重试", "attempt", i+1, "error", lastErr.Error())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
