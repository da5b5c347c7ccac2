package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"streamscope/internal/cdp"
	"streamscope/internal/ctxkeys"
	"streamscope/internal/journal"
	"streamscope/internal/metrics"
	"streamscope/internal/rules"
	"streamscope/pkg/api"
	"streamscope/pkg/model"
	"streamscope/pkg/traffic"
)

type watchOptions struct {
	devtools    string
	target      string
	journal     string
	urlFilter   string
	metricsAddr string
	filters     []string
}

func newWatchCmd() *cobra.Command {
	o := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "连接浏览器页面并实时输出推送流",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.devtools, "devtools", "", "DevTools HTTP 端点，覆盖配置文件")
	f.StringVar(&o.target, "target", "", "目标页面 ID，默认第一个页面")
	f.StringVar(&o.journal, "journal", "", "事件日志 SQLite 文件，默认使用配置中的 DSN")
	f.StringVar(&o.urlFilter, "url", "", "只输出 URL 包含该子串的连接")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "Prometheus 指标监听地址，例如 :9464")
	f.StringArrayVarP(&o.filters, "filter", "f", nil, "消息筛选条件，field=value 或 field~value，可重复")
	return cmd
}

func runWatch(cmd *cobra.Command, o *watchOptions) error {
	cfg, l, err := setup()
	if err != nil {
		return err
	}
	conds, err := parseFilters(o.filters)
	if err != nil {
		return err
	}
	if o.devtools != "" {
		cfg.DevTools.URL = o.devtools
	}
	if o.target != "" {
		cfg.DevTools.Target = o.target
	}
	if o.journal != "" {
		cfg.Sqlite.Dsn = o.journal
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := journal.Open(journal.Options{DSN: cfg.Sqlite.Dsn, Prefix: cfg.Sqlite.Prefix, Logger: l})
	if err != nil {
		return err
	}
	defer j.Close()
	ctx = ctxkeys.WithTraceID(ctx, j.CaptureID())
	l = l.With("capture", j.CaptureID())

	reg := prometheus.NewRegistry()
	svc := api.NewService(l, api.Options{
		Recorder:      j,
		Metrics:       metrics.New(reg),
		MaxFieldDepth: cfg.Inspector.MaxFieldDepth,
	})

	mgr := cdp.New(cdp.Config{
		DevToolsURL: cfg.DevTools.URL,
		Target:      cfg.DevTools.Target,
		Retries:     cfg.DevTools.AttachRetries,
		Logger:      l,
	})
	if err := mgr.AttachTarget(ctx); err != nil {
		return fmt.Errorf("attach %s: %w", cfg.DevTools.URL, err)
	}
	defer mgr.Detach()

	p := newPrinter(cmd.OutOrStdout(), conds, o.urlFilter)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(gctx) })
	g.Go(func() error {
		for env := range mgr.Events() {
			svc.Dispatch(gctx, env)
			p.print(env)
		}
		return nil
	})
	if o.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: o.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			l.Info("指标服务已启动", "addr", o.metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	err = g.Wait()
	l.Info("停止监听", "connections", len(svc.Snapshot().Connections), "messages", p.seen, "shown", p.shown)
	return err
}

// printer 按 URL 与字段条件输出推送流活动
type printer struct {
	out       io.Writer
	engine    *rules.Engine
	urlFilter string
	urls      map[model.ConnectionID]string

	seen  int // URL 匹配的连接收到的消息数
	shown int // 其中通过字段条件的消息数
}

func newPrinter(out io.Writer, conds []model.FilterCondition, urlFilter string) *printer {
	return &printer{
		out:       out,
		engine:    rules.New(conds),
		urlFilter: strings.ToLower(urlFilter),
		urls:      make(map[model.ConnectionID]string),
	}
}

func (p *printer) print(env traffic.Envelope) {
	switch env.Kind {
	case traffic.KindNavigation:
		p.urls = make(map[model.ConnectionID]string)
		fmt.Fprintln(p.out, "-- 页面导航，连接已清空 --")
		return
	case traffic.KindInit:
		return
	}

	ev := env.Event
	if ev.Type == traffic.EventConnection {
		p.urls[ev.ConnectionID] = ev.URL
	}
	u, ok := p.urls[ev.ConnectionID]
	if !ok || !strings.Contains(strings.ToLower(u), p.urlFilter) {
		return
	}

	ts := time.UnixMilli(ev.Timestamp).Format("15:04:05.000")
	id := shortID(ev.ConnectionID)
	switch ev.Type {
	case traffic.EventConnection:
		iframe := ""
		if ev.IsIframe {
			iframe = " (iframe " + ev.FrameURL + ")"
		}
		fmt.Fprintf(p.out, "%s [%s] connect %s%s\n", ts, id, ev.URL, iframe)
	case traffic.EventOpen:
		fmt.Fprintf(p.out, "%s [%s] open\n", ts, id)
	case traffic.EventError:
		fmt.Fprintf(p.out, "%s [%s] error\n", ts, id)
	case traffic.EventClose:
		fmt.Fprintf(p.out, "%s [%s] close\n", ts, id)
	case traffic.EventMessage:
		p.seen++
		if !p.engine.Match(ev.Data) {
			return
		}
		p.shown++
		fmt.Fprintf(p.out, "%s [%s] #%d %s: %s\n", ts, id, ev.MessageID, ev.EventName, ev.Data)
	}
}

func shortID(id model.ConnectionID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
