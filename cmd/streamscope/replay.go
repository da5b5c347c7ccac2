package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"streamscope/internal/journal"
	"streamscope/internal/logger"
	"streamscope/pkg/api"
	"streamscope/pkg/model"
	"streamscope/pkg/traffic"
)

type replayOptions struct {
	journal    string
	capture    string
	connection string
	urlFilter  string
	filters    []string
	export     bool
	captures   bool
}

func newReplayCmd() *cobra.Command {
	o := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "回放已记录的采集并按条件输出",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup()
			if err != nil {
				return err
			}
			conds, err := parseFilters(o.filters)
			if err != nil {
				return err
			}
			if o.journal == "" {
				o.journal = cfg.Sqlite.Dsn
			}
			j, err := journal.Open(journal.Options{DSN: o.journal, Prefix: cfg.Sqlite.Prefix, Logger: l})
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := cmd.Context()
			if o.captures {
				return printCaptures(ctx, cmd.OutOrStdout(), j)
			}
			svc, err := loadCapture(ctx, j, o.capture, l, cfg.Inspector.MaxFieldDepth)
			if err != nil {
				return err
			}
			return runReplay(cmd.OutOrStdout(), svc, o, conds)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.journal, "journal", "", "事件日志 SQLite 文件")
	f.StringVar(&o.capture, "capture", "", "采集批次 ID，默认最新一次")
	f.StringVar(&o.connection, "connection", "", "输出该连接的消息")
	f.StringVar(&o.urlFilter, "url", "", "连接 URL 过滤词")
	f.StringArrayVarP(&o.filters, "filter", "f", nil, "消息筛选条件，field=value 或 field~value，可重复")
	f.BoolVar(&o.export, "export", false, "以 JSON 导出 --connection 指定的连接")
	f.BoolVar(&o.captures, "captures", false, "列出日志中的采集批次")
	return cmd
}

func newFieldsCmd() *cobra.Command {
	var journalDSN, capture, connection string
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "列出已记录连接的可筛选字段",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup()
			if err != nil {
				return err
			}
			if journalDSN == "" {
				journalDSN = cfg.Sqlite.Dsn
			}
			j, err := journal.Open(journal.Options{DSN: journalDSN, Prefix: cfg.Sqlite.Prefix, Logger: l})
			if err != nil {
				return err
			}
			defer j.Close()
			svc, err := loadCapture(cmd.Context(), j, capture, l, cfg.Inspector.MaxFieldDepth)
			if err != nil {
				return err
			}
			if !svc.SelectConnection(model.ConnectionID(connection)) {
				return fmt.Errorf("connection %q not found", connection)
			}
			for _, f := range svc.AvailableFields() {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&journalDSN, "journal", "", "事件日志 SQLite 文件")
	f.StringVar(&capture, "capture", "", "采集批次 ID，默认最新一次")
	f.StringVar(&connection, "connection", "", "连接 ID")
	_ = cmd.MarkFlagRequired("connection")
	return cmd
}

// loadCapture 读取采集批次的快照并以初始化消息装入新会话
func loadCapture(ctx context.Context, j *journal.Journal, capture string, l logger.Logger, depth int) (api.Service, error) {
	if capture == "" {
		caps, err := j.Captures(ctx)
		if err != nil {
			return nil, err
		}
		if len(caps) == 0 {
			return nil, errors.New("journal has no captures")
		}
		capture = caps[0].CaptureID
	}
	snap, err := j.Snapshot(ctx, capture)
	if err != nil {
		return nil, err
	}
	svc := api.NewService(l, api.Options{MaxFieldDepth: depth})
	svc.Dispatch(ctx, traffic.NewInitEnvelope(snap))
	l.Debug("已载入采集", "capture", capture, "connections", len(snap.Connections))
	return svc, nil
}

func runReplay(out io.Writer, svc api.Service, o *replayOptions, conds []model.FilterCondition) error {
	if o.connection == "" {
		for _, c := range svc.Connections(o.urlFilter) {
			iframe := ""
			if c.IsIframe {
				iframe = " iframe"
			}
			fmt.Fprintf(out, "%s  %-10s %4d  %s%s\n", c.ID, c.Status, c.MessageCount, c.URL, iframe)
		}
		return nil
	}

	id := model.ConnectionID(o.connection)
	if o.export {
		doc, err := svc.ExportConnection(id)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, doc)
		return nil
	}
	if !svc.SelectConnection(id) {
		return fmt.Errorf("connection %q not found", o.connection)
	}
	for _, c := range conds {
		svc.AppendFilter(c)
	}
	svc.ApplyFilters()
	for _, m := range svc.Messages() {
		ts := time.UnixMilli(m.Timestamp).Format("15:04:05.000")
		fmt.Fprintf(out, "%s #%d %s: %s\n", ts, m.ID, m.EventType, m.Data)
	}
	if stats := svc.FilterStats(); stats != "" {
		fmt.Fprintln(out, stats)
	}
	return nil
}

func printCaptures(ctx context.Context, out io.Writer, j *journal.Journal) error {
	caps, err := j.Captures(ctx)
	if err != nil {
		return err
	}
	for _, c := range caps {
		fmt.Fprintf(out, "%s  %5d  %s\n", c.CaptureID, c.Events, c.FirstAt.Format(time.DateTime))
	}
	return nil
}
