// Package journal 将已路由的推送流事件记录到 SQLite，可按采集批次重建快照。
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"streamscope/internal/logger"
	"streamscope/internal/router"
	"streamscope/internal/store"
	"streamscope/pkg/model"
	"streamscope/pkg/traffic"
)

// ErrClosed 日志已关闭
var ErrClosed = errors.New("journal closed")

// EventRecord 一条已路由事件的持久化记录
type EventRecord struct {
	ID           uint   `gorm:"primaryKey"`
	CaptureID    string `gorm:"index;size:36"`
	Type         string `gorm:"size:32"`
	ConnectionID string `gorm:"index"`
	Timestamp    int64
	URL          string
	FrameURL     string
	IsIframe     bool
	MessageID    int64
	EventName    string
	Data         string
	LastEventID  string
	CreatedAt    time.Time
}

// CaptureInfo 采集批次概要
type CaptureInfo struct {
	CaptureID string
	Events    int64
	FirstAt   time.Time
}

// Options 打开日志的选项
type Options struct {
	DSN    string
	Prefix string
	Logger logger.Logger
}

// Journal 事件日志，实现 router.Recorder
type Journal struct {
	db      *gorm.DB
	capture string
	log     logger.Logger
}

// Open 打开或创建事件日志，每次打开生成新的采集批次 ID
func Open(opts Options) (*Journal, error) {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.DSN == "" {
		opts.DSN = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(opts.DSN), &gorm.Config{
		Logger:         NewGormLogger(opts.Logger),
		NamingStrategy: schema.NamingStrategy{TablePrefix: opts.Prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", opts.DSN, err)
	}
	if isMemory(opts.DSN) {
		// 内存库每个连接各自独立，限制为单连接
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("journal pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	j := &Journal{db: db, capture: uuid.NewString(), log: opts.Logger}
	j.log.Info("事件日志已打开", "dsn", opts.DSN, "capture", j.capture)
	return j, nil
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// CaptureID 当前采集批次 ID
func (j *Journal) CaptureID() string { return j.capture }

// Record 追加一条事件到当前采集批次
func (j *Journal) Record(ctx context.Context, ev traffic.StreamEvent) error {
	if j.db == nil {
		return ErrClosed
	}
	rec := EventRecord{
		CaptureID:    j.capture,
		Type:         string(ev.Type),
		ConnectionID: string(ev.ConnectionID),
		Timestamp:    ev.Timestamp,
		URL:          ev.URL,
		FrameURL:     ev.FrameURL,
		IsIframe:     ev.IsIframe,
		MessageID:    ev.MessageID,
		EventName:    ev.EventName,
		Data:         ev.Data,
		LastEventID:  ev.LastEventID,
	}
	if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record %s event: %w", ev.Type, err)
	}
	return nil
}

// Reset 丢弃当前采集批次的全部记录
func (j *Journal) Reset(ctx context.Context) error {
	if j.db == nil {
		return ErrClosed
	}
	err := j.db.WithContext(ctx).Where("capture_id = ?", j.capture).Delete(&EventRecord{}).Error
	if err != nil {
		return fmt.Errorf("reset capture %s: %w", j.capture, err)
	}
	return nil
}

// Events 按记录顺序读取采集批次的事件，captureID 为空时读取当前批次
func (j *Journal) Events(ctx context.Context, captureID string) ([]traffic.StreamEvent, error) {
	if j.db == nil {
		return nil, ErrClosed
	}
	if captureID == "" {
		captureID = j.capture
	}
	var recs []EventRecord
	err := j.db.WithContext(ctx).Where("capture_id = ?", captureID).Order("id asc").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load capture %s: %w", captureID, err)
	}
	out := make([]traffic.StreamEvent, 0, len(recs))
	for _, r := range recs {
		out = append(out, traffic.StreamEvent{
			Type:         traffic.EventType(r.Type),
			ConnectionID: model.ConnectionID(r.ConnectionID),
			Timestamp:    r.Timestamp,
			URL:          r.URL,
			FrameURL:     r.FrameURL,
			IsIframe:     r.IsIframe,
			MessageID:    r.MessageID,
			EventName:    r.EventName,
			Data:         r.Data,
			LastEventID:  r.LastEventID,
		})
	}
	return out, nil
}

// Snapshot 重放采集批次的事件，得到初始化快照
func (j *Journal) Snapshot(ctx context.Context, captureID string) (*model.Snapshot, error) {
	events, err := j.Events(ctx, captureID)
	if err != nil {
		return nil, err
	}
	r := router.New(router.Config{Store: store.New(), Logger: j.log})
	r.Replay(ctx, events)
	return r.Store().Snapshot(), nil
}

// Captures 列出日志中的采集批次，最新的在前
func (j *Journal) Captures(ctx context.Context) ([]CaptureInfo, error) {
	if j.db == nil {
		return nil, ErrClosed
	}
	var rows []struct {
		CaptureID string
		Events    int64
		FirstID   uint
	}
	err := j.db.WithContext(ctx).Model(&EventRecord{}).
		Select("capture_id, count(*) as events, min(id) as first_id").
		Group("capture_id").
		Order("first_id desc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	out := make([]CaptureInfo, 0, len(rows))
	for _, r := range rows {
		info := CaptureInfo{CaptureID: r.CaptureID, Events: r.Events}
		var first EventRecord
		if err := j.db.WithContext(ctx).First(&first, r.FirstID).Error; err == nil {
			info.FirstAt = first.CreatedAt
		}
		out = append(out, info)
	}
	return out, nil
}

// Close 关闭底层数据库
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	j.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
