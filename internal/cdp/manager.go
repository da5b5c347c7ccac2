package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	adapter "streamscope/internal/adapter/cdp"
	"streamscope/internal/logger"
	"streamscope/pkg/traffic"

	"github.com/cenkalti/backoff/v4"
	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"
)

var (
	ErrNotAttached = errors.New("cdp: not attached")
	ErrNoTarget    = errors.New("cdp: no target")
)

// Config 调试端点与重试参数
type Config struct {
	DevToolsURL string
	Target      string // 目标 ID，为空时选择第一个 page
	Retries     int    // 连接失败的重试次数
	Buffer      int    // 事件通道缓冲
	Logger      logger.Logger
}

// Manager 连接浏览器页面并把 EventSource 活动转换为推送流信封
type Manager struct {
	cfg  Config
	log  logger.Logger
	conv *adapter.Converter

	mu     sync.Mutex
	conn   *rpcc.Conn
	client *cdp.Client
	target string

	events chan traffic.Envelope
}

// New 创建管理器
func New(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	return &Manager{
		cfg:    cfg,
		log:    cfg.Logger,
		conv:   adapter.NewConverter(),
		events: make(chan traffic.Envelope, cfg.Buffer),
	}
}

// Events 信封通道，Run 返回时关闭
func (m *Manager) Events() <-chan traffic.Envelope { return m.events }

// AttachTarget 选择目标页面并建立 websocket 连接，失败按指数退避重试
func (m *Manager) AttachTarget(ctx context.Context) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	exp.MaxInterval = 5 * time.Second
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(m.cfg.Retries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := m.attach(ctx)
		if err != nil {
			m.log.Warn("连接调试端点失败", "url", m.cfg.DevToolsURL, "attempt", attempt, "error", err)
		}
		return err
	}, b)
}

func (m *Manager) attach(ctx context.Context) error {
	dt := devtool.New(m.cfg.DevToolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return err
	}
	var sel *devtool.Target
	for _, t := range targets {
		if m.cfg.Target != "" {
			if t.ID == m.cfg.Target {
				sel = t
				break
			}
			continue
		}
		if t.Type == devtool.Page {
			sel = t
			break
		}
	}
	if sel == nil {
		return ErrNoTarget
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", sel.WebSocketDebuggerURL, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.client = cdp.NewClient(conn)
	m.target = sel.ID
	m.mu.Unlock()
	m.log.Info("已连接目标页面", "target", sel.ID, "url", sel.URL)
	return nil
}

// Target 当前连接的目标 ID
func (m *Manager) Target() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

// Detach 断开连接
func (m *Manager) Detach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	m.client = nil
	return err
}

// Run 订阅事件流并持续转发，直到 ctx 取消或连接断开
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.events)

	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return ErrNotAttached
	}

	s, err := subscribe(ctx, client)
	if err != nil {
		return err
	}
	defer s.close()

	if err := client.Network.Enable(ctx, nil); err != nil {
		return fmt.Errorf("network enable: %w", err)
	}
	if err := client.Page.Enable(ctx); err != nil {
		return fmt.Errorf("page enable: %w", err)
	}
	tree, err := client.Page.GetFrameTree(ctx)
	if err != nil {
		return fmt.Errorf("get frame tree: %w", err)
	}
	m.conv.SetFrameTree(tree.FrameTree)

	m.log.Info("开始监听推送流", "target", m.Target())
	err = m.consume(ctx, s)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
