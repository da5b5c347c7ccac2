package cdp

import (
	"context"
	"fmt"

	"streamscope/pkg/traffic"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
)

// streams 页面上订阅的事件流
type streams struct {
	requests  network.RequestWillBeSentClient
	responses network.ResponseReceivedClient
	messages  network.EventSourceMessageReceivedClient
	failed    network.LoadingFailedClient
	finished  network.LoadingFinishedClient
	navigated page.FrameNavigatedClient
}

// subscribe 订阅所有事件流，并用 cdp.Sync 保证跨流的到达顺序
func subscribe(ctx context.Context, c *cdp.Client) (_ *streams, err error) {
	s := &streams{}
	defer func() {
		if err != nil {
			s.close()
		}
	}()
	if s.requests, err = c.Network.RequestWillBeSent(ctx); err != nil {
		return nil, fmt.Errorf("subscribe requestWillBeSent: %w", err)
	}
	if s.responses, err = c.Network.ResponseReceived(ctx); err != nil {
		return nil, fmt.Errorf("subscribe responseReceived: %w", err)
	}
	if s.messages, err = c.Network.EventSourceMessageReceived(ctx); err != nil {
		return nil, fmt.Errorf("subscribe eventSourceMessageReceived: %w", err)
	}
	if s.failed, err = c.Network.LoadingFailed(ctx); err != nil {
		return nil, fmt.Errorf("subscribe loadingFailed: %w", err)
	}
	if s.finished, err = c.Network.LoadingFinished(ctx); err != nil {
		return nil, fmt.Errorf("subscribe loadingFinished: %w", err)
	}
	if s.navigated, err = c.Page.FrameNavigated(ctx); err != nil {
		return nil, fmt.Errorf("subscribe frameNavigated: %w", err)
	}
	if err = cdp.Sync(s.requests, s.responses, s.messages, s.failed, s.finished, s.navigated); err != nil {
		return nil, fmt.Errorf("sync streams: %w", err)
	}
	return s, nil
}

func (s *streams) close() {
	if s.requests != nil {
		s.requests.Close()
	}
	if s.responses != nil {
		s.responses.Close()
	}
	if s.messages != nil {
		s.messages.Close()
	}
	if s.failed != nil {
		s.failed.Close()
	}
	if s.finished != nil {
		s.finished.Close()
	}
	if s.navigated != nil {
		s.navigated.Close()
	}
}

// consume 单协程按到达顺序读取事件并转换
func (m *Manager) consume(ctx context.Context, s *streams) error {
	for {
		var (
			ev  traffic.StreamEvent
			ok  bool
			err error
		)
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.requests.Ready():
			var r *network.RequestWillBeSentReply
			if r, err = s.requests.Recv(); err == nil {
				ev, ok = m.conv.RequestWillBeSent(r)
			}

		case <-s.responses.Ready():
			var r *network.ResponseReceivedReply
			if r, err = s.responses.Recv(); err == nil {
				ev, ok = m.conv.ResponseReceived(r)
			}

		case <-s.messages.Ready():
			var r *network.EventSourceMessageReceivedReply
			if r, err = s.messages.Recv(); err == nil {
				ev, ok = m.conv.MessageReceived(r)
			}

		case <-s.failed.Ready():
			var r *network.LoadingFailedReply
			if r, err = s.failed.Recv(); err == nil {
				ev, ok = m.conv.LoadingFailed(r)
			}

		case <-s.finished.Ready():
			var r *network.LoadingFinishedReply
			if r, err = s.finished.Recv(); err == nil {
				ev, ok = m.conv.LoadingFinished(r)
			}

		case <-s.navigated.Ready():
			var r *page.FrameNavigatedReply
			if r, err = s.navigated.Recv(); err == nil && m.conv.FrameNavigated(r) {
				m.log.Info("页面导航，重置连接", "url", r.Frame.URL)
				if err := m.send(ctx, traffic.NewNavigationEnvelope()); err != nil {
					return err
				}
			}
		}
		if err != nil {
			m.log.Err(err, "读取事件流失败")
			return err
		}
		if !ok {
			continue
		}
		m.log.Debug("推送流事件", "type", ev.Type, "connection", ev.ConnectionID)
		if err := m.send(ctx, traffic.NewStreamEnvelope(ev)); err != nil {
			return err
		}
	}
}

// send 投递信封；事件不可丢弃，通道满时阻塞直到消费或取消
func (m *Manager) send(ctx context.Context, env traffic.Envelope) error {
	select {
	case m.events <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
