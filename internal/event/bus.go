package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"stratrunner.com/internal/logger"
)

// Event 表示系统中的一个事件
type Event struct {
	Type      string      // 事件类型
	Source    string      // 事件来源
	Data      interface{} // 事件数据
	Timestamp time.Time   // 时间戳
}

// Handler 事件处理函数
type Handler func(ctx context.Context, event Event) error

// Bus 事件总线，用于解耦系统各个组件
// Publish 从不阻塞调用方, 通道满时丢弃事件
type Bus struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
	logger   *zap.SugaredLogger

	// 异步处理的缓冲通道
	eventChan chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewBus 创建新的事件总线
func NewBus(bufferSize int, log *zap.SugaredLogger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	bus := &Bus{
		handlers:  make(map[string][]Handler),
		logger:    logger.OrNop(log),
		eventChan: make(chan Event, bufferSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	// 启动事件处理协程
	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe 订阅事件类型
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debugw("EventBus: subscribed", "event_type", eventType)
}

// Publish 发布事件（异步）
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-b.ctx.Done():
		b.logger.Warnw("EventBus: bus closed, dropping event", "event_type", event.Type)
	case b.eventChan <- event:
	default:
		b.logger.Warnw("EventBus: event channel full, dropping event", "event_type", event.Type)
	}
}

// PublishSync 同步发布事件（立即处理）
func (b *Bus) PublishSync(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	b.dispatch(ctx, event)
}

// processEvents 处理事件的后台协程, 关闭前排空已入队事件
func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventChan:
			b.dispatch(b.ctx, event)
		case <-b.ctx.Done():
			for {
				select {
				case event := <-b.eventChan:
					b.dispatch(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// dispatch 分发事件给所有订阅者, 处理器的错误和 panic 只记录日志
func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			if err := safeHandle(ctx, h, event); err != nil {
				b.logger.Warnw("EventBus: handler failed", "event_type", event.Type, "error", err)
			}
		}(handler)
	}
	wg.Wait()
}

func safeHandle(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()
	return h(ctx, event)
}

// Shutdown 关闭事件总线
func (b *Bus) Shutdown() {
	b.closeOnce.Do(func() {
		b.logger.Info("EventBus: shutting down")
		b.cancel()
		b.wg.Wait()
	})
}

// SubscriberCount 获取某个事件类型的订阅者数量
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
