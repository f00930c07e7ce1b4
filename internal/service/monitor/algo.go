package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/KNICEX/algo-trading/internal/entity"
	"github.com/KNICEX/algo-trading/internal/repo"
	"github.com/KNICEX/algo-trading/internal/service/algo"
	"github.com/KNICEX/algo-trading/internal/service/event"
	"github.com/KNICEX/algo-trading/internal/service/notification"
	"github.com/sourcegraph/conc"
)

const defaultQueueSize = 4096

// AlgoMonitor 订阅算法更新和日志事件，在自己的 goroutine 上落库并通知，
// 不占用事件引擎的消费 goroutine
type AlgoMonitor struct {
	algoRepo  repo.AlgoRepo
	logRepo   repo.AlgoLogRepo
	notifiers []notification.Notifier

	queue chan notification.Message
}

type Option func(m *AlgoMonitor)

// WithNotifier 替换默认的控制台通知，可以传多个
func WithNotifier(notifiers ...notification.Notifier) Option {
	return func(m *AlgoMonitor) {
		m.notifiers = notifiers
	}
}

func WithQueueSize(size int) Option {
	return func(m *AlgoMonitor) {
		m.queue = make(chan notification.Message, size)
	}
}

func NewAlgoMonitor(algoRepo repo.AlgoRepo, logRepo repo.AlgoLogRepo, opts ...Option) *AlgoMonitor {
	m := &AlgoMonitor{
		algoRepo:  algoRepo,
		logRepo:   logRepo,
		notifiers: []notification.Notifier{consoleNotifier{}},
		queue:     make(chan notification.Message, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *AlgoMonitor) Name() string {
	return "algo monitor"
}

func (m *AlgoMonitor) RegisterEvent(bus Registrar) {
	bus.Register(event.TypeAlgoUpdate, m.processAlgoUpdate)
	bus.Register(event.TypeAlgoLog, m.processAlgoLog)
}

func (m *AlgoMonitor) processAlgoUpdate(ev event.Event) {
	snapshot, ok := ev.Data.(algo.Snapshot)
	if !ok {
		return
	}
	m.enqueue(notification.Message{Type: notification.MessageAlgoUpdate, Algo: &snapshot})
}

func (m *AlgoMonitor) processAlgoLog(ev event.Event) {
	entry, ok := ev.Data.(algo.LogEntry)
	if !ok {
		return
	}
	m.enqueue(notification.Message{Type: notification.MessageAlgoLog, Log: &entry})
}

// enqueue 队列满时丢弃，避免阻塞事件引擎
func (m *AlgoMonitor) enqueue(msg notification.Message) {
	select {
	case m.queue <- msg:
	default:
		slog.Warn("algo monitor queue full, message dropped", "type", msg.Type, "algo", msg.Key())
	}
}

// Run 处理队列直到 ctx 结束，结束前把已入队的消息处理完
func (m *AlgoMonitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			m.drain()
			return nil
		case msg := <-m.queue:
			m.handle(ctx, msg)
		}
	}
}

func (m *AlgoMonitor) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-m.queue:
			m.handle(ctx, msg)
		default:
			return
		}
	}
}

func (m *AlgoMonitor) handle(ctx context.Context, msg notification.Message) {
	switch {
	case msg.Algo != nil:
		s := msg.Algo
		slog.Info("algo update", "name", s.Name, "status", s.Status, "traded", s.Traded,
			"left", s.Left, "traded_price", s.TradedPrice)
		if err := m.algoRepo.Save(ctx, toRecord(*s)); err != nil {
			slog.Error("failed to save algo snapshot", "name", s.Name, "error", err)
		}
	case msg.Log != nil:
		l := msg.Log
		slog.Info("algo log", "name", l.AlgoName, "msg", l.Msg)
		_, err := m.logRepo.Create(ctx, entity.AlgoLog{AlgoName: l.AlgoName, Msg: l.Msg, Time: l.Time})
		if err != nil {
			slog.Error("failed to save algo log", "name", l.AlgoName, "error", err)
		}
	default:
		return
	}

	var wg conc.WaitGroup
	for _, n := range m.notifiers {
		n := n
		wg.Go(func() {
			if err := n.Notify(ctx, msg); err != nil {
				slog.Error("algo monitor notify err", "error", err, "type", msg.Type, "algo", msg.Key())
			}
		})
	}
	wg.Wait()
}

func toRecord(s algo.Snapshot) entity.AlgoRecord {
	params, err := json.Marshal(s.Parameters)
	if err != nil {
		slog.Warn("marshal algo parameters", "name", s.Name, "error", err)
	}
	vars, err := json.Marshal(s.Variables)
	if err != nil {
		slog.Warn("marshal algo variables", "name", s.Name, "error", err)
	}
	return entity.AlgoRecord{
		Name:        s.Name,
		Template:    s.Template,
		VtSymbol:    s.Symbol,
		Direction:   string(s.Direction),
		Offset:      string(s.Offset),
		Price:       s.Price.String(),
		Volume:      s.Volume.String(),
		Traded:      s.Traded.String(),
		TradedPrice: s.TradedPrice.String(),
		Status:      string(s.Status),
		Parameters:  string(params),
		Variables:   string(vars),
	}
}
