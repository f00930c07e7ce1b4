package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
)

type Type string

const (
	TypeTick       Type = "eTick"
	TypeTimer      Type = "eTimer"
	TypeOrder      Type = "eOrder"
	TypeTrade      Type = "eTrade"
	TypeAlgoUpdate Type = "eAlgoUpdate"
	TypeAlgoLog    Type = "eAlgoLog"

	typeCall Type = "eCall"
)

var ErrAlreadyRunning = errors.New("event engine already running")

type Event struct {
	Type Type
	Data any
}

type Handler func(ev Event)

// Putter 事件生产者只需要 Put
type Putter interface {
	Put(ev Event)
}

type Config struct {
	TimerInterval time.Duration `mapstructure:"timer_interval"`
}

// Engine 单消费者事件引擎：任意 goroutine 都可以 Put，
// 所有 handler 都在 Run 所在的同一个消费 goroutine 上按入队顺序执行。
// 队列无界，handler 内部再次 Put 不会阻塞。
type Engine struct {
	interval time.Duration

	mu     sync.Mutex
	queue  []Event
	notify chan struct{}

	handlerMu sync.RWMutex
	handlers  map[Type][]Handler
	generals  []Handler

	running atomic.Bool
}

func NewEngine(cfg Config) *Engine {
	if cfg.TimerInterval <= 0 {
		cfg.TimerInterval = time.Second
	}
	return &Engine{
		interval: cfg.TimerInterval,
		notify:   make(chan struct{}, 1),
		handlers: make(map[Type][]Handler),
	}
}

func (e *Engine) Name() string {
	return "event engine"
}

// Register 注册某类事件的处理函数
func (e *Engine) Register(typ Type, handler Handler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], handler)
}

// RegisterGeneral 注册接收所有事件的处理函数
func (e *Engine) RegisterGeneral(handler Handler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()
	e.generals = append(e.generals, handler)
}

func (e *Engine) Put(ev Event) {
	e.mu.Lock()
	e.queue = append(e.queue, ev)
	e.mu.Unlock()

	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// Call 把 fn 放到消费 goroutine 上执行，用于把外部控制指令串行化
func (e *Engine) Call(fn func()) {
	e.Put(Event{Type: typeCall, Data: fn})
}

// Run 启动定时器和消费循环，直到 ctx 结束
func (e *Engine) Run(ctx context.Context) error {
	if e.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	var wg conc.WaitGroup
	wg.Go(func() {
		e.runTimer(ctx)
	})
	wg.Go(func() {
		e.consume(ctx)
	})
	wg.Wait()
	return nil
}

// Flush 在调用方 goroutine 上处理队列中已有的全部事件，不能与 Run 并发调用
func (e *Engine) Flush() int {
	n := 0
	for {
		ev, ok := e.pop()
		if !ok {
			return n
		}
		e.process(ev)
		n++
	}
}

func (e *Engine) runTimer(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Put(Event{Type: TypeTimer})
		}
	}
}

func (e *Engine) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.notify:
		}

		for {
			if ctx.Err() != nil {
				return
			}
			ev, ok := e.pop()
			if !ok {
				break
			}
			e.process(ev)
		}
	}
}

func (e *Engine) pop() (Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return Event{}, false
	}
	ev := e.queue[0]
	e.queue[0] = Event{}
	e.queue = e.queue[1:]
	return ev, true
}

func (e *Engine) process(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panic", "type", ev.Type, "panic", r)
		}
	}()

	if ev.Type == typeCall {
		if fn, ok := ev.Data.(func()); ok {
			fn()
		}
		return
	}

	e.handlerMu.RLock()
	handlers := e.handlers[ev.Type]
	generals := e.generals
	e.handlerMu.RUnlock()

	for _, handler := range handlers {
		handler(ev)
	}
	for _, handler := range generals {
		handler(ev)
	}
}
