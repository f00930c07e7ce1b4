package algo

import (
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/KNICEX/algo-trading/internal/service/event"
	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/KNICEX/algo-trading/pkg/decimalx"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type Option func(e *Engine)

// WithRand 指定随机源，BestLimit 用它生成每笔委托数量
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = rng
	}
}

// WithClock 指定日志时间来源
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithFactories 追加自定义算法模板，同名覆盖内置模板
func WithFactories(factories ...Factory) Option {
	return func(e *Engine) {
		for _, f := range factories {
			e.AddTemplate(f)
		}
	}
}

// Engine 算法执行引擎：管理模板注册、实例生命周期，并把行情/委托/成交/定时事件路由到实例。
// Engine 不是并发安全的，所有方法都应在事件引擎的消费 goroutine 上调用，
// 外部控制指令通过 event.Engine.Call 串行化。
type Engine struct {
	gateway exchange.Gateway
	events  event.Putter
	rng     *rand.Rand
	now     func() time.Time

	factories map[string]Factory
	counts    map[string]int

	algos       map[string]*Template
	symbolAlgos map[string]map[*Template]struct{}
	orders      *orderIndex
}

func NewEngine(gateway exchange.Gateway, events event.Putter, opts ...Option) *Engine {
	e := &Engine{
		gateway:     gateway,
		events:      events,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
		factories:   make(map[string]Factory),
		counts:      make(map[string]int),
		algos:       make(map[string]*Template),
		symbolAlgos: make(map[string]map[*Template]struct{}),
		orders:      newOrderIndex(),
	}
	for _, f := range builtinFactories() {
		e.AddTemplate(f)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string {
	return "algo engine"
}

// Init 写入启动日志
func (e *Engine) Init() {
	e.writeLog("algo engine started", nil)
}

// Registrar 事件注册接口，event.Engine 实现了它
type Registrar interface {
	Register(typ event.Type, handler event.Handler)
}

func (e *Engine) RegisterEvent(bus Registrar) {
	bus.Register(event.TypeTick, e.processTickEvent)
	bus.Register(event.TypeTimer, e.processTimerEvent)
	bus.Register(event.TypeOrder, e.processOrderEvent)
	bus.Register(event.TypeTrade, e.processTradeEvent)
}

func (e *Engine) AddTemplate(f Factory) {
	e.factories[f.Name] = f
}

// ListTemplates 返回全部模板的元数据，按名称排序
func (e *Engine) ListTemplates() []TemplateInfo {
	names := lo.Keys(e.factories)
	slices.Sort(names)
	return lo.Map(names, func(name string, _ int) TemplateInfo {
		return e.factories[name].info()
	})
}

// Algo 查找仍在管理中的实例。运行后进入终态的实例在推送时移除，
// 参数校验失败的实例保持注册但不再响应任何事件
func (e *Engine) Algo(name string) (*Template, bool) {
	algo, ok := e.algos[name]
	return algo, ok
}

// Algos 当前管理中的实例，按名称排序
func (e *Engine) Algos() []*Template {
	algos := lo.Values(e.algos)
	slices.SortFunc(algos, func(a, b *Template) int {
		return strings.Compare(a.name, b.name)
	})
	return algos
}

// StartAlgo 创建并启动算法实例，返回实例名。
// 参数校验失败时实例仍会创建，但直接进入 Finished，返回的 error 包装 ErrInvalidParameters。
func (e *Engine) StartAlgo(
	templateName, vtSymbol string,
	direction exchange.Direction,
	offset exchange.Offset,
	price, volume decimal.Decimal,
	setting Setting,
) (string, error) {
	if _, ok := e.gateway.GetContract(vtSymbol); !ok {
		e.writeLog(fmt.Sprintf("start algo failed, contract not found: %s", vtSymbol), nil)
		return "", fmt.Errorf("%w: %s", ErrUnknownContract, vtSymbol)
	}

	factory, ok := e.factories[templateName]
	if !ok {
		e.writeLog(fmt.Sprintf("start algo failed, template not found: %s", templateName), nil)
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, templateName)
	}

	e.counts[templateName]++
	name := fmt.Sprintf("%s_%d", templateName, e.counts[templateName])

	t := newTemplate(e, templateName, name, vtSymbol, direction, offset, price, volume)
	t.strategy = factory.New(t, setting)
	t.PutEvent()

	var invalid error
	if !direction.IsValid() {
		invalid = fmt.Errorf("unknown direction %q", direction)
	} else if !volume.IsPositive() {
		invalid = fmt.Errorf("volume must be positive, got %s", volume)
	} else if v, ok := t.strategy.(Validator); ok {
		invalid = v.Validate()
	}
	if invalid != nil {
		t.WriteLog(fmt.Sprintf("invalid parameters: %v", invalid))
		t.Finish()
	}

	algos, ok := e.symbolAlgos[vtSymbol]
	if !ok {
		algos = make(map[*Template]struct{})
		e.symbolAlgos[vtSymbol] = algos
	}
	if len(algos) == 0 {
		e.subscribe(vtSymbol)
	}
	algos[t] = struct{}{}
	e.algos[name] = t

	t.Start()

	if invalid != nil {
		return name, fmt.Errorf("%w: %v", ErrInvalidParameters, invalid)
	}
	return name, nil
}

func (e *Engine) PauseAlgo(name string) {
	if algo, ok := e.algos[name]; ok {
		algo.Pause()
	}
}

func (e *Engine) ResumeAlgo(name string) {
	if algo, ok := e.algos[name]; ok {
		algo.Resume()
	}
}

func (e *Engine) StopAlgo(name string) {
	if algo, ok := e.algos[name]; ok {
		algo.Stop()
	}
}

func (e *Engine) StopAll() {
	for _, algo := range e.Algos() {
		algo.Stop()
	}
}

// Close 停止所有实例，撤单指令已发出但不等待回报
func (e *Engine) Close() {
	e.StopAll()
}

func (e *Engine) processTickEvent(ev event.Event) {
	if tick, ok := ev.Data.(exchange.Tick); ok {
		e.ProcessTick(tick)
	}
}

func (e *Engine) processTimerEvent(event.Event) {
	e.ProcessTimer()
}

func (e *Engine) processOrderEvent(ev event.Event) {
	if order, ok := ev.Data.(exchange.Order); ok {
		e.ProcessOrder(order)
	}
}

func (e *Engine) processTradeEvent(ev event.Event) {
	if trade, ok := ev.Data.(exchange.Trade); ok {
		e.ProcessTrade(trade)
	}
}

func (e *Engine) ProcessTick(tick exchange.Tick) {
	algos := lo.Keys(e.symbolAlgos[tick.VtSymbol()])
	for _, algo := range algos {
		algo.UpdateTick(tick)
	}
}

func (e *Engine) ProcessTimer() {
	for _, algo := range e.Algos() {
		algo.UpdateTimer()
	}
}

func (e *Engine) ProcessOrder(order exchange.Order) {
	algo, ok := e.orders.owner(order.OrderId)
	if !ok || e.orders.stale(order) {
		return
	}
	algo.UpdateOrder(order)
	e.orders.onOrder(order)
}

func (e *Engine) ProcessTrade(trade exchange.Trade) {
	algo, ok := e.orders.owner(trade.OrderId)
	if !ok {
		return
	}
	algo.UpdateTrade(trade)
	e.orders.onTrade(trade)
}

func (e *Engine) subscribe(vtSymbol string) {
	symbol, ex := exchange.SplitSymbol(vtSymbol)
	if err := e.gateway.Subscribe(exchange.SubscribeRequest{Symbol: symbol, Exchange: ex}); err != nil {
		slog.Error("subscribe failed", "symbol", vtSymbol, "error", err)
		e.writeLog(fmt.Sprintf("subscribe %s failed: %v", vtSymbol, err), nil)
	}
}

func (e *Engine) sendOrder(
	algo *Template,
	direction exchange.Direction,
	price, volume decimal.Decimal,
	orderType exchange.OrderType,
	offset exchange.Offset,
) exchange.OrderId {
	contract, ok := e.gateway.GetContract(algo.vtSymbol)
	if !ok {
		e.writeLog(fmt.Sprintf("send order failed, %v: %s", ErrUnknownContract, algo.vtSymbol), algo)
		return ""
	}

	volume = decimalx.RoundTo(volume, contract.MinVolume)
	// 向上取整后不能超过剩余数量
	if left := algo.Left(); volume.GreaterThan(left) {
		volume = decimalx.FloorTo(left, contract.MinVolume)
	}
	if !volume.IsPositive() {
		e.writeLog(fmt.Sprintf("send order failed, %v (min volume %s)", ErrZeroRoundedVolume, contract.MinVolume), algo)
		return ""
	}

	req := exchange.OrderRequest{
		Symbol:    contract.Symbol,
		Exchange:  contract.Exchange,
		Direction: direction,
		Type:      orderType,
		Price:     price,
		Volume:    volume,
		Offset:    offset,
		Reference: fmt.Sprintf("%s_%s", AppName, algo.name),
	}
	id, err := e.gateway.SendOrder(req)
	if err != nil {
		e.writeLog(fmt.Sprintf("send order failed: %v", err), algo)
		return ""
	}

	e.orders.add(id, algo)
	// 回报到达前就计入活动委托，保证随后的撤单能覆盖到它
	algo.activeOrders[id] = req.CreateOrder(id, e.now())
	return id
}

func (e *Engine) cancelOrder(algo *Template, id exchange.OrderId) {
	order, ok := e.gateway.GetOrder(id)
	if !ok {
		e.writeLog(fmt.Sprintf("cancel order failed, %v: %s", ErrUnknownOrder, id), algo)
		return
	}
	if err := e.gateway.CancelOrder(order.CreateCancelRequest()); err != nil {
		e.writeLog(fmt.Sprintf("cancel order %s failed: %v", id, err), algo)
	}
}

func (e *Engine) getTick(algo *Template) (exchange.Tick, bool) {
	tick, ok := e.gateway.GetTick(algo.vtSymbol)
	if !ok {
		e.writeLog(fmt.Sprintf("tick not found: %s", algo.vtSymbol), algo)
	}
	return tick, ok
}

func (e *Engine) getContract(algo *Template) (exchange.Contract, bool) {
	contract, ok := e.gateway.GetContract(algo.vtSymbol)
	if !ok {
		e.writeLog(fmt.Sprintf("contract not found: %s", algo.vtSymbol), algo)
	}
	return contract, ok
}

func (e *Engine) writeLog(msg string, algo *Template) {
	entry := LogEntry{Time: e.now(), Msg: msg}
	if algo != nil {
		entry.AlgoName = algo.name
		entry.Msg = fmt.Sprintf("%s: %s", algo.name, msg)
	}
	e.events.Put(event.Event{Type: event.TypeAlgoLog, Data: entry})
}

// putAlgoEvent 推送实例快照，终态实例同时从管理集合中移除
func (e *Engine) putAlgoEvent(algo *Template) {
	if algo.status.IsTerminal() {
		e.evict(algo)
	}
	e.events.Put(event.Event{Type: event.TypeAlgoUpdate, Data: algo.Snapshot()})
}

// evict 只移除路由，不退订行情
func (e *Engine) evict(algo *Template) {
	if cur, ok := e.algos[algo.name]; ok && cur == algo {
		delete(e.algos, algo.name)
	}
	for _, algos := range e.symbolAlgos {
		delete(algos, algo)
	}
}

func (e *Engine) uniform(min, max decimal.Decimal) decimal.Decimal {
	f := decimal.NewFromFloat(e.rng.Float64())
	return min.Add(max.Sub(min).Mul(f))
}
