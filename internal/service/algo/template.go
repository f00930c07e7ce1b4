package algo

import (
	"fmt"
	"slices"
	"strings"

	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Template 算法实例的公共部分：状态机、成交统计、活动委托集合。
// 所有方法都只能在事件引擎的消费 goroutine 上调用。
type Template struct {
	engine   *Engine
	strategy Strategy

	templateName string
	name         string
	vtSymbol     string
	direction    exchange.Direction
	offset       exchange.Offset
	price        decimal.Decimal
	volume       decimal.Decimal

	status      Status
	traded      decimal.Decimal
	tradedPrice decimal.Decimal

	activeOrders map[exchange.OrderId]exchange.Order
}

func newTemplate(
	engine *Engine,
	templateName, name, vtSymbol string,
	direction exchange.Direction,
	offset exchange.Offset,
	price, volume decimal.Decimal,
) *Template {
	return &Template{
		engine:       engine,
		templateName: templateName,
		name:         name,
		vtSymbol:     vtSymbol,
		direction:    direction,
		offset:       offset,
		price:        price,
		volume:       volume,
		status:       StatusPaused,
		traded:       decimal.Zero,
		tradedPrice:  decimal.Zero,
		activeOrders: make(map[exchange.OrderId]exchange.Order),
	}
}

func (t *Template) Name() string                  { return t.name }
func (t *Template) TemplateName() string          { return t.templateName }
func (t *Template) VtSymbol() string              { return t.vtSymbol }
func (t *Template) Direction() exchange.Direction { return t.direction }
func (t *Template) Offset() exchange.Offset       { return t.offset }
func (t *Template) Price() decimal.Decimal        { return t.price }
func (t *Template) Volume() decimal.Decimal       { return t.volume }
func (t *Template) Status() Status                { return t.status }
func (t *Template) Traded() decimal.Decimal       { return t.traded }
func (t *Template) TradedPrice() decimal.Decimal  { return t.tradedPrice }

// Left 剩余待执行数量
func (t *Template) Left() decimal.Decimal {
	return t.volume.Sub(t.traded)
}

// ActiveOrderIds 按字典序返回活动委托号
func (t *Template) ActiveOrderIds() []exchange.OrderId {
	ids := lo.Keys(t.activeOrders)
	slices.Sort(ids)
	return ids
}

func (t *Template) UpdateTick(tick exchange.Tick) {
	if t.status != StatusRunning {
		return
	}
	t.strategy.OnTick(tick)
}

// UpdateOrder 不受状态限制，终态实例仍然需要跟踪撤单结果
func (t *Template) UpdateOrder(order exchange.Order) {
	if order.IsActive() {
		t.activeOrders[order.OrderId] = order
	} else {
		delete(t.activeOrders, order.OrderId)
	}
	t.strategy.OnOrder(order)
}

// UpdateTrade 累加成交量并更新成交均价
func (t *Template) UpdateTrade(trade exchange.Trade) {
	traded := t.traded.Add(trade.Volume)
	if !traded.IsZero() {
		cost := t.tradedPrice.Mul(t.traded).Add(trade.Price.Mul(trade.Volume))
		t.tradedPrice = cost.Div(traded)
	}
	t.traded = traded
	if t.traded.GreaterThan(t.volume) {
		t.WriteLog(fmt.Sprintf("traded %s exceeds target volume %s", t.traded, t.volume))
	}
	t.strategy.OnTrade(trade)
}

func (t *Template) UpdateTimer() {
	if t.status != StatusRunning {
		return
	}
	t.strategy.OnTimer()
}

// Start 只有暂停状态可以启动，其余状态下为空操作
func (t *Template) Start() {
	if t.status != StatusPaused {
		return
	}
	t.status = StatusRunning
	t.PutEvent()
	t.WriteLog("started")
}

func (t *Template) Pause() {
	if t.status != StatusRunning {
		return
	}
	t.status = StatusPaused
	t.PutEvent()
	t.WriteLog("paused")
}

func (t *Template) Resume() {
	if t.status != StatusPaused {
		return
	}
	t.status = StatusRunning
	t.PutEvent()
	t.WriteLog("resumed")
}

// Stop 用户主动停止，撤销全部活动委托
func (t *Template) Stop() {
	if t.status.IsTerminal() {
		return
	}
	t.status = StatusStopped
	t.CancelAll()
	t.PutEvent()
	t.WriteLog("stopped")
}

// Finish 算法自身判定执行完成
func (t *Template) Finish() {
	if t.status.IsTerminal() {
		return
	}
	t.status = StatusFinished
	t.CancelAll()
	t.PutEvent()
	t.WriteLog("finished")
}

func (t *Template) Buy(price, volume decimal.Decimal, orderType exchange.OrderType, offset exchange.Offset) exchange.OrderId {
	return t.sendOrder(exchange.DirectionLong, price, volume, orderType, offset)
}

func (t *Template) Sell(price, volume decimal.Decimal, orderType exchange.OrderType, offset exchange.Offset) exchange.OrderId {
	return t.sendOrder(exchange.DirectionShort, price, volume, orderType, offset)
}

// Send 按实例方向下单
func (t *Template) Send(price, volume decimal.Decimal) exchange.OrderId {
	return t.sendOrder(t.direction, price, volume, exchange.OrderTypeLimit, t.offset)
}

func (t *Template) sendOrder(
	direction exchange.Direction,
	price, volume decimal.Decimal,
	orderType exchange.OrderType,
	offset exchange.Offset,
) exchange.OrderId {
	if t.status != StatusRunning {
		return ""
	}
	t.WriteLog(fmt.Sprintf("send %s %s %s@%s", strings.ToLower(string(direction)), t.vtSymbol, volume, price))
	return t.engine.sendOrder(t, direction, price, volume, orderType, offset)
}

func (t *Template) CancelOrder(id exchange.OrderId) {
	t.engine.cancelOrder(t, id)
}

func (t *Template) CancelAll() {
	for _, id := range t.ActiveOrderIds() {
		t.CancelOrder(id)
	}
}

func (t *Template) GetTick() (exchange.Tick, bool) {
	return t.engine.getTick(t)
}

func (t *Template) GetContract() (exchange.Contract, bool) {
	return t.engine.getContract(t)
}

func (t *Template) WriteLog(msg string) {
	t.engine.writeLog(msg, t)
}

func (t *Template) PutEvent() {
	t.engine.putAlgoEvent(t)
}

// Snapshot 当前状态的只读拷贝
func (t *Template) Snapshot() Snapshot {
	s := Snapshot{
		Name:        t.name,
		Template:    t.templateName,
		Symbol:      t.vtSymbol,
		Direction:   t.direction,
		Offset:      t.offset,
		Price:       t.price,
		Volume:      t.volume,
		Status:      t.status,
		Traded:      t.traded,
		Left:        t.Left(),
		TradedPrice: t.tradedPrice,
		Parameters:  map[string]any{},
		Variables:   map[string]any{},
	}
	if t.strategy != nil {
		s.Parameters = fieldsToMap(t.strategy.Parameters())
		s.Variables = fieldsToMap(t.strategy.Variables())
	}
	return s
}

// uniform 在 [min, max] 内均匀取值
func (t *Template) uniform(min, max decimal.Decimal) decimal.Decimal {
	return t.engine.uniform(min, max)
}
