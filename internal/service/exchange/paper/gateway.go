package paper

import (
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/KNICEX/algo-trading/internal/service/event"
	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var _ exchange.Gateway = (*Gateway)(nil)

// Gateway 本地撮合的模拟网关：委托挂在内存里，每次行情更新时扫描挂单，
// 买单在卖一不高于委托价时按委托价成交，卖单在买一不低于委托价时成交，成交量不超过对手盘数量。
// 所有事件都在持有 mu 时推送，events.Put 不能阻塞也不能回调网关。
type Gateway struct {
	events event.Putter
	now    func() time.Time

	mu            sync.Mutex
	contracts     map[string]exchange.Contract
	ticks         map[string]exchange.Tick
	orders        map[exchange.OrderId]exchange.Order
	pendingOrders map[exchange.OrderId]struct{}
	subscribed    map[string]struct{}
	nextOrderId   int64
	nextTradeId   int64
}

type Option func(g *Gateway)

// WithClock 指定委托和成交时间来源，回放时使用K线时间
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

func NewGateway(events event.Putter, opts ...Option) *Gateway {
	g := &Gateway{
		events:        events,
		now:           time.Now,
		contracts:     make(map[string]exchange.Contract),
		ticks:         make(map[string]exchange.Tick),
		orders:        make(map[exchange.OrderId]exchange.Order),
		pendingOrders: make(map[exchange.OrderId]struct{}),
		subscribed:    make(map[string]struct{}),
		nextOrderId:   1,
		nextTradeId:   1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Name() string {
	return "PAPER"
}

func (g *Gateway) AddContract(c exchange.Contract) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.contracts[c.VtSymbol()] = c
}

func (g *Gateway) GetContract(vtSymbol string) (exchange.Contract, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.contracts[vtSymbol]
	return c, ok
}

func (g *Gateway) GetTick(vtSymbol string) (exchange.Tick, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.ticks[vtSymbol]
	return t, ok
}

func (g *Gateway) GetOrder(id exchange.OrderId) (exchange.Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	return o, ok
}

func (g *Gateway) Subscribe(req exchange.SubscribeRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	vtSymbol := req.VtSymbol()
	if _, ok := g.contracts[vtSymbol]; !ok {
		return fmt.Errorf("%w: %s", exchange.ErrUnknownContract, vtSymbol)
	}
	g.subscribed[vtSymbol] = struct{}{}
	return nil
}

// SendOrder 模拟交易所立即受理，委托进入挂单列表等待下一次行情撮合
func (g *Gateway) SendOrder(req exchange.OrderRequest) (exchange.OrderId, error) {
	g.mu.Lock()
	if _, ok := g.contracts[req.VtSymbol()]; !ok {
		g.mu.Unlock()
		return "", fmt.Errorf("%w: %s", exchange.ErrUnknownContract, req.VtSymbol())
	}
	if !req.Volume.IsPositive() || !req.Direction.IsValid() ||
		(req.Type == exchange.OrderTypeLimit && !req.Price.IsPositive()) {
		g.mu.Unlock()
		return "", fmt.Errorf("%w: %s %s@%s", exchange.ErrInvalidRequest, req.Direction, req.Volume, req.Price)
	}

	id := g.generateOrderId()
	order := req.CreateOrder(id, g.now())
	order.Status = exchange.OrderStatusNotTraded
	g.orders[id] = order
	g.pendingOrders[id] = struct{}{}
	// 持锁推送，保证同一委托的回报按产生顺序入队
	g.events.Put(event.Event{Type: event.TypeOrder, Data: order})
	g.mu.Unlock()
	return id, nil
}

// CancelOrder 已结束的委托撤单直接忽略
func (g *Gateway) CancelOrder(req exchange.CancelRequest) error {
	g.mu.Lock()
	order, ok := g.orders[req.OrderId]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", exchange.ErrUnknownOrder, req.OrderId)
	}
	if !order.IsActive() {
		g.mu.Unlock()
		return nil
	}
	order.Status = exchange.OrderStatusCancelled
	order.Datetime = g.now()
	g.orders[order.OrderId] = order
	delete(g.pendingOrders, order.OrderId)
	g.events.Put(event.Event{Type: event.TypeOrder, Data: order})
	g.mu.Unlock()
	return nil
}

// UpdateTick 先撮合挂单再推送行情，与真实交易所回报先于下一笔行情的顺序一致。
// 回报在锁内推送，不会与 SendOrder/CancelOrder 的回报交错
func (g *Gateway) UpdateTick(tick exchange.Tick) {
	vtSymbol := tick.VtSymbol()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.ticks[vtSymbol] = tick
	for _, ev := range g.scanPendingOrders(tick) {
		g.events.Put(ev)
	}
	if _, ok := g.subscribed[vtSymbol]; ok {
		g.events.Put(event.Event{Type: event.TypeTick, Data: tick})
	}
}

// PendingOrders 未结束的委托，按委托号排序
func (g *Gateway) PendingOrders() []exchange.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sortedPending("")
}

func (g *Gateway) sortedPending(vtSymbol string) []exchange.Order {
	orders := lo.FilterMap(lo.Keys(g.pendingOrders), func(id exchange.OrderId, _ int) (exchange.Order, bool) {
		order := g.orders[id]
		return order, vtSymbol == "" || order.VtSymbol() == vtSymbol
	})
	slices.SortFunc(orders, func(a, b exchange.Order) int {
		ai, _ := strconv.ParseInt(a.OrderId.ToString(), 10, 64)
		bi, _ := strconv.ParseInt(b.OrderId.ToString(), 10, 64)
		return int(ai - bi)
	})
	return orders
}

// scanPendingOrders 调用方持有锁，按委托号先后消耗对手盘数量
func (g *Gateway) scanPendingOrders(tick exchange.Tick) []event.Event {
	var evs []event.Event
	// 行情没有盘口数量时不限制成交量
	askLimited, bidLimited := tick.AskVolume1.IsPositive(), tick.BidVolume1.IsPositive()
	askLeft, bidLeft := tick.AskVolume1, tick.BidVolume1

	for _, order := range g.sortedPending(tick.VtSymbol()) {
		var available *decimal.Decimal
		var limited bool
		var fillPrice decimal.Decimal

		switch order.Direction {
		case exchange.DirectionLong:
			if !tick.AskPrice1.IsPositive() || !g.crossed(order, tick.AskPrice1) {
				continue
			}
			available, limited, fillPrice = &askLeft, askLimited, tick.AskPrice1
		case exchange.DirectionShort:
			if !tick.BidPrice1.IsPositive() || !g.crossed(order, tick.BidPrice1) {
				continue
			}
			available, limited, fillPrice = &bidLeft, bidLimited, tick.BidPrice1
		default:
			continue
		}
		if order.Type == exchange.OrderTypeLimit {
			fillPrice = order.Price
		}

		volume := order.Volume.Sub(order.Traded)
		if limited {
			volume = decimal.Min(volume, *available)
		}
		if !volume.IsPositive() {
			continue
		}
		*available = available.Sub(volume)

		evs = append(evs, g.fillOrder(order, fillPrice, volume)...)
	}
	return evs
}

// crossed 市价单总是可以成交
func (g *Gateway) crossed(order exchange.Order, touch decimal.Decimal) bool {
	if order.Type == exchange.OrderTypeMarket {
		return true
	}
	if order.Direction == exchange.DirectionLong {
		return touch.LessThanOrEqual(order.Price)
	}
	return touch.GreaterThanOrEqual(order.Price)
}

func (g *Gateway) fillOrder(order exchange.Order, price, volume decimal.Decimal) []event.Event {
	now := g.now()
	order.Traded = order.Traded.Add(volume)
	order.Datetime = now
	if order.Traded.GreaterThanOrEqual(order.Volume) {
		order.Status = exchange.OrderStatusAllTraded
		delete(g.pendingOrders, order.OrderId)
	} else {
		order.Status = exchange.OrderStatusPartTraded
	}
	g.orders[order.OrderId] = order

	trade := exchange.Trade{
		TradeId:   strconv.FormatInt(g.nextTradeId, 10),
		OrderId:   order.OrderId,
		Symbol:    order.Symbol,
		Exchange:  order.Exchange,
		Direction: order.Direction,
		Offset:    order.Offset,
		Price:     price,
		Volume:    volume,
		Datetime:  now,
	}
	g.nextTradeId++

	return []event.Event{
		{Type: event.TypeOrder, Data: order},
		{Type: event.TypeTrade, Data: trade},
	}
}

func (g *Gateway) generateOrderId() exchange.OrderId {
	id := g.nextOrderId
	g.nextOrderId++
	return exchange.OrderId(strconv.FormatInt(id, 10))
}
