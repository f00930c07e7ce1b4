package algo

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/KNICEX/algo-trading/internal/service/event"
	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/KNICEX/algo-trading/pkg/decimalx"
	"github.com/shopspring/decimal"
)

// fakeGateway 记录所有请求，不会主动推送回报
type fakeGateway struct {
	contracts map[string]exchange.Contract
	ticks     map[string]exchange.Tick
	orders    map[exchange.OrderId]exchange.Order

	nextId     int
	subscribed []string
	sent       []exchange.Order
	cancelled  []exchange.OrderId
	sendErr    error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		contracts: make(map[string]exchange.Contract),
		ticks:     make(map[string]exchange.Tick),
		orders:    make(map[exchange.OrderId]exchange.Order),
	}
}

func (g *fakeGateway) Name() string { return "FAKE" }

func (g *fakeGateway) addContract(vtSymbol, minVolume string) {
	symbol, ex := exchange.SplitSymbol(vtSymbol)
	g.contracts[vtSymbol] = exchange.Contract{
		Symbol:    symbol,
		Exchange:  ex,
		MinVolume: decimalx.MustFromString(minVolume),
		PriceTick: decimalx.MustFromString("0.01"),
	}
}

func (g *fakeGateway) setTick(tick exchange.Tick) {
	g.ticks[tick.VtSymbol()] = tick
}

func (g *fakeGateway) GetContract(vtSymbol string) (exchange.Contract, bool) {
	c, ok := g.contracts[vtSymbol]
	return c, ok
}

func (g *fakeGateway) GetTick(vtSymbol string) (exchange.Tick, bool) {
	t, ok := g.ticks[vtSymbol]
	return t, ok
}

func (g *fakeGateway) GetOrder(id exchange.OrderId) (exchange.Order, bool) {
	o, ok := g.orders[id]
	return o, ok
}

func (g *fakeGateway) Subscribe(req exchange.SubscribeRequest) error {
	g.subscribed = append(g.subscribed, req.VtSymbol())
	return nil
}

func (g *fakeGateway) SendOrder(req exchange.OrderRequest) (exchange.OrderId, error) {
	if g.sendErr != nil {
		return "", g.sendErr
	}
	g.nextId++
	id := exchange.OrderId(strconv.Itoa(g.nextId))
	order := req.CreateOrder(id, time.Now())
	g.orders[id] = order
	g.sent = append(g.sent, order)
	return id, nil
}

func (g *fakeGateway) CancelOrder(req exchange.CancelRequest) error {
	if _, ok := g.orders[req.OrderId]; !ok {
		return errors.New("no such order")
	}
	g.cancelled = append(g.cancelled, req.OrderId)
	return nil
}

// update 修改委托状态并返回新快照
func (g *fakeGateway) update(id exchange.OrderId, status exchange.OrderStatus, traded string) exchange.Order {
	order := g.orders[id]
	order.Status = status
	order.Traded = decimalx.MustFromString(traded)
	g.orders[id] = order
	return order
}

func (g *fakeGateway) trade(id exchange.OrderId, price, volume string) exchange.Trade {
	order := g.orders[id]
	return exchange.Trade{
		TradeId:   "t" + string(id),
		OrderId:   id,
		Symbol:    order.Symbol,
		Exchange:  order.Exchange,
		Direction: order.Direction,
		Offset:    order.Offset,
		Price:     decimalx.MustFromString(price),
		Volume:    decimalx.MustFromString(volume),
		Datetime:  time.Now(),
	}
}

// recorder 收集引擎发出的事件
type recorder struct {
	events []event.Event
}

func (r *recorder) Put(ev event.Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) logs() []string {
	var msgs []string
	for _, ev := range r.events {
		if entry, ok := ev.Data.(LogEntry); ok && ev.Type == event.TypeAlgoLog {
			msgs = append(msgs, entry.Msg)
		}
	}
	return msgs
}

func (r *recorder) hasLog(substr string) bool {
	for _, msg := range r.logs() {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func (r *recorder) updates() []Snapshot {
	var snaps []Snapshot
	for _, ev := range r.events {
		if snap, ok := ev.Data.(Snapshot); ok && ev.Type == event.TypeAlgoUpdate {
			snaps = append(snaps, snap)
		}
	}
	return snaps
}

func (r *recorder) reset() {
	r.events = nil
}

func d(s string) decimal.Decimal {
	return decimalx.MustFromString(s)
}

func newTick(vtSymbol, last, bid, ask, bidVol, askVol string) exchange.Tick {
	symbol, ex := exchange.SplitSymbol(vtSymbol)
	return exchange.Tick{
		Symbol:     symbol,
		Exchange:   ex,
		Datetime:   time.Now(),
		LastPrice:  d(last),
		BidPrice1:  d(bid),
		AskPrice1:  d(ask),
		BidVolume1: d(bidVol),
		AskVolume1: d(askVol),
	}
}
