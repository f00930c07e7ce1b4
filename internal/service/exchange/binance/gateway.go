package binance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KNICEX/algo-trading/internal/service/event"
	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/KNICEX/algo-trading/pkg/decimalx"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
)

var _ exchange.Gateway = (*Gateway)(nil)

const keepaliveInterval = 30 * time.Minute

// Gateway 币安 U 本位合约网关。
// 下单撤单在后台 goroutine 里调用 REST 接口，委托和成交状态由用户数据流推送。
type Gateway struct {
	cli    *futures.Client
	events event.Putter

	mu         sync.RWMutex
	contracts  map[string]exchange.Contract
	ticks      map[string]exchange.Tick
	orders     map[exchange.OrderId]exchange.Order
	subscribed map[string]chan struct{}

	ctx       context.Context
	listenKey string
	userStop  chan struct{}
	wg        conc.WaitGroup
}

func NewGateway(cli *futures.Client, events event.Putter) *Gateway {
	return &Gateway{
		cli:        cli,
		events:     events,
		contracts:  make(map[string]exchange.Contract),
		ticks:      make(map[string]exchange.Tick),
		orders:     make(map[exchange.OrderId]exchange.Order),
		subscribed: make(map[string]chan struct{}),
		ctx:        context.Background(),
	}
}

func (g *Gateway) Name() string {
	return ExchangeName
}

// Connect 加载合约信息并启动用户数据流，必须在启动算法前调用
func (g *Gateway) Connect(ctx context.Context) error {
	g.ctx = ctx
	if err := g.loadContracts(ctx); err != nil {
		return fmt.Errorf("load contracts: %w", err)
	}

	listenKey, err := g.cli.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return fmt.Errorf("start user stream: %w", err)
	}
	_, stopC, err := futures.WsUserDataServe(listenKey, g.onUserData, g.onWsError)
	if err != nil {
		return fmt.Errorf("serve user stream: %w", err)
	}

	g.mu.Lock()
	g.listenKey = listenKey
	g.userStop = stopC
	g.mu.Unlock()

	slog.Info("binance gateway connected", "contracts", len(g.contracts))
	return nil
}

func (g *Gateway) loadContracts(ctx context.Context) error {
	info, err := g.cli.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range info.Symbols {
		contract := fromFuturesSymbol(s)
		g.contracts[contract.VtSymbol()] = contract
	}
	return nil
}

// Run 定时续期 listenKey，ctx 结束时关闭所有数据流
func (g *Gateway) Run(ctx context.Context) error {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.Close()
			return nil
		case <-ticker.C:
			g.mu.RLock()
			listenKey := g.listenKey
			g.mu.RUnlock()
			if listenKey == "" {
				continue
			}
			if err := g.cli.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
				slog.Error("keepalive user stream failed", "error", err)
			}
		}
	}
}

// Close 停止行情与用户数据流，等待在途的下单撤单请求返回
func (g *Gateway) Close() {
	g.mu.Lock()
	for vtSymbol, stopC := range g.subscribed {
		close(stopC)
		delete(g.subscribed, vtSymbol)
	}
	if g.userStop != nil {
		close(g.userStop)
		g.userStop = nil
	}
	g.mu.Unlock()

	g.wg.Wait()
}

func (g *Gateway) GetContract(vtSymbol string) (exchange.Contract, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.contracts[vtSymbol]
	return c, ok
}

func (g *Gateway) GetTick(vtSymbol string) (exchange.Tick, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.ticks[vtSymbol]
	return t, ok
}

func (g *Gateway) GetOrder(id exchange.OrderId) (exchange.Order, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.orders[id]
	return o, ok
}

// Subscribe 订阅最优挂单和归集成交，重复订阅直接返回
func (g *Gateway) Subscribe(req exchange.SubscribeRequest) error {
	vtSymbol := req.VtSymbol()
	if _, ok := g.GetContract(vtSymbol); !ok {
		return fmt.Errorf("%w: %s", exchange.ErrUnknownContract, vtSymbol)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.subscribed[vtSymbol]; ok {
		return nil
	}

	_, bookStop, err := futures.WsBookTickerServe(req.Symbol, g.onBookTicker, g.onWsError)
	if err != nil {
		return fmt.Errorf("subscribe book ticker %s: %w", req.Symbol, err)
	}
	_, tradeStop, err := futures.WsAggTradeServe(req.Symbol, g.onAggTrade, g.onWsError)
	if err != nil {
		close(bookStop)
		return fmt.Errorf("subscribe agg trade %s: %w", req.Symbol, err)
	}

	stopC := make(chan struct{})
	go func() {
		<-stopC
		close(bookStop)
		close(tradeStop)
	}()
	g.subscribed[vtSymbol] = stopC
	return nil
}

// SendOrder 生成客户端委托号并立即返回，REST 请求在后台执行
func (g *Gateway) SendOrder(req exchange.OrderRequest) (exchange.OrderId, error) {
	contract, ok := g.GetContract(req.VtSymbol())
	if !ok {
		return "", fmt.Errorf("%w: %s", exchange.ErrUnknownContract, req.VtSymbol())
	}
	// 数量按步长向下取整，价格按最小变动价位取整，否则会被交易所过滤器拒绝
	req.Volume = decimalx.FloorTo(req.Volume, contract.MinVolume)
	req.Price = decimalx.RoundTo(req.Price, contract.PriceTick)
	if !req.Volume.IsPositive() || !req.Direction.IsValid() {
		return "", fmt.Errorf("%w: direction %s volume %s", exchange.ErrInvalidRequest, req.Direction, req.Volume)
	}

	id := exchange.OrderId(uuid.NewString())
	order := req.CreateOrder(id, time.Now())
	g.putOrder(order)

	g.wg.Go(func() {
		svc := g.cli.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(futuresSide(req.Direction)).
			PositionSide(futuresPositionSide(req.Direction, req.Offset)).
			Type(futuresOrderType(req.Type)).
			Quantity(req.Volume.String()).
			NewClientOrderID(id.ToString())
		if req.Type == exchange.OrderTypeLimit {
			svc = svc.Price(req.Price.String()).TimeInForce(futures.TimeInForceTypeGTC)
		}
		if _, err := svc.Do(g.ctx); err != nil {
			slog.Error("send order failed", "orderId", id, "symbol", req.Symbol, "error", err)
			g.reject(id)
		}
	})
	return id, nil
}

func (g *Gateway) CancelOrder(req exchange.CancelRequest) error {
	order, ok := g.GetOrder(req.OrderId)
	if !ok {
		return fmt.Errorf("%w: %s", exchange.ErrUnknownOrder, req.OrderId)
	}
	if !order.IsActive() {
		return nil
	}

	g.wg.Go(func() {
		_, err := g.cli.NewCancelOrderService().
			Symbol(req.Symbol).
			OrigClientOrderID(req.OrderId.ToString()).
			Do(g.ctx)
		if err != nil {
			slog.Warn("cancel order failed", "orderId", req.OrderId, "error", err)
		}
	})
	return nil
}

// reject 请求被交易所拒绝时把委托标记为拒单
func (g *Gateway) reject(id exchange.OrderId) {
	g.mu.Lock()
	order, ok := g.orders[id]
	if !ok || !order.IsActive() {
		g.mu.Unlock()
		return
	}
	order.Status = exchange.OrderStatusRejected
	order.Datetime = time.Now()
	g.orders[id] = order
	g.events.Put(event.Event{Type: event.TypeOrder, Data: order})
	g.mu.Unlock()
}

// putOrder 持锁推送，同一委托的回报按缓存更新的顺序入队
func (g *Gateway) putOrder(order exchange.Order) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[order.OrderId] = order
	g.events.Put(event.Event{Type: event.TypeOrder, Data: order})
}

func (g *Gateway) onUserData(ev *futures.WsUserDataEvent) {
	if ev.Event != futures.UserDataEventTypeOrderTradeUpdate {
		return
	}
	g.onOrderTradeUpdate(ev.OrderTradeUpdate, time.UnixMilli(ev.Time))
}

// onOrderTradeUpdate 只处理本网关发出的委托，其它客户端的委托直接忽略
func (g *Gateway) onOrderTradeUpdate(u futures.WsOrderTradeUpdate, now time.Time) {
	id := exchange.OrderId(u.ClientOrderID)

	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.orders[id]
	if !ok {
		return
	}
	order.Status = fromFuturesOrderStatus(u.Status)
	order.Traded = parseDecimal(u.AccumulatedFilledQty)
	order.Datetime = now
	g.orders[id] = order
	g.events.Put(event.Event{Type: event.TypeOrder, Data: order})

	volume := parseDecimal(u.LastFilledQty)
	if u.ExecutionType != futures.OrderExecutionTypeTrade || !volume.IsPositive() {
		return
	}
	g.events.Put(event.Event{Type: event.TypeTrade, Data: exchange.Trade{
		TradeId:   fmt.Sprintf("%d", u.TradeID),
		OrderId:   id,
		Symbol:    order.Symbol,
		Exchange:  order.Exchange,
		Direction: fromFuturesSide(u.Side),
		Offset:    order.Offset,
		Price:     parseDecimal(u.LastFilledPrice),
		Volume:    volume,
		Datetime:  now,
	}})
}

func (g *Gateway) onBookTicker(ev *futures.WsBookTickerEvent) {
	g.updateTick(ev.Symbol, func(t *exchange.Tick) {
		t.BidPrice1 = parseDecimal(ev.BestBidPrice)
		t.BidVolume1 = parseDecimal(ev.BestBidQty)
		t.AskPrice1 = parseDecimal(ev.BestAskPrice)
		t.AskVolume1 = parseDecimal(ev.BestAskQty)
	})
}

func (g *Gateway) onAggTrade(ev *futures.WsAggTradeEvent) {
	g.updateTick(ev.Symbol, func(t *exchange.Tick) {
		t.LastPrice = parseDecimal(ev.Price)
	})
}

// updateTick 合并两路行情后推送，盘口或最新价尚未到齐时不推送
func (g *Gateway) updateTick(symbol string, apply func(t *exchange.Tick)) {
	vtSymbol := exchange.VtSymbol(symbol, ExchangeName)

	g.mu.Lock()
	tick, ok := g.ticks[vtSymbol]
	if !ok {
		tick = exchange.Tick{
			Symbol:     symbol,
			Exchange:   ExchangeName,
			LastPrice:  decimal.Zero,
			BidPrice1:  decimal.Zero,
			AskPrice1:  decimal.Zero,
			BidVolume1: decimal.Zero,
			AskVolume1: decimal.Zero,
			LimitUp:    decimal.Zero,
			LimitDown:  decimal.Zero,
		}
	}
	apply(&tick)
	tick.Datetime = time.Now()
	g.ticks[vtSymbol] = tick
	g.mu.Unlock()

	if tick.LastPrice.IsZero() || tick.BidPrice1.IsZero() {
		return
	}
	g.events.Put(event.Event{Type: event.TypeTick, Data: tick})
}

func (g *Gateway) onWsError(err error) {
	slog.Error("binance websocket error", "error", err)
}
