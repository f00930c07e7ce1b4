package algo

import (
	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/shopspring/decimal"
)

type orderRoute struct {
	algo   *Template
	filled decimal.Decimal // 已路由的成交量
	final  decimal.Decimal // 委托进入非活动状态时的成交量
	closed bool
}

// orderIndex 委托号到算法实例的映射。
// 委托结束且其成交已全部路由之后才删除，迟到的成交回报仍能找到所属实例。
type orderIndex struct {
	routes map[exchange.OrderId]*orderRoute
}

func newOrderIndex() *orderIndex {
	return &orderIndex{routes: make(map[exchange.OrderId]*orderRoute)}
}

func (idx *orderIndex) add(id exchange.OrderId, algo *Template) {
	idx.routes[id] = &orderRoute{
		algo:   algo,
		filled: decimal.Zero,
		final:  decimal.Zero,
	}
}

func (idx *orderIndex) owner(id exchange.OrderId) (*Template, bool) {
	r, ok := idx.routes[id]
	if !ok {
		return nil, false
	}
	return r.algo, true
}

// stale 委托已经收到过非活动回报，之后乱序到达的活动回报应当丢弃
func (idx *orderIndex) stale(order exchange.Order) bool {
	r, ok := idx.routes[order.OrderId]
	return ok && r.closed && order.IsActive()
}

func (idx *orderIndex) onOrder(order exchange.Order) {
	r, ok := idx.routes[order.OrderId]
	if !ok || order.IsActive() {
		return
	}
	r.closed = true
	r.final = order.Traded
	idx.release(order.OrderId, r)
}

func (idx *orderIndex) onTrade(trade exchange.Trade) {
	r, ok := idx.routes[trade.OrderId]
	if !ok {
		return
	}
	r.filled = r.filled.Add(trade.Volume)
	idx.release(trade.OrderId, r)
}

func (idx *orderIndex) release(id exchange.OrderId, r *orderRoute) {
	if r.closed && r.filled.GreaterThanOrEqual(r.final) {
		delete(idx.routes, id)
	}
}

func (idx *orderIndex) len() int {
	return len(idx.routes)
}
