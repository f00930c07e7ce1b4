package algo

import (
	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/shopspring/decimal"
)

var sniperFactory = Factory{
	Name:        "SniperAlgo",
	DisplayName: "Sniper 狙击手",
	Variables:   []string{"vt_orderid"},
	New:         newSniperAlgo,
}

// SniperAlgo 对手价进入限价范围时立即吃掉盘口数量
type SniperAlgo struct {
	*Template
	callbacks

	orderId exchange.OrderId
}

func newSniperAlgo(t *Template, _ Setting) Strategy {
	return &SniperAlgo{Template: t}
}

func (a *SniperAlgo) OnTick(tick exchange.Tick) {
	if a.outstanding() {
		a.CancelAll()
		return
	}

	switch a.direction {
	case exchange.DirectionLong:
		if tick.AskPrice1.LessThanOrEqual(a.price) {
			volume := decimal.Min(a.Left(), tick.AskVolume1)
			a.orderId = a.Buy(a.price, volume, exchange.OrderTypeLimit, a.offset)
		}
	case exchange.DirectionShort:
		if tick.BidPrice1.GreaterThanOrEqual(a.price) {
			volume := decimal.Min(a.Left(), tick.BidVolume1)
			a.orderId = a.Sell(a.price, volume, exchange.OrderTypeLimit, a.offset)
		}
	}

	a.PutEvent()
}

func (a *SniperAlgo) OnOrder(order exchange.Order) {
	if order.OrderId == a.orderId && !order.IsActive() {
		a.orderId = ""
	}
	a.PutEvent()
}

func (a *SniperAlgo) OnTrade(exchange.Trade) {
	if a.Left().LessThanOrEqual(decimal.Zero) {
		a.Finish()
		return
	}
	a.PutEvent()
}

func (a *SniperAlgo) outstanding() bool {
	return !a.orderId.IsZero() || len(a.activeOrders) > 0
}

func (a *SniperAlgo) Parameters() []Field {
	return nil
}

func (a *SniperAlgo) Variables() []Field {
	return []Field{
		{Name: "vt_orderid", Value: a.orderId},
	}
}
