package algo

import (
	"fmt"

	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/shopspring/decimal"
)

var bestLimitFactory = Factory{
	Name:        "BestLimitAlgo",
	DisplayName: "BestLimit 最优限价",
	DefaultSetting: []Field{
		{Name: "min_volume", Value: 0},
		{Name: "max_volume", Value: 0},
	},
	Variables: []string{"vt_orderid", "order_price"},
	New:       newBestLimitAlgo,
}

// BestLimitAlgo 始终在己方最优价挂单，盘口变动时撤单重挂，每笔数量在 [min, max] 内随机
type BestLimitAlgo struct {
	*Template
	callbacks

	minVolume decimal.Decimal
	maxVolume decimal.Decimal

	orderId    exchange.OrderId
	orderPrice decimal.Decimal

	err error
}

func newBestLimitAlgo(t *Template, setting Setting) Strategy {
	r := newSettingReader(setting)
	a := &BestLimitAlgo{
		Template:   t,
		minVolume:  r.Decimal("min_volume", decimal.Zero),
		maxVolume:  r.Decimal("max_volume", decimal.Zero),
		orderPrice: decimal.Zero,
	}
	a.err = r.Err()
	return a
}

func (a *BestLimitAlgo) Validate() error {
	if a.err != nil {
		return a.err
	}
	if !a.minVolume.IsPositive() {
		return fmt.Errorf("min_volume must be positive, got %s", a.minVolume)
	}
	if a.maxVolume.LessThan(a.minVolume) {
		return fmt.Errorf("max_volume %s is less than min_volume %s", a.maxVolume, a.minVolume)
	}
	return nil
}

func (a *BestLimitAlgo) OnTick(tick exchange.Tick) {
	price := a.bestPrice(tick)

	if !a.outstanding() {
		if !price.IsPositive() {
			return
		}
		volume := decimal.Min(a.uniform(a.minVolume, a.maxVolume), a.Left())
		if !volume.IsPositive() {
			return
		}
		a.orderId = a.Send(price, volume)
		if !a.orderId.IsZero() {
			a.orderPrice = price
		}
	} else if !a.orderPrice.Equal(price) {
		a.CancelAll()
	}

	a.PutEvent()
}

func (a *BestLimitAlgo) OnOrder(order exchange.Order) {
	if order.OrderId == a.orderId && !order.IsActive() {
		a.orderId = ""
		a.orderPrice = decimal.Zero
	}
	a.PutEvent()
}

func (a *BestLimitAlgo) OnTrade(exchange.Trade) {
	if a.Left().LessThanOrEqual(decimal.Zero) {
		a.Finish()
		return
	}
	a.PutEvent()
}

func (a *BestLimitAlgo) outstanding() bool {
	return !a.orderId.IsZero() || len(a.activeOrders) > 0
}

// bestPrice 买单挂买一，卖单挂卖一
func (a *BestLimitAlgo) bestPrice(tick exchange.Tick) decimal.Decimal {
	if a.direction == exchange.DirectionLong {
		return tick.BidPrice1
	}
	return tick.AskPrice1
}

func (a *BestLimitAlgo) Parameters() []Field {
	return []Field{
		{Name: "min_volume", Value: a.minVolume},
		{Name: "max_volume", Value: a.maxVolume},
	}
}

func (a *BestLimitAlgo) Variables() []Field {
	return []Field{
		{Name: "vt_orderid", Value: a.orderId},
		{Name: "order_price", Value: a.orderPrice},
	}
}
