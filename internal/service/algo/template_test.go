package algo

import (
	"testing"

	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *fakeGateway, *recorder) {
	t.Helper()
	gw := newFakeGateway()
	gw.addContract(testSymbol, "1")
	gw.addContract(otherSymbol, "0.001")
	events := &recorder{}
	return NewEngine(gw, events), gw, events
}

func mustStart(t *testing.T, e *Engine, template string, direction exchange.Direction, price, volume string, setting Setting) *Template {
	t.Helper()
	name, err := e.StartAlgo(template, testSymbol, direction, exchange.OffsetNone, d(price), d(volume), setting)
	require.NoError(t, err)
	algo, ok := e.Algo(name)
	require.True(t, ok)
	return algo
}

func TestTemplate_TradedPriceIsVolumeWeighted(t *testing.T) {
	tests := []struct {
		name   string
		trades [][2]string // price, volume
		want   string
	}{
		{name: "单笔", trades: [][2]string{{"100", "2"}}, want: "100"},
		{name: "两笔", trades: [][2]string{{"100", "2"}, {"101", "3"}}, want: "100.6"},
		{name: "三笔", trades: [][2]string{{"10", "1"}, {"20", "1"}, {"30", "2"}}, want: "22.5"},
		{name: "零数量成交", trades: [][2]string{{"100", "1"}, {"200", "0"}}, want: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			algo := mustStart(t, e, "SniperAlgo", exchange.DirectionLong, "100", "100", nil)

			for _, tr := range tt.trades {
				algo.UpdateTrade(exchange.Trade{Price: d(tr[0]), Volume: d(tr[1])})
			}
			assert.True(t, d(tt.want).Equal(algo.TradedPrice()), "got %s", algo.TradedPrice())
		})
	}
}

func TestTemplate_StateTransitions(t *testing.T) {
	e, _, _ := newTestEngine(t)
	algo := mustStart(t, e, "SniperAlgo", exchange.DirectionLong, "100", "10", nil)
	require.Equal(t, StatusRunning, algo.Status())

	algo.Resume()
	assert.Equal(t, StatusRunning, algo.Status())

	algo.Pause()
	assert.Equal(t, StatusPaused, algo.Status())
	algo.Pause()
	assert.Equal(t, StatusPaused, algo.Status())

	algo.Resume()
	assert.Equal(t, StatusRunning, algo.Status())

	algo.Finish()
	assert.Equal(t, StatusFinished, algo.Status())

	// 终态不可逆
	algo.Stop()
	algo.Start()
	algo.Resume()
	assert.Equal(t, StatusFinished, algo.Status())
}

func TestTemplate_StopCancelsAllActiveOrders(t *testing.T) {
	e, gw, _ := newTestEngine(t)
	algo := mustStart(t, e, "SniperAlgo", exchange.DirectionLong, "100", "10", nil)

	e.ProcessTick(newTick(testSymbol, "99", "98", "99", "2", "2"))
	require.Len(t, gw.sent, 1)
	id := gw.sent[0].OrderId
	assert.Equal(t, []exchange.OrderId{id}, algo.ActiveOrderIds())

	algo.Stop()
	assert.Equal(t, []exchange.OrderId{id}, gw.cancelled)

	// 撤单回报到达后活动委托清空
	e.ProcessOrder(gw.update(id, exchange.OrderStatusCancelled, "0"))
	assert.Empty(t, algo.ActiveOrderIds())
}

func TestTemplate_BuySellOnlyWhenRunning(t *testing.T) {
	e, gw, _ := newTestEngine(t)
	algo := mustStart(t, e, "SniperAlgo", exchange.DirectionLong, "100", "10", nil)

	algo.Pause()
	assert.True(t, algo.Buy(d("100"), d("1"), exchange.OrderTypeLimit, exchange.OffsetNone).IsZero())

	algo.Resume()
	id := algo.Sell(d("100"), d("1"), exchange.OrderTypeLimit, exchange.OffsetNone)
	assert.False(t, id.IsZero())
	require.Len(t, gw.sent, 1)
	assert.Equal(t, exchange.DirectionShort, gw.sent[0].Direction)
}

func TestTemplate_OrderUpdatesTrackActiveSet(t *testing.T) {
	e, gw, _ := newTestEngine(t)
	algo := mustStart(t, e, "SniperAlgo", exchange.DirectionLong, "100", "10", nil)
	e.ProcessTick(newTick(testSymbol, "99", "98", "99", "2", "2"))
	id := gw.sent[0].OrderId

	e.ProcessOrder(gw.update(id, exchange.OrderStatusNotTraded, "0"))
	assert.Equal(t, []exchange.OrderId{id}, algo.ActiveOrderIds())

	e.ProcessOrder(gw.update(id, exchange.OrderStatusPartTraded, "1"))
	assert.Equal(t, exchange.OrderStatusPartTraded, algo.activeOrders[id].Status)

	e.ProcessOrder(gw.update(id, exchange.OrderStatusAllTraded, "2"))
	assert.Empty(t, algo.ActiveOrderIds())
}

func TestTemplate_Snapshot(t *testing.T) {
	e, _, _ := newTestEngine(t)
	algo := mustStart(t, e, "TwapAlgo", exchange.DirectionLong, "100", "100", Setting{"time": 100, "interval": 10})
	algo.UpdateTrade(exchange.Trade{Price: d("99"), Volume: d("30")})

	snap := algo.Snapshot()
	assert.Equal(t, "TwapAlgo_1", snap.Name)
	assert.Equal(t, "TwapAlgo", snap.Template)
	assert.Equal(t, testSymbol, snap.Symbol)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.True(t, d("70").Equal(snap.Left))
	assert.Equal(t, 100, snap.Parameters["time"])
	assert.Equal(t, 0, snap.Variables["timer_count"])
}
