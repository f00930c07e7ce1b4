package algo

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/KNICEX/algo-trading/internal/service/event"
	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/stretchr/testify/suite"
)

const (
	testSymbol  = "rb2410.SHFE"
	otherSymbol = "BTCUSDT.BINANCE"
)

// EngineSuite 算法引擎测试套件
// 测试范围: 实例生命周期、事件路由、委托索引、下单撤单代理
type EngineSuite struct {
	suite.Suite
	gw     *fakeGateway
	events *recorder
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.gw = newFakeGateway()
	s.gw.addContract(testSymbol, "1")
	s.gw.addContract(otherSymbol, "0.001")
	s.events = &recorder{}
	s.engine = NewEngine(s.gw, s.events, WithRand(rand.New(rand.NewSource(1))))
}

func (s *EngineSuite) startSniper(vtSymbol string, price, volume string) string {
	name, err := s.engine.StartAlgo("SniperAlgo", vtSymbol, exchange.DirectionLong, exchange.OffsetOpen, d(price), d(volume), nil)
	s.Require().NoError(err)
	return name
}

func (s *EngineSuite) TestInitWritesLog() {
	s.engine.Init()
	s.Equal([]string{"algo engine started"}, s.events.logs())
}

func (s *EngineSuite) TestListTemplates() {
	names := make([]string, 0)
	for _, info := range s.engine.ListTemplates() {
		names = append(names, info.Name)
	}
	s.Equal([]string{"BestLimitAlgo", "IcebergAlgo", "SniperAlgo", "StopAlgo", "TwapAlgo"}, names)

	twap := s.engine.ListTemplates()[4]
	s.Equal("TWAP 时间加权平均", twap.DisplayName)
	s.Equal(600, twap.DefaultSetting["time"])
	s.Equal([]string{"order_volume", "timer_count", "total_count", "slice_count"}, twap.Variables)
}

// TestStartAlgo_UnknownContract 合约不存在时只写一条日志，不创建实例
func (s *EngineSuite) TestStartAlgo_UnknownContract() {
	name, err := s.engine.StartAlgo("SniperAlgo", "FAKE.EX", exchange.DirectionLong, exchange.OffsetNone, d("1"), d("1"), nil)

	s.ErrorIs(err, ErrUnknownContract)
	s.Empty(name)
	s.Len(s.events.events, 1)
	s.Len(s.events.logs(), 1)
	s.Empty(s.engine.Algos())
	s.Empty(s.gw.subscribed)
}

func (s *EngineSuite) TestStartAlgo_UnknownTemplate() {
	name, err := s.engine.StartAlgo("VwapAlgo", testSymbol, exchange.DirectionLong, exchange.OffsetNone, d("1"), d("1"), nil)

	s.ErrorIs(err, ErrUnknownTemplate)
	s.Empty(name)
	s.Empty(s.engine.Algos())
}

func (s *EngineSuite) TestStartAlgo_NamesAndRunning() {
	first := s.startSniper(testSymbol, "100", "10")
	second := s.startSniper(testSymbol, "100", "10")
	twap, err := s.engine.StartAlgo("TwapAlgo", testSymbol, exchange.DirectionShort, exchange.OffsetClose, d("100"), d("10"), Setting{"time": 10, "interval": 5})
	s.Require().NoError(err)

	s.Equal("SniperAlgo_1", first)
	s.Equal("SniperAlgo_2", second)
	s.Equal("TwapAlgo_1", twap)

	algo, ok := s.engine.Algo(first)
	s.Require().True(ok)
	s.Equal(StatusRunning, algo.Status())
	s.Len(s.engine.Algos(), 3)

	updates := s.events.updates()
	s.Require().NotEmpty(updates)
	s.Equal(StatusRunning, updates[len(updates)-1].Status)
	s.Equal(twap, updates[len(updates)-1].Name)
}

// TestStartAlgo_SubscribesOnce 同一合约只在第一次出现时订阅
func (s *EngineSuite) TestStartAlgo_SubscribesOnce() {
	s.startSniper(testSymbol, "100", "10")
	s.startSniper(testSymbol, "100", "10")
	s.startSniper(otherSymbol, "100", "10")

	s.Equal([]string{testSymbol, otherSymbol}, s.gw.subscribed)
}

// TestStartAlgo_InvalidParameters 参数非法时实例创建后直接结束，不会下单
func (s *EngineSuite) TestStartAlgo_InvalidParameters() {
	name, err := s.engine.StartAlgo("TwapAlgo", testSymbol, exchange.DirectionLong, exchange.OffsetNone, d("100"), d("100"), Setting{"time": 10, "interval": 20})

	s.ErrorIs(err, ErrInvalidParameters)
	s.Equal("TwapAlgo_1", name)

	algo, ok := s.engine.Algo(name)
	s.Require().True(ok)
	s.Equal(StatusFinished, algo.Status())
	s.True(s.events.hasLog("invalid parameters"))

	s.gw.setTick(newTick(testSymbol, "99", "98", "99", "10", "10"))
	for i := 0; i < 20; i++ {
		s.engine.ProcessTimer()
	}
	s.Empty(s.gw.sent)

	// 保持注册可见，停止无效
	s.engine.StopAlgo(name)
	_, ok = s.engine.Algo(name)
	s.True(ok)
	s.Equal(StatusFinished, algo.Status())
}

func (s *EngineSuite) TestStartAlgo_BadSettingType() {
	_, err := s.engine.StartAlgo("IcebergAlgo", testSymbol, exchange.DirectionLong, exchange.OffsetNone, d("100"), d("100"), Setting{"display_volume": "abc", "interval": 1})
	s.ErrorIs(err, ErrInvalidParameters)
}

func (s *EngineSuite) TestProcessTick_RoutesBySymbol() {
	s.startSniper(testSymbol, "100", "10")
	s.startSniper(otherSymbol, "100", "10")

	s.engine.ProcessTick(newTick(otherSymbol, "99", "98", "99", "1", "1"))

	s.Require().Len(s.gw.sent, 1)
	s.Equal(otherSymbol, s.gw.sent[0].VtSymbol())
	s.Equal("AlgoTrading_SniperAlgo_2", s.gw.sent[0].Reference)
}

func (s *EngineSuite) TestPausedAlgoIgnoresTickButTracksTrades() {
	name := s.startSniper(testSymbol, "100", "10")
	s.engine.ProcessTick(newTick(testSymbol, "99", "98", "99", "4", "4"))
	s.Require().Len(s.gw.sent, 1)
	id := s.gw.sent[0].OrderId

	s.engine.PauseAlgo(name)
	algo, _ := s.engine.Algo(name)
	s.Equal(StatusPaused, algo.Status())

	s.engine.ProcessTick(newTick(testSymbol, "99", "98", "99", "4", "4"))
	s.Empty(s.gw.cancelled)

	s.engine.ProcessOrder(s.gw.update(id, exchange.OrderStatusPartTraded, "2"))
	s.engine.ProcessTrade(s.gw.trade(id, "99", "2"))
	s.True(d("2").Equal(algo.Traded()))

	s.engine.ResumeAlgo(name)
	s.Equal(StatusRunning, algo.Status())
}

// TestStopAlgo_EvictsButKeepsSubscription 终态实例不再接收行情，订阅保持
func (s *EngineSuite) TestStopAlgo_EvictsButKeepsSubscription() {
	name := s.startSniper(testSymbol, "100", "10")
	algo, _ := s.engine.Algo(name)

	s.engine.StopAlgo(name)

	s.Equal(StatusStopped, algo.Status())
	_, ok := s.engine.Algo(name)
	s.False(ok)
	s.Empty(s.engine.symbolAlgos[testSymbol])
	s.Equal([]string{testSymbol}, s.gw.subscribed)

	s.engine.ProcessTick(newTick(testSymbol, "99", "98", "99", "1", "1"))
	s.Empty(s.gw.sent)

	updates := s.events.updates()
	s.Equal(StatusStopped, updates[len(updates)-1].Status)
}

func (s *EngineSuite) TestStopAll() {
	s.startSniper(testSymbol, "100", "10")
	s.startSniper(otherSymbol, "100", "10")
	s.engine.ProcessTick(newTick(testSymbol, "99", "98", "99", "1", "1"))
	s.engine.ProcessTick(newTick(otherSymbol, "99", "98", "99", "1", "1"))
	s.Require().Len(s.gw.sent, 2)

	s.engine.Close()

	s.Empty(s.engine.Algos())
	s.ElementsMatch([]exchange.OrderId{s.gw.sent[0].OrderId, s.gw.sent[1].OrderId}, s.gw.cancelled)
}

// TestLateTradeStillRouted 委托先回报全部成交、成交回报后到时仍能路由
func (s *EngineSuite) TestLateTradeStillRouted() {
	name := s.startSniper(testSymbol, "100", "10")
	algo, _ := s.engine.Algo(name)
	s.engine.ProcessTick(newTick(testSymbol, "99", "98", "99", "3", "3"))
	id := s.gw.sent[0].OrderId

	s.engine.ProcessOrder(s.gw.update(id, exchange.OrderStatusAllTraded, "3"))
	s.Equal(1, s.engine.orders.len())
	s.Empty(algo.ActiveOrderIds())

	s.engine.ProcessTrade(s.gw.trade(id, "99", "3"))
	s.True(d("3").Equal(algo.Traded()))
	s.Zero(s.engine.orders.len())
}

func (s *EngineSuite) TestRejectedOrderReleasesRoute() {
	s.startSniper(testSymbol, "100", "10")
	s.engine.ProcessTick(newTick(testSymbol, "99", "98", "99", "3", "3"))
	id := s.gw.sent[0].OrderId

	s.engine.ProcessOrder(s.gw.update(id, exchange.OrderStatusRejected, "0"))
	s.Zero(s.engine.orders.len())
}

func (s *EngineSuite) TestUnknownOrderEventsIgnored() {
	s.startSniper(testSymbol, "100", "10")
	s.events.reset()

	s.engine.ProcessOrder(exchange.Order{OrderId: "404", Status: exchange.OrderStatusAllTraded})
	s.engine.ProcessTrade(exchange.Trade{OrderId: "404", Volume: d("1"), Price: d("1")})

	s.Empty(s.events.events)
}

// TestZeroRoundedVolumeRefused 取整后为 0 的委托不会发出
func (s *EngineSuite) TestZeroRoundedVolumeRefused() {
	name := s.startSniper(testSymbol, "100", "10")
	s.engine.ProcessTick(newTick(testSymbol, "99", "98", "99", "0.3", "0.3"))

	s.Empty(s.gw.sent)
	s.True(s.events.hasLog(ErrZeroRoundedVolume.Error()))
	s.True(s.events.hasLog(name + ": "))
}

func (s *EngineSuite) TestVolumeRoundedToMinVolume() {
	s.startSniper(otherSymbol, "100", "1")
	s.engine.ProcessTick(newTick(otherSymbol, "99", "98", "99", "0.12345", "0.12345"))

	s.Require().Len(s.gw.sent, 1)
	s.True(d("0.123").Equal(s.gw.sent[0].Volume))
}

// TestRoundedVolumeCappedByLeft 四舍五入超过剩余数量时向下取整
func (s *EngineSuite) TestRoundedVolumeCappedByLeft() {
	name := s.startSniper(otherSymbol, "100", "0.0015")
	s.engine.ProcessTick(newTick(otherSymbol, "99", "98", "99", "10", "10"))

	s.Require().Len(s.gw.sent, 1)
	s.True(d("0.001").Equal(s.gw.sent[0].Volume))

	algo, _ := s.engine.Algo(name)
	s.True(algo.Left().GreaterThanOrEqual(s.gw.sent[0].Volume))
}

// TestStaleActiveUpdateIgnored 全部成交之后才到达的未成交回报不会让委托重新变成活动状态
func (s *EngineSuite) TestStaleActiveUpdateIgnored() {
	name := s.startSniper(testSymbol, "100", "10")
	algo, _ := s.engine.Algo(name)

	tick := newTick(testSymbol, "99", "98", "99", "3", "3")
	s.engine.ProcessTick(tick)
	s.Require().Len(s.gw.sent, 1)
	id := s.gw.sent[0].OrderId

	filled := s.gw.update(id, exchange.OrderStatusAllTraded, "3")
	late := filled
	late.Status = exchange.OrderStatusNotTraded
	late.Traded = d("0")

	s.engine.ProcessOrder(filled)
	s.engine.ProcessOrder(late)
	s.engine.ProcessTrade(s.gw.trade(id, "100", "3"))

	s.Empty(algo.ActiveOrderIds())
	s.True(d("7").Equal(algo.Left()))
	s.Zero(s.engine.orders.len())

	// 没有残留委托，下一笔行情可以继续下单
	s.engine.ProcessTick(tick)
	s.Require().Len(s.gw.sent, 2)
	second := s.gw.sent[1].OrderId

	s.engine.StopAlgo(name)
	s.Contains(s.gw.cancelled, second)
	s.engine.ProcessOrder(s.gw.update(second, exchange.OrderStatusCancelled, "0"))
	s.Empty(algo.ActiveOrderIds())
}

func (s *EngineSuite) TestSendOrderGatewayError() {
	name := s.startSniper(testSymbol, "100", "10")
	s.gw.sendErr = errors.New("gateway down")

	s.engine.ProcessTick(newTick(testSymbol, "99", "98", "99", "3", "3"))

	algo, _ := s.engine.Algo(name)
	s.Empty(algo.ActiveOrderIds())
	s.True(s.events.hasLog("gateway down"))
}

func (s *EngineSuite) TestCancelUnknownOrderLogs() {
	name := s.startSniper(testSymbol, "100", "10")
	algo, _ := s.engine.Algo(name)

	algo.CancelOrder("missing")

	s.Empty(s.gw.cancelled)
	s.True(s.events.hasLog(ErrUnknownOrder.Error()))
}

// TestRoundTrip 成交量达到目标后实例结束
func (s *EngineSuite) TestRoundTrip() {
	name := s.startSniper(testSymbol, "100", "10")
	algo, _ := s.engine.Algo(name)

	s.engine.ProcessTick(newTick(testSymbol, "99", "98", "99", "100", "100"))
	s.Require().Len(s.gw.sent, 1)
	id := s.gw.sent[0].OrderId
	s.True(d("10").Equal(s.gw.sent[0].Volume))

	s.engine.ProcessTrade(s.gw.trade(id, "99", "4"))
	s.Equal(StatusRunning, algo.Status())
	s.engine.ProcessTrade(s.gw.trade(id, "99", "6"))

	s.Equal(StatusFinished, algo.Status())
	s.True(algo.Left().IsZero())
	_, ok := s.engine.Algo(name)
	s.False(ok)
}

func (s *EngineSuite) TestRegisterEvent() {
	bus := event.NewEngine(event.Config{})
	s.engine.RegisterEvent(bus)
	s.startSniper(testSymbol, "100", "10")

	bus.Put(event.Event{Type: event.TypeTick, Data: newTick(testSymbol, "99", "98", "99", "2", "2")})
	bus.Flush()

	s.Len(s.gw.sent, 1)
}
