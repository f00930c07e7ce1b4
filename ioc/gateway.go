package ioc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KNICEX/algo-trading/internal/schedule"
	"github.com/KNICEX/algo-trading/internal/service/event"
	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/KNICEX/algo-trading/internal/service/exchange/binance"
	"github.com/KNICEX/algo-trading/internal/service/exchange/paper"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// InitGateway 按 app.mode 创建网关，返回需要随进程运行的任务
func InitGateway(ctx context.Context, bus *event.Engine) (exchange.Gateway, schedule.Task) {
	mode := viper.GetString("app.mode")
	switch mode {
	case "", "paper":
		return initPaper(bus)
	case "binance":
		gw := binance.NewGateway(InitBinanceCli(), bus)
		if err := gw.Connect(ctx); err != nil {
			panic(err)
		}
		return gw, gw
	default:
		panic(fmt.Errorf("unsupported app mode: %s", mode))
	}
}

func initPaper(bus *event.Engine) (exchange.Gateway, schedule.Task) {
	var cfg paper.ReplayConfig
	if err := viper.UnmarshalKey("paper", &cfg); err != nil {
		panic(err)
	}

	gw := paper.NewGateway(bus)
	for _, c := range cfg.Contracts {
		symbol, ex := exchange.SplitSymbol(c.Symbol)
		gw.AddContract(exchange.Contract{
			Symbol:    symbol,
			Exchange:  ex,
			MinVolume: decimal.RequireFromString(c.MinVolume),
			PriceTick: decimal.RequireFromString(c.PriceTick),
		})
	}

	var provider paper.KlineProvider
	switch cfg.Source {
	case "binance":
		provider = paper.NewBinanceKlineProvider(InitBinanceCli())
	case "", "mock":
		provider = initMockKlines(cfg)
	default:
		panic(fmt.Errorf("unsupported kline source: %s", cfg.Source))
	}

	slog.Info("paper gateway ready", "source", cfg.Source, "contracts", len(cfg.Contracts))
	return gw, paper.NewReplayer(gw, provider, cfg)
}

func initMockKlines(cfg paper.ReplayConfig) paper.KlineProvider {
	interval := cfg.Interval
	if interval == "" {
		interval = paper.Interval1m
	}
	step, err := interval.Duration()
	if err != nil {
		panic(err)
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}

	p := paper.NewMockKlineProvider()
	start := time.Now().Add(-lookback)
	for _, c := range cfg.Contracts {
		symbol, _ := exchange.SplitSymbol(c.Symbol)
		if err := p.GenerateKlines(symbol, interval, start, c.BasePrice, int(lookback/step), cfg.Trend); err != nil {
			panic(err)
		}
	}
	return p
}
