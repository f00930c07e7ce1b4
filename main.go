package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KNICEX/algo-trading/internal/repo"
	"github.com/KNICEX/algo-trading/internal/schedule"
	"github.com/KNICEX/algo-trading/internal/service/algo"
	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/KNICEX/algo-trading/internal/service/monitor"
	"github.com/KNICEX/algo-trading/ioc"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func initViper() {

	// --config=./config/xxx.yaml
	file := pflag.String("config", "./config/config.dev.yaml", "specify config file")
	pflag.Parse()

	viper.SetConfigFile(*file)
	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s \n", err))
	}

}

// AlgoConfig 启动时自动创建的算法实例
type AlgoConfig struct {
	Template  string         `mapstructure:"template"`
	Symbol    string         `mapstructure:"symbol"`
	Direction string         `mapstructure:"direction"`
	Offset    string         `mapstructure:"offset"`
	Price     any            `mapstructure:"price"`
	Volume    any            `mapstructure:"volume"`
	Setting   map[string]any `mapstructure:"setting"`
}

func bootAlgos(engine *algo.Engine, algos []AlgoConfig) {
	for _, a := range algos {
		price, err := decimal.NewFromString(cast.ToString(a.Price))
		if err != nil {
			slog.Error("skip boot algo, bad price", "template", a.Template, "price", a.Price, "error", err)
			continue
		}
		volume, err := decimal.NewFromString(cast.ToString(a.Volume))
		if err != nil {
			slog.Error("skip boot algo, bad volume", "template", a.Template, "volume", a.Volume, "error", err)
			continue
		}
		offset := exchange.Offset(a.Offset)
		if offset == "" {
			offset = exchange.OffsetNone
		}

		name, err := engine.StartAlgo(a.Template, a.Symbol, exchange.Direction(a.Direction), offset,
			price, volume, algo.Setting(a.Setting))
		if err != nil {
			slog.Error("boot algo failed", "template", a.Template, "symbol", a.Symbol, "error", err)
			continue
		}
		slog.Info("boot algo started", "name", name)
	}
}

func main() {
	initViper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := ioc.InitDB()
	bus := ioc.InitEventEngine()
	gateway, gatewayTask := ioc.InitGateway(ctx, bus)

	notifiers, notifierTasks, closeNotifiers := ioc.InitNotifiers()
	defer closeNotifiers()

	var opts []monitor.Option
	if len(notifiers) > 0 {
		opts = append(opts, monitor.WithNotifier(notifiers...))
	}
	algoMonitor := monitor.NewAlgoMonitor(repo.NewAlgoRepo(db), repo.NewAlgoLogRepo(db), opts...)
	algoMonitor.RegisterEvent(bus)

	algoEngine := algo.NewEngine(gateway, bus)
	algoEngine.RegisterEvent(bus)

	var algos []AlgoConfig
	if err := viper.UnmarshalKey("algos", &algos); err != nil {
		panic(err)
	}
	// 所有对引擎的调用都放到事件线程上执行
	bus.Call(func() {
		algoEngine.Init()
		bootAlgos(algoEngine, algos)
	})

	tasks := append([]schedule.Task{bus, algoMonitor, gatewayTask}, notifierTasks...)
	stopped := make(chan struct{})
	go func() {
		schedule.RunAll(ctx, tasks...)
		close(stopped)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")

	// 停止产生的更新事件排在 Close 之后，再排一个 Call 等它们处理完
	done := make(chan struct{})
	bus.Call(func() {
		algoEngine.Close()
		bus.Call(func() {
			close(done)
		})
	})
	<-done
	cancel()
	<-stopped
}
