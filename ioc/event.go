package ioc

import (
	"github.com/KNICEX/algo-trading/internal/service/event"
	"github.com/spf13/viper"
)

func InitEventEngine() *event.Engine {
	var cfg event.Config
	if err := viper.UnmarshalKey("event", &cfg); err != nil {
		panic(err)
	}
	return event.NewEngine(cfg)
}
