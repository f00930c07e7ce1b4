package algo

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Setting 启动算法时传入的参数，值可能来自配置文件（int/float64/string）
type Setting map[string]any

// settingReader 读取参数并记住第一个解析错误
type settingReader struct {
	setting Setting
	err     error
}

func newSettingReader(setting Setting) *settingReader {
	return &settingReader{setting: setting}
}

func (r *settingReader) Int(key string, def int) int {
	v, ok := r.setting[key]
	if !ok || v == nil {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return i
}

func (r *settingReader) Decimal(key string, def decimal.Decimal) decimal.Decimal {
	v, ok := r.setting[key]
	if !ok || v == nil {
		return def
	}
	if d, ok := v.(decimal.Decimal); ok {
		return d
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *settingReader) Err() error {
	return r.err
}

func (r *settingReader) fail(key string, v any, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("parse setting %s=%v: %w", key, v, err)
	}
}
