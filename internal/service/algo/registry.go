package algo

import "slices"

// Factory 算法模板，New 必须返回非空实例，参数错误通过 Validator 报告
type Factory struct {
	Name           string
	DisplayName    string
	DefaultSetting []Field
	Variables      []string
	New            func(t *Template, setting Setting) Strategy
}

// TemplateInfo 对外展示的模板元数据
type TemplateInfo struct {
	Name           string         `json:"template_name"`
	DisplayName    string         `json:"display_name"`
	DefaultSetting map[string]any `json:"default_setting"`
	Variables      []string       `json:"variables"`
}

func (f Factory) info() TemplateInfo {
	return TemplateInfo{
		Name:           f.Name,
		DisplayName:    f.DisplayName,
		DefaultSetting: fieldsToMap(f.DefaultSetting),
		Variables:      slices.Clone(f.Variables),
	}
}

// builtinFactories 内置的五种算法
func builtinFactories() []Factory {
	return []Factory{
		twapFactory,
		icebergFactory,
		sniperFactory,
		stopFactory,
		bestLimitFactory,
	}
}
