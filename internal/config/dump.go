package config

import (
	"gopkg.in/yaml.v3"
)

// Dump 将生效配置序列化为 YAML，便于 `riskctl config show` 与接口排查。
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}
