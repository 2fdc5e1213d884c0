package riskapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// 各请求体的 JSON Schema，只校验结构与类型；业务规则由风控引擎给出拒绝原因。
const (
	sideEnum = `{"type": "string", "enum": ["LONG", "SHORT", "long", "short", "buy", "sell", "BUY", "SELL"]}`

	marketSchema = `{
		"type": "object",
		"properties": {
			"volatility": {"type": "number", "minimum": 0},
			"trend": {"type": "string"},
			"atr": {"type": "number", "minimum": 0},
			"support": {"type": "number", "minimum": 0},
			"resistance": {"type": "number", "minimum": 0}
		}
	}`

	positionSchema = `{
		"type": "object",
		"required": ["id", "symbol", "size", "entry_price", "current_price", "side"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"symbol": {"type": "string", "minLength": 1},
			"size": {"type": "number"},
			"entry_price": {"type": "number", "exclusiveMinimum": 0},
			"current_price": {"type": "number", "exclusiveMinimum": 0},
			"side": ` + sideEnum + `,
			"stop_loss": {"type": "number", "minimum": 0},
			"take_profit": {"type": "number", "minimum": 0}
		}
	}`

	proposalSchema = `{
		"type": "object",
		"required": ["symbol", "side", "entry_price", "stop_loss", "take_profit", "position_size"],
		"properties": {
			"symbol": {"type": "string", "minLength": 1},
			"side": ` + sideEnum + `,
			"entry_price": {"type": "number"},
			"stop_loss": {"type": "number"},
			"take_profit": {"type": "number"},
			"position_size": {"type": "number"},
			"confidence": {"type": "number", "minimum": 0, "maximum": 100},
			"strategy": {"type": "string"}
		}
	}`
)

var schemaSources = map[string]string{
	"rr_analyze": `{
		"type": "object",
		"required": ["proposal"],
		"properties": {
			"proposal": ` + proposalSchema + `,
			"market_conditions": ` + marketSchema + `
		}
	}`,
	"trailing_update": `{
		"type": "object",
		"required": ["position"],
		"properties": {
			"position": ` + positionSchema + `,
			"strategy": {"type": "string"},
			"market_conditions": ` + marketSchema + `
		}
	}`,
	"trailing_initial": `{
		"type": "object",
		"required": ["entry_price", "side"],
		"properties": {
			"entry_price": {"type": "number", "exclusiveMinimum": 0},
			"side": ` + sideEnum + `,
			"strategy": {"type": "string"},
			"market_conditions": ` + marketSchema + `
		}
	}`,
	"portfolio_analyze": `{
		"type": "object",
		"required": ["positions"],
		"properties": {
			"positions": {"type": "array", "items": ` + positionSchema + `}
		}
	}`,
	"sizing": `{
		"type": "object",
		"required": ["symbol", "side", "entry_price", "stop_loss", "account_balance"],
		"properties": {
			"symbol": {"type": "string", "minLength": 1},
			"side": ` + sideEnum + `,
			"entry_price": {"type": "number"},
			"stop_loss": {"type": "number"},
			"take_profit": {"type": "number"},
			"confidence": {"type": "number", "minimum": 0, "maximum": 100},
			"strategy": {"type": "string"},
			"account_balance": {"type": "number"},
			"existing_positions": {"type": "array", "items": ` + positionSchema + `},
			"market_conditions": ` + marketSchema + `
		}
	}`,
	"market_conditions": `{
		"type": "object",
		"required": ["candles"],
		"properties": {
			"candles": {
				"type": "array",
				"minItems": 2,
				"items": {
					"type": "object",
					"required": ["high", "low", "close"],
					"properties": {
						"open": {"type": "number"},
						"high": {"type": "number"},
						"low": {"type": "number"},
						"close": {"type": "number"},
						"volume": {"type": "number"}
					}
				}
			}
		}
	}`,
}

var schemas = mustCompileSchemas(schemaSources)

func mustCompileSchemas(src map[string]string) map[string]*jsonschema.Schema {
	out := make(map[string]*jsonschema.Schema, len(src))
	for name, raw := range src {
		s, err := compileSchema(name, raw)
		if err != nil {
			panic(fmt.Sprintf("riskapi: compile schema %s: %v", name, err))
		}
		out[name] = s
	}
	return out
}

func compileSchema(name, raw string) (*jsonschema.Schema, error) {
	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// validateBody 先用 gjson 快速检查 JSON 合法性，再按 schema 校验结构。
func validateBody(name string, raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: 请求体为空", risk.ErrInvalidInput)
	}
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: json 格式无效", risk.ErrInvalidInput)
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return fmt.Errorf("%w: 根节点必须是 JSON 对象", risk.ErrInvalidInput)
	}
	schema, ok := schemas[name]
	if !ok {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", risk.ErrInvalidInput, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", risk.ErrInvalidInput, err)
	}
	return nil
}

// checkPatchFields 拒绝 PATCH 中未知或非数值/布尔的字段，避免静默忽略拼写错误。
func checkPatchFields(raw []byte, allowed map[string]gjson.Type) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: json 格式无效", risk.ErrInvalidInput)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return fmt.Errorf("%w: 根节点必须是 JSON 对象", risk.ErrInvalidInput)
	}
	var bad error
	root.ForEach(func(key, value gjson.Result) bool {
		want, ok := allowed[key.String()]
		if !ok {
			bad = fmt.Errorf("%w: 未知字段 %s", risk.ErrInvalidInput, key.String())
			return false
		}
		got := value.Type
		if got == gjson.True {
			got = gjson.False
		}
		if want == gjson.JSON {
			if !value.IsObject() {
				bad = fmt.Errorf("%w: 字段 %s 需为对象", risk.ErrInvalidInput, key.String())
				return false
			}
			return true
		}
		if got != want {
			bad = fmt.Errorf("%w: 字段 %s 类型错误", risk.ErrInvalidInput, key.String())
			return false
		}
		return true
	})
	return bad
}

var rrPatchFields = map[string]gjson.Type{
	"min_risk_reward_ratio":        gjson.Number,
	"preferred_risk_reward_ratio":  gjson.Number,
	"max_risk_percentage":          gjson.Number,
	"market_condition_adjustments": gjson.JSON,
	"enable_dynamic_adjustment":    gjson.False,
	"high_volatility_threshold":    gjson.Number,
	"low_volatility_threshold":     gjson.Number,
	"low_confidence_floor":         gjson.Number,
	"near_threshold_band":          gjson.Number,
}

var portfolioPatchFields = map[string]gjson.Type{
	"max_single_asset_exposure":  gjson.Number,
	"max_sector_exposure":        gjson.Number,
	"min_diversification_score":  gjson.Number,
	"max_portfolio_beta":         gjson.Number,
	"rebalance_threshold":        gjson.Number,
	"high_correlation_threshold": gjson.Number,
	"target_allocations":         gjson.JSON,
}
