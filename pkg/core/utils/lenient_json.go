package utils

import (
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// Strategy names the parser that finally accepted a payload.
type Strategy string

const (
	StrategyJSON   Strategy = "json"
	StrategyRepair Strategy = "json-repair"
	StrategyHJSON  Strategy = "hjson"
)

// RepairJSON fixes truncated or sloppy JSON: unclosed arrays/objects, trailing
// commas, single quotes, unquoted keys.
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON converts Hjson (comments, unquoted keys and strings, optional commas) to JSON.
func ParseHJSON(data string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(data), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}
	return string(out), nil
}

// ParseHJSONToStruct decodes Hjson straight into v. Used for hand-edited files.
func ParseHJSONToStruct(data []byte, v interface{}) error {
	if err := hjson.Unmarshal(data, v); err != nil {
		return fmt.Errorf("HJSON_UNMARSHAL_ERROR: %v", err)
	}
	return nil
}

// DecodeLenient tries, in order, strict JSON, repaired JSON and Hjson, and reports
// which one worked. The feed occasionally returns cut-off bodies under load.
func DecodeLenient(data []byte, v interface{}) (Strategy, error) {
	strictErr := json.Unmarshal(data, v)
	if strictErr == nil {
		return StrategyJSON, nil
	}

	if repaired, err := RepairJSON(string(data)); err == nil {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return StrategyRepair, nil
		}
	}

	if converted, err := ParseHJSON(string(data)); err == nil {
		if err := json.Unmarshal([]byte(converted), v); err == nil {
			return StrategyHJSON, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: %w", strictErr)
}
