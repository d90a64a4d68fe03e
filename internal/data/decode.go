package data

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORD DECODING
// =============================================================================

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

// decimalHook converts the numeric shapes backends return (float64 from JSON, string or
// []byte from SQL text columns, int64 from integer columns) into decimal.Decimal.
func decimalHook(from reflect.Type, to reflect.Type, v interface{}) (interface{}, error) {
	if to != decimalType {
		return v, nil
	}
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case string:
		if x == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(x)
	case []byte:
		if len(x) == 0 {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(string(x))
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	default:
		return nil, fmt.Errorf("cannot convert %T to decimal", v)
	}
}

// dateHook renders DATE columns (time.Time when a driver parses them) in DateLayout.
func dateHook(from reflect.Type, to reflect.Type, v interface{}) (interface{}, error) {
	if from != timeType || to.Kind() != reflect.String {
		return v, nil
	}
	return v.(time.Time).Format(DateLayout), nil
}

func bytesHook(from reflect.Type, to reflect.Type, v interface{}) (interface{}, error) {
	if b, ok := v.([]byte); ok && to.Kind() != reflect.Slice {
		return string(b), nil
	}
	return v, nil
}

// Decode maps backend records onto a model or slice of models using `db` tags.
func Decode(input interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "db",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			decimalHook,
			dateHook,
			bytesHook,
		),
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode records: %w", err)
	}
	return nil
}
