package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Args содержит именованные аргументы вызова модуля.
// Значения приходят либо из JSON (float64, string, bool), либо из текста (string).
type Args map[string]interface{}

// Has сообщает, передан ли непустой аргумент.
func (a Args) Has(key string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// String возвращает строковый аргумент или пустую строку.
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int возвращает целый аргумент или def, если аргумент не передан.
func (a Args) Int(key string, def int) (int, error) {
	if !a.Has(key) {
		return def, nil
	}
	switch v := a[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be an integer: %w", key, errInvalidArguments)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer: %w", key, errInvalidArguments)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer: %w", key, errInvalidArguments)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s has unsupported type %T: %w", key, v, errInvalidArguments)
	}
}

// Float возвращает вещественный аргумент или def.
func (a Args) Float(key string, def float64) (float64, error) {
	if !a.Has(key) {
		return def, nil
	}
	switch v := a[key].(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%s must be a number: %w", key, errInvalidArguments)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number: %w", key, errInvalidArguments)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%s has unsupported type %T: %w", key, v, errInvalidArguments)
	}
}

// Seconds читает аргумент в секундах и переводит его в time.Duration.
func (a Args) Seconds(key string, def time.Duration) (time.Duration, error) {
	f, err := a.Float(key, def.Seconds())
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

// ParseArgs разбирает токены вида key=value.
// Токены без '=' записываются по порядку в имена из positional.
func ParseArgs(tokens []string, positional ...string) (Args, error) {
	args := Args{}
	pos := 0
	for _, tok := range tokens {
		if k, v, ok := strings.Cut(tok, "="); ok && isArgKey(k) {
			args[k] = v
			continue
		}
		if pos >= len(positional) {
			return nil, fmt.Errorf("unexpected argument %q: %w", tok, errInvalidArguments)
		}
		args[positional[pos]] = tok
		pos++
	}
	return args, nil
}

func isArgKey(k string) bool {
	if k == "" {
		return false
	}
	for _, ch := range k {
		if (ch >= 'a' && ch <= 'z') || ch == '_' {
			continue
		}
		return false
	}
	return true
}
