package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvbondoy/aitomate/internal/core"
)

type replyKind int

const (
	replyText replyKind = iota
	replyTool
	replyFinal
	replyOther
)

// reply хранит разобранный ответ модели. embedded означает, что JSON найден внутри текста.
type reply struct {
	kind     replyKind
	tool     string
	args     core.Args
	final    string
	embedded bool
}

func parseReply(text string) reply {
	obj, err := decodeObject(text)
	embedded := false
	if err != nil {
		var ok bool
		if obj, ok = ExtractJSONObject(text); !ok {
			return reply{kind: replyText}
		}
		embedded = true
	}

	if raw, ok := obj["tool"]; ok {
		name, isString := raw.(string)
		if !isString {
			return reply{kind: replyOther, embedded: embedded}
		}
		args := core.Args{}
		if m, ok := obj["args"].(map[string]interface{}); ok {
			args = core.Args(m)
		}
		return reply{kind: replyTool, tool: strings.TrimSpace(name), args: args, embedded: embedded}
	}
	if raw, ok := obj["final"]; ok {
		final, isString := raw.(string)
		if !isString {
			final = fmt.Sprint(raw)
		}
		return reply{kind: replyFinal, final: final, embedded: embedded}
	}
	return reply{kind: replyOther, embedded: embedded}
}

func decodeObject(text string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(text)))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON object")
	}
	if obj == nil {
		return nil, fmt.Errorf("not a JSON object")
	}
	return obj, nil
}

// ExtractJSONObject находит первый корректный JSON-объект в произвольном тексте.
// Скобки внутри строк и экранированные кавычки учитываются.
func ExtractJSONObject(text string) (map[string]interface{}, bool) {
	for start := strings.IndexByte(text, '{'); start != -1; {
		if end := balancedEnd(text, start); end != -1 {
			if obj, err := decodeObject(text[start : end+1]); err == nil {
				return obj, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next == -1 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// balancedEnd возвращает индекс скобки, закрывающей объект с позиции start, или -1.
func balancedEnd(text string, start int) int {
	depth := 0
	inString, escape := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// toolDisplay возвращает stdout инструмента, если он есть, иначе конверт в JSON с отступами.
func toolDisplay(encoded []byte) string {
	var env struct {
		Data struct {
			Stdout *string `json:"stdout"`
		} `json:"data"`
	}
	if err := json.Unmarshal(encoded, &env); err == nil && env.Data.Stdout != nil {
		return *env.Data.Stdout
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, encoded, "", "  "); err != nil {
		return string(encoded)
	}
	return buf.String()
}
