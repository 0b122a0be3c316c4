// Package agent ведет диалог с языковой моделью и исполняет запрошенные ею инструменты
// через общий пайплайн с проверкой доступа и аудитом.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/llm/ollama"
	"github.com/dvbondoy/aitomate/internal/modules"
	"github.com/dvbondoy/aitomate/internal/transports/common"
)

// DefaultMaxSteps ограничивает число вызовов инструментов за один ход.
const DefaultMaxSteps = 8

// ErrStepLimit возвращается, когда модель исчерпала лимит шагов хода.
var ErrStepLimit = errors.New("step limit reached")

// LLM отвечает на историю сообщений.
type LLM interface {
	Chat(ctx context.Context, messages []ollama.Message) (string, error)
}

// Agent связывает модель, оператора и пайплайн инструментов.
// Если Confirm выключен, инструменты выполняются без вопроса оператору.
type Agent struct {
	LLM       LLM
	Service   *common.Service
	Prompter  Prompter
	Out       io.Writer
	SubjectID string
	MaxSteps  int
	Confirm   bool
	Spinner   bool
	Logger    *slog.Logger
}

// Chat запускает интерактивный цикл до exit/quit, конца ввода или Ctrl-C.
func (a *Agent) Chat(ctx context.Context) error {
	ctx = common.WithRequestID(ctx, uuid.NewString())
	a.logger().Info("chat session started", "request_id", common.RequestIDFromContext(ctx))
	a.printf("Interactive automation chat. Type 'exit' to quit.\n")

	history := []ollama.Message{{Role: ollama.RoleSystem, Content: ChatPrompt(a.Service.Catalog)}}
	for {
		if ctx.Err() != nil {
			a.printf("\nExiting.\n")
			return nil
		}
		line, err := a.Prompter.Prompt("you> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrAborted) {
				a.printf("\nExiting.\n")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit":
			a.printf("Goodbye.\n")
			return nil
		}
		a.Prompter.AppendHistory(line)

		if strings.HasPrefix(line, "/") {
			if err := a.direct(ctx, line); err != nil {
				return err
			}
			continue
		}

		history = append(history, ollama.Message{Role: ollama.RoleUser, Content: line})
		history, err = a.Turn(ctx, history)
		switch {
		case err == nil, errors.Is(err, ErrStepLimit):
		case errors.Is(err, io.EOF), errors.Is(err, ErrAborted):
			a.printf("\nExiting.\n")
			return nil
		case ctx.Err() != nil:
			a.printf("\nExiting.\n")
			return nil
		default:
			a.logger().Warn("assistant turn failed", "err", err)
			a.printf("assistant> error: %v\n", err)
		}
	}
}

// Monitor выполняет автономный анализ журнала и возвращает итоговую сводку модели.
func (a *Agent) Monitor(ctx context.Context, authLog, threatLog string) (string, error) {
	ctx = common.WithRequestID(ctx, uuid.NewString())
	task := fmt.Sprintf("Analyze %s for suspicious activity and write notes to %s.", authLog, threatLog)
	a.logger().Info("monitor started", "auth_log", authLog, "threat_log", threatLog)

	history := []ollama.Message{
		{Role: ollama.RoleSystem, Content: MonitorPrompt(a.Service.Catalog)},
		{Role: ollama.RoleUser, Content: task},
	}
	history, err := a.Turn(ctx, history)
	if err != nil {
		return "", err
	}
	return history[len(history)-1].Content, nil
}

// Turn отвечает на последнее сообщение истории: вызывает инструменты,
// пока модель не вернет final или обычный текст. Возвращает дополненную историю.
func (a *Agent) Turn(ctx context.Context, history []ollama.Message) ([]ollama.Message, error) {
	maxSteps := a.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	for step := 0; step < maxSteps; step++ {
		raw, err := a.ask(ctx, history)
		if err != nil {
			return history, err
		}
		rep := parseReply(raw)
		if rep.kind == replyText || rep.kind == replyOther || rep.embedded {
			a.printf("assistant> %s\n", raw)
			history = append(history, ollama.Message{Role: ollama.RoleAssistant, Content: raw})
		}

		switch rep.kind {
		case replyTool:
			if !rep.embedded {
				history = append(history, ollama.Message{Role: ollama.RoleAssistant, Content: raw})
			}
			msg, done, err := a.runTool(ctx, rep.tool, rep.args)
			if err != nil {
				return history, err
			}
			history = append(history, ollama.Message{Role: ollama.RoleUser, Content: msg})
			if done {
				return history, nil
			}
		case replyFinal:
			if !rep.embedded {
				a.printf("assistant> %s\n", rep.final)
			}
			history = append(history, ollama.Message{Role: ollama.RoleAssistant, Content: rep.final})
			return history, nil
		default:
			return history, nil
		}
	}
	a.printf("assistant> Stopped after %d tool calls without a final answer.\n", maxSteps)
	return history, fmt.Errorf("%d steps: %w", maxSteps, ErrStepLimit)
}

// runTool выполняет вызов модели. done означает, что ход нужно завершить.
func (a *Agent) runTool(ctx context.Context, name string, args core.Args) (msg string, done bool, err error) {
	tool, ok := a.Service.Catalog.Lookup(name)
	if !ok {
		msg = fmt.Sprintf("Unknown tool '%s'.", name)
		a.printf("assistant> %s\n", msg)
		return msg, true, nil
	}
	if a.Confirm {
		approved, err := a.confirm(tool, args)
		if err != nil {
			return "", true, err
		}
		if !approved {
			a.Service.Decline(ctx, a.SubjectID, tool.Name, args)
			msg = fmt.Sprintf("User declined to run tool %s.", tool.Name)
			a.printf("assistant> %s\n", msg)
			return msg, true, nil
		}
	}

	resp, execErr := a.Service.ExecuteTool(ctx, a.SubjectID, tool.Name, args)
	if execErr != nil && resp.Error == "" {
		resp.Error = execErr.Error()
	}
	encoded, err := json.Marshal(resp)
	if err != nil {
		return "", true, fmt.Errorf("encode %s result: %w", tool.Name, err)
	}
	a.printf("[tool:%s] %s\n", tool.Name, toolDisplay(encoded))
	a.logger().Debug("tool step", "tool", tool.Name, "status", resp.Status)
	return fmt.Sprintf("Tool %s result: %s", tool.Name, encoded), false, nil
}

// direct выполняет строку вида /tool arg key=value без участия модели.
func (a *Agent) direct(ctx context.Context, line string) error {
	name, args, err := common.ParseTextCommand(a.Service.Catalog, line)
	if err != nil {
		a.printf("error: %v\n", err)
		return nil
	}
	_, _, err = a.runTool(ctx, name, args)
	if errors.Is(err, io.EOF) || errors.Is(err, ErrAborted) {
		return nil
	}
	return err
}

func (a *Agent) confirm(tool modules.Tool, args core.Args) (bool, error) {
	preview := tool.Preview(args)
	question := fmt.Sprintf("Execute: %s? [y/N]: ", preview)
	if preview == tool.Name {
		encoded, _ := json.Marshal(args)
		question = fmt.Sprintf("Execute tool '%s' with args %s? [y/N]: ", tool.Name, encoded)
	}
	out := a.Out
	if out == nil {
		out = io.Discard
	}
	return Confirm(a.Prompter, out, question)
}

func (a *Agent) ask(ctx context.Context, history []ollama.Message) (string, error) {
	if a.Spinner {
		stop := startSpinner(a.Out, "thinking")
		defer stop()
	}
	reply, err := a.LLM.Chat(ctx, history)
	if err != nil {
		return "", fmt.Errorf("ask model: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (a *Agent) printf(format string, args ...interface{}) {
	if a.Out == nil {
		return
	}
	_, _ = fmt.Fprintf(a.Out, format, args...)
}

func (a *Agent) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
