// Package mcpstdio публикует каталог инструментов по протоколу MCP поверх stdio.
//
// Каждый вызов идет через тот же пайплайн, что и CLI: allowlist, модуль, аудит.
// Ответ инструмента передается клиенту как JSON-конверт в текстовом содержимом.
package mcpstdio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/modules"
)

// Executor выполняет инструмент каталога от имени субъекта.
type Executor interface {
	ExecuteTool(ctx context.Context, subjectID, tool string, args core.Args) (core.Response, error)
}

// Server связывает MCP-сервер с пайплайном исполнения.
type Server struct {
	mcp     *server.MCPServer
	exec    Executor
	subject string
	logger  *slog.Logger
}

// New регистрирует все инструменты catalog. Вызовы пишутся в аудит под subject.
func New(exec Executor, catalog *modules.Catalog, subject, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{exec: exec, subject: subject, logger: logger}
	s.mcp = server.NewMCPServer("aitomate", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, t := range catalog.Tools() {
		s.mcp.AddTool(toolSchema(t), s.handler(t.Name))
	}
	return s
}

// MCP возвращает сервер протокола, например для клиента в том же процессе.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve обслуживает одного клиента до EOF на in или отмены ctx.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server started", "subject", s.subject)
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func toolSchema(t modules.Tool) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(t.Description),
		mcp.WithTitleAnnotation(t.Signature),
		mcp.WithOpenWorldHintAnnotation(t.Executes),
	}
	for _, p := range t.Params {
		var props []mcp.PropertyOption
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Kind {
		case modules.KindInteger:
			opts = append(opts, mcp.WithNumber(p.Name, append(props, mcp.MultipleOf(1))...))
		case modules.KindNumber:
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		default:
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

// handler возвращает отказы и ошибки модулей как результат с IsError,
// а не как ошибку протокола, чтобы клиент видел error_code.
func (s *Server) handler(tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := s.exec.ExecuteTool(ctx, s.subject, tool, core.Args(req.GetArguments()))
		if resp.Status == "" {
			resp.Status = core.StatusError
			if err != nil {
				resp.Error = err.Error()
			}
		}
		data, mErr := json.Marshal(resp)
		if mErr != nil {
			return nil, fmt.Errorf("encode %s result: %w", tool, mErr)
		}
		s.logger.Debug("mcp tool call", "tool", tool, "status", resp.Status, "error_code", resp.ErrorCode)
		res := mcp.NewToolResultText(string(data))
		res.IsError = !resp.OK()
		return res, nil
	}
}
