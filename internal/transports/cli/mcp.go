package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newMCPCmd(rt *session, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Обслуживать MCP-клиента через stdin/stdout",
		Long: "Запускает MCP-сервер на stdio: все инструменты каталога доступны внешнему клиенту.\n" +
			"Вызовы проверяются allowlist источника mcp и пишутся в аудит от имени пользователя ОС.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.app.MCPServer(subjectID(), version).Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
