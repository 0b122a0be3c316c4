package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dvbondoy/aitomate/internal/agent"
	"github.com/dvbondoy/aitomate/internal/app"
)

const historyFile = ".aitomate_history"

func newChatCmd(rt *session) *cobra.Command {
	var maxSteps int
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Интерактивный диалог с моделью и подтверждением инструментов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompter := newPrompter(cmd)
			defer prompter.Close()

			a := rt.newAgent(cmd, app.SourceChat, maxSteps)
			a.Prompter = prompter
			a.Confirm = true
			return a.Chat(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "лимит вызовов инструментов за ход (по умолчанию из конфига)")
	return cmd
}

func newMonitorCmd(rt *session) *cobra.Command {
	var (
		authLog   string
		threatLog string
		maxSteps  int
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Автономный анализ журнала авторизации",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rt.app.Config
			if authLog == "" {
				authLog = cfg.Logs.Auth
			}
			if threatLog == "" {
				threatLog = cfg.Logs.Threat
			}
			a := rt.newAgent(cmd, app.SourceMonitor, maxSteps)
			summary, err := a.Monitor(cmd.Context(), authLog, threatLog)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\n===== FINAL AGENT SUMMARY =====")
			fmt.Fprintln(out, summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&authLog, "auth-log", "", "журнал для анализа (по умолчанию logs.auth)")
	cmd.Flags().StringVar(&threatLog, "threat-log", "", "файл для заметок (по умолчанию logs.threat)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "лимит вызовов инструментов (по умолчанию из конфига)")
	return cmd
}

func (rt *session) newAgent(cmd *cobra.Command, source string, maxSteps int) *agent.Agent {
	if maxSteps <= 0 {
		maxSteps = rt.app.Config.Agent.MaxSteps
	}
	out := cmd.OutOrStdout()
	return &agent.Agent{
		LLM:       rt.app.LLM(),
		Service:   rt.app.Service(source),
		Out:       out,
		SubjectID: subjectID(),
		MaxSteps:  maxSteps,
		Spinner:   isTerminal(out),
		Logger:    rt.app.Logger.With("source", source),
	}
}

// newPrompter использует редактор строк для терминала; прочие входы читаются построчно.
func newPrompter(cmd *cobra.Command) agent.Prompter {
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return agent.NewLinePrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFile)
	}
	return agent.NewPrompter(in, cmd.OutOrStdout(), history)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
