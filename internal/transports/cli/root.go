// Package cli реализует командную строку aitomate поверх cobra.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/dvbondoy/aitomate/internal/app"
	"github.com/dvbondoy/aitomate/internal/config"
	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/pkg/logger"
)

// session хранит приложение, собранное в PersistentPreRunE.
type session struct {
	configPath string
	app        *app.App
}

// New создает корневую CLI-команду.
func New(version string) *cobra.Command {
	rt := &session{}
	root := &cobra.Command{
		Use:           "aitomate",
		Short:         "Локальный агент автоматизации с инструментами для языковой модели",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return rt.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rt.app == nil {
				return nil
			}
			return rt.app.Close()
		},
	}
	root.PersistentFlags().StringVar(&rt.configPath, "config", "", "путь к config.yaml (по умолчанию ./"+config.DefaultPath+")")

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(
		newReadCmd(rt),
		newAppendCmd(rt),
		newRunCmd(rt),
		newSysinfoCmd(rt),
		newPingCmd(rt),
		newScanCmd(rt),
		newSSHCmd(rt),
	)
	root.AddCommand(newChatCmd(rt), newMonitorCmd(rt))
	root.AddCommand(newServeCmd(rt), newMCPCmd(rt, version), newAuditCmd(rt))
	return root
}

func (rt *session) load(cmd *cobra.Command) error {
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	lg := logger.NewWriter(cmd.ErrOrStderr(), cfg.Agent.LogLevel)
	a, err := app.New(cmd.Context(), cfg, lg)
	if err != nil {
		return err
	}
	rt.app = a
	return nil
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

// subjectID возвращает имя пользователя ОС, от имени которого пишется аудит.
func subjectID() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// execTool выполняет инструмент от имени CLI и печатает конверт.
func (rt *session) execTool(cmd *cobra.Command, tool string, args core.Args) error {
	resp, err := rt.app.Service(app.SourceCLI).ExecuteTool(cmd.Context(), subjectID(), tool, args)
	if werr := writeJSON(cmd.OutOrStdout(), resp); werr != nil {
		return werr
	}
	return err
}
