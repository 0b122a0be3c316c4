package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvbondoy/aitomate/internal/core"
)

func newReadCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "read PATH",
		Short: "Прочитать текстовый файл",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.execTool(cmd, "read_file", core.Args{"path": args[0]})
		},
	}
}

func newAppendCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "append PATH TEXT...",
		Short: "Дописать строку в журнал",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.execTool(cmd, "append_log", core.Args{"path": args[0], "text": strings.Join(args[1:], " ")})
		},
	}
}

func newRunCmd(rt *session) *cobra.Command {
	var timeout float64
	cmd := &cobra.Command{
		Use:   "run COMMAND...",
		Short: "Выполнить команду оболочки",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := core.Args{"command": strings.Join(args, " ")}
			if cmd.Flags().Changed("timeout") {
				a["timeout"] = timeout
			}
			return rt.execTool(cmd, "run_command", a)
		},
	}
	cmd.Flags().Float64Var(&timeout, "timeout", 30, "таймаут в секундах")
	return cmd
}

func newSysinfoCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "sysinfo",
		Short: "Показать сведения о системе",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.execTool(cmd, "system_info", core.Args{})
		},
	}
}

func newPingCmd(rt *session) *cobra.Command {
	var (
		count   int
		timeout float64
	)
	cmd := &cobra.Command{
		Use:   "ping HOST",
		Short: "Проверить доступность узла через ping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.execTool(cmd, "ping_host", core.Args{"host": args[0], "count": count, "timeout": timeout})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "c", 4, "число пакетов")
	cmd.Flags().Float64Var(&timeout, "timeout", 2, "ожидание ответа на пакет, секунды")
	return cmd
}

func newScanCmd(rt *session) *cobra.Command {
	var timeout float64
	cmd := &cobra.Command{
		Use:   "scan HOST PORT",
		Short: "Проверить TCP-порт",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.execTool(cmd, "scan_port", core.Args{"host": args[0], "port": args[1], "timeout": timeout})
		},
	}
	cmd.Flags().Float64Var(&timeout, "timeout", 2, "таймаут подключения, секунды")
	return cmd
}

func newSSHCmd(rt *session) *cobra.Command {
	var (
		userName string
		port     int
		keyPath  string
		timeout  float64
	)
	cmd := &cobra.Command{
		Use:   "ssh HOST COMMAND...",
		Short: "Выполнить команду на удаленном узле через ssh",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := core.Args{"host": args[0], "command": strings.Join(args[1:], " "), "port": port}
			if userName != "" {
				a["user"] = userName
			}
			if keyPath != "" {
				a["key_path"] = keyPath
			}
			if cmd.Flags().Changed("timeout") {
				a["timeout"] = timeout
			}
			return rt.execTool(cmd, "ssh_command", a)
		},
	}
	cmd.Flags().StringVarP(&userName, "user", "u", "", "пользователь на удаленном узле")
	cmd.Flags().IntVarP(&port, "port", "p", 22, "порт ssh")
	cmd.Flags().StringVarP(&keyPath, "key", "i", "", "путь к приватному ключу")
	cmd.Flags().Float64Var(&timeout, "timeout", 30, "таймаут в секундах")
	return cmd
}
