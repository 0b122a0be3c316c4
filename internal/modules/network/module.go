// Package network содержит сетевые пробы: ICMP ping через системную утилиту
// и TCP connect-сканирование порта.
package network

import (
	"context"

	"github.com/dvbondoy/aitomate/internal/core"
)

// Module публикует пробы в реестре под именем "net".
type Module struct {
	Pinger  Pinger
	Scanner Scanner
}

func (m *Module) Name() string { return "net" }

func (m *Module) Commands() []string { return []string{"ping", "scan"} }

func (m *Module) Init(context.Context) error { return nil }

func (m *Module) Execute(ctx context.Context, cmd string, args core.Args) (core.Response, error) {
	switch cmd {
	case "ping":
		count, err := args.Int("count", DefaultPingCount)
		if err != nil {
			return core.BadArguments(err)
		}
		timeout, err := args.Seconds("timeout", DefaultPingTimeout)
		if err != nil {
			return core.BadArguments(err)
		}
		return m.Pinger.Ping(ctx, args.String("host"), count, timeout).Response(), nil
	case "scan":
		port, err := args.Int("port", 0)
		if err != nil {
			return core.BadArguments(err)
		}
		timeout, err := args.Seconds("timeout", DefaultScanTimeout)
		if err != nil {
			return core.BadArguments(err)
		}
		return m.Scanner.Scan(ctx, args.String("host"), port, timeout).Response(), nil
	default:
		return core.UnknownCommand(m.Name(), cmd)
	}
}
