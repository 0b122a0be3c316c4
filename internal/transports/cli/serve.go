package cli

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvbondoy/aitomate/internal/storage"
)

var errNoAuditStore = errors.New("audit storage is unavailable")

func newServeCmd(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API (web.enabled)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.app.Serve(ctx)
		},
	}
}

type auditRecord struct {
	TS        time.Time       `json:"ts"`
	Subject   string          `json:"subject"`
	Source    string          `json:"source"`
	Action    string          `json:"action"`
	Status    string          `json:"status"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func newAuditCmd(rt *session) *cobra.Command {
	var (
		limit   int
		subject string
		source  string
		since   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Показать журнал аудита",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.app.Store == nil {
				return errNoAuditStore
			}
			q := storage.AuditQuery{Subject: subject, Source: source, Limit: limit}
			if since > 0 {
				q.From = time.Now().Add(-since)
			}
			events, err := rt.app.Store.QueryAudit(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := make([]auditRecord, 0, len(events))
			for _, ev := range events {
				rec := auditRecord{
					TS:        ev.TS,
					Subject:   ev.Subject,
					Source:    ev.Source,
					Action:    ev.Action,
					Status:    ev.Status,
					RequestID: ev.RequestID,
				}
				if json.Valid(ev.Payload) {
					rec.Payload = ev.Payload
				}
				out = append(out, rec)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "максимум записей")
	cmd.Flags().StringVar(&subject, "subject", "", "фильтр по субъекту")
	cmd.Flags().StringVar(&source, "source", "", "фильтр по источнику (cli, chat, monitor, mcp, web)")
	cmd.Flags().DurationVar(&since, "since", 0, "только записи не старше, например 24h")
	return cmd
}
