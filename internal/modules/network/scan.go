package network

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dvbondoy/aitomate/internal/core"
)

const (
	DefaultScanTimeout = 2 * time.Second
	minScanTimeout     = 100 * time.Millisecond

	CodeResolveFailed = "resolve_failed"
	CodeDialFailed    = "dial_failed"
)

// Состояния порта.
const (
	PortOpen        = "open"
	PortClosed      = "closed"
	PortUnreachable = "unreachable"
	PortFiltered    = "filtered"
)

// PortResult описывает исход TCP connect-сканирования.
type PortResult struct {
	Host      string   `json:"host"`
	Port      int      `json:"port"`
	State     string   `json:"state"`
	Open      bool     `json:"open"`
	LatencyMS *float64 `json:"latency_ms"`
}

// Scanner выполняет TCP connect-сканирование. Dial заменяет net.Dialer;
// нулевое значение готово к использованию.
type Scanner struct {
	Dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// ScanPort выполняет полное TCP-рукопожатие с host:port.
func ScanPort(ctx context.Context, host string, port int, timeout time.Duration) core.Result[PortResult] {
	var s Scanner
	return s.Scan(ctx, host, port, timeout)
}

// Scan проверяет host:port. Отказ в соединении и недоступность сети считаются
// ответом (ok с задержкой); истечение timeout дает статус timeout без задержки.
func (s *Scanner) Scan(ctx context.Context, host string, port int, timeout time.Duration) core.Result[PortResult] {
	host = strings.TrimSpace(host)
	if err := validateHost(host); err != nil {
		return core.Fail[PortResult](core.CodeInvalidArgument, err.Error())
	}
	if port < 1 || port > 65535 {
		return core.Fail[PortResult](core.CodeInvalidArgument, "port must be between 1 and 65535")
	}
	if timeout < minScanTimeout {
		timeout = minScanTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := PortResult{Host: host, Port: port}
	start := time.Now()
	conn, err := s.dial(dialCtx, net.JoinHostPort(host, strconv.Itoa(port)))
	latency := math.Round(float64(time.Since(start).Microseconds())) / 1000
	if err == nil {
		_ = conn.Close()
		out.State, out.Open, out.LatencyMS = PortOpen, true, &latency
		return core.OK(out)
	}

	var (
		dnsErr *net.DNSError
		netErr net.Error
	)
	switch {
	case errors.As(err, &dnsErr):
		return core.Fail[PortResult](CodeResolveFailed, fmt.Sprintf("resolve %s: %s", host, dnsErr.Err))
	case isConnRefused(err):
		out.State, out.LatencyMS = PortClosed, &latency
		return core.OK(out)
	case isUnreachable(err):
		out.State, out.LatencyMS = PortUnreachable, &latency
		return core.OK(out)
	case ctx.Err() != nil:
		return core.Fail[PortResult](core.CodeCanceled, ctx.Err().Error())
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		out.State = PortFiltered
		return core.TimedOut(out, fmt.Sprintf("no response within %s", timeout))
	default:
		return core.Fail[PortResult](CodeDialFailed, err.Error())
	}
}

func (s *Scanner) dial(ctx context.Context, address string) (net.Conn, error) {
	if s.Dial != nil {
		return s.Dial(ctx, "tcp", address)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", address)
}

func validateHost(host string) error {
	if host == "" {
		return errors.New("host is required")
	}
	if strings.ContainsAny(host, " \t\r\n") || strings.HasPrefix(host, "-") {
		return fmt.Errorf("invalid host %q", host)
	}
	return nil
}
