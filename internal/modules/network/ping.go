package network

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dvbondoy/aitomate/internal/core"
	"github.com/dvbondoy/aitomate/internal/modules/shell"
)

const (
	DefaultPingCount   = 4
	DefaultPingTimeout = 2 * time.Second

	maxPingCount = 10

	CodePingUnavailable = "ping_unavailable"
)

// PingResult содержит исход пинга и разобранную статистику пакетов.
type PingResult struct {
	Host        string   `json:"host"`
	Count       int      `json:"count"`
	Reachable   bool     `json:"reachable"`
	Transmitted *int     `json:"transmitted"`
	Received    *int     `json:"received"`
	LossPct     *float64 `json:"loss_pct"`
	RTTAvgMS    *float64 `json:"rtt_avg_ms"`
	shell.Output
}

// Pinger запускает системную утилиту ping. Binary переопределяет поиск в PATH,
// GOOS выбирает набор флагов (пусто означает runtime.GOOS).
type Pinger struct {
	Binary string
	GOOS   string
	Runner *shell.Runner
}

// PingHost пингует host утилитой из PATH.
func PingHost(ctx context.Context, host string, count int, timeout time.Duration) core.Result[PingResult] {
	var p Pinger
	return p.Ping(ctx, host, count, timeout)
}

// Ping отправляет count эхо-запросов (1..10) и ждет ответа на каждый не дольше timeout (минимум 1с).
// Весь вызов ограничен count*(timeout+1) секундами.
func (p *Pinger) Ping(ctx context.Context, host string, count int, timeout time.Duration) core.Result[PingResult] {
	host = strings.TrimSpace(host)
	if err := validateHost(host); err != nil {
		return core.Fail[PingResult](core.CodeInvalidArgument, err.Error())
	}
	bin, err := p.binary()
	if err != nil {
		return core.Unavailable[PingResult](CodePingUnavailable, "ping binary not available")
	}

	count, secs := normalizePing(count, timeout)
	argv := append([]string{bin}, PingArgs(p.goos(), host, count, secs)...)
	bound := time.Duration(count*(secs+1)) * time.Second

	runner := p.Runner
	if runner == nil {
		runner = &shell.Runner{}
	}
	res := runner.Exec(ctx, argv, bound)

	out := PingResult{Host: host, Count: count, Output: res.Data}
	switch res.Status {
	case core.StatusOK:
		out.Reachable = res.Data.ReturnCode == 0
		parsePingStats(res.Data.Stdout, &out)
		return core.OK(out)
	case core.StatusTimeout:
		parsePingStats(res.Data.Stdout, &out)
		return core.TimedOut(out, fmt.Sprintf("ping operation timed out after %s", bound))
	default:
		code, msg := core.CodeStartFailed, "ping failed"
		if res.Failure != nil {
			code, msg = res.Failure.Code, res.Failure.Message
		}
		if code == core.CodeCanceled {
			return core.Fail[PingResult](code, msg).WithData(out)
		}
		return core.Fail[PingResult](code, msg)
	}
}

// BuildPingArgs возвращает аргументы, с которыми Ping запустит утилиту:
// count ограничен 1..10, timeout округлен вверх до целых секунд.
func BuildPingArgs(goos, host string, count int, timeout time.Duration) []string {
	count, secs := normalizePing(count, timeout)
	return PingArgs(goos, strings.TrimSpace(host), count, secs)
}

func normalizePing(count int, timeout time.Duration) (int, int) {
	secs := int(math.Ceil(timeout.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return clamp(count, 1, maxPingCount), secs
}

// PingArgs возвращает аргументы ping для платформы: timeout задан в секундах.
func PingArgs(goos, host string, count, timeoutSec int) []string {
	switch goos {
	case "windows":
		return []string{"-n", strconv.Itoa(count), "-w", strconv.Itoa(timeoutSec * 1000), host}
	case "darwin", "freebsd", "openbsd", "netbsd":
		return []string{"-c", strconv.Itoa(count), "-W", strconv.Itoa(timeoutSec * 1000), host}
	default:
		return []string{"-c", strconv.Itoa(count), "-W", strconv.Itoa(timeoutSec), host}
	}
}

func (p *Pinger) binary() (string, error) {
	name := p.Binary
	if name == "" {
		name = "ping"
	}
	return exec.LookPath(name)
}

func (p *Pinger) goos() string {
	if p.GOOS != "" {
		return p.GOOS
	}
	return runtime.GOOS
}

// Форматы сводки:
//
//	Linux:   4 packets transmitted, 4 received, 0% packet loss
//	macOS:   4 packets transmitted, 4 packets received, 0.0% packet loss
//	Windows: Packets: Sent = 4, Received = 4, Lost = 0 (0% loss)
var (
	unixStatsRe = regexp.MustCompile(`(\d+) packets transmitted, (\d+) (?:packets )?received.*?([\d.]+)% packet loss`)
	unixRTTRe   = regexp.MustCompile(`(?:rtt|round-trip) min/avg/max/(?:mdev|stddev) = [\d.]+/([\d.]+)/`)
	winStatsRe  = regexp.MustCompile(`Sent = (\d+), Received = (\d+), Lost = \d+ \((\d+)% loss\)`)
	winRTTRe    = regexp.MustCompile(`Average = (\d+)ms`)
)

func parsePingStats(text string, out *PingResult) {
	m := unixStatsRe.FindStringSubmatch(text)
	if m == nil {
		m = winStatsRe.FindStringSubmatch(text)
	}
	if m != nil {
		tx, _ := strconv.Atoi(m[1])
		rx, _ := strconv.Atoi(m[2])
		loss, _ := strconv.ParseFloat(m[3], 64)
		out.Transmitted, out.Received, out.LossPct = &tx, &rx, &loss
	}

	r := unixRTTRe.FindStringSubmatch(text)
	if r == nil {
		r = winRTTRe.FindStringSubmatch(text)
	}
	if r != nil {
		if avg, err := strconv.ParseFloat(r[1], 64); err == nil {
			out.RTTAvgMS = &avg
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
