package core

import (
	"errors"
	"testing"
	"time"
)

type payload struct {
	Lines []string
}

func TestResultResponseOK(t *testing.T) {
	resp := OK(payload{Lines: []string{"a"}}).Response()
	if resp.Status != StatusOK || resp.ErrorCode != "" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if _, ok := resp.Data.(payload); !ok {
		t.Fatalf("expected payload data, got %T", resp.Data)
	}
}

func TestResultResponseFailureOmitsData(t *testing.T) {
	resp := Fail[payload]("file_not_found", "no such file").Response()
	if resp.Status != StatusError || resp.ErrorCode != "file_not_found" || resp.Error != "no such file" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if resp.Data != nil {
		t.Fatalf("expected no data, got %#v", resp.Data)
	}
}

func TestResultResponseFailureWithData(t *testing.T) {
	resp := Fail[payload](CodeStartFailed, "boom").WithData(payload{}).Response()
	if resp.Data == nil {
		t.Fatalf("expected attached data")
	}
}

func TestResultTimedOutKeepsPartial(t *testing.T) {
	resp := TimedOut(payload{Lines: []string{"partial"}}, "timed out").Response()
	if resp.Status != StatusTimeout || resp.ErrorCode != CodeTimeout {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if p, ok := resp.Data.(payload); !ok || len(p.Lines) != 1 {
		t.Fatalf("expected partial payload, got %#v", resp.Data)
	}
}

func TestUnavailable(t *testing.T) {
	resp := Unavailable[payload]("ssh_unavailable", "ssh binary not available").Response()
	if resp.Status != StatusUnavailable || resp.OK() {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestArgsGetters(t *testing.T) {
	a := Args{"host": "example.org", "port": float64(22), "count": "3", "timeout": 1.5, "empty": "  "}
	if a.String("host") != "example.org" {
		t.Fatalf("unexpected host")
	}
	if a.Has("empty") || a.Has("missing") {
		t.Fatalf("blank and missing args must not be reported as present")
	}
	port, err := a.Int("port", 0)
	if err != nil || port != 22 {
		t.Fatalf("unexpected port: %d %v", port, err)
	}
	count, err := a.Int("count", 4)
	if err != nil || count != 3 {
		t.Fatalf("unexpected count: %d %v", count, err)
	}
	def, err := a.Int("missing", 7)
	if err != nil || def != 7 {
		t.Fatalf("unexpected default: %d %v", def, err)
	}
	d, err := a.Seconds("timeout", time.Second)
	if err != nil || d != 1500*time.Millisecond {
		t.Fatalf("unexpected timeout: %v %v", d, err)
	}
	if _, err := (Args{"port": 2.5}).Int("port", 0); !errors.Is(err, errInvalidArguments) {
		t.Fatalf("expected invalid arguments for fractional port, got %v", err)
	}
	if _, err := (Args{"port": "abc"}).Int("port", 0); !IsInvalidArguments(err) {
		t.Fatalf("expected invalid arguments for non-numeric port, got %v", err)
	}
}

func TestParseArgs(t *testing.T) {
	a, err := ParseArgs([]string{"example.org", "count=2", "80"}, "host", "port")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.String("host") != "example.org" || a.String("port") != "80" || a.String("count") != "2" {
		t.Fatalf("unexpected args: %#v", a)
	}
	if _, err := ParseArgs([]string{"a", "b"}, "host"); err == nil {
		t.Fatalf("expected error for extra positional argument")
	}
}
