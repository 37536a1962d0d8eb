package redis

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/orbit/internal/logger"
)

func validOptions(addr string) ConnectOptions {
	return ConnectOptions{
		Addr:           addr,
		ConnectTimeout: 200 * time.Millisecond,
		RetryInterval:  10 * time.Millisecond,
		MaxWait:        40 * time.Millisecond,
		PingTimeout:    50 * time.Millisecond,
		DialTimeout:    50 * time.Millisecond,
	}
}

func TestValidate(t *testing.T) {
	if err := validOptions("localhost:6379").Validate(); err != nil {
		t.Fatalf("Validate() on valid options = %v", err)
	}

	bad := ConnectOptions{WarnThreshold: -1}
	err := bad.Validate()
	if err == nil {
		t.Fatal("Validate() on zero options should fail")
	}
	for _, want := range []string{"ConnectTimeout", "RetryInterval", "MaxWait", "PingTimeout", "WarnThreshold", "Addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q does not mention %s", err, want)
		}
	}
}

func TestConnectGivesUp(t *testing.T) {
	// grab a free port and close it so nothing listens there
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	start := time.Now()
	_, err = Connect(context.Background(), validOptions(addr), logger.Nop())
	if err == nil {
		t.Fatal("Connect() to a closed port should fail")
	}
	if !strings.Contains(err.Error(), addr) {
		t.Errorf("error %q should name the address", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Connect() took %v, expected to stop near ConnectTimeout", elapsed)
	}
}

func TestConnectHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := validOptions("127.0.0.1:1")
	opts.ConnectTimeout = time.Minute
	if _, err := Connect(ctx, opts, logger.Nop()); err == nil {
		t.Fatal("Connect() with a cancelled context should fail")
	}
}
