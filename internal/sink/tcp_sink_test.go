package sink

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTCPQuoteSink_Broadcast(t *testing.T) {
	s := NewTCPQuoteSink("127.0.0.1:0", map[string]string{"BTCUSDT": "BTCUSD"})
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Stop()

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	bid := decimal.RequireFromString("30000.12")
	ask := decimal.RequireFromString("30000.34")
	ts := time.UnixMilli(1700000000000)

	// accept 是异步的：重发直到订阅方注册完成并收到第一行
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	reader := bufio.NewReader(conn)
	done := make(chan string, 1)
	go func() {
		line, err := reader.ReadString('\n')
		if err == nil {
			done <- line
		}
	}()

	var line string
	for i := 0; i < 100; i++ {
		s.ConsumeBidAsk("BTCUSDT", bid, ask, ts)
		select {
		case line = <-done:
		case <-time.After(20 * time.Millisecond):
		}
		if line != "" {
			break
		}
	}
	if line == "" {
		t.Fatalf("no quote line received")
	}

	// "<下游名> <bid> <ask> <unix毫秒>"
	fields := strings.Fields(line)
	if len(fields) != 4 {
		t.Fatalf("unexpected line format: %q", line)
	}
	if fields[0] != "BTCUSD" {
		t.Fatalf("mapped name got=%s want=BTCUSD", fields[0])
	}
	if fields[1] != "30000.12" || fields[2] != "30000.34" {
		t.Fatalf("prices got=%s/%s", fields[1], fields[2])
	}
	if fields[3] != "1700000000000" {
		t.Fatalf("timestamp got=%s", fields[3])
	}
}

func TestTCPQuoteSink_UnmappedSymbolSkipped(t *testing.T) {
	s := NewTCPQuoteSink("127.0.0.1:0", map[string]string{"BTCUSDT": "BTCUSD"})
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Stop()

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	time.Sleep(50 * time.Millisecond) // 等待 accept 完成

	// 映射表内不存在的 symbol：不推送
	s.ConsumeBidAsk("DOGEUSDT", decimal.NewFromInt(1), decimal.NewFromInt(2), time.Now())

	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	buf := make([]byte, 64)
	if n, err := conn.Read(buf); err == nil {
		t.Fatalf("expected no data, got %q", buf[:n])
	}
}

func TestTCPQuoteSink_EmptyMappingPassesThrough(t *testing.T) {
	s := NewTCPQuoteSink("127.0.0.1:0", nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Stop()

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	time.Sleep(50 * time.Millisecond)

	s.ConsumeBidAsk("ETHUSDT", decimal.NewFromInt(2000), decimal.NewFromInt(2001), time.Now())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if !strings.HasPrefix(line, "ETHUSDT ") {
		t.Fatalf("unmapped symbol should pass through as-is: %q", line)
	}
}

func TestTCPQuoteSink_StopIdempotent(t *testing.T) {
	s := NewTCPQuoteSink("127.0.0.1:0", nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	s.Stop()
	s.Stop()

	// Stop 后投递是 no-op，不 panic
	s.ConsumeBidAsk("BTCUSDT", decimal.NewFromInt(1), decimal.NewFromInt(2), time.Now())
}

func TestTCPQuoteSink_StopWithoutStart(t *testing.T) {
	s := NewTCPQuoteSink("127.0.0.1:0", nil)
	s.Stop() // 不 panic
}
