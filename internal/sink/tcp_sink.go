package sink

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TCPQuoteSink 下游报价推送：文本 TCP 流。
//
// 每条最优价变化编码为一行 "<下游名> <bid> <ask> <unix毫秒>"，广播给所有
// 已连接的订阅方。慢消费者的积压消息直接丢弃，投递失败永远不会传回
// 订单簿缓存。
type TCPQuoteSink struct {
	listenAddr string
	// mapping 交易所 symbol -> 下游名。映射表非空时未映射的 symbol 不推送。
	mapping map[string]string

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]chan string
	stopped bool

	wg  sync.WaitGroup
	log *logrus.Entry
}

// 单个连接的发送缓冲：写满即丢，避免慢消费者拖垮广播
const connBufferSize = 256

// NewTCPQuoteSink 创建报价推送服务。
func NewTCPQuoteSink(listenAddr string, mapping map[string]string) *TCPQuoteSink {
	return &TCPQuoteSink{
		listenAddr: listenAddr,
		mapping:    mapping,
		conns:      make(map[net.Conn]chan string),
		log:        logrus.WithField("component", "quote_sink"),
	}
}

// Start 开始监听订阅连接。
func (s *TCPQuoteSink) Start() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("报价推送监听失败 %s: %w", s.listenAddr, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		ln.Close()
		return fmt.Errorf("报价推送已停止")
	}
	s.ln = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.log.Infof("报价推送已启动: %s", s.listenAddr)
	return nil
}

// Addr 返回实际监听地址（配置端口 0 时由系统分配）。Start 前为空。
func (s *TCPQuoteSink) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop 停止推送并断开所有订阅方。可重复调用；Start 未成功时调用也安全。
func (s *TCPQuoteSink) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	ln := s.ln
	conns := s.conns
	s.conns = make(map[net.Conn]chan string)
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for conn, ch := range conns {
		close(ch)
		conn.Close()
	}
	s.wg.Wait()
	s.log.Info("报价推送已停止")
}

// ConsumeBidAsk 广播一条最优价变化（非阻塞）。
func (s *TCPQuoteSink) ConsumeBidAsk(symbol string, bid, ask decimal.Decimal, timestamp time.Time) {
	name := symbol
	if len(s.mapping) > 0 {
		mapped, ok := s.mapping[symbol]
		if !ok {
			// 下游仅订阅映射表内的交易对
			return
		}
		name = mapped
	}

	line := fmt.Sprintf("%s %s %s %d\n", name, bid.String(), ask.String(), timestamp.UnixMilli())

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.conns {
		select {
		case ch <- line:
		default:
			// 慢消费者：丢弃本条
		}
	}
}

func (s *TCPQuoteSink) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			// 监听器关闭（Stop）或致命错误：退出
			return
		}

		ch := make(chan string, connBufferSize)

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = ch
		s.mu.Unlock()

		s.log.Infof("报价订阅方已连接: %s", conn.RemoteAddr())

		s.wg.Add(1)
		go s.writeLoop(conn, ch)
	}
}

func (s *TCPQuoteSink) writeLoop(conn net.Conn, ch chan string) {
	defer s.wg.Done()
	for line := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if _, err := conn.Write([]byte(line)); err != nil {
			s.log.Warnf("报价订阅方写入失败，断开: %v", err)
			break
		}
	}

	s.mu.Lock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		close(ch)
	}
	s.mu.Unlock()
	conn.Close()
}
