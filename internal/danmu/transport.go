package danmu

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wsx864321/danmu/pkg/xerr"
)

// Dialer 底层传输抽象，框架只驱动不实现协议栈
type Dialer interface {
	// Dial 建立到 url 的连接
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// Conn 会话独占的一条连接
type Conn interface {
	// Send 发送一帧，可与 Receive 并发调用
	Send(ctx context.Context, data []byte) error
	// Receive 阻塞读取下一条消息，Close 会使其返回错误
	Receive(ctx context.Context) ([]byte, error)
	// Close 关闭连接，可重复调用
	Close() error
}

// HeaderProvider 由需要额外握手头（Origin、UA 等）的平台 Codec 实现
type HeaderProvider interface {
	DialHeader() http.Header
}

// WSOption websocket 拨号选项
type WSOption func(*WSDialer)

// WithWriteTimeout 单次写超时
func WithWriteTimeout(d time.Duration) WSOption {
	return func(w *WSDialer) {
		w.writeTimeout = d
	}
}

// WithReadLimit 单条消息最大字节数
func WithReadLimit(n int64) WSOption {
	return func(w *WSDialer) {
		w.readLimit = n
	}
}

// WSDialer 基于 gorilla/websocket 的 Dialer
type WSDialer struct {
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	readLimit    int64
}

// NewWSDialer 创建 websocket 拨号器
func NewWSDialer(opts ...WSOption) *WSDialer {
	d := &WSDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   16 << 10,
			WriteBufferSize:  4 << 10,
		},
		writeTimeout: 10 * time.Second,
		readLimit:    4 << 20,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *WSDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, _, err := d.dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, xerr.ErrTransportFailed.Wrapf(err, "dial "+url)
	}
	conn.SetReadLimit(d.readLimit)
	return &wsConn{conn: conn, writeTimeout: d.writeTimeout}, nil
}

const closeFrameTimeout = 200 * time.Millisecond

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	// gorilla 只允许一个并发写者，心跳与握手共用这把锁
	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Send(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if err := ctx.Err(); err != nil {
		return xerr.ErrTransportFailed.Wrapf(err, "write")
	}
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)

	// ctx 取消时把写超时提前到现在，卡住的写立即返回
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return xerr.ErrTransportFailed.Wrapf(err, "write")
	}
	return nil
}

func (c *wsConn) Receive(ctx context.Context) ([]byte, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, xerr.ErrTransportFailed.Wrapf(err, "read")
		}
		if msgType == websocket.BinaryMessage || msgType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		// WriteControl 可与写并发调用，不等 wmu，避免被卡住的 Send 拖住
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeFrameTimeout))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
