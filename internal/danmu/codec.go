package danmu

import (
	"errors"
	"time"

	"github.com/wsx864321/danmu/pkg/xerr"
)

// Codec 平台协议编解码契约，实现必须是无状态、无 I/O 的纯函数集合。
//
// Decode 对控制帧或未知类型返回 (nil, nil)；只有弹幕帧返回事件。
// 单帧损坏返回 xerr.ErrFrameMalformed，会话记录后继续；
// 流失去同步返回 xerr.ErrFrameCorrupt，会话重连。
type Codec interface {
	// Platform 平台标识
	Platform() Platform
	// Endpoint 长连接地址
	Endpoint() string
	// HeartbeatInterval 心跳间隔
	HeartbeatInterval() time.Duration
	// Handshake 连接建立后发送的第一帧
	Handshake(rc RoomContext) ([]byte, error)
	// Heartbeat 心跳帧
	Heartbeat() []byte
	// Decode 解码一帧
	Decode(frame []byte) (*Event, error)
}

// HandshakeAcker 由需要等待服务端确认的平台实现。
// 未实现时握手帧发出即进入 Active。
type HandshakeAcker interface {
	HandshakeAck(frame []byte) bool
}

// Framer 由基于字节流分帧的平台实现。
// buf 不足一帧时返回 (nil, buf, nil)；长度字段越界返回 xerr.ErrFrameCorrupt。
type Framer interface {
	NextFrame(buf []byte) (frame []byte, rest []byte, err error)
}

// FrameNamer 可选能力：给不产生事件的帧一个可读名称，会话在 debug 级别记录
type FrameNamer interface {
	FrameName(frame []byte) string
}

// IsUnrecoverable 帧错误是否要求整条连接重建
func IsUnrecoverable(err error) bool {
	return errors.Is(err, xerr.ErrFrameCorrupt)
}

// Malformed 包装为可恢复的单帧错误
func Malformed(cause error, detail string) error {
	return xerr.ErrFrameMalformed.Wrapf(cause, detail)
}

// Corrupt 包装为不可恢复的失步错误
func Corrupt(cause error, detail string) error {
	return xerr.ErrFrameCorrupt.Wrapf(cause, detail)
}

// Driver 某个平台的一组协作者
type Driver struct {
	Codec    Codec
	Resolver Resolver
	Tuning   Tuning
}
