package douyu

import (
	"net/http"
	"strconv"
	"time"

	"github.com/wsx864321/danmu/internal/danmu"
)

const (
	// Endpoint 斗鱼弹幕代理
	Endpoint = "wss://danmuproxy.douyu.com:8506/"
	// HeartbeatInterval 心跳间隔
	HeartbeatInterval = 45 * time.Second

	// IDRoom RoomContext 中的真实房间号
	IDRoom = "room_id"

	groupAll = "-9999"
)

// 消息类型
const (
	TypeLoginReq  = "loginreq"
	TypeLoginRes  = "loginres"
	TypeJoinGroup = "joingroup"
	TypeHeartbeat = "mrkl"
	TypeChatMsg   = "chatmsg"
	TypeLogout    = "logout"
)

// colors chatmsg.col 到 RGB
var colors = map[int]int{
	1: 0xff0000,
	2: 0x1e87f0,
	3: 0x7ac84b,
	4: 0xff7f00,
	5: 0x9b39f4,
	6: 0xff69b4,
}

const defaultColor = 0xffffff

// Codec 斗鱼 STT 协议编解码，无状态可并发使用
type Codec struct {
	endpoint string
}

type CodecOption func(c *Codec)

// WithEndpoint 替换长连接地址
func WithEndpoint(endpoint string) CodecOption {
	return func(c *Codec) {
		c.endpoint = endpoint
	}
}

// NewCodec 创建斗鱼编解码器
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{endpoint: Endpoint}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Platform() danmu.Platform {
	return danmu.PlatformDouyu
}

func (c *Codec) Endpoint() string {
	return c.endpoint
}

func (c *Codec) HeartbeatInterval() time.Duration {
	return HeartbeatInterval
}

func (c *Codec) DialHeader() http.Header {
	h := http.Header{}
	h.Set("Origin", BaseURL)
	h.Set("User-Agent", userAgent)
	return h
}

// Handshake loginreq + joingroup 两个包拼接发送
func (c *Codec) Handshake(rc danmu.RoomContext) ([]byte, error) {
	rid := strconv.FormatInt(rc.ID(IDRoom), 10)
	login, err := encodeMessage(Field{Key: "type", Value: TypeLoginReq}, Field{Key: "roomid", Value: rid})
	if err != nil {
		return nil, err
	}
	join, err := encodeMessage(Field{Key: "type", Value: TypeJoinGroup}, Field{Key: "rid", Value: rid}, Field{Key: "gid", Value: groupAll})
	if err != nil {
		return nil, err
	}
	return append(login, join...), nil
}

func (c *Codec) Heartbeat() []byte {
	b, _ := encodeMessage(Field{Key: "type", Value: TypeHeartbeat})
	return b
}

// NextFrame 实现 danmu.Framer，一条 websocket 消息可能包含多个包
func (c *Codec) NextFrame(buf []byte) ([]byte, []byte, error) {
	return NextFrame(buf)
}

// HandshakeAck 收到 loginres 视为登录成功
func (c *Codec) HandshakeAck(frame []byte) bool {
	msg, err := decodeMessage(frame)
	if err != nil {
		return false
	}
	return msg["type"] == TypeLoginRes
}

// Decode 只有 chatmsg 产生事件
// FrameName STT 消息的 type 字段
func (c *Codec) FrameName(frame []byte) string {
	msg, err := decodeMessage(frame)
	if err != nil {
		return "invalid"
	}
	if typ := msg["type"]; typ != "" {
		return typ
	}
	return "untyped"
}

func (c *Codec) Decode(frame []byte) (*danmu.Event, error) {
	msg, err := decodeMessage(frame)
	if err != nil {
		return nil, err
	}
	if msg["type"] != TypeChatMsg {
		return nil, nil
	}

	color := defaultColor
	if col, err := strconv.Atoi(msg["col"]); err == nil {
		if rgb, ok := colors[col]; ok {
			color = rgb
		}
	}
	var ts float64
	if cst, err := strconv.ParseFloat(msg["cst"], 64); err == nil {
		ts = cst
	}
	return &danmu.Event{
		Sender:    msg["nn"],
		Content:   msg["txt"],
		Color:     color,
		Timestamp: ts,
	}, nil
}

func encodeMessage(fields ...Field) ([]byte, error) {
	return EncodePacket(Packet{MsgType: MsgTypeClient, Body: MarshalFields(fields...)})
}

func decodeMessage(frame []byte) (map[string]string, error) {
	pkt, err := DecodePacket(frame)
	if err != nil {
		return nil, err
	}
	msg, err := Unmarshal(pkt.Body)
	if err != nil {
		return nil, danmu.Malformed(err, "stt body")
	}
	return msg, nil
}
