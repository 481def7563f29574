package huya

import (
	"net/http"
	"strconv"
	"time"

	"github.com/wsx864321/danmu/internal/danmu"
)

const (
	// Endpoint 虎牙弹幕长连接
	Endpoint = "wss://cdnws.api.huya.com:443"
	// HeartbeatInterval 心跳间隔
	HeartbeatInterval = 60 * time.Second

	defaultColor = 0xffffff
)

// heartbeatPacket 平台约定的 WupReq 心跳包，原样发送
var heartbeatPacket = []byte{
	0x00, 0x03, 0x1d, 0x00, 0x00, 0x69, 0x00, 0x00, 0x00, 0x69, 0x10, 0x03, 0x2c, 0x3c, 0x4c, 0x56,
	0x08, 0x6f, 0x6e, 0x6c, 0x69, 0x6e, 0x65, 0x75, 0x69, 0x66, 0x0f, 0x4f, 0x6e, 0x55, 0x73, 0x65,
	0x72, 0x48, 0x65, 0x61, 0x72, 0x74, 0x42, 0x65, 0x61, 0x74, 0x7d, 0x00, 0x00, 0x3c, 0x08, 0x00,
	0x01, 0x06, 0x04, 0x74, 0x52, 0x65, 0x71, 0x1d, 0x00, 0x00, 0x2f, 0x0a, 0x0a, 0x0c, 0x16, 0x00,
	0x26, 0x00, 0x36, 0x07, 0x61, 0x64, 0x72, 0x5f, 0x77, 0x61, 0x70, 0x46, 0x00, 0x0b, 0x12, 0x03,
	0xae, 0xf0, 0x0f, 0x22, 0x03, 0xae, 0xf0, 0x0f, 0x3c, 0x42, 0x6d, 0x52, 0x02, 0x60, 0x5c, 0x60,
	0x01, 0x7c, 0x82, 0x00, 0x0b, 0xb0, 0x1f, 0x9c, 0xac, 0x0b, 0x8c, 0x98, 0x0c, 0xa8, 0x0c,
}

// RoomContext 中的标识名
const (
	IDAyyuid = "ayyuid"
	IDTopsid = "topsid"
	IDSubid  = "subid"
)

// Codec 虎牙 Tars 协议编解码，无状态可并发使用
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

// NewCodec 创建虎牙编解码器
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{endpoint: Endpoint}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Platform() danmu.Platform {
	return danmu.PlatformHuya
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

// Handshake RegisterReq，携带匿名 UserInfo
func (c *Codec) Handshake(rc danmu.RoomContext) ([]byte, error) {
	user := UserInfo{
		UID:       rc.ID(IDAyyuid),
		Anonymous: true,
		TID:       rc.ID(IDTopsid),
		SID:       rc.ID(IDSubid),
	}
	var body tarsWriter
	user.writeTo(&body)

	cmd := Command{
		CmdType: OpRegisterReq,
		Data:    body.Bytes(),
	}
	var w tarsWriter
	cmd.writeTo(&w)
	return w.Bytes(), nil
}

func (c *Codec) Heartbeat() []byte {
	return append([]byte(nil), heartbeatPacket...)
}

// FrameName 不产生事件的帧的命令名，MsgPushReq 附带 lUri
func (c *Codec) FrameName(frame []byte) string {
	st, err := newTarsReader(frame).readTop()
	if err != nil {
		return "invalid"
	}
	var cmd Command
	if err := cmd.readFrom(st); err != nil {
		return "invalid"
	}
	if cmd.CmdType != OpMsgPushReq {
		return cmd.CmdType.String()
	}

	st, err = newTarsReader(cmd.Data).readTop()
	if err != nil {
		return cmd.CmdType.String()
	}
	var push PushMessage
	if err := push.readFrom(st); err != nil {
		return cmd.CmdType.String()
	}
	return cmd.CmdType.String() + "/uri=" + strconv.FormatInt(push.URI, 10)
}

// Decode 只有 MsgPushReq 中 lUri=1400 的 MessageNotice 产生事件
func (c *Codec) Decode(frame []byte) (*danmu.Event, error) {
	st, err := newTarsReader(frame).readTop()
	if err != nil {
		return nil, danmu.Malformed(err, "command")
	}
	var cmd Command
	if err := cmd.readFrom(st); err != nil {
		return nil, danmu.Malformed(err, "command")
	}
	if cmd.CmdType != OpMsgPushReq {
		return nil, nil
	}

	st, err = newTarsReader(cmd.Data).readTop()
	if err != nil {
		return nil, danmu.Malformed(err, "push message")
	}
	var push PushMessage
	if err := push.readFrom(st); err != nil {
		return nil, danmu.Malformed(err, "push message")
	}
	if push.URI != URIMessageNotice {
		return nil, nil
	}

	st, err = newTarsReader(push.Data).readTop()
	if err != nil {
		return nil, danmu.Malformed(err, "message notice")
	}
	var notice MessageNotice
	if err := notice.readFrom(st); err != nil {
		return nil, danmu.Malformed(err, "message notice")
	}

	color := int(notice.Bullet.FontColor)
	if color < 0 {
		color = defaultColor
	}
	return &danmu.Event{
		Sender:    notice.Sender.NickName,
		Content:   notice.Content,
		Color:     color,
		FontSize:  int(notice.Bullet.FontSize),
		Timestamp: float64(cmd.Time),
	}, nil
}
