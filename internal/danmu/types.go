package danmu

import (
	"sort"
	"strings"
	"time"

	"github.com/wsx864321/danmu/pkg/xerr"
)

// Platform 直播平台标识
type Platform string

const (
	PlatformHuya  Platform = "huya"
	PlatformDouyu Platform = "douyu"
)

// ChannelRef 用户配置的直播间引用，创建后只读
type ChannelRef struct {
	Platform Platform `json:"platform" mapstructure:"platform"`
	URL      string   `json:"url" mapstructure:"url"`
}

// NewChannelRef 规范化并校验直播间引用
func NewChannelRef(platform Platform, url string) (ChannelRef, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(string(platform))))
	u := strings.TrimSpace(url)
	if p == "" || u == "" {
		return ChannelRef{}, xerr.ErrInvalidChannel.Wrapf(nil, "platform and url are required")
	}
	return ChannelRef{Platform: p, URL: u}, nil
}

func (c ChannelRef) String() string {
	return string(c.Platform) + ":" + c.URL
}

// RoomContext 一次会话尝试解析出的房间标识集合。
// 只由 Resolver 构造，Session 独占；重连时重新解析。
type RoomContext struct {
	roomID string
	ids    map[string]int64
}

// NewRoomContext 构造房间上下文，ids 会被拷贝
func NewRoomContext(roomID string, ids map[string]int64) RoomContext {
	cp := make(map[string]int64, len(ids))
	for k, v := range ids {
		cp[k] = v
	}
	return RoomContext{roomID: roomID, ids: cp}
}

// RoomID 从直播间地址中提取的房间号（平台原始字符串）
func (rc RoomContext) RoomID() string {
	return rc.roomID
}

// ID 返回指定标识，不存在时为 0
func (rc RoomContext) ID(name string) int64 {
	return rc.ids[name]
}

// Names 按字典序返回所有标识名
func (rc RoomContext) Names() []string {
	names := make([]string, 0, len(rc.ids))
	for k := range rc.ids {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate 任一必需标识为 0 即视为解析失败，不存在部分成功
func (rc RoomContext) Validate(required ...string) error {
	var missing []string
	for _, name := range required {
		if rc.ids[name] == 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return xerr.ErrRoomUnresolved.Wrapf(nil, "zero ids: "+strings.Join(missing, ","))
	}
	return nil
}

// IsZero 尚未解析
func (rc RoomContext) IsZero() bool {
	return rc.roomID == "" && len(rc.ids) == 0
}

// Event 归一化后的弹幕事件，框架唯一的输出
type Event struct {
	Channel  ChannelRef `json:"channel"`
	Sender   string     `json:"sender"`
	Content  string     `json:"content"`
	Color    int        `json:"color"`
	FontSize int        `json:"font_size"`
	// Timestamp 平台下发的原始时间戳，不假设纪元与单位
	Timestamp  float64   `json:"timestamp"`
	ReceivedAt time.Time `json:"received_at"`
}

// State 会话生命周期状态
type State int32

const (
	StateIdle State = iota
	StateResolving
	StateConnecting
	StateHandshaking
	StateActive
	StateReconnecting
	StateClosing
	StateClosed
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal Closed 之后该会话实例不可复用
func (s State) Terminal() bool {
	return s == StateClosed
}
