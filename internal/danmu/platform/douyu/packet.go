package douyu

import (
	"encoding/binary"
	"fmt"

	"github.com/wsx864321/danmu/internal/danmu"
)

// 斗鱼二进制协议，字段均为小端
// +---------+---------+---------+---------+----------+--------------+
// | Length  | Length  | MsgType | Encrypt | Reserved | Body + '\0'  |
// | 4 bytes | 4 bytes | 2 bytes | 1 byte  | 1 byte   | N bytes      |
// +---------+---------+---------+---------+----------+--------------+
// Length 不含第一个 Length 字段本身，即 8 + len(Body) + 1

const (
	MsgTypeClient uint16 = 689
	MsgTypeServer uint16 = 690

	HeaderSize   = 12
	minLength    = 8 + 1
	MaxBodySize  = 1 << 20
	lengthOffset = 4
)

// Packet 单个斗鱼数据包
type Packet struct {
	MsgType uint16
	Body    []byte
}

// EncodePacket 编码 Packet，Body 末尾补 \0
func EncodePacket(p Packet) ([]byte, error) {
	bodyLen := len(p.Body)
	if bodyLen > MaxBodySize {
		return nil, fmt.Errorf("douyu: body too large: %d bytes, max: %d bytes", bodyLen, MaxBodySize)
	}

	length := uint32(8 + bodyLen + 1)
	buf := make([]byte, HeaderSize+bodyLen+1)
	binary.LittleEndian.PutUint32(buf[0:4], length)
	binary.LittleEndian.PutUint32(buf[4:8], length)
	binary.LittleEndian.PutUint16(buf[8:10], p.MsgType)
	buf[10] = 0
	buf[11] = 0
	copy(buf[HeaderSize:], p.Body)
	return buf, nil
}

// NextFrame 从字节流中切出一个完整数据包。
// 不足一包返回 (nil, buf, nil)；长度字段不一致或越界说明已失步，返回 ErrFrameCorrupt。
func NextFrame(buf []byte) ([]byte, []byte, error) {
	if len(buf) < HeaderSize {
		return nil, buf, nil
	}
	if err := checkHeader(buf); err != nil {
		return nil, nil, err
	}
	total := lengthOffset + int(binary.LittleEndian.Uint32(buf[0:4]))
	if len(buf) < total {
		return nil, buf, nil
	}
	return buf[:total], buf[total:], nil
}

// DecodePacket 解码一个完整数据包，frame 必须恰好一包
func DecodePacket(frame []byte) (*Packet, error) {
	if len(frame) < HeaderSize {
		return nil, danmu.Malformed(nil, fmt.Sprintf("short packet: %d bytes", len(frame)))
	}
	if err := checkHeader(frame); err != nil {
		return nil, err
	}
	total := lengthOffset + int(binary.LittleEndian.Uint32(frame[0:4]))
	if total != len(frame) {
		return nil, danmu.Malformed(nil, fmt.Sprintf("packet length %d, frame %d", total, len(frame)))
	}

	body := frame[HeaderSize:]
	if n := len(body); n > 0 && body[n-1] == 0 {
		body = body[:n-1]
	}
	return &Packet{
		MsgType: binary.LittleEndian.Uint16(frame[8:10]),
		Body:    body,
	}, nil
}

func checkHeader(buf []byte) error {
	length := binary.LittleEndian.Uint32(buf[0:4])
	again := binary.LittleEndian.Uint32(buf[4:8])
	if length != again {
		return danmu.Corrupt(nil, fmt.Sprintf("length mismatch %d != %d", length, again))
	}
	if length < minLength || length > MaxBodySize+minLength {
		return danmu.Corrupt(nil, fmt.Sprintf("length %d out of bounds", length))
	}
	msgType := binary.LittleEndian.Uint16(buf[8:10])
	if msgType != MsgTypeServer && msgType != MsgTypeClient {
		return danmu.Corrupt(nil, fmt.Sprintf("unknown msg type %d", msgType))
	}
	return nil
}
