package huya

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Tars 线上类型
const (
	tarsInt1        byte = 0
	tarsInt2        byte = 1
	tarsInt4        byte = 2
	tarsInt8        byte = 3
	tarsFloat       byte = 4
	tarsDouble      byte = 5
	tarsString1     byte = 6
	tarsString4     byte = 7
	tarsMap         byte = 8
	tarsList        byte = 9
	tarsStructBegin byte = 10
	tarsStructEnd   byte = 11
	tarsZeroTag     byte = 12
	tarsSimpleList  byte = 13
)

const maxTarsDepth = 32

var (
	errTruncated = errors.New("tars: truncated")
	errTooDeep   = errors.New("tars: nesting too deep")
)

// tarsStruct 按 tag 索引的字段集合，值为 int64/float64/string/[]byte/tarsStruct/[]any/map[any]any
type tarsStruct map[int]any

func (s tarsStruct) getInt(tag int, def int64) (int64, error) {
	v, ok := s[tag]
	if !ok {
		return def, nil
	}
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("tars: tag %d is %T, want int", tag, v)
	}
	return n, nil
}

func (s tarsStruct) getString(tag int) (string, error) {
	v, ok := s[tag]
	if !ok {
		return "", nil
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", fmt.Errorf("tars: tag %d is %T, want string", tag, v)
	}
}

func (s tarsStruct) getBytes(tag int) ([]byte, error) {
	v, ok := s[tag]
	if !ok {
		return nil, nil
	}
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case []any:
		// 非 simple list 编码的 vector<byte>
		out := make([]byte, 0, len(x))
		for _, e := range x {
			n, ok := e.(int64)
			if !ok {
				return nil, fmt.Errorf("tars: tag %d element is %T, want byte", tag, e)
			}
			out = append(out, byte(n))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tars: tag %d is %T, want bytes", tag, v)
	}
}

func (s tarsStruct) getStruct(tag int) (tarsStruct, error) {
	v, ok := s[tag]
	if !ok {
		return tarsStruct{}, nil
	}
	st, ok := v.(tarsStruct)
	if !ok {
		return nil, fmt.Errorf("tars: tag %d is %T, want struct", tag, v)
	}
	return st, nil
}

// tarsReader 带边界检查的游标
type tarsReader struct {
	buf []byte
	pos int
}

func newTarsReader(b []byte) *tarsReader {
	return &tarsReader{buf: b}
}

func (r *tarsReader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *tarsReader) take(n int) ([]byte, error) {
	if n < 0 || n > r.remaining() {
		return nil, errTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *tarsReader) readHead() (typ byte, tag int, err error) {
	b, err := r.take(1)
	if err != nil {
		return 0, 0, err
	}
	typ = b[0] & 0x0f
	tag = int(b[0] >> 4)
	if tag == 15 {
		ext, err := r.take(1)
		if err != nil {
			return 0, 0, err
		}
		tag = int(ext[0])
	}
	return typ, tag, nil
}

// readTop 读取顶层结构，直到缓冲区结束
func (r *tarsReader) readTop() (tarsStruct, error) {
	return r.readFields(0, false)
}

func (r *tarsReader) readFields(depth int, nested bool) (tarsStruct, error) {
	if depth > maxTarsDepth {
		return nil, errTooDeep
	}
	st := tarsStruct{}
	for r.remaining() > 0 {
		typ, tag, err := r.readHead()
		if err != nil {
			return nil, err
		}
		if typ == tarsStructEnd {
			if !nested {
				return nil, fmt.Errorf("tars: unexpected struct end at %d", r.pos)
			}
			return st, nil
		}
		v, err := r.readValue(typ, depth)
		if err != nil {
			return nil, fmt.Errorf("tars: tag %d: %w", tag, err)
		}
		st[tag] = v
	}
	if nested {
		return nil, errTruncated
	}
	return st, nil
}

func (r *tarsReader) readValue(typ byte, depth int) (any, error) {
	switch typ {
	case tarsZeroTag:
		return int64(0), nil
	case tarsInt1:
		b, err := r.take(1)
		if err != nil {
			return nil, err
		}
		return int64(int8(b[0])), nil
	case tarsInt2:
		b, err := r.take(2)
		if err != nil {
			return nil, err
		}
		return int64(int16(binary.BigEndian.Uint16(b))), nil
	case tarsInt4:
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return int64(int32(binary.BigEndian.Uint32(b))), nil
	case tarsInt8:
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	case tarsFloat:
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
	case tarsDouble:
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case tarsString1:
		b, err := r.take(1)
		if err != nil {
			return nil, err
		}
		s, err := r.take(int(b[0]))
		if err != nil {
			return nil, err
		}
		return string(s), nil
	case tarsString4:
		b, err := r.take(4)
		if err != nil {
			return nil, err
		}
		n := int32(binary.BigEndian.Uint32(b))
		s, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		return string(s), nil
	case tarsSimpleList:
		return r.readSimpleList()
	case tarsList:
		n, err := r.readLength(1)
		if err != nil {
			return nil, err
		}
		list := make([]any, 0, n)
		for i := 0; i < n; i++ {
			v, err := r.readElement(depth)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case tarsMap:
		n, err := r.readLength(2)
		if err != nil {
			return nil, err
		}
		m := make(map[any]any, n)
		for i := 0; i < n; i++ {
			k, err := r.readElement(depth)
			if err != nil {
				return nil, err
			}
			v, err := r.readElement(depth)
			if err != nil {
				return nil, err
			}
			switch k.(type) {
			case int64, float64, string:
				m[k] = v
			default:
				// 不可比较的 key 只保证跳过
			}
		}
		return m, nil
	case tarsStructBegin:
		return r.readFields(depth+1, true)
	default:
		return nil, fmt.Errorf("tars: unknown type %d", typ)
	}
}

func (r *tarsReader) readElement(depth int) (any, error) {
	typ, _, err := r.readHead()
	if err != nil {
		return nil, err
	}
	if typ == tarsStructEnd {
		return nil, errors.New("tars: unexpected struct end")
	}
	return r.readValue(typ, depth+1)
}

// readLength 读取 tag 0 的整数长度，并按每个元素至少 minSize 字节校验剩余长度
func (r *tarsReader) readLength(minSize int) (int, error) {
	typ, _, err := r.readHead()
	if err != nil {
		return 0, err
	}
	var v any
	switch typ {
	case tarsZeroTag, tarsInt1, tarsInt2, tarsInt4, tarsInt8:
		v, err = r.readValue(typ, 0)
		if err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("tars: length has type %d", typ)
	}
	n := v.(int64)
	if n < 0 || n*int64(minSize) > int64(r.remaining()) {
		return 0, fmt.Errorf("tars: length %d exceeds %d remaining bytes", n, r.remaining())
	}
	return int(n), nil
}

func (r *tarsReader) readSimpleList() ([]byte, error) {
	typ, _, err := r.readHead()
	if err != nil {
		return nil, err
	}
	if typ != tarsInt1 {
		return nil, fmt.Errorf("tars: simple list element type %d", typ)
	}
	n, err := r.readLength(1)
	if err != nil {
		return nil, err
	}
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// tarsWriter 按 Tars 规则写出最短编码
type tarsWriter struct {
	buf bytes.Buffer
}

func (w *tarsWriter) writeHead(typ byte, tag int) {
	if tag < 15 {
		w.buf.WriteByte(byte(tag<<4) | typ)
		return
	}
	w.buf.WriteByte(0xf0 | typ)
	w.buf.WriteByte(byte(tag))
}

func (w *tarsWriter) writeInt64(v int64, tag int) {
	switch {
	case v == 0:
		w.writeHead(tarsZeroTag, tag)
	case v >= math.MinInt8 && v <= math.MaxInt8:
		w.writeHead(tarsInt1, tag)
		w.buf.WriteByte(byte(int8(v)))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		w.writeHead(tarsInt2, tag)
		_ = binary.Write(&w.buf, binary.BigEndian, int16(v))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		w.writeHead(tarsInt4, tag)
		_ = binary.Write(&w.buf, binary.BigEndian, int32(v))
	default:
		w.writeHead(tarsInt8, tag)
		_ = binary.Write(&w.buf, binary.BigEndian, v)
	}
}

func (w *tarsWriter) writeBool(v bool, tag int) {
	if v {
		w.writeInt64(1, tag)
		return
	}
	w.writeInt64(0, tag)
}

func (w *tarsWriter) writeString(s string, tag int) {
	if len(s) <= math.MaxUint8 {
		w.writeHead(tarsString1, tag)
		w.buf.WriteByte(byte(len(s)))
	} else {
		w.writeHead(tarsString4, tag)
		_ = binary.Write(&w.buf, binary.BigEndian, uint32(len(s)))
	}
	w.buf.WriteString(s)
}

func (w *tarsWriter) writeBytes(b []byte, tag int) {
	w.writeHead(tarsSimpleList, tag)
	w.writeHead(tarsInt1, 0)
	w.writeInt64(int64(len(b)), 0)
	w.buf.Write(b)
}

func (w *tarsWriter) writeStruct(tag int, fn func(w *tarsWriter)) {
	w.writeHead(tarsStructBegin, tag)
	fn(w)
	w.writeHead(tarsStructEnd, 0)
}

func (w *tarsWriter) Bytes() []byte {
	return w.buf.Bytes()
}
