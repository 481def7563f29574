package douyu

import (
	"errors"
	"sort"
	"strings"
)

// STT 斗鱼序列化格式：key@=value/，键值中的 @ 和 / 分别转义为 @A、@S
const (
	sttKVSep     = "@="
	sttRecordEnd = "/"
)

var (
	sttEscaper   = strings.NewReplacer("@", "@A", "/", "@S")
	sttUnescaper = strings.NewReplacer("@A", "@", "@S", "/")

	errSTTRecord = errors.New("stt: record without separator")
)

// Field 有序键值对
type Field struct {
	Key   string
	Value string
}

// MarshalFields 按给定顺序序列化
func MarshalFields(fields ...Field) []byte {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(sttEscaper.Replace(f.Key))
		b.WriteString(sttKVSep)
		b.WriteString(sttEscaper.Replace(f.Value))
		b.WriteString(sttRecordEnd)
	}
	return []byte(b.String())
}

// Marshal 序列化 map，type 在最前，其余按键排序保证输出稳定
func Marshal(m map[string]string) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "type" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(m))
	if v, ok := m["type"]; ok {
		fields = append(fields, Field{Key: "type", Value: v})
	}
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Value: m[k]})
	}
	return MarshalFields(fields...)
}

// Unmarshal 反序列化，末尾的 \0 会被忽略
func Unmarshal(b []byte) (map[string]string, error) {
	s := strings.TrimRight(string(b), "\x00")
	m := make(map[string]string)
	for len(s) > 0 {
		end := strings.Index(s, sttRecordEnd)
		var record string
		if end < 0 {
			// 末条记录缺少结束符时宽松处理
			record, s = s, ""
		} else {
			record, s = s[:end], s[end+1:]
		}
		if record == "" {
			continue
		}
		sep := strings.Index(record, sttKVSep)
		if sep < 0 {
			return nil, errSTTRecord
		}
		m[sttUnescaper.Replace(record[:sep])] = sttUnescaper.Replace(record[sep+len(sttKVSep):])
	}
	return m, nil
}

// UnmarshalList 解析嵌套的列表值（一层转义后的 a/b/c/）
func UnmarshalList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, sttRecordEnd) {
		if item != "" {
			items = append(items, sttUnescaper.Replace(item))
		}
	}
	return items
}
