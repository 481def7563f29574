package xjson

import "encoding/json"

// Marshal 序列化失败时返回 nil，调用方只用于日志与下游投递
func Marshal(v any) []byte {
	bytes, _ := json.Marshal(v)
	return bytes
}

func MarshalString(v any) string {
	return string(Marshal(v))
}

// UnmarshalString 反序列化字符串
func UnmarshalString(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
