package huya

import "strconv"

// Operation WebSocketCommand.iCmdType
type Operation int32

const (
	OpRegisterReq        Operation = 1
	OpRegisterRsp        Operation = 2
	OpWupReq             Operation = 3
	OpWupRsp             Operation = 4
	OpHeartBeat          Operation = 5
	OpHeartBeatAck       Operation = 6
	OpMsgPushReq         Operation = 7
	OpDeregisterReq      Operation = 8
	OpDeregisterRsp      Operation = 9
	OpVerifyCookieReq    Operation = 10
	OpVerifyCookieRsp    Operation = 11
	OpVerifyHuyaTokenReq Operation = 12
	OpVerifyHuyaTokenRsp Operation = 13
	OpRegisterGroupReq   Operation = 16
	OpRegisterGroupRsp   Operation = 17
	OpUnRegisterGroupReq Operation = 18
	OpUnRegisterGroupRsp Operation = 19
	OpHeartBeatReq       Operation = 20
	OpHeartBeatRsp       Operation = 21
	OpMsgPushReqV2       Operation = 22
)

var operationNames = map[Operation]string{
	OpRegisterReq:        "RegisterReq",
	OpRegisterRsp:        "RegisterRsp",
	OpWupReq:             "WupReq",
	OpWupRsp:             "WupRsp",
	OpHeartBeat:          "HeartBeat",
	OpHeartBeatAck:       "HeartBeatAck",
	OpMsgPushReq:         "MsgPushReq",
	OpDeregisterReq:      "DeregisterReq",
	OpDeregisterRsp:      "DeregisterRsp",
	OpVerifyCookieReq:    "VerifyCookieReq",
	OpVerifyCookieRsp:    "VerifyCookieRsp",
	OpVerifyHuyaTokenReq: "VerifyHuyaTokenReq",
	OpVerifyHuyaTokenRsp: "VerifyHuyaTokenRsp",
	OpRegisterGroupReq:   "RegisterGroupReq",
	OpRegisterGroupRsp:   "RegisterGroupRsp",
	OpUnRegisterGroupReq: "UnRegisterGroupReq",
	OpUnRegisterGroupRsp: "UnRegisterGroupRsp",
	OpHeartBeatReq:       "HeartBeatReq",
	OpHeartBeatRsp:       "HeartBeatRsp",
	OpMsgPushReqV2:       "MsgPushReq_V2",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "Operation(" + strconv.Itoa(int(o)) + ")"
}

// Known 是否为已知命令
func (o Operation) Known() bool {
	_, ok := operationNames[o]
	return ok
}

// URIMessageNotice PushMessage.lUri 中的文字弹幕
const URIMessageNotice int64 = 1400

// Command 外层信封 WebSocketCommand
type Command struct {
	CmdType     Operation
	Data        []byte
	RequestID   int64
	TraceID     string
	EncryptType int32
	Time        int64
	MD5         string
}

func (c *Command) writeTo(w *tarsWriter) {
	w.writeInt64(int64(c.CmdType), 0)
	w.writeBytes(c.Data, 1)
	w.writeInt64(c.RequestID, 2)
	w.writeString(c.TraceID, 3)
	w.writeInt64(int64(c.EncryptType), 4)
	w.writeInt64(c.Time, 5)
	w.writeString(c.MD5, 6)
}

func (c *Command) readFrom(st tarsStruct) error {
	f := fields{st: st}
	c.CmdType = Operation(f.intAt(0, 0))
	c.Data = f.bytesAt(1)
	c.RequestID = f.intAt(2, 0)
	c.TraceID = f.stringAt(3)
	c.EncryptType = int32(f.intAt(4, 0))
	c.Time = f.intAt(5, 0)
	c.MD5 = f.stringAt(6)
	return f.err
}

// PushMessage MsgPushReq 的负载
type PushMessage struct {
	PushType     int32
	URI          int64
	Data         []byte
	ProtocolType int32
	GroupID      string
	MsgID        int64
}

func (p *PushMessage) readFrom(st tarsStruct) error {
	f := fields{st: st}
	p.PushType = int32(f.intAt(0, 0))
	p.URI = f.intAt(1, 0)
	p.Data = f.bytesAt(2)
	p.ProtocolType = int32(f.intAt(3, 0))
	p.GroupID = f.stringAt(4)
	p.MsgID = f.intAt(5, 0)
	return f.err
}

// SenderInfo 发送者
type SenderInfo struct {
	UID      int64
	IMID     int64
	NickName string
	Gender   int32
}

func (s *SenderInfo) readFrom(st tarsStruct) error {
	f := fields{st: st}
	s.UID = f.intAt(0, 0)
	s.IMID = f.intAt(1, 0)
	s.NickName = f.stringAt(2)
	s.Gender = int32(f.intAt(3, 0))
	return f.err
}

// BulletFormat 弹幕样式，缺省颜色 -1 表示未设置
type BulletFormat struct {
	FontColor      int32
	FontSize       int32
	TextSpeed      int32
	TransitionType int32
	PopupStyle     int32
}

func (b *BulletFormat) readFrom(st tarsStruct) error {
	f := fields{st: st}
	b.FontColor = int32(f.intAt(0, -1))
	b.FontSize = int32(f.intAt(1, 4))
	b.TextSpeed = int32(f.intAt(2, 0))
	b.TransitionType = int32(f.intAt(3, 1))
	b.PopupStyle = int32(f.intAt(4, 0))
	return f.err
}

// MessageNotice 文字弹幕
type MessageNotice struct {
	Sender   SenderInfo
	TID      int64
	SID      int64
	Content  string
	ShowMode int32
	Bullet   BulletFormat
}

func (m *MessageNotice) readFrom(st tarsStruct) error {
	f := fields{st: st}
	sender := f.structAt(0)
	m.TID = f.intAt(1, 0)
	m.SID = f.intAt(2, 0)
	m.Content = f.stringAt(3)
	m.ShowMode = int32(f.intAt(4, 0))
	bullet := f.structAt(6)
	if f.err != nil {
		return f.err
	}
	if err := m.Sender.readFrom(sender); err != nil {
		return err
	}
	return m.Bullet.readFrom(bullet)
}

// UserInfo 注册请求中的匿名用户信息
type UserInfo struct {
	UID       int64
	Anonymous bool
	GUID      string
	Token     string
	TID       int64
	SID       int64
	GroupID   int64
	GroupType int64
	AppID     string
	UA        string
}

func (u *UserInfo) writeTo(w *tarsWriter) {
	w.writeInt64(u.UID, 0)
	w.writeBool(u.Anonymous, 1)
	w.writeString(u.GUID, 2)
	w.writeString(u.Token, 3)
	w.writeInt64(u.TID, 4)
	w.writeInt64(u.SID, 5)
	w.writeInt64(u.GroupID, 6)
	w.writeInt64(u.GroupType, 7)
	w.writeString(u.AppID, 8)
	w.writeString(u.UA, 9)
}

// fields 读取字段，遇到第一个类型错误后停止
type fields struct {
	st  tarsStruct
	err error
}

func (f *fields) intAt(tag int, def int64) int64 {
	if f.err != nil {
		return def
	}
	v, err := f.st.getInt(tag, def)
	f.err = err
	return v
}

func (f *fields) stringAt(tag int) string {
	if f.err != nil {
		return ""
	}
	v, err := f.st.getString(tag)
	f.err = err
	return v
}

func (f *fields) bytesAt(tag int) []byte {
	if f.err != nil {
		return nil
	}
	v, err := f.st.getBytes(tag)
	f.err = err
	return v
}

func (f *fields) structAt(tag int) tarsStruct {
	if f.err != nil {
		return tarsStruct{}
	}
	v, err := f.st.getStruct(tag)
	f.err = err
	return v
}
