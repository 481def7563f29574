package xerr

const (
	// 通用错误码 10000 - 19999
	ErrOKCode            int32 = 0
	ErrInvalidParamsCode int32 = 10001
	ErrNotFoundCode      int32 = 10002
	ErrConflictCode      int32 = 10003
	ErrInternalCode      int32 = 10004
	ErrTimeoutCode       int32 = 10005

	// 房间解析错误码 20000 - 20999
	ErrResolveFailedCode   int32 = 20001
	ErrRoomUnresolvedCode  int32 = 20002
	ErrInvalidChannelCode  int32 = 20003
	ErrUnknownPlatformCode int32 = 20004

	// 连接与会话错误码 21000 - 21999
	ErrTransportFailedCode  int32 = 21001
	ErrHandshakeTimeoutCode int32 = 21002
	ErrLivenessTimeoutCode  int32 = 21003
	ErrRetryExhaustedCode   int32 = 21004
	ErrSessionStoppedCode   int32 = 21005
	ErrSessionRunningCode   int32 = 21006

	// 帧解码错误码 22000 - 22999
	ErrFrameMalformedCode int32 = 22001
	ErrFrameCorruptCode   int32 = 22002
)

// 通用错误实例
var (
	OK               = NewError(ErrOKCode, "ok")
	ErrInvalidParams = NewError(ErrInvalidParamsCode, "invalid parameters")
	ErrNotFound      = NewError(ErrNotFoundCode, "not found")
	ErrConflict      = NewError(ErrConflictCode, "conflict")
	ErrInternal      = NewError(ErrInternalCode, "internal error")
	ErrTimeout       = NewError(ErrTimeoutCode, "timeout")
)

// 房间解析错误实例，均可重试
var (
	ErrResolveFailed   = NewError(ErrResolveFailedCode, "room resolve failed")
	ErrRoomUnresolved  = NewError(ErrRoomUnresolvedCode, "room context incomplete")
	ErrInvalidChannel  = NewError(ErrInvalidChannelCode, "invalid channel reference")
	ErrUnknownPlatform = NewError(ErrUnknownPlatformCode, "unknown platform")
)

// 连接与会话错误实例
var (
	ErrTransportFailed  = NewError(ErrTransportFailedCode, "transport failed")
	ErrHandshakeTimeout = NewError(ErrHandshakeTimeoutCode, "handshake ack timeout")
	ErrLivenessTimeout  = NewError(ErrLivenessTimeoutCode, "liveness timeout")
	ErrRetryExhausted   = NewError(ErrRetryExhaustedCode, "retry budget exhausted")
	ErrSessionStopped   = NewError(ErrSessionStoppedCode, "session stopped")
	ErrSessionRunning   = NewError(ErrSessionRunningCode, "session already started")
)

// 帧解码错误实例
// ErrFrameMalformed 单帧损坏，跳过即可；ErrFrameCorrupt 表示流已失去同步，必须重连
var (
	ErrFrameMalformed = NewError(ErrFrameMalformedCode, "frame malformed")
	ErrFrameCorrupt   = NewError(ErrFrameCorruptCode, "frame corrupt")
)
