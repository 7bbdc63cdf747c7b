package protocol

// RPC method names accepted in RequestFrame.Method.
const (
	MethodConnect      = "connect"
	MethodHealth       = "health"
	MethodStatus       = "status"
	MethodChatSend     = "chat.send"
	MethodChatHistory  = "chat.history"
	MethodChatReset    = "chat.reset"
	MethodToolsList    = "tools.list"
	MethodToolsInvoke  = "tools.invoke"
	MethodSessionsList = "sessions.list"
)

// WebSocket event names pushed from server to client.
const (
	EventChat     = "chat"
	EventHealth   = "health"
	EventShutdown = "shutdown"
	EventTick     = "tick"
)

// Chat event subtypes (in payload.type)
const (
	ChatEventRunStarted   = "run.started"
	ChatEventRunCompleted = "run.completed"
	ChatEventRunFailed    = "run.failed"
	ChatEventToolCall     = "tool.call"
	ChatEventToolResult   = "tool.result"
	ChatEventMessage      = "message"
)
