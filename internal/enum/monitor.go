package enum

// MonitorState is the lifecycle position of one account monitor
type MonitorState string

const (
	MonitorIdle         MonitorState = "idle"
	MonitorConnecting   MonitorState = "connecting"
	MonitorConnected    MonitorState = "connected"
	MonitorReconnecting MonitorState = "reconnecting"
	MonitorStopped      MonitorState = "stopped"
)

func (s MonitorState) String() string {
	return string(s)
}

// SocketEventKind classifies what the provider transport reported
type SocketEventKind string

const (
	SocketOpen    SocketEventKind = "open"
	SocketMessage SocketEventKind = "message"
	SocketError   SocketEventKind = "error"
	SocketClose   SocketEventKind = "close"
)

// ReplyKind is the stage of an agent reply payload
type ReplyKind string

const (
	ReplyTool  ReplyKind = "tool"
	ReplyBlock ReplyKind = "block"
	ReplyFinal ReplyKind = "final"
)

func (k ReplyKind) String() string {
	return string(k)
}
