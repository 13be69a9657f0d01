package ws

const (
	// client - server
	MsgPing    = "ping"
	MsgRefresh = "refresh"

	// server - client
	MsgSnapshot = "snapshot"
	MsgPong     = "pong"
	MsgError    = "error"
)
