// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the arena handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client connected without the quizduel subprotocol.
	InvalidAuthTokenError websocket.StatusCode = 3001 // Token supplied at the handshake was invalid or expired.
)
