// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes sent by the arena endpoint.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client did not negotiate a supported subprotocol.
	InvalidAuthTokenError websocket.StatusCode = 3001 // Missing, invalid or expired auth token.
)
