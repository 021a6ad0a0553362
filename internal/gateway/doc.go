// Package gateway implements the Gateway Connection Manager component.
//
// The Connection Manager:
//   - Maintains exactly one WebSocket connection to the event gateway
//   - Presents the static token in the handshake "token" header
//   - Decodes {"action", "data"} frames and dispatches them to the notifier
//   - Maps close codes to reconnect / stop decisions
//   - Handles reconnection with exponential backoff (5s reset, 2x growth, capped)
package gateway
