// Package realtime runs the WebSocket side of fastchat.
//
// A session starts with a handshake frame carrying an access token. Once the
// token verifies, the connection is attached to the Hub, registered with the
// presence registry, and its frames are dispatched one at a time through a
// fixed table keyed by Event. Each frame on the wire is a single JSON
// envelope:
//
//	{"event":"chat:join","payload":{"chatId":"..."}}
//
// Outbound delivery never blocks: a connection whose send buffer is full is
// dropped and goes through normal disconnect processing.
package realtime
