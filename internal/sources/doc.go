// Package sources provides the concrete input adapters: speech recognition over
// a websocket, governance rules over REST, face emotion from a frame grabber,
// and a wallet balance over Ethereum JSON-RPC.
//
// Every adapter follows the same shape. A background Run loop owns the
// blocking I/O and hands timestamped records to a bounded input.Queue; the
// embedded input.Input drains that queue with a short fixed wait. Records are
// stamped when they are acquired, so conversion stays pure.
//
// Buffer behaviour per adapter:
//
//	asr         token_accumulate  clear_on_format  skip hint on backlog
//	governance  append_distinct   persist
//	vision      single_slot       clear_on_format
//	wallet      single_slot       persist
package sources
