// Package websocket serves the licensing protocol over a WebSocket.
//
// Every frame is a JSON object {"type": ..., "data": ...}:
//
//	client                                   server
//	{"type":"request_verification"}      ->
//	                                     <-  {"type":"licensing_request","data":{"id","message"}}
//	{"type":"licensing_response",
//	 "data":{"requestId","publicAddress",
//	         "answerMessage"}}           ->
//	                                     <-  {"type":"licensing_completed","data":true|false}
//
// An oracle failure answers {"type":"error","data":{"code":"oracle_unavailable"}}
// instead of licensing_completed. Heartbeats are accepted and ignored.
//
// Each connection runs one read loop and one write loop. Outbound frames go
// through a bounded queue so a slow peer never blocks the licensing core.
package websocket
