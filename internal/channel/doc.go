// Package channel translates between WebSocket frames and the relay's
// topic-addressed message format.
//
// The relay wraps everything it rebroadcasts in a two-level JSON envelope:
//
//	{"type":"data","payload":"{\"topic\":\"/controller/status\",\"value\":93}"}
//
// The payload field is a JSON document encoded as a string, so inbound
// messages are parsed twice. Outbound publishes are the single-level inner
// form only; the relay adds the envelope when it fans the message out.
//
// A new connection is greeted with {"type":"welcome","client_id":...},
// which Unwrap surfaces as its own event kind so the supervisor can log the
// assigned identity.
//
// Anything that fails to parse at either level is an Ignored event, not an
// error. Topic filtering is the subscriber's job: the relay sends every
// message on the channel to every client.
package channel
