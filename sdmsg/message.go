// SPDX-License-Identifier: Apache-2.0

// Package sdmsg defines the opaque wire tags carried by the service
// discovery control protocol. Each datagram carries exactly one tag with no
// framing, no header and no payload.
package sdmsg

// Message is a single SD control-plane tag.
type Message uint8

// The fixed set of tags the protocol carries. There is no fragmentation and
// no length prefix: one tag per datagram.
const (
	// Unknown is returned by Parse for anything that doesn't match a known
	// tag; it is never sent on the wire.
	Unknown Message = iota
	FindService
	OfferService
	StopOfferService
	SubscribeEventgroup
	SubscribeEventgroupAck
	StopSubscribeEventgroup
)

var messageNames = map[Message]string{
	FindService:             "FindService",
	OfferService:            "OfferService",
	StopOfferService:        "StopOfferService",
	SubscribeEventgroup:     "SubscribeEventgroup",
	SubscribeEventgroupAck:  "SubscribeEventgroupAck",
	StopSubscribeEventgroup: "StopSubscribeEventgroup",
}

var namesToMessage = func() map[string]Message {
	m := make(map[string]Message, len(messageNames))
	for tag, name := range messageNames {
		m[name] = tag
	}
	return m
}()

// String implements fmt.Stringer.
func (m Message) String() string {
	if name, ok := messageNames[m]; ok {
		return name
	}
	return "Unknown"
}

// Bytes encodes the message tag as its ASCII name, ready to be put on the
// wire as a single UDP datagram payload.
func (m Message) Bytes() []byte {
	return []byte(m.String())
}

// Parse decodes a raw datagram payload into a Message. It returns
// (Unknown, false) for anything that doesn't match one of the known tags;
// callers must silently drop such datagrams rather than propagate an error,
// per the unknown-tag handling rule of the SD transport.
func Parse(b []byte) (Message, bool) {
	tag, ok := namesToMessage[string(b)]
	if !ok {
		return Unknown, false
	}
	return tag, true
}
