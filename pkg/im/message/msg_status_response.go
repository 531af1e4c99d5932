package message

// StatusResponseMessage is a response containing only a status code.
// Subscribers send it to acknowledge a report.
type StatusResponseMessage struct {
	SubscriptionID SubscriptionID `cbor:"1,keyasint,omitempty"`
	Status         Status         `cbor:"0,keyasint"`
}
