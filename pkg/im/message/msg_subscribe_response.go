package message

// SubscribeResponseMessage confirms a subscription.
type SubscribeResponseMessage struct {
	SubscriptionID SubscriptionID `cbor:"0,keyasint"`
	MaxInterval    uint16         `cbor:"2,keyasint"` // seconds
}
