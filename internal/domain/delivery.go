package domain

// DeliveryOutcome reports how handing a message to a transport went.
// A failed delivery never invalidates a stored code.
type DeliveryOutcome struct {
	Delivered bool
	Provider  string
	Err       error
}
