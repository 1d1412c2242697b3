package extend_booking

// ExtendBookingRequest HTTP request model
type ExtendBookingRequest struct {
	ExtensionMinutes int `json:"extensionMinutes"`
}
