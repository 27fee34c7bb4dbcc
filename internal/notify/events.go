// README: Wire-level event names shared by the live transport and the dispatcher.
package notify

const (
	EventDriverLocation      = "driverLocation"
	EventDriverLocationError = "sendLocationError"
	EventDropoffReady        = "dropoffReady"
	EventDropoffReadyError   = "dropoffReadyError"
	EventFoodPickup          = "foodPickup"
	EventFoodPickupError     = "foodPickupError"

	EventOrderAccepted      = "orderAccepted"
	EventOrderAcceptedError = "orderAcceptedError"
	EventOrderReady         = "orderReady"
	EventOrderReadyError    = "orderReadyError"

	EventOrderPaid           = "orderPaid"
	EventOrderPaidError      = "orderPaidError"
	EventOrderDelivered      = "orderDelivered"
	EventOrderDeliveredError = "orderDeliveredError"
)
