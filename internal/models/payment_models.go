package models

// PaymentSession is the hosted checkout created for an order.
type PaymentSession struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// PaymentNotification is the webhook body sent by the payment provider.
type PaymentNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}
