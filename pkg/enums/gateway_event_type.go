package enums

// GatewayEventType names the settlement-gateway webhook events this service
// recognizes. Unrecognized types are logged and acknowledged, never rejected.
type GatewayEventType string

const (
	GatewayEventChargeSuccess   GatewayEventType = "charge.success"
	GatewayEventChargeFailed    GatewayEventType = "charge.failed"
	GatewayEventTransferSuccess GatewayEventType = "transfer.success"
	GatewayEventTransferFailed  GatewayEventType = "transfer.failed"
)

var recognizedGatewayEvents = []GatewayEventType{
	GatewayEventChargeSuccess,
	GatewayEventChargeFailed,
	GatewayEventTransferSuccess,
	GatewayEventTransferFailed,
}

// String implements fmt.Stringer.
func (g GatewayEventType) String() string {
	return string(g)
}

// IsRecognized reports whether the event type drives a side effect here.
func (g GatewayEventType) IsRecognized() bool {
	for _, candidate := range recognizedGatewayEvents {
		if candidate == g {
			return true
		}
	}
	return false
}
