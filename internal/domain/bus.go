package domain

// UpdateBus routes inbound updates from the platform hosts to the dispatch
// loop, and outbound messages back to the platform sender.
type UpdateBus interface {
	Publish(u InboundUpdate)
	Subscribe() <-chan InboundUpdate
	SendOutbound(m OutboundMessage)
	OnOutbound(handler func(OutboundMessage))
	Close()
}
