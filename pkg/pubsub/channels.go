package pubsub

import "fmt"

// ChannelSession carries store-change events for one browser session.
const ChannelSession = "discovery:session:%s:events"

// Event types, one per session store.
const (
	EventDiscoveryChanged  = "store.discovery"
	EventProteinChanged    = "store.protein"
	EventEvolutionChanged  = "store.evolution"
	EventConnectionChanged = "store.connection"
)

// SessionChannel returns the channel name for a session's events.
func SessionChannel(sessionID string) string {
	return fmt.Sprintf(ChannelSession, sessionID)
}

// StoreEventType maps a store name onto its event type.
func StoreEventType(store string) string {
	return "store." + store
}
