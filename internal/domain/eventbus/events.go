package eventbus

// Topics published on the bus.
const (
	// EventSessionUpdated carries a session.Snapshot after every state change.
	EventSessionUpdated = "session:updated"
	// EventSettingsChanged carries the client id whose settings were saved or reset.
	EventSettingsChanged = "settings:changed"
)
