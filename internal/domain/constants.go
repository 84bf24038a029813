package domain

const (
	PresenceOnline  = "ONLINE"
	PresenceOffline = "OFFLINE"
)
