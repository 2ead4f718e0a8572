package client

// collection is the generic Redfish collection document.
type collection struct {
	Members []struct {
		ODataID string `json:"@odata.id"`
	} `json:"Members"`
}

// computerSystem holds the fields read from /redfish/v1/Systems/{id}.
type computerSystem struct {
	ID         string `json:"Id"`
	PowerState string `json:"PowerState"`
}

// resetRequest is the body of ComputerSystem.Reset.
type resetRequest struct {
	ResetType string `json:"ResetType"`
}

// Redfish ResetType values.
const (
	resetOn               = "On"
	resetGracefulShutdown = "GracefulShutdown"
	resetForceRestart     = "ForceRestart"
)

// chassisPower holds the fields read from /redfish/v1/Chassis/{id}/Power.
type chassisPower struct {
	PowerControl []struct {
		PowerConsumedWatts *float64 `json:"PowerConsumedWatts"`
	} `json:"PowerControl"`
}
