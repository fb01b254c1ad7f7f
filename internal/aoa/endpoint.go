package aoa

// FindBulkOut walks configuration -> interface -> alternate setting ->
// endpoint and returns the first bulk OUT endpoint.
func FindBulkOut(desc DeviceDescriptor) (AccessoryEndpoint, bool) {
	for _, config := range desc.Configs {
		for _, iface := range config.Interfaces {
			for _, alt := range iface.AltSettings {
				for _, ep := range alt.Endpoints {
					if ep.Direction == DirectionOut && ep.TransferType == TransferTypeBulk {
						return AccessoryEndpoint{
							Config:    config.Number,
							Interface: iface.Number,
							Alternate: alt.Alternate,
							Address:   ep.Address,
						}, true
					}
				}
			}
		}
	}
	return AccessoryEndpoint{}, false
}
