package domain

type InventoryUnit struct {
	ID          int32 `json:"id"`
	DeviceID    int32 `json:"device_id"`
	IsAvailable bool  `json:"is_available"`
}

type Device struct {
	ID       int32  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}
