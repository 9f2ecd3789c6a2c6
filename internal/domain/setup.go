package domain

import (
	"fmt"
	"time"
)

// SetupPayload is the body of the setup submission.
type SetupPayload struct {
	UserID      int           `json:"userid"`
	DeviceID    int           `json:"deviceid"`
	PaymentType PaymentType   `json:"paymenttype"`
	Floorplan   string        `json:"floorplan"`
	Rooms       RoomCounts    `json:"rooms"`
	Devices     []DeviceEntry `json:"devices"`
}

// Profile is the stored user profile the wizard can be seeded from.
type Profile struct {
	ID             int    `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	HouseStatus    string `json:"house_status"`
	PaymentType    string `json:"payment_type"`
	FloorplanImage string `json:"floorplan_image,omitempty"`
}

// SetupReceipt is the backend's confirmation of a stored setup.
type SetupReceipt struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message,omitempty"`
}

// SetupCompleted is announced to notifiers once the backend accepts a setup.
type SetupCompleted struct {
	SetupID      int         `json:"setup_id,omitempty"`
	UserID       int         `json:"user_id"`
	Username     string      `json:"username,omitempty"`
	PaymentType  PaymentType `json:"payment_type"`
	Rooms        int         `json:"rooms"`
	Devices      int         `json:"devices"`
	HasFloorplan bool        `json:"has_floorplan"`
}

func (e SetupCompleted) Summary() string {
	who := e.Username
	if who == "" {
		who = fmt.Sprintf("user %d", e.UserID)
	}
	return fmt.Sprintf("Setup completed for %s: plan %s, %d rooms, %d devices", who, e.PaymentType, e.Rooms, e.Devices)
}
