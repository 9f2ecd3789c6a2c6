package domain

type DeviceKind string

const (
	DeviceKindSensor     DeviceKind = "sensor"
	DeviceKindActuator   DeviceKind = "actuator"
	DeviceKindController DeviceKind = "controller"
)

func (k DeviceKind) Valid() bool {
	switch k {
	case DeviceKindSensor, DeviceKindActuator, DeviceKindController:
		return true
	default:
		return false
	}
}

// DeviceField names one editable field of a DeviceEntry.
type DeviceField string

const (
	DeviceFieldName DeviceField = "name"
	DeviceFieldType DeviceField = "type"
	DeviceFieldRoom DeviceField = "room"
)

// DeviceEntry is a smart-home device declared by the user during setup.
// Kind and Room are empty until the user picks them.
type DeviceEntry struct {
	ID   string     `json:"id" yaml:"id"`
	Name string     `json:"name" yaml:"name"`
	Kind DeviceKind `json:"type" yaml:"type"`
	Room RoomKey    `json:"room" yaml:"room"`
}

// Complete reports whether the entry can be submitted.
func (d DeviceEntry) Complete() bool {
	return d.Name != "" && d.Kind != "" && d.Room != ""
}

// Set assigns one field from its string form.
func (d *DeviceEntry) Set(field DeviceField, value string) error {
	switch field {
	case DeviceFieldName:
		d.Name = value
	case DeviceFieldType:
		kind := DeviceKind(value)
		if value != "" && !kind.Valid() {
			return &ValidationError{Field: "device.type", Message: "unknown device type " + value}
		}
		d.Kind = kind
	case DeviceFieldRoom:
		room := RoomKey(value)
		if value != "" && !room.Valid() {
			return &ValidationError{Field: "device.room", Message: "unknown room " + value}
		}
		d.Room = room
	default:
		return &ValidationError{Field: "device", Message: "unknown field " + string(field)}
	}
	return nil
}
