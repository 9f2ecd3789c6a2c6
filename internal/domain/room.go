package domain

type RoomKey string

const (
	RoomLivingRoom RoomKey = "livingroom"
	RoomBedroom    RoomKey = "bedroom"
	RoomKitchen    RoomKey = "kitchen"
	RoomHallway    RoomKey = "hallway"
	RoomBalcony    RoomKey = "balcony"
	RoomBathroom   RoomKey = "bathroom"
)

// RoomKeys returns every room type in display order.
func RoomKeys() []RoomKey {
	return []RoomKey{RoomLivingRoom, RoomBedroom, RoomKitchen, RoomHallway, RoomBalcony, RoomBathroom}
}

func (k RoomKey) Valid() bool {
	for _, key := range RoomKeys() {
		if key == k {
			return true
		}
	}
	return false
}

// RoomCounts always holds every RoomKey.
type RoomCounts map[RoomKey]int

func NewRoomCounts() RoomCounts {
	counts := make(RoomCounts, len(RoomKeys()))
	for _, k := range RoomKeys() {
		counts[k] = 0
	}
	return counts
}

func (c RoomCounts) Clone() RoomCounts {
	out := make(RoomCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Total is the number of rooms over all keys.
func (c RoomCounts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}
