package domain

type Step int

const (
	StepPayment   Step = 1
	StepFloorplan Step = 2
	StepDevices   Step = 3
)

func (s Step) String() string {
	switch s {
	case StepPayment:
		return "payment"
	case StepFloorplan:
		return "floorplan"
	case StepDevices:
		return "devices"
	default:
		return "unknown"
	}
}
