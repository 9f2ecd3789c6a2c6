package application

import (
	"context"
	"fmt"
	"slices"

	"home-setup/internal/domain"
)

// Answers is a pre-filled wizard, as read from an answers file.
type Answers struct {
	PaymentType string                 `yaml:"payment_type"`
	Floorplan   string                 `yaml:"floorplan"`
	Rooms       map[domain.RoomKey]int `yaml:"rooms"`
	Devices     []DeviceAnswer         `yaml:"devices"`
}

type DeviceAnswer struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Room string `yaml:"room"`
}

// Validate checks every answer without touching a session.
func (a Answers) Validate() error {
	if _, err := domain.ParsePaymentType(a.PaymentType); err != nil {
		return err
	}
	roomKeys := make([]domain.RoomKey, 0, len(a.Rooms))
	for key := range a.Rooms {
		roomKeys = append(roomKeys, key)
	}
	slices.Sort(roomKeys)
	for _, key := range roomKeys {
		if !key.Valid() {
			return &domain.ValidationError{Field: "rooms", Message: "unknown room " + string(key)}
		}
		if a.Rooms[key] < 0 {
			return &domain.ValidationError{Field: "rooms", Message: fmt.Sprintf("negative count for %s", key)}
		}
	}
	for i, d := range a.Devices {
		var entry domain.DeviceEntry
		for _, f := range d.fields() {
			if err := entry.Set(f.field, f.value); err != nil {
				return fmt.Errorf("device %d: %w", i+1, err)
			}
		}
	}
	return nil
}

type deviceAnswerField struct {
	field domain.DeviceField
	value string
}

func (d DeviceAnswer) fields() []deviceAnswerField {
	return []deviceAnswerField{
		{domain.DeviceFieldName, d.Name},
		{domain.DeviceFieldType, d.Type},
		{domain.DeviceFieldRoom, d.Room},
	}
}

// Fill walks the wizard through every step with the given answers and leaves
// it on the devices step, ready to submit. load turns the floorplan reference
// into an upload. Answers are validated first, so a rejected file leaves the
// session as it was.
func (s *Session) Fill(ctx context.Context, a Answers, load func(ref string) (FloorplanFile, error)) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.SelectPayment(a.PaymentType); err != nil {
		return err
	}
	if err := s.Next(); err != nil {
		return err
	}

	if a.Floorplan != "" {
		file, err := load(a.Floorplan)
		if err != nil {
			return fmt.Errorf("loading floorplan: %w", err)
		}
		read, err := s.UploadFloorplan(ctx, file)
		if err != nil {
			return err
		}
		if _, err := read.Wait(ctx); err != nil {
			return err
		}
	}
	if err := s.Next(); err != nil {
		return err
	}

	for _, key := range domain.RoomKeys() {
		for i := 0; i < a.Rooms[key]; i++ {
			if err := s.IncrementRoom(key); err != nil {
				return err
			}
		}
	}

	for _, d := range a.Devices {
		id := s.AddDevice()
		for _, f := range d.fields() {
			if err := s.UpdateDevice(id, f.field, f.value); err != nil {
				return err
			}
		}
	}
	return nil
}
