package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"home-setup/internal/domain"
)

// DefaultMaxFloorplanBytes is the floorplan size limit when none is configured.
const DefaultMaxFloorplanBytes int64 = 10 * 1024 * 1024

// Snapshot is a read-only view of the wizard for the display layer.
type Snapshot struct {
	Step             domain.Step          `json:"step"`
	StepName         string               `json:"step_name"`
	PaymentType      domain.PaymentType   `json:"payment_type"`
	Rooms            domain.RoomCounts    `json:"rooms"`
	RoomsPreview     string               `json:"rooms_preview"`
	Devices          []domain.DeviceEntry `json:"devices"`
	HasFloorplan     bool                 `json:"has_floorplan"`
	FloorplanName    string               `json:"floorplan_name,omitempty"`
	FloorplanDataURI string               `json:"floorplan,omitempty"`
	FloorplanPending bool                 `json:"floorplan_pending"`
	Submitting       bool                 `json:"submitting"`
	Submitted        bool                 `json:"submitted"`
}

// Option configures a Session.
type Option func(*Session)

// WithMaxFloorplanBytes sets the floorplan size limit; n <= 0 keeps the default.
func WithMaxFloorplanBytes(n int64) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxFloorplanBytes = n
		}
	}
}

// WithHubDeviceID sets the deviceid sent with the setup payload.
func WithHubDeviceID(id int) Option {
	return func(s *Session) { s.hubDeviceID = id }
}

// WithObserver registers fn to receive a snapshot after every state change.
func WithObserver(fn func(Snapshot)) Option {
	return func(s *Session) { s.observers = append(s.observers, fn) }
}

// WithIDGenerator replaces the UUID generator used for new device ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// Session holds the setup wizard state for one signed-in user.
// All operations are serialised; the floorplan read runs in the background
// and only takes the lock to store its result.
type Session struct {
	identity  IdentityStore
	submitter SetupSubmitter
	reader    FileReader
	notifier  Notifier
	logger    *slog.Logger

	maxFloorplanBytes int64
	hubDeviceID       int
	newID             func() string
	observers         []func(Snapshot)

	mu    sync.Mutex
	state wizardState
}

type wizardState struct {
	step         domain.Step
	payment      domain.PaymentType
	floorplan    *domain.Floorplan
	rooms        domain.RoomCounts
	roomsPreview string
	devices      []domain.DeviceEntry
	pendingReads int
	submitting   bool
	submitted    bool
	// generation changes on Reset so reads started before it are discarded.
	generation uint64
}

func NewSession(
	identity IdentityStore,
	submitter SetupSubmitter,
	reader FileReader,
	notifier Notifier,
	logger *slog.Logger,
	opts ...Option,
) *Session {
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		identity:          identity,
		submitter:         submitter,
		reader:            reader,
		notifier:          notifier,
		logger:            logger,
		maxFloorplanBytes: DefaultMaxFloorplanBytes,
		hubDeviceID:       1,
		newID:             uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = initialState(0)
	return s
}

func initialState(generation uint64) wizardState {
	st := wizardState{
		step:       domain.StepPayment,
		rooms:      domain.NewRoomCounts(),
		devices:    []domain.DeviceEntry{},
		generation: generation,
	}
	st.roomsPreview = previewRooms(st.rooms)
	return st
}

// Reset returns the wizard to its initial state, as on logout.
func (s *Session) Reset() {
	_ = s.mutate(func(st *wizardState) error {
		*st = initialState(st.generation + 1)
		return nil
	})
	s.logger.Info("wizard reset")
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) Step() domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.step
}

// Floorplan returns a copy of the stored floorplan, or nil.
func (s *Session) Floorplan() *domain.Floorplan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.floorplan == nil {
		return nil
	}
	fp := *s.state.floorplan
	return &fp
}

func (s *Session) SelectPayment(payment string) error {
	p, err := domain.ParsePaymentType(payment)
	if err != nil {
		return err
	}
	return s.mutate(func(st *wizardState) error {
		st.payment = p
		return nil
	})
}

func (s *Session) IncrementRoom(key domain.RoomKey) error {
	return s.adjustRoom(key, 1)
}

// DecrementRoom lowers the count for key; at zero it does nothing.
func (s *Session) DecrementRoom(key domain.RoomKey) error {
	return s.adjustRoom(key, -1)
}

func (s *Session) adjustRoom(key domain.RoomKey, delta int) error {
	if !key.Valid() {
		return &domain.ValidationError{Field: "room", Message: "unknown room " + string(key)}
	}
	return s.mutate(func(st *wizardState) error {
		next := st.rooms[key] + delta
		if next < 0 {
			next = 0
		}
		st.rooms[key] = next
		st.roomsPreview = previewRooms(st.rooms)
		return nil
	})
}

func (s *Session) AddDevice() string {
	id := s.newID()
	_ = s.mutate(func(st *wizardState) error {
		st.devices = append(st.devices, domain.DeviceEntry{ID: id})
		return nil
	})
	return id
}

// RemoveDevice drops the entry with id. Unknown ids are ignored.
func (s *Session) RemoveDevice(id string) {
	_ = s.mutate(func(st *wizardState) error {
		for i, d := range st.devices {
			if d.ID == id {
				st.devices = append(st.devices[:i:i], st.devices[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

// UpdateDevice sets one field of the entry with id. Unknown ids are ignored.
func (s *Session) UpdateDevice(id string, field domain.DeviceField, value string) error {
	return s.mutate(func(st *wizardState) error {
		for i := range st.devices {
			if st.devices[i].ID != id {
				continue
			}
			updated := st.devices[i]
			if err := updated.Set(field, value); err != nil {
				return err
			}
			st.devices[i] = updated
			return nil
		}
		return nil
	})
}

// Next advances one step. Leaving the payment step requires a payment type;
// the floorplan step can always be left. The devices step ends with Submit.
func (s *Session) Next() error {
	return s.mutate(func(st *wizardState) error {
		switch st.step {
		case domain.StepPayment:
			if st.payment == "" {
				return &domain.ValidationError{Field: "payment_type", Message: "select a payment type"}
			}
			st.step = domain.StepFloorplan
		case domain.StepFloorplan:
			st.step = domain.StepDevices
		default:
			return &domain.ValidationError{Field: "step", Message: "last step, submit instead"}
		}
		return nil
	})
}

// Back moves one step towards the start without clearing anything.
func (s *Session) Back() {
	_ = s.mutate(func(st *wizardState) error {
		if st.step > domain.StepPayment {
			st.step--
		}
		return nil
	})
}

// Prefill seeds the payment type and floorplan from a stored profile.
func (s *Session) Prefill(profile domain.Profile) {
	_ = s.mutate(func(st *wizardState) error {
		if p, err := domain.ParsePaymentType(profile.PaymentType); err == nil {
			st.payment = p
		}
		if fp, ok := floorplanFromDataURI(profile.FloorplanImage); ok {
			st.floorplan = fp
		}
		return nil
	})
}

// UploadFloorplan validates the declared file and starts reading it in the
// background. Validation failures are returned directly and leave the state
// untouched; the read outcome is delivered through the returned FloorplanRead.
func (s *Session) UploadFloorplan(ctx context.Context, file FloorplanFile) (*FloorplanRead, error) {
	if !domain.IsImageType(file.ContentType()) {
		return nil, fmt.Errorf("%w: %q is not an image", domain.ErrInvalidFileType, file.ContentType())
	}
	if file.Size() > s.maxFloorplanBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", domain.ErrFileTooLarge, file.Size(), s.maxFloorplanBytes)
	}

	s.mu.Lock()
	generation := s.state.generation
	s.state.pendingReads++
	pending := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(pending)

	read := newFloorplanRead()
	readCtx := context.WithoutCancel(ctx)

	go func() {
		fp, err := s.reader.ReadFloorplan(readCtx, file)
		if err != nil && !errors.Is(err, domain.ErrReadFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrReadFailed, err)
		}

		s.mu.Lock()
		current := s.state.generation == generation
		if current {
			s.state.pendingReads--
			if err == nil {
				s.state.floorplan = fp
			}
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()

		if err != nil {
			s.logger.Warn("floorplan read failed", "file", file.Name(), "error", err)
		} else if current {
			s.logger.Info("floorplan stored", "file", file.Name(), "bytes", fp.Size)
		}
		if current {
			s.emit(snap)
		}
		read.resolve(fp, err)
	}()

	return read, nil
}

// Submit sends the collected setup to the backend. The state is kept whatever
// the outcome, so a rejected setup can be corrected and sent again.
func (s *Session) Submit(ctx context.Context) (*domain.SetupReceipt, error) {
	s.mu.Lock()
	if s.state.submitting {
		s.mu.Unlock()
		return nil, domain.ErrSubmitInProgress
	}
	if err := validateForSubmit(&s.state); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	payload := domain.SetupPayload{
		DeviceID:    s.hubDeviceID,
		PaymentType: s.state.payment,
		Rooms:       s.state.rooms.Clone(),
		Devices:     append([]domain.DeviceEntry(nil), s.state.devices...),
	}
	if s.state.floorplan != nil {
		payload.Floorplan = s.state.floorplan.DataURI
	}
	s.state.submitting = true
	generation := s.state.generation
	s.mu.Unlock()

	identity, receipt, err := s.send(ctx, &payload)

	s.mu.Lock()
	if s.state.generation == generation {
		s.state.submitting = false
		if err == nil {
			s.state.submitted = true
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snap)

	if err != nil {
		s.logger.Warn("setup submission failed", "error", err)
		return nil, err
	}

	s.logger.Info("setup submitted",
		"user_id", payload.UserID,
		"devices", len(payload.Devices),
		"payment_type", payload.PaymentType,
	)

	event := domain.SetupCompleted{
		UserID:       identity.UserID,
		Username:     identity.Username,
		PaymentType:  payload.PaymentType,
		Rooms:        payload.Rooms.Total(),
		Devices:      len(payload.Devices),
		HasFloorplan: payload.Floorplan != "",
	}
	if receipt != nil {
		event.SetupID = receipt.ID
	}
	if notifyErr := s.notifier.Notify(ctx, event); notifyErr != nil {
		s.logger.Error("notifying setup", "error", notifyErr)
	}

	return receipt, nil
}

func (s *Session) send(ctx context.Context, payload *domain.SetupPayload) (*domain.Identity, *domain.SetupReceipt, error) {
	identity, err := s.identity.Current(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("loading identity: %w", err)
	}
	if identity == nil {
		return nil, nil, domain.ErrNotAuthenticated
	}
	payload.UserID = identity.UserID

	receipt, err := s.submitter.SubmitSetup(ctx, *identity, *payload)
	if err != nil {
		return nil, nil, fmt.Errorf("submitting setup: %w", err)
	}
	return identity, receipt, nil
}

func validateForSubmit(st *wizardState) error {
	if st.step != domain.StepDevices {
		return &domain.ValidationError{Field: "step", Message: "finish the previous steps first"}
	}
	if st.payment == "" {
		return &domain.ValidationError{Field: "payment_type", Message: "select a payment type"}
	}
	if len(st.devices) == 0 {
		return &domain.ValidationError{Field: "devices", Message: "add at least one device"}
	}
	for i, d := range st.devices {
		if !d.Complete() {
			return &domain.ValidationError{
				Field:   "devices",
				Message: fmt.Sprintf("device %d needs a name, type and room", i+1),
			}
		}
	}
	return nil
}

// mutate applies fn under the lock and notifies observers when it succeeds.
func (s *Session) mutate(fn func(*wizardState) error) error {
	s.mu.Lock()
	if err := fn(&s.state); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
	return nil
}

func (s *Session) emit(snap Snapshot) {
	for _, fn := range s.observers {
		fn(snap)
	}
}

func (s *Session) snapshotLocked() Snapshot {
	st := &s.state
	snap := Snapshot{
		Step:             st.step,
		StepName:         st.step.String(),
		PaymentType:      st.payment,
		Rooms:            st.rooms.Clone(),
		RoomsPreview:     st.roomsPreview,
		Devices:          append([]domain.DeviceEntry{}, st.devices...),
		FloorplanPending: st.pendingReads > 0,
		Submitting:       st.submitting,
		Submitted:        st.submitted,
	}
	if st.floorplan != nil {
		snap.HasFloorplan = true
		snap.FloorplanName = st.floorplan.Name
		snap.FloorplanDataURI = st.floorplan.DataURI
	}
	return snap
}

func previewRooms(rooms domain.RoomCounts) string {
	data, err := json.MarshalIndent(rooms, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func floorplanFromDataURI(uri string) (*domain.Floorplan, bool) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, false
	}
	mimeType, _, ok := strings.Cut(rest, ";")
	if !ok || !domain.IsImageType(mimeType) {
		return nil, false
	}
	return &domain.Floorplan{Name: "profile", MIMEType: mimeType, DataURI: uri}, true
}
