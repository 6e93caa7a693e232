package appointments

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryDoctor struct {
	name        string
	hourlyRate  int64
	rating      float64
	reviewCount int
}

// MemoryRepository is a mutex-guarded Repository used by tests and local runs.
type MemoryRepository struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]*memoryDoctor
	patients     map[uuid.UUID]string
	slots        map[uuid.UUID]*Slot
	appointments map[uuid.UUID]*Appointment
	order        []uuid.UUID
	reviews      map[uuid.UUID]*Review
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:      make(map[uuid.UUID]*memoryDoctor),
		patients:     make(map[uuid.UUID]string),
		slots:        make(map[uuid.UUID]*Slot),
		appointments: make(map[uuid.UUID]*Appointment),
		reviews:      make(map[uuid.UUID]*Review),
	}
}

// AddDoctor registers a doctor with a display name and hourly rate.
func (r *MemoryRepository) AddDoctor(id uuid.UUID, fullName string, hourlyRate int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[id] = &memoryDoctor{name: fullName, hourlyRate: hourlyRate}
}

// SetHourlyRate changes a doctor's rate for future bookings.
func (r *MemoryRepository) SetHourlyRate(id uuid.UUID, hourlyRate int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.doctors[id]; ok {
		d.hourlyRate = hourlyRate
	}
}

// AddPatient registers a patient's display name.
func (r *MemoryRepository) AddPatient(id uuid.UUID, fullName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[id] = fullName
}

func (r *MemoryRepository) CreateSlot(ctx context.Context, doctorID uuid.UUID, start time.Time) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.doctors[doctorID]; !ok {
		return nil, ErrNotFound
	}
	s := &Slot{ID: uuid.New(), DoctorID: doctorID, StartTime: start}
	r.slots[s.ID] = s
	out := *s
	return &out, nil
}

func (r *MemoryRepository) ListOpenSlots(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Slot{}
	for _, s := range r.slots {
		if s.DoctorID == doctorID && !s.IsBooked {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// SlotBooked reports the booked flag of a slot.
func (r *MemoryRepository) SlotBooked(id uuid.UUID) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return false, false
	}
	return s.IsBooked, true
}

func (r *MemoryRepository) BookSlot(ctx context.Context, p BookSlotParams) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[p.SlotID]
	if !ok || s.IsBooked || r.slotHeld(s.ID) {
		return nil, ErrSlotUnavailable
	}
	d, ok := r.doctors[s.DoctorID]
	if !ok {
		return nil, ErrSlotUnavailable
	}
	charge := p.Price(d.hourlyRate)
	doctorID, slotID := s.DoctorID, s.ID
	a := &Appointment{
		ID:            p.AppointmentID,
		PatientID:     p.PatientID,
		DoctorID:      &doctorID,
		SlotID:        &slotID,
		ScheduledFor:  s.StartTime,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Notes:         p.Notes,
		Amount:        charge.Amount,
		Commission:    charge.Commission,
		Payout:        charge.Payout,
		CreatedAt:     p.Now,
	}
	s.IsBooked = true
	r.appointments[a.ID] = a
	r.order = append(r.order, a.ID)
	return a.clone(), nil
}

// slotHeld reports whether a non-cancelled appointment is bound to the slot.
// Callers hold r.mu.
func (r *MemoryRepository) slotHeld(slotID uuid.UUID) bool {
	for _, a := range r.appointments {
		if a.SlotID != nil && *a.SlotID == slotID && a.Status != StatusCancelled {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.appointments[a.ID]; exists {
		return ErrConflict
	}
	r.appointments[a.ID] = a.clone()
	r.order = append(r.order, a.ID)
	return nil
}

func (r *MemoryRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.clone(), nil
}

func (r *MemoryRepository) view(a *Appointment, forDoctor bool) View {
	v := View{Appointment: *a.clone()}
	if forDoctor {
		v.CounterpartName = r.patients[a.PatientID]
	} else if a.DoctorID != nil {
		if d, ok := r.doctors[*a.DoctorID]; ok {
			v.CounterpartName = d.name
		}
	}
	_, v.HasReview = r.reviews[a.ID]
	return v
}

// filter walks appointments in insertion order.
func (r *MemoryRepository) filter(forDoctor bool, keep func(*Appointment) bool) []View {
	out := []View{}
	for _, id := range r.order {
		a := r.appointments[id]
		if keep(a) {
			out = append(out, r.view(a, forDoctor))
		}
	}
	return out
}

func (r *MemoryRepository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.filter(false, func(a *Appointment) bool { return a.PatientID == patientID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledFor.After(out[j].ScheduledFor) })
	return out, nil
}

func (r *MemoryRepository) ListQueue(ctx context.Context) ([]View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(true, func(a *Appointment) bool {
		return a.DoctorID == nil && a.Status == StatusPending && a.PaymentStatus == PaymentPaid
	}), nil
}

func (r *MemoryRepository) ListDoctorRequests(ctx context.Context, doctorID uuid.UUID) ([]View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(true, func(a *Appointment) bool {
		return a.AssignedTo(doctorID) && a.Status == StatusPending && a.PaymentStatus == PaymentPaid
	}), nil
}

func (r *MemoryRepository) ListDoctorConfirmed(ctx context.Context, doctorID uuid.UUID) ([]View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.filter(true, func(a *Appointment) bool {
		return a.AssignedTo(doctorID) && a.Status == StatusConfirmed
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (r *MemoryRepository) Claim(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.DoctorID != nil {
		return nil, ErrAlreadyClaimed
	}
	if a.Status != StatusPending {
		return nil, ErrNotFound
	}
	d := doctorID
	a.DoctorID = &d
	a.Status = StatusConfirmed
	return a.clone(), nil
}

func (r *MemoryRepository) Transition(ctx context.Context, t Transition) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[t.AppointmentID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := t.check(a); err != nil {
		return nil, err
	}
	a.Status = t.To
	if t.ReleaseSlot && a.SlotID != nil {
		if s, ok := r.slots[*a.SlotID]; ok {
			s.IsBooked = false
		}
	}
	return a.clone(), nil
}

func (r *MemoryRepository) MarkPaid(ctx context.Context, id, patientID uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.PatientID != patientID {
		return nil, ErrForbidden
	}
	a.PaymentStatus = PaymentPaid
	return a.clone(), nil
}

func (r *MemoryRepository) CreateReview(ctx context.Context, rv *Review) (*DoctorRating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[rv.AppointmentID]
	if !ok {
		return nil, ErrNotFound
	}
	if a.PatientID != rv.PatientID {
		return nil, ErrForbidden
	}
	if a.Status != StatusCompleted {
		return nil, ErrInvalidState
	}
	if _, exists := r.reviews[a.ID]; exists {
		return nil, ErrDuplicateReview
	}
	stored := *rv
	if a.DoctorID != nil {
		id := *a.DoctorID
		stored.DoctorID = &id
		rv.DoctorID = &id
	}
	r.reviews[a.ID] = &stored
	if stored.DoctorID == nil {
		return nil, nil
	}

	var sum, count int
	for _, other := range r.reviews {
		if other.DoctorID != nil && *other.DoctorID == *stored.DoctorID {
			sum += other.Rating
			count++
		}
	}
	rating := math.Round(float64(sum)/float64(count)*10) / 10
	if d, ok := r.doctors[*stored.DoctorID]; ok {
		d.rating = rating
		d.reviewCount = count
	}
	return &DoctorRating{DoctorID: *stored.DoctorID, Rating: rating, ReviewCount: count}, nil
}

func (r *MemoryRepository) GetDoctorRating(ctx context.Context, doctorID uuid.UUID) (*DoctorRating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[doctorID]
	if !ok {
		return nil, ErrNotFound
	}
	return &DoctorRating{DoctorID: doctorID, Rating: d.rating, ReviewCount: d.reviewCount}, nil
}
