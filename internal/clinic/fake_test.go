package clinic

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	redisclient "github.com/frontdesk/reservations/internal/redis"
)

// fakeLocker mirrors the SetNX semantics of the Redis locker: a held
// key rejects a second caller instead of blocking.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) WithResourceLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	return fn(ctx)
}

// hold marks a key as taken so the next caller observes contention.
func (l *fakeLocker) hold(key string) {
	l.mu.Lock()
	l.held[key] = true
	l.mu.Unlock()
}

type fakeClinicRepo struct {
	mu sync.Mutex

	doctors      map[uuid.UUID]*Doctor
	services     map[uuid.UUID]*CareService
	patients     map[uuid.UUID]*Patient
	appointments map[uuid.UUID]*Appointment
	invoices     map[uuid.UUID]*Invoice
	invoiceItems map[uuid.UUID][]InvoiceItem

	// doctorOrder keeps ListActiveDoctors deterministic.
	doctorOrder []uuid.UUID

	// invoiceRaceMisses makes the next N GetInvoiceByAppointment calls
	// miss even when an invoice exists, simulating a concurrent creator
	// committing between the pre-check and the insert.
	invoiceRaceMisses int

	// slotConflictOnWrite makes appointment inserts and reschedules hit
	// the unique doctor+start index, as when a competing reservation
	// commits after the lock TTL lapsed.
	slotConflictOnWrite bool
}

func newFakeClinicRepo() *fakeClinicRepo {
	return &fakeClinicRepo{
		doctors:      make(map[uuid.UUID]*Doctor),
		services:     make(map[uuid.UUID]*CareService),
		patients:     make(map[uuid.UUID]*Patient),
		appointments: make(map[uuid.UUID]*Appointment),
		invoices:     make(map[uuid.UUID]*Invoice),
		invoiceItems: make(map[uuid.UUID][]InvoiceItem),
	}
}

func (f *fakeClinicRepo) addDoctor(name string, active bool) *Doctor {
	d := &Doctor{ID: uuid.New(), FullName: name, Active: active}
	f.doctors[d.ID] = d
	f.doctorOrder = append(f.doctorOrder, d.ID)
	return d
}

func (f *fakeClinicRepo) addService(name string, durationMin, priceCents int, active bool) *CareService {
	s := &CareService{ID: uuid.New(), Name: name, DurationMin: durationMin, PriceCents: priceCents, Active: active}
	f.services[s.ID] = s
	return s
}

func (f *fakeClinicRepo) addPatient(name string) *Patient {
	p := &Patient{ID: uuid.New(), FullName: name, Email: name + "@example.com"}
	f.patients[p.ID] = p
	return p
}

func (f *fakeClinicRepo) addAppointment(patientID, doctorID, serviceID uuid.UUID, startsAt time.Time, status AppointmentStatus) *Appointment {
	a := &Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  doctorID,
		ServiceID: serviceID,
		StartsAt:  startsAt,
		Status:    status,
	}
	f.appointments[a.ID] = a
	return a
}

func (f *fakeClinicRepo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := f.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	copied := *d
	return &copied, nil
}

func (f *fakeClinicRepo) ListActiveDoctors(ctx context.Context) ([]Doctor, error) {
	var out []Doctor
	for _, id := range f.doctorOrder {
		if d := f.doctors[id]; d.Active {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeClinicRepo) GetCareServiceByID(ctx context.Context, id uuid.UUID) (*CareService, error) {
	s, ok := f.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeClinicRepo) ListActiveCareServices(ctx context.Context) ([]CareService, error) {
	var out []CareService
	for _, s := range f.services {
		if s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeClinicRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeClinicRepo) BookedStartTimes(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, a := range f.appointments {
		if a.DoctorID != doctorID || a.Status == StatusCancelled {
			continue
		}
		if a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		out = append(out, a.StartsAt)
	}
	return out, nil
}

func (f *fakeClinicRepo) SlotTaken(ctx context.Context, doctorID uuid.UUID, startsAt time.Time) (bool, error) {
	for _, a := range f.appointments {
		if a.DoctorID == doctorID && a.Status != StatusCancelled && a.StartsAt.Equal(startsAt) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeClinicRepo) CreateAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	if f.slotConflictOnWrite {
		return nil, &pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_doctor_slot"}
	}
	a := &Appointment{
		ID:        uuid.New(),
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		ServiceID: in.ServiceID,
		StartsAt:  in.StartsAt,
		Status:    in.Status,
		Notes:     in.Notes,
	}
	f.appointments[a.ID] = a
	copied := *a
	return &copied, nil
}

func (f *fakeClinicRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	copied := *a
	return &copied, nil
}

func (f *fakeClinicRepo) UpdateAppointmentNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.Notes = &notes
	copied := *a
	return &copied, nil
}

func (f *fakeClinicRepo) RescheduleAppointment(ctx context.Context, id uuid.UUID, startsAt time.Time) (*Appointment, error) {
	if f.slotConflictOnWrite {
		return nil, &pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_doctor_slot"}
	}
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.StartsAt = startsAt
	copied := *a
	return &copied, nil
}

func (f *fakeClinicRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeClinicRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	detail := &AppointmentDetail{Appointment: *a}
	if p, ok := f.patients[a.PatientID]; ok {
		detail.PatientName = p.FullName
	}
	if d, ok := f.doctors[a.DoctorID]; ok {
		detail.DoctorName = d.FullName
	}
	if s, ok := f.services[a.ServiceID]; ok {
		detail.ServiceName = s.Name
		detail.ServiceDurationMin = s.DurationMin
		detail.ServicePriceCents = s.PriceCents
	}
	return detail, nil
}

func (f *fakeClinicRepo) ListDoctorSchedule(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]AppointmentDetail, error) {
	var out []AppointmentDetail
	for id, a := range f.appointments {
		if a.DoctorID != doctorID || a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		detail, _ := f.GetAppointmentDetail(ctx, id)
		out = append(out, *detail)
	}
	return out, nil
}

func (f *fakeClinicRepo) GetInvoiceByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	copied := *inv
	return &copied, nil
}

func (f *fakeClinicRepo) GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	if f.invoiceRaceMisses > 0 {
		f.invoiceRaceMisses--
		return nil, ErrInvoiceNotFound
	}
	for _, inv := range f.invoices {
		if inv.AppointmentID == appointmentID {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, ErrInvoiceNotFound
}

func (f *fakeClinicRepo) ListInvoicesByPatient(ctx context.Context, patientID uuid.UUID) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range f.invoices {
		if inv.PatientID == patientID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeClinicRepo) CreateInvoice(ctx context.Context, appointmentID, patientID uuid.UUID, status string) (*Invoice, error) {
	for _, inv := range f.invoices {
		if inv.AppointmentID == appointmentID {
			// UNIQUE(appointment_id)
			return nil, &pgconn.PgError{Code: "23505", ConstraintName: "invoices_appointment_id_key"}
		}
	}
	inv := &Invoice{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		PatientID:     patientID,
		Status:        status,
	}
	f.invoices[inv.ID] = inv
	copied := *inv
	return &copied, nil
}

func (f *fakeClinicRepo) AddInvoiceItem(ctx context.Context, invoiceID uuid.UUID, description string, qty, unitPriceCents int) (*InvoiceItem, error) {
	if _, ok := f.invoices[invoiceID]; !ok {
		return nil, ErrInvoiceNotFound
	}
	item := InvoiceItem{
		ID:             uuid.New(),
		InvoiceID:      invoiceID,
		Description:    description,
		Qty:            qty,
		UnitPriceCents: unitPriceCents,
	}
	f.invoiceItems[invoiceID] = append(f.invoiceItems[invoiceID], item)
	return &item, nil
}

func (f *fakeClinicRepo) DeleteInvoiceItem(ctx context.Context, invoiceID, itemID uuid.UUID) error {
	items := f.invoiceItems[invoiceID]
	for i, item := range items {
		if item.ID == itemID {
			f.invoiceItems[invoiceID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return ErrInvoiceItemNotFound
}

func (f *fakeClinicRepo) ListInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error) {
	out := make([]InvoiceItem, len(f.invoiceItems[invoiceID]))
	copy(out, f.invoiceItems[invoiceID])
	return out, nil
}

func (f *fakeClinicRepo) SetInvoiceTotal(ctx context.Context, invoiceID uuid.UUID, totalCents int) error {
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.TotalCents = totalCents
	return nil
}

func (f *fakeClinicRepo) InTx(ctx context.Context, fn func(ctx context.Context, r Repository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	appointments := make(map[uuid.UUID]*Appointment, len(f.appointments))
	for id, a := range f.appointments {
		copied := *a
		appointments[id] = &copied
	}
	invoices := make(map[uuid.UUID]*Invoice, len(f.invoices))
	for id, inv := range f.invoices {
		copied := *inv
		invoices[id] = &copied
	}
	items := make(map[uuid.UUID][]InvoiceItem, len(f.invoiceItems))
	for id, is := range f.invoiceItems {
		items[id] = append([]InvoiceItem(nil), is...)
	}

	if err := fn(ctx, f); err != nil {
		f.appointments = appointments
		f.invoices = invoices
		f.invoiceItems = items
		return err
	}
	return nil
}
