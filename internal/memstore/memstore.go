// Package memstore keeps users, bookings, notifications and service
// records in process memory.  It satisfies the same store interfaces as
// the MySQL repositories and backs USE_MEMORY_STORE=true and the service
// tests.  Values are copied in and out so callers never share state with
// the store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// Store holds every table.  One lock guards all maps so cascades between
// tables stay consistent.
type Store struct {
	mu sync.RWMutex

	users         map[uint64]model.User
	bookings      map[uint64]model.Booking
	notifications map[uint64]model.Notification
	records       map[uint64]model.ServiceRecord

	userSeq, bookingSeq, notificationSeq, recordSeq uint64

	// Now stamps created/updated times.  Tests may replace it.
	Now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[uint64]model.User),
		bookings:      make(map[uint64]model.Booking),
		notifications: make(map[uint64]model.Notification),
		records:       make(map[uint64]model.ServiceRecord),
		Now:           time.Now,
	}
}

// Users returns the user table view.
func (s *Store) Users() *Users { return &Users{s} }

// Bookings returns the booking table view.
func (s *Store) Bookings() *Bookings { return &Bookings{s} }

// Notifications returns the notification table view.
func (s *Store) Notifications() *Notifications { return &Notifications{s} }

// ServiceRecords returns the service record table view.
func (s *Store) ServiceRecords() *ServiceRecords { return &ServiceRecords{s} }

func (s *Store) now() time.Time { return s.Now().UTC() }

// ---- users ----

type Users struct{ s *Store }

func (u *Users) conflict(c model.User) error {
	for _, o := range u.s.users {
		if o.ID == c.ID {
			continue
		}
		if o.Username == c.Username {
			return apperr.New(apperr.ErrConflict, "Username already exists")
		}
		if o.Email == c.Email {
			return apperr.New(apperr.ErrConflict, "Email already exists")
		}
	}
	return nil
}

func (u *Users) Create(_ context.Context, usr *model.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	usr.Email = strings.ToLower(strings.TrimSpace(usr.Email))
	usr.Username = strings.TrimSpace(usr.Username)
	usr.ID = 0
	if err := u.conflict(*usr); err != nil {
		return err
	}
	u.s.userSeq++
	usr.ID = u.s.userSeq
	ts := u.s.now()
	usr.CreatedAt, usr.UpdatedAt = ts, ts
	u.s.users[usr.ID] = cloneUser(*usr)
	return nil
}

func (u *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	usr, ok := u.s.users[id]
	if !ok {
		return model.User{}, apperr.New(apperr.ErrNotFound, "User not found")
	}
	return cloneUser(usr), nil
}

func (u *Users) find(match func(model.User) bool) (model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, usr := range u.s.users {
		if match(usr) {
			return cloneUser(usr), nil
		}
	}
	return model.User{}, apperr.New(apperr.ErrNotFound, "User not found")
}

func (u *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return u.find(func(x model.User) bool { return x.Email == email })
}

func (u *Users) GetByUsername(_ context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	return u.find(func(x model.User) bool { return x.Username == username })
}

func (u *Users) GetByLogin(_ context.Context, login string) (model.User, error) {
	v := strings.TrimSpace(login)
	lower := strings.ToLower(v)
	return u.find(func(x model.User) bool { return x.Email == lower || x.Username == v })
}

func (u *Users) Owners(_ context.Context) ([]model.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	var out []model.User
	for _, usr := range u.s.users {
		if usr.Role == model.RoleOwner {
			out = append(out, cloneUser(usr))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (u *Users) Update(_ context.Context, usr *model.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	old, ok := u.s.users[usr.ID]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "User not found")
	}
	usr.Email = strings.ToLower(strings.TrimSpace(usr.Email))
	usr.Username = strings.TrimSpace(usr.Username)
	if err := u.conflict(*usr); err != nil {
		return err
	}
	usr.CreatedAt = old.CreatedAt
	usr.UpdatedAt = u.s.now()
	u.s.users[usr.ID] = cloneUser(*usr)
	return nil
}

func (u *Users) List(_ context.Context, f model.UserFilter) ([]model.User, int, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(f.Search))
	var all []model.User
	for _, usr := range u.s.users {
		if q != "" {
			mobile := ""
			if usr.Mobile != nil {
				mobile = *usr.Mobile
			}
			if !strings.Contains(strings.ToLower(usr.Username), q) &&
				!strings.Contains(usr.Email, q) && !strings.Contains(mobile, q) {
				continue
			}
		}
		all = append(all, cloneUser(usr))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return paginate(all, f.Offset, f.Limit), len(all), nil
}

func (u *Users) Taken(_ context.Context, field, value string, exceptID uint64) (bool, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, usr := range u.s.users {
		if usr.ID == exceptID {
			continue
		}
		switch field {
		case "username":
			if usr.Username == value {
				return true, nil
			}
		case "email":
			if usr.Email == strings.ToLower(strings.TrimSpace(value)) {
				return true, nil
			}
		case "mobile":
			if usr.Mobile != nil && *usr.Mobile == value {
				return true, nil
			}
		default:
			return false, apperr.Newf(apperr.ErrValidation, "unknown field %q", field)
		}
	}
	return false, nil
}

// DeleteAll removes every user and, like the foreign key, their bookings.
func (u *Users) DeleteAll(_ context.Context) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	u.s.users = make(map[uint64]model.User)
	u.s.bookings = make(map[uint64]model.Booking)
	return nil
}

// ---- bookings ----

type Bookings struct{ s *Store }

// withCustomer fills the customer summary.  Caller holds the lock.
func (b *Bookings) withCustomer(bk model.Booking) model.Booking {
	bk = cloneBooking(bk)
	if usr, ok := b.s.users[bk.CustomerID]; ok {
		bk.Customer = &model.UserRef{ID: usr.ID, Username: usr.Username, Email: usr.Email, Mobile: cloneStr(usr.Mobile)}
	}
	return bk
}

func (b *Bookings) Create(_ context.Context, bk *model.Booking) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	b.s.bookingSeq++
	bk.ID = b.s.bookingSeq
	ts := b.s.now()
	bk.CreatedAt, bk.UpdatedAt = ts, ts
	stored := cloneBooking(*bk)
	stored.Customer = nil
	b.s.bookings[bk.ID] = stored
	return nil
}

func (b *Bookings) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	bk, ok := b.s.bookings[id]
	if !ok {
		return model.Booking{}, apperr.New(apperr.ErrNotFound, "Booking not found")
	}
	return b.withCustomer(bk), nil
}

func (b *Bookings) Update(_ context.Context, bk *model.Booking) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	return b.update(bk)
}

// Complete saves bk and appends rec under one lock hold.
func (b *Bookings) Complete(_ context.Context, bk *model.Booking, rec *model.ServiceRecord) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if err := b.update(bk); err != nil {
		return err
	}
	b.s.insertRecord(rec)
	return nil
}

// update replaces a stored booking.  Caller holds the lock.
func (b *Bookings) update(bk *model.Booking) error {
	old, ok := b.s.bookings[bk.ID]
	if !ok {
		return apperr.New(apperr.ErrNotFound, "Booking not found")
	}
	bk.CustomerID = old.CustomerID
	bk.CreatedAt = old.CreatedAt
	bk.UpdatedAt = b.s.now()
	stored := cloneBooking(*bk)
	stored.Customer = nil
	b.s.bookings[bk.ID] = stored
	return nil
}

// Delete removes a booking and the notifications linked to it.
func (b *Bookings) Delete(_ context.Context, id uint64) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, ok := b.s.bookings[id]; !ok {
		return apperr.New(apperr.ErrNotFound, "Booking not found")
	}
	delete(b.s.bookings, id)
	for nid, n := range b.s.notifications {
		if n.BookingID != nil && *n.BookingID == id {
			delete(b.s.notifications, nid)
		}
	}
	return nil
}

func (b *Bookings) List(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	out := []model.Booking{}
	for _, bk := range b.s.bookings {
		if f.Matches(bk) {
			out = append(out, b.withCustomer(bk))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (b *Bookings) DeleteAll(_ context.Context) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	b.s.bookings = make(map[uint64]model.Booking)
	return nil
}

// ---- notifications ----

type Notifications struct{ s *Store }

// Create keeps a preset CreatedAt so fixtures can backdate notifications.
func (n *Notifications) Create(_ context.Context, nt *model.Notification) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	n.s.notificationSeq++
	nt.ID = n.s.notificationSeq
	if nt.CreatedAt.IsZero() {
		nt.CreatedAt = n.s.now()
	}
	n.s.notifications[nt.ID] = cloneNotification(*nt)
	return nil
}

func (n *Notifications) List(_ context.Context, f model.NotificationFilter) ([]model.Notification, int, error) {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()
	var all []model.Notification
	for _, nt := range n.s.notifications {
		if nt.RecipientID != f.RecipientID || (f.UnreadOnly && nt.IsRead) {
			continue
		}
		all = append(all, cloneNotification(nt))
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	page := paginate(all, f.Offset, f.Limit)
	if page == nil {
		page = []model.Notification{}
	}
	return page, len(all), nil
}

func (n *Notifications) MarkRead(_ context.Context, recipientID, id uint64) (model.Notification, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	nt, ok := n.s.notifications[id]
	if !ok || nt.RecipientID != recipientID {
		return model.Notification{}, apperr.New(apperr.ErrNotFound, "Notification not found")
	}
	nt.IsRead = true
	n.s.notifications[id] = nt
	return cloneNotification(nt), nil
}

func (n *Notifications) MarkAllRead(_ context.Context, recipientID uint64) (int64, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	var c int64
	for id, nt := range n.s.notifications {
		if nt.RecipientID == recipientID && !nt.IsRead {
			nt.IsRead = true
			n.s.notifications[id] = nt
			c++
		}
	}
	return c, nil
}

func (n *Notifications) UnreadCount(_ context.Context, recipientID uint64) (int, error) {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()
	c := 0
	for _, nt := range n.s.notifications {
		if nt.RecipientID == recipientID && !nt.IsRead {
			c++
		}
	}
	return c, nil
}

func (n *Notifications) Exists(_ context.Context, recipientID, bookingID uint64, t model.NotificationType) (bool, error) {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()
	for _, nt := range n.s.notifications {
		if nt.RecipientID == recipientID && nt.Type == t && nt.BookingID != nil && *nt.BookingID == bookingID {
			return true, nil
		}
	}
	return false, nil
}

func (n *Notifications) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	var c int64
	for id, nt := range n.s.notifications {
		if nt.IsRead && nt.CreatedAt.Before(cutoff) {
			delete(n.s.notifications, id)
			c++
		}
	}
	return c, nil
}

func (n *Notifications) PurgeBooking(_ context.Context, bookingID, keepID uint64) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	for id, nt := range n.s.notifications {
		if nt.BookingID == nil || *nt.BookingID != bookingID {
			continue
		}
		if id == keepID {
			nt.BookingID = nil
			n.s.notifications[id] = nt
			continue
		}
		delete(n.s.notifications, id)
	}
	return nil
}

func (n *Notifications) DeleteAll(_ context.Context) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	n.s.notifications = make(map[uint64]model.Notification)
	return nil
}

// ---- service records ----

type ServiceRecords struct{ s *Store }

func (r *ServiceRecords) Create(_ context.Context, rec *model.ServiceRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.insertRecord(rec)
	return nil
}

// insertRecord stores rec with the next id.  Caller holds the lock.
func (s *Store) insertRecord(rec *model.ServiceRecord) {
	s.recordSeq++
	rec.ID = s.recordSeq
	rec.CreatedAt = s.now()
	s.records[rec.ID] = cloneRecord(*rec)
}

func (r *ServiceRecords) ListByBooking(_ context.Context, bookingID uint64) ([]model.ServiceRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.ServiceRecord{}
	for _, rec := range r.s.records {
		if rec.BookingID == bookingID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ServiceRecords) DeleteAll(_ context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.records = make(map[uint64]model.ServiceRecord)
	return nil
}
