package service

// This file computes the owner dashboard and report figures.  Periods and
// month buckets are cut in the service time zone.

import (
	"context"
	"sort"
	"time"

	jnow "github.com/jinzhu/now"

	"github.com/iliyamo/fixmybike-booking/internal/apperr"
	"github.com/iliyamo/fixmybike-booking/internal/model"
)

// DashboardStats is the owner's overview.
type DashboardStats struct {
	TotalBookings     int     `json:"totalBookings"`
	PendingBookings   int     `json:"pendingBookings"`
	ConfirmedBookings int     `json:"confirmedBookings"`
	CompletedBookings int     `json:"completedBookings"`
	CancelledBookings int     `json:"cancelledBookings"`
	RejectedBookings  int     `json:"rejectedBookings"`
	TodayBookings     int     `json:"todayBookings"`
	TotalRevenue      float64 `json:"totalRevenue"`
	TodayRevenue      float64 `json:"todayRevenue"`
	ShopServices      int     `json:"shopServices"`
	HomeServices      int     `json:"homeServices"`
}

// ServiceRevenue is one line of the top services table.
type ServiceRevenue struct {
	Name    model.ServiceType `json:"name"`
	Count   int               `json:"count"`
	Revenue float64           `json:"revenue"`
}

// RecentBooking is a short booking summary for the analytics page.
type RecentBooking struct {
	ID           uint64            `json:"id"`
	CustomerName string            `json:"customerName"`
	Service      model.ServiceType `json:"service"`
	Date         time.Time         `json:"date"`
	Status       model.Status      `json:"status"`
	Amount       float64           `json:"amount"`
}

// Analytics summarises bookings created in a period.
type Analytics struct {
	Total             int                       `json:"total"`
	ThisMonth         int                       `json:"thisMonth"`
	LastMonth         int                       `json:"lastMonth"`
	Growth            float64                   `json:"growth"`
	ServiceBreakdown  map[model.ServiceType]int `json:"serviceBreakdown"`
	LocationBreakdown map[string]int            `json:"locationBreakdown"`
	TopServices       []ServiceRevenue          `json:"topServices"`
	RecentBookings    []RecentBooking           `json:"recentBookings"`
}

// Revenue summarises completed bookings in a period.
type Revenue struct {
	Total     float64 `json:"total"`
	ThisMonth float64 `json:"thisMonth"`
	LastMonth float64 `json:"lastMonth"`
	Growth    float64 `json:"growth"`
}

// StatsService computes owner reports over the booking store.
type StatsService struct {
	bookings BookingStore
	loc      *time.Location
	now      Clock
}

// NewStatsService reports in loc.  now defaults to time.Now.
func NewStatsService(bookings BookingStore, loc *time.Location, now Clock) *StatsService {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &StatsService{bookings: bookings, loc: loc, now: now}
}

func (s *StatsService) calendar() *jnow.Now {
	cfg := &jnow.Config{WeekStartDay: time.Monday, TimeLocation: s.loc}
	return cfg.With(s.now().In(s.loc))
}

func ownerOnly(actor Actor) error {
	if !actor.IsOwner() {
		return apperr.New(apperr.ErrForbidden, "Access denied")
	}
	return nil
}

// Dashboard counts every booking by status and location and sums revenue.
func (s *StatsService) Dashboard(ctx context.Context, actor Actor) (DashboardStats, error) {
	if !actor.IsOwner() {
		return DashboardStats{}, apperr.New(apperr.ErrForbidden, "Only owners can access dashboard stats")
	}
	all, err := s.bookings.List(ctx, model.BookingFilter{})
	if err != nil {
		return DashboardStats{}, err
	}
	cal := s.calendar()
	dayStart, dayEnd := cal.BeginningOfDay(), cal.BeginningOfDay().AddDate(0, 0, 1)
	inToday := func(t time.Time) bool { return !t.Before(dayStart) && t.Before(dayEnd) }

	var st DashboardStats
	st.TotalBookings = len(all)
	for _, b := range all {
		switch b.Status {
		case model.StatusPending:
			st.PendingBookings++
		case model.StatusConfirmed:
			st.ConfirmedBookings++
		case model.StatusCompleted:
			st.CompletedBookings++
			st.TotalRevenue += b.EffectiveCost()
			if inToday(b.UpdatedAt) {
				st.TodayRevenue += b.EffectiveCost()
			}
		case model.StatusCancelled:
			st.CancelledBookings++
		case model.StatusRejected:
			st.RejectedBookings++
		}
		if inToday(b.Date) {
			st.TodayBookings++
		}
		switch b.Location {
		case model.LocationShop:
			st.ShopServices++
		case model.LocationHome:
			st.HomeServices++
		}
	}
	return st, nil
}

// periodStart returns the first instant of the named reporting period.
// Unknown names fall back to the current month.
func (s *StatsService) periodStart(period string) time.Time {
	cal := s.calendar()
	switch period {
	case "week":
		return s.now().Add(-7 * 24 * time.Hour)
	case "quarter":
		return cal.BeginningOfQuarter()
	case "year":
		return cal.BeginningOfYear()
	}
	return cal.BeginningOfMonth()
}

// monthBuckets returns the bounds of the current and previous month.
func (s *StatsService) monthBuckets() (thisStart, lastStart, nextStart time.Time) {
	thisStart = s.calendar().BeginningOfMonth()
	return thisStart, thisStart.AddDate(0, -1, 0), thisStart.AddDate(0, 1, 0)
}

func within(t, from, to time.Time) bool { return !t.Before(from) && t.Before(to) }

func growth(this, last float64) float64 {
	if last <= 0 {
		return 0
	}
	return (this - last) / last * 100
}

// Analytics reports on bookings created since the start of period.
func (s *StatsService) Analytics(ctx context.Context, actor Actor, period string) (Analytics, error) {
	if err := ownerOnly(actor); err != nil {
		return Analytics{}, err
	}
	all, err := s.bookings.List(ctx, model.BookingFilter{})
	if err != nil {
		return Analytics{}, err
	}
	from, to := s.periodStart(period), s.now()
	thisStart, lastStart, nextStart := s.monthBuckets()

	a := Analytics{
		ServiceBreakdown:  make(map[model.ServiceType]int, len(model.ServiceTypes)),
		LocationBreakdown: map[string]int{model.LocationShop: 0, model.LocationHome: 0},
		TopServices:       []ServiceRevenue{},
		RecentBookings:    []RecentBooking{},
	}
	for _, t := range model.ServiceTypes {
		a.ServiceBreakdown[t] = 0
	}
	revenue := map[model.ServiceType]*ServiceRevenue{}
	var picked []model.Booking
	for _, b := range all {
		if b.CreatedAt.Before(from) || b.CreatedAt.After(to) {
			continue
		}
		picked = append(picked, b)
		a.Total++
		if within(b.CreatedAt, thisStart, nextStart) {
			a.ThisMonth++
		}
		if within(b.CreatedAt, lastStart, thisStart) {
			a.LastMonth++
		}
		a.ServiceBreakdown[b.Service]++
		a.LocationBreakdown[b.Location]++
		r := revenue[b.Service]
		if r == nil {
			r = &ServiceRevenue{Name: b.Service}
			revenue[b.Service] = r
		}
		r.Count++
		r.Revenue += b.EffectiveCost()
	}
	a.Growth = growth(float64(a.ThisMonth), float64(a.LastMonth))

	for _, r := range revenue {
		a.TopServices = append(a.TopServices, *r)
	}
	sort.Slice(a.TopServices, func(i, j int) bool {
		if a.TopServices[i].Revenue != a.TopServices[j].Revenue {
			return a.TopServices[i].Revenue > a.TopServices[j].Revenue
		}
		return a.TopServices[i].Name < a.TopServices[j].Name
	})
	if len(a.TopServices) > 5 {
		a.TopServices = a.TopServices[:5]
	}

	sort.SliceStable(picked, func(i, j int) bool { return picked[i].CreatedAt.After(picked[j].CreatedAt) })
	for i, b := range picked {
		if i == 10 {
			break
		}
		name := "Unknown"
		if b.Customer != nil && b.Customer.Username != "" {
			name = b.Customer.Username
		}
		a.RecentBookings = append(a.RecentBookings, RecentBooking{
			ID: b.ID, CustomerName: name, Service: b.Service, Date: b.Date, Status: b.Status, Amount: b.EffectiveCost(),
		})
	}
	return a, nil
}

// Revenue sums completed bookings last updated since the start of period.
func (s *StatsService) Revenue(ctx context.Context, actor Actor, period string) (Revenue, error) {
	if err := ownerOnly(actor); err != nil {
		return Revenue{}, err
	}
	done, err := s.bookings.List(ctx, model.BookingFilter{Status: model.StatusCompleted})
	if err != nil {
		return Revenue{}, err
	}
	from, to := s.periodStart(period), s.now()
	thisStart, lastStart, nextStart := s.monthBuckets()

	var r Revenue
	for _, b := range done {
		if b.UpdatedAt.Before(from) || b.UpdatedAt.After(to) {
			continue
		}
		amount := b.EffectiveCost()
		r.Total += amount
		if within(b.UpdatedAt, thisStart, nextStart) {
			r.ThisMonth += amount
		}
		if within(b.UpdatedAt, lastStart, thisStart) {
			r.LastMonth += amount
		}
	}
	r.Growth = growth(r.ThisMonth, r.LastMonth)
	return r, nil
}
