package memstore

import "github.com/iliyamo/fixmybike-booking/internal/model"

func cloneStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneReceipt(r model.Receipt) model.Receipt {
	r.WorkDone = append([]string(nil), r.WorkDone...)
	r.PartsReplaced = append([]string(nil), r.PartsReplaced...)
	return r
}

func cloneUser(u model.User) model.User {
	u.Mobile = cloneStr(u.Mobile)
	u.EmailOTP.Code = cloneStr(u.EmailOTP.Code)
	if u.EmailOTP.ExpiresAt != nil {
		t := *u.EmailOTP.ExpiresAt
		u.EmailOTP.ExpiresAt = &t
	}
	return u
}

func cloneBooking(b model.Booking) model.Booking {
	if b.ActualCost != nil {
		v := *b.ActualCost
		b.ActualCost = &v
	}
	b.PaymentMode = cloneStr(b.PaymentMode)
	b.DeliveryMethod = cloneStr(b.DeliveryMethod)
	b.Receipt = cloneReceipt(b.Receipt)
	if b.Customer != nil {
		c := *b.Customer
		c.Mobile = cloneStr(c.Mobile)
		b.Customer = &c
	}
	return b
}

func cloneNotification(n model.Notification) model.Notification {
	if n.BookingID != nil {
		id := *n.BookingID
		n.BookingID = &id
	}
	return n
}

func cloneRecord(r model.ServiceRecord) model.ServiceRecord {
	r.PaymentMode = cloneStr(r.PaymentMode)
	r.Receipt = cloneReceipt(r.Receipt)
	return r
}

func paginate[T any](all []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []T{}
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
