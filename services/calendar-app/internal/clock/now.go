package clock

import "time"

// Clock binds a business location to a time source. The zero value uses
// time.Now and UTC.
type Clock struct {
	loc    *time.Location
	device *time.Location
	now    func() time.Time
}

// Now is the current instant projected into loc's wall clock.
func Now(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

func New(loc *time.Location, now func() time.Time) Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return Clock{loc: loc, device: time.Local, now: now}
}

// WithDeviceLocation overrides the device zone (tests, or a UI shell that
// reports its own zone).
func (c Clock) WithDeviceLocation(loc *time.Location) Clock {
	if loc != nil {
		c.device = loc
	}
	return c
}

// ForZone resolves tz (see ResolveTimeZone) and uses the real time source.
func ForZone(tz string) Clock {
	return New(Location(tz), nil)
}

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Now is the current instant projected into the business wall clock.
func (c Clock) Now() time.Time {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return now().In(c.Location())
}

// DeviceNow is the current instant in the device's own zone. The "today" cell and
// the live time marker use it, while appointment positions use the business zone.
func (c Clock) DeviceNow() time.Time {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	device := c.device
	if device == nil {
		device = time.Local
	}
	return now().In(device)
}

func (c Clock) Today() string {
	return DateKey(c.Now(), c.Location())
}

func (c Clock) DateKey(t time.Time) string {
	return DateKey(t, c.Location())
}

// IsPast reports whether dateKey is before today in the business zone.
func (c Clock) IsPast(dateKey string) bool {
	return dateKey < c.Today()
}
