package grid

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/md-rashed-zaman/apptremind-calendar/services/calendar-app/internal/clock"
)

// Memo caches recent projections keyed by a fingerprint of their inputs.
// Returned views are shared between callers and must not be modified.
type Memo struct {
	mu      sync.Mutex
	size    int
	entries map[uint64]any
	order   []uint64
}

func NewMemo(size int) *Memo {
	if size <= 0 {
		size = 16
	}
	return &Memo{size: size, entries: make(map[uint64]any, size)}
}

func (m *Memo) Day(in Input, cfg Config) DayView {
	return memoized(m, fingerprint("day", in, cfg), func() DayView { return Day(in, cfg) })
}

func (m *Memo) Week(in Input, cfg Config) WeekView {
	return memoized(m, fingerprint("week", in, cfg), func() WeekView { return Week(in, cfg) })
}

func (m *Memo) Month(in Input, cfg Config) MonthView {
	return memoized(m, fingerprint("month", in, cfg), func() MonthView { return Month(in, cfg) })
}

func (m *Memo) Agenda(in Input) []AgendaDay {
	return memoized(m, fingerprint("agenda", in, Config{}), func() []AgendaDay { return Agenda(in) })
}

func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func memoized[T any](m *Memo, key uint64, compute func() T) T {
	if m == nil {
		return compute()
	}
	m.mu.Lock()
	if v, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return v.(T)
	}
	m.mu.Unlock()

	v := compute()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		if len(m.order) >= m.size {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.entries, oldest)
		}
		m.order = append(m.order, key)
	}
	m.entries[key] = v
	return v
}

// fingerprint covers every input the projection reads. The device clock is
// included to the minute because the now marker and today flag depend on it.
func fingerprint(view string, in Input, cfg Config) uint64 {
	d := xxhash.New()
	loc := in.loc()
	writeString(d, view)
	writeString(d, loc.String())
	writeString(d, clock.DateKey(in.Anchor, loc))
	if !in.DeviceNow.IsZero() {
		writeString(d, in.DeviceNow.Location().String())
		writeString(d, in.DeviceNow.Format("2006-01-02T15:04"))
	}
	writeFloat(d, cfg.HourHeight)
	writeFloat(d, cfg.MinBlockHeight)
	writeFloat(d, cfg.ColumnWidth)
	writeInt(d, int64(cfg.MaxChips))
	writeInt(d, int64(cfg.StartHour))
	if in.Schedule != nil {
		for wd := 0; wd < 7; wd++ {
			if in.Schedule.IsWeekdayClosed(time.Weekday(wd)) {
				writeInt(d, int64(wd))
			}
		}
	}
	for _, a := range in.Appointments {
		writeString(d, a.ID)
		writeInt(d, a.StartTime.UnixNano())
		writeInt(d, a.EndTime.UnixNano())
		writeString(d, string(a.Status))
		writeString(d, a.DisplayName())
		writeString(d, a.ServiceName)
		writeString(d, a.StaffName)
	}
	return d.Sum64()
}

func writeString(d *xxhash.Digest, s string) {
	_, _ = d.WriteString(s)
	_, _ = d.Write([]byte{0})
}

func writeInt(d *xxhash.Digest, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	_, _ = d.Write(b[:])
}

func writeFloat(d *xxhash.Digest, f float64) {
	writeInt(d, int64(math.Float64bits(f)))
}
