package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/cafe-order-core/pkg/config"
)

var ErrClosed = errors.New("cafe is closed")

// Hours is the venue's daily opening window in its own timezone. A close
// time at or before the open time means the window runs past midnight.
type Hours struct {
	open  time.Duration
	close time.Duration
	loc   *time.Location
}

func NewHours(v config.Venue) (Hours, error) {
	open, err := clock(v.OpenAt)
	if err != nil {
		return Hours{}, fmt.Errorf("open_at: %w", err)
	}
	closeAt, err := clock(v.CloseAt)
	if err != nil {
		return Hours{}, fmt.Errorf("close_at: %w", err)
	}
	return Hours{open: open, close: closeAt, loc: v.Location()}, nil
}

// IsOpen reports whether at falls inside the window. The zero Hours is
// always open.
func (h Hours) IsOpen(at time.Time) bool {
	if h.loc == nil || h.open == h.close {
		return true
	}
	local := at.In(h.loc)
	since := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute
	if h.open < h.close {
		return since >= h.open && since < h.close
	}
	return since >= h.open || since < h.close
}

func (h Hours) Location() *time.Location {
	if h.loc == nil {
		return time.UTC
	}
	return h.loc
}

func (h Hours) String() string {
	return fmt.Sprintf("%s-%s %s", format(h.open), format(h.close), h.Location())
}

func clock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func format(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
