package phase

import (
	"fmt"
	"time"
)

// Phase is where the presale stands relative to its two thresholds.
type Phase string

const (
	LiveCountdown   Phase = "live-countdown"
	EndingCountdown Phase = "ending-countdown"
	Ended           Phase = "ended"
)

// Display titles per phase.
const (
	TitleLiveCountdown   = "Presale is live in"
	TitleEndingCountdown = "Presale ends in"
	TitleEnded           = "Presale has ended"
)

// TimeLeft is the countdown to the next threshold.
type TimeLeft struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

func (t TimeLeft) String() string {
	return fmt.Sprintf("%dd %02dh %02dm %02ds", t.Days, t.Hours, t.Minutes, t.Seconds)
}

// State is the controller's output for one instant.
type State struct {
	Phase         Phase     `json:"phase"`
	Title         string    `json:"title"`
	TimeLeft      TimeLeft  `json:"timeLeft"`
	PresaleActive bool      `json:"isPresaleActive"`
	LiveAt        time.Time `json:"liveAt"`
	EndsAt        time.Time `json:"endsAt"`
}

// Controller evaluates the presale phase from two thresholds: liveAt (T1)
// opens purchasing, endsAt (T2) ends the sale.
type Controller struct {
	liveAt time.Time
	endsAt time.Time
	now    func() time.Time
}

// NewController creates a controller. liveAt must precede endsAt.
func NewController(liveAt, endsAt time.Time) (*Controller, error) {
	if !liveAt.Before(endsAt) {
		return nil, fmt.Errorf("live threshold %s must be before end threshold %s",
			liveAt.Format(time.RFC3339), endsAt.Format(time.RFC3339))
	}
	return &Controller{liveAt: liveAt, endsAt: endsAt, now: time.Now}, nil
}

// Current evaluates the phase at the controller's clock.
func (c *Controller) Current() State {
	return c.Evaluate(c.now())
}

// Evaluate is a pure function of now and the thresholds. Purchasing stays
// open after the sale ends.
func (c *Controller) Evaluate(now time.Time) State {
	s := State{LiveAt: c.liveAt, EndsAt: c.endsAt}

	switch {
	case now.Before(c.liveAt):
		s.Phase = LiveCountdown
		s.Title = TitleLiveCountdown
		s.TimeLeft = Remaining(c.liveAt.Sub(now))
	case now.Before(c.endsAt):
		s.Phase = EndingCountdown
		s.Title = TitleEndingCountdown
		s.TimeLeft = Remaining(c.endsAt.Sub(now))
		s.PresaleActive = true
	default:
		s.Phase = Ended
		s.Title = TitleEnded
		s.PresaleActive = true
	}
	return s
}

// Remaining splits d for display. Minutes round up so 1m59s shows as
// 2 minutes; seconds round down.
func Remaining(d time.Duration) TimeLeft {
	ms := d.Milliseconds()
	if ms <= 0 {
		return TimeLeft{}
	}
	const msPerMinute = 60_000
	totalMinutes := (ms + msPerMinute - 1) / msPerMinute
	totalSeconds := ms / 1000

	return TimeLeft{
		Days:    totalMinutes / (24 * 60),
		Hours:   (totalMinutes % (24 * 60)) / 60,
		Minutes: totalMinutes % 60,
		Seconds: totalSeconds % 60,
	}
}
