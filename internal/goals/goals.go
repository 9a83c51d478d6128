// Package goals tracks daily protein and step totals against fixed targets.
package goals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/forgefit/forge/internal/kv"
	"github.com/forgefit/forge/internal/models"
)

// ErrNegative is returned by Set for amounts below zero.
var ErrNegative = errors.New("amount must not be negative")

// Kind identifies a tracker.
type Kind string

const (
	Protein Kind = "protein"
	Steps   Kind = "steps"
)

// Status buckets progress towards the daily target.
type Status string

const (
	OnTrack Status = "on_track"
	Close   Status = "close"
	Behind  Status = "behind"
)

// Definition describes one tracker.
type Definition struct {
	Kind   Kind
	Key    string
	Target float64
	Unit   string
}

var definitions = map[Kind]Definition{
	Protein: {Kind: Protein, Key: kv.KeyProtein, Target: 142.5, Unit: "g"},
	Steps:   {Kind: Steps, Key: kv.KeySteps, Target: 10000, Unit: "steps"},
}

// Lookup returns the definition for kind.
func Lookup(kind Kind) (Definition, bool) {
	d, ok := definitions[kind]
	return d, ok
}

// Kinds returns every known tracker kind.
func Kinds() []Kind {
	return []Kind{Protein, Steps}
}

// Progress is the state of one tracker for today.
type Progress struct {
	Kind          Kind        `json:"kind"`
	Date          string      `json:"date"`
	Value         float64     `json:"value"`
	Target        float64     `json:"target"`
	Unit          string      `json:"unit"`
	Percent       float64     `json:"percent"`
	Status        Status      `json:"status"`
	WeeklyAverage float64     `json:"weeklyAverage"`
	Last7Days     []DayAmount `json:"last7Days"`
	Degraded      bool        `json:"degraded,omitempty"`
}

type DayAmount struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// Tracker persists a per-date map of amounts for one goal.
type Tracker struct {
	def   Definition
	store kv.Store
	log   *slog.Logger
	now   func() time.Time
	loc   *time.Location

	mu sync.Mutex
}

// New returns the tracker for kind. loc decides the calendar day; nil means UTC.
func New(kind Kind, store kv.Store, log *slog.Logger, loc *time.Location) (*Tracker, error) {
	def, ok := definitions[kind]
	if !ok {
		return nil, fmt.Errorf("unknown goal %q", kind)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{def: def, store: store, log: log.With("goal", string(kind)), now: time.Now, loc: loc}, nil
}

// SetClock overrides time.Now. Tests only.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

func (t *Tracker) Definition() Definition {
	return t.def
}

func (t *Tracker) today() string {
	return t.now().In(t.loc).Format(models.DateLayout)
}

// Today returns today's amount.
func (t *Tracker) Today(ctx context.Context) (float64, bool) {
	data, outcome := t.load(ctx)
	return data[t.today()], outcome.Degraded()
}

// Add adds amount (which may be negative) to today's total, clamping at zero.
func (t *Tracker) Add(ctx context.Context, amount float64) (float64, error) {
	return t.modify(ctx, func(current float64) (float64, error) {
		return math.Max(0, current+amount), nil
	})
}

// Set replaces today's total.
func (t *Tracker) Set(ctx context.Context, amount float64) (float64, error) {
	return t.modify(ctx, func(float64) (float64, error) {
		if amount < 0 {
			return 0, ErrNegative
		}
		return amount, nil
	})
}

// WeeklyAverage returns the rounded mean of the seven most recent dated
// entries.
func (t *Tracker) WeeklyAverage(ctx context.Context) (float64, bool) {
	data, outcome := t.load(ctx)
	return weeklyAverage(data), outcome.Degraded()
}

// Progress summarizes today against the target.
func (t *Tracker) Progress(ctx context.Context) Progress {
	data, outcome := t.load(ctx)
	date := t.today()
	value := data[date]
	return Progress{
		Kind:          t.def.Kind,
		Date:          date,
		Value:         value,
		Target:        t.def.Target,
		Unit:          t.def.Unit,
		Percent:       Percent(value, t.def.Target),
		Status:        StatusFor(value, t.def.Target),
		WeeklyAverage: weeklyAverage(data),
		Last7Days:     lastDays(data, t.now().In(t.loc), 7),
		Degraded:      outcome.Degraded(),
	}
}

// Percent returns value as a share of target, capped at 100.
func Percent(value, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Min(value/target*100, 100)
}

func StatusFor(value, target float64) Status {
	switch {
	case value >= target:
		return OnTrack
	case value > target*0.7:
		return Close
	default:
		return Behind
	}
}

func (t *Tracker) modify(ctx context.Context, fn func(float64) (float64, error)) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, outcome := t.load(ctx)
	if outcome == kv.Unavailable {
		return 0, fmt.Errorf("reading %s: storage unavailable", t.def.Key)
	}
	date := t.today()
	next, err := fn(data[date])
	if err != nil {
		return 0, err
	}
	data[date] = next
	if err := kv.WriteJSON(ctx, t.store, t.def.Key, data); err != nil {
		return 0, err
	}
	return next, nil
}

func (t *Tracker) load(ctx context.Context) (map[string]float64, kv.Outcome) {
	data := map[string]float64{}
	outcome, err := kv.ReadJSON(ctx, t.store, t.def.Key, &data)
	if outcome.Degraded() {
		t.log.Warn("goal data unreadable, starting empty", "outcome", outcome.String(), "error", err)
		return map[string]float64{}, outcome
	}
	if data == nil {
		data = map[string]float64{}
	}
	return data, outcome
}

func weeklyAverage(data map[string]float64) float64 {
	if len(data) == 0 {
		return 0
	}
	dates := make([]string, 0, len(data))
	for d := range data {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > 7 {
		dates = dates[:7]
	}
	var sum float64
	for _, d := range dates {
		sum += data[d]
	}
	return math.Floor(sum/float64(len(dates)) + 0.5)
}

func lastDays(data map[string]float64, today time.Time, n int) []DayAmount {
	out := make([]DayAmount, 0, n)
	for i := n - 1; i >= 0; i-- {
		d := today.AddDate(0, 0, -i).Format(models.DateLayout)
		out = append(out, DayAmount{Date: d, Amount: data[d]})
	}
	return out
}
