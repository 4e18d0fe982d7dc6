package recurrence

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type Kind int

const (
	Once Kind = iota
	Daily
	Weekly
)

var kindNames = map[Kind]string{
	Once:   "once",
	Daily:  "daily",
	Weekly: "weekly",
}

var kindFromName = map[string]Kind{
	"once":   Once,
	"daily":  Daily,
	"weekly": Weekly,
}

func (k Kind) String() string {
	return kindNames[k]
}

// ParseKind accepts the stored lower-case kind name.
func ParseKind(s string) (Kind, error) {
	k, ok := kindFromName[s]
	if !ok {
		return 0, fmt.Errorf("unknown recurrence kind: %q", s)
	}
	return k, nil
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Mask is a 7-bit weekday set; bit 0 is Sunday.
type Mask uint8

const AllDays Mask = 0x7f

func MaskOf(days ...time.Weekday) Mask {
	var m Mask
	for _, d := range days {
		m |= 1 << uint(d)
	}
	return m
}

func (m Mask) Has(d time.Weekday) bool {
	return m&(1<<uint(d)) != 0
}

// Days lists the weekdays in the mask starting from Sunday.
func (m Mask) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if m.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

type Rule struct {
	Kind Kind
	On   time.Time // for Once: the single due date
	Days Mask      // for Weekly
}

func OnceOn(date time.Time) Rule {
	return Rule{Kind: Once, On: truncate(date)}
}

func EveryDay() Rule {
	return Rule{Kind: Daily}
}

func EveryWeek(days ...time.Weekday) Rule {
	return Rule{Kind: Weekly, Days: MaskOf(days...)}
}

func (r Rule) Validate() error {
	switch r.Kind {
	case Once:
		if r.On.IsZero() {
			return fmt.Errorf("once rule needs a date")
		}
	case Daily:
	case Weekly:
		if r.Days == 0 || r.Days&^AllDays != 0 {
			return fmt.Errorf("weekly rule needs at least one weekday")
		}
	default:
		return fmt.Errorf("unknown recurrence kind: %d", r.Kind)
	}
	return nil
}

// Parse parses the compact form: "once:2026-02-03", "daily" or "weekly:MO,WE".
func Parse(rule string) (Rule, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return Rule{}, fmt.Errorf("empty rule")
	}

	name, arg, hasArg := strings.Cut(rule, ":")
	kind, err := ParseKind(strings.ToLower(name))
	if err != nil {
		return Rule{}, err
	}

	r := Rule{Kind: kind}
	switch kind {
	case Once:
		if !hasArg {
			return Rule{}, fmt.Errorf("once rule needs a date: %q", rule)
		}
		t, err := time.Parse(dateLayout, arg)
		if err != nil {
			return Rule{}, fmt.Errorf("invalid once date: %q", arg)
		}
		r.On = t

	case Daily:
		if hasArg {
			return Rule{}, fmt.Errorf("daily rule takes no argument: %q", rule)
		}

	case Weekly:
		if !hasArg || arg == "" {
			return Rule{}, fmt.Errorf("weekly rule needs days: %q", rule)
		}
		for _, d := range strings.Split(arg, ",") {
			wd, ok := dayNames[strings.ToUpper(strings.TrimSpace(d))]
			if !ok {
				return Rule{}, fmt.Errorf("unknown day: %q", d)
			}
			r.Days |= MaskOf(wd)
		}
	}

	return r, nil
}

// String serializes the rule back to its compact form.
func (r Rule) String() string {
	switch r.Kind {
	case Once:
		return "once:" + r.On.Format(dateLayout)
	case Weekly:
		var days []string
		for _, d := range r.Days.Days() {
			days = append(days, dayAbbrev[d])
		}
		return "weekly:" + strings.Join(days, ",")
	default:
		return "daily"
	}
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	switch r.Kind {
	case Once:
		return "Once on " + r.On.Format("Mon, Jan 2 2006")
	case Weekly:
		if r.Days == AllDays {
			return "Every day"
		}
		var names []string
		for _, d := range r.Days.Days() {
			names = append(names, d.String()[:3])
		}
		return "Weekly on " + strings.Join(names, ", ")
	default:
		return "Every day"
	}
}

func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Rule) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("recurrence must be a string: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
