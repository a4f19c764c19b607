package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Season is an academic term. Its numeric value is the canonical order within a year.
type Season int

const (
	Spring Season = iota
	Summer
	Fall
	Winter
)

var seasonNames = [...]string{"Spring", "Summer", "Fall", "Winter"}

func (s Season) String() string {
	if s < Spring || s > Winter {
		return "Season(" + strconv.Itoa(int(s)) + ")"
	}
	return seasonNames[s]
}

type monthDay struct {
	month time.Month
	day   int
}

// Term windows. Winter ends in January of the following year.
var seasonWindows = map[Season][2]monthDay{
	Spring: {{time.January, 10}, {time.May, 10}},
	Summer: {{time.May, 11}, {time.August, 15}},
	Fall:   {{time.August, 16}, {time.December, 15}},
	Winter: {{time.December, 16}, {time.January, 9}},
}

// Semester is a labelled inclusive date window.
type Semester struct {
	Season Season
	Year   int
	Start  time.Time
	End    time.Time
}

// Label renders the semester as "<Season> <Year>".
func (s Semester) Label() string {
	return fmt.Sprintf("%s %d", s.Season, s.Year)
}

// Before reports whether s sorts before o in calendar order.
func (s Semester) Before(o Semester) bool {
	if s.Year != o.Year {
		return s.Year < o.Year
	}
	return s.Season < o.Season
}

// Contains reports whether the calendar date of t lies inside the window.
func (s Semester) Contains(t time.Time) bool {
	d := DateOnly(t)
	return !d.Before(s.Start) && !d.After(s.End)
}

// NewSemester builds the window for season and year.
func NewSemester(season Season, year int) Semester {
	w := seasonWindows[season]
	endYear := year
	if season == Winter {
		endYear = year + 1
	}
	return Semester{
		Season: season,
		Year:   year,
		Start:  time.Date(year, w[0].month, w[0].day, 0, 0, 0, 0, time.UTC),
		End:    time.Date(endYear, w[1].month, w[1].day, 0, 0, 0, 0, time.UTC),
	}
}

// ResolveSemester parses a "<Season> <Year>" label into its date window.
func ResolveSemester(label string) (Semester, error) {
	fields := strings.Fields(label)
	if len(fields) != 2 {
		return Semester{}, fmt.Errorf("semester %q must look like \"Fall 2024\"", label)
	}
	season := Season(-1)
	for i, name := range seasonNames {
		if strings.EqualFold(fields[0], name) {
			season = Season(i)
			break
		}
	}
	if season < 0 {
		return Semester{}, fmt.Errorf("unknown season %q", fields[0])
	}
	year, err := strconv.Atoi(fields[1])
	if err != nil || year < 1 || year > 9998 {
		return Semester{}, fmt.Errorf("invalid semester year %q", fields[1])
	}
	return NewSemester(season, year), nil
}

// GenerateSemesters returns every semester of the years in [fromYear, toYear] in calendar order.
func GenerateSemesters(fromYear, toYear int) []Semester {
	if toYear < fromYear {
		return nil
	}
	out := make([]Semester, 0, (toYear-fromYear+1)*len(seasonNames))
	for year := fromYear; year <= toYear; year++ {
		for season := Spring; season <= Winter; season++ {
			out = append(out, NewSemester(season, year))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// SemesterRange is the default selection derived from the presented-date bounds.
type SemesterRange struct {
	Semesters []Semester
	Start     Semester
	End       Semester
}

// DefaultSemesterRange picks the selectable semesters and default bounds for
// the given earliest and latest presentation dates. A nil bound means no
// approved project has a date, in which case the window spans two years back
// from today's year.
func DefaultSemesterRange(earliest, latest *time.Time, today time.Time) SemesterRange {
	var lo, hi time.Time
	if earliest == nil || latest == nil {
		y := today.Year()
		lo = time.Date(y-2, time.January, 1, 0, 0, 0, 0, time.UTC)
		hi = time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
	} else {
		lo, hi = DateOnly(*earliest), DateOnly(*latest)
	}

	sems := GenerateSemesters(lo.Year()-1, hi.Year()+1)
	r := SemesterRange{Semesters: sems, Start: sems[0], End: sems[len(sems)-1]}
	for _, s := range sems {
		if !s.End.Before(lo) {
			r.Start = s
			break
		}
	}
	for i := len(sems) - 1; i >= 0; i-- {
		if !sems[i].Start.After(hi) {
			r.End = sems[i]
			break
		}
	}
	return r
}

// OrderedBounds swaps start and end when start sorts after end.
func OrderedBounds(start, end Semester) (Semester, Semester) {
	if end.Before(start) {
		return end, start
	}
	return start, end
}

// SemesterLabels maps a slice of semesters to their labels.
func SemesterLabels(sems []Semester) []string {
	out := make([]string, len(sems))
	for i, s := range sems {
		out[i] = s.Label()
	}
	return out
}
