package takeout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vanshika/lifetrace/internal/domain"
)

var errEndBeforeStart = errors.New("end timestamp precedes start timestamp")

// LocationSink receives location history records in export order. A Movement
// arrives with its Waypoints ordered from 1; MovementID is left for the sink to
// assign. Returning an error from Movement or Visit aborts the walk. Skip
// reports a record that could not be read; Ignore reports one that lacks the
// fields of a segment or visit, such as a segment without an end location.
type LocationSink interface {
	Movement(ctx context.Context, m domain.Movement) error
	Visit(ctx context.Context, v domain.Visit) error
	Skip(err *domain.ParseError)
	Ignore(source, record string)
}

// LocationHistoryParser walks a semantic location history export.
type LocationHistoryParser struct {
	logger *slog.Logger
}

// NewLocationHistoryParser constructs a parser logging through logger.
func NewLocationHistoryParser(logger *slog.Logger) *LocationHistoryParser {
	return &LocationHistoryParser{logger: logger}
}

type timelineFile struct {
	TimelineObjects []timelineObject `json:"timelineObjects"`
}

type timelineObject struct {
	ActivitySegment *activitySegment `json:"activitySegment"`
	PlaceVisit      *placeVisit      `json:"placeVisit"`
}

type activitySegment struct {
	StartLocation *e7Location   `json:"startLocation"`
	EndLocation   *e7Location   `json:"endLocation"`
	Duration      *duration     `json:"duration"`
	WaypointPath  *waypointPath `json:"waypointPath"`
}

type placeVisit struct {
	Location *e7Location `json:"location"`
	Duration *duration   `json:"duration"`
}

type e7Location struct {
	LatitudeE7  int64 `json:"latitudeE7"`
	LongitudeE7 int64 `json:"longitudeE7"`
}

type duration struct {
	StartTimestamp string `json:"startTimestamp"`
	EndTimestamp   string `json:"endTimestamp"`
}

type waypointPath struct {
	Waypoints []e7Waypoint `json:"waypoints"`
}

type e7Waypoint struct {
	LatE7 int64 `json:"latE7"`
	LngE7 int64 `json:"lngE7"`
}

func (l *e7Location) coordinates() domain.Coordinates {
	return domain.Coordinates{Lat: ToDegrees(l.LatitudeE7), Lng: ToDegrees(l.LongitudeE7)}
}

// validActivitySegment requires a start location, an end location and a start
// timestamp, with non-zero latitudes. Anything else is a gap in the export.
func validActivitySegment(seg *activitySegment) bool {
	if seg == nil {
		return false
	}
	hasStart := seg.StartLocation != nil && seg.StartLocation.LatitudeE7 != 0
	hasEnd := seg.EndLocation != nil && seg.EndLocation.LatitudeE7 != 0
	hasDuration := seg.Duration != nil && seg.Duration.StartTimestamp != ""
	return hasStart && hasEnd && hasDuration
}

// validPlaceVisit requires a non-zero location latitude and a start timestamp.
func validPlaceVisit(visit *placeVisit) bool {
	if visit == nil {
		return false
	}
	hasLocation := visit.Location != nil && visit.Location.LatitudeE7 != 0
	hasDuration := visit.Duration != nil && visit.Duration.StartTimestamp != ""
	return hasLocation && hasDuration
}

// Walk reads every <year>/<month>.json file under dir, oldest first, and feeds
// valid records to sink. A missing dir yields domain.ErrNotFound. A file that is
// not valid JSON stops the walk with a fatal *domain.ParseError; records already
// handed to sink stay delivered.
func (p *LocationHistoryParser) Walk(ctx context.Context, dir string, userID int64, sink LocationSink) error {
	years, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("location history %s: %w", dir, domain.ErrNotFound)
		}
		return fmt.Errorf("read location history %s: %w", dir, err)
	}
	sortYearDirs(years)

	for _, year := range years {
		if !year.IsDir() {
			continue
		}
		yearDir := filepath.Join(dir, year.Name())
		months, err := os.ReadDir(yearDir)
		if err != nil {
			return fmt.Errorf("read year %s: %w", yearDir, err)
		}
		sortMonthFiles(months)

		for _, month := range months {
			if month.IsDir() || !strings.HasSuffix(month.Name(), ".json") {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			rel := filepath.Join(year.Name(), month.Name())
			p.logger.Info("processing location history file", "file", rel)
			if err := p.walkFile(ctx, filepath.Join(yearDir, month.Name()), rel, userID, sink); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *LocationHistoryParser) walkFile(ctx context.Context, path, rel string, userID int64, sink LocationSink) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &domain.ParseError{Source: rel, Fatal: true, Err: err}
	}

	var file timelineFile
	if err := json.Unmarshal(raw, &file); err != nil {
		p.logger.Error("unable to parse location history file", "file", rel, "error", err)
		return &domain.ParseError{Source: rel, Fatal: true, Err: err}
	}

	for idx, obj := range file.TimelineObjects {
		record := fmt.Sprintf("timelineObjects[%d]", idx)
		switch {
		case validActivitySegment(obj.ActivitySegment):
			movement, err := buildMovement(obj.ActivitySegment, userID)
			if err != nil {
				sink.Skip(&domain.ParseError{Source: rel, Record: record, Err: err})
				continue
			}
			if err := sink.Movement(ctx, movement); err != nil {
				return err
			}
		case validPlaceVisit(obj.PlaceVisit):
			visit, err := buildVisit(obj.PlaceVisit, userID)
			if err != nil {
				sink.Skip(&domain.ParseError{Source: rel, Record: record, Err: err})
				continue
			}
			if err := sink.Visit(ctx, visit); err != nil {
				return err
			}
		default:
			p.logger.Debug("skipping timeline object without a usable segment or visit", "file", rel, "record", record)
			sink.Ignore(rel, record)
		}
	}
	return nil
}

func buildMovement(seg *activitySegment, userID int64) (domain.Movement, error) {
	start, end, err := parseDuration(seg.Duration)
	if err != nil {
		return domain.Movement{}, err
	}
	movement := domain.Movement{
		UserID:    userID,
		Start:     seg.StartLocation.coordinates(),
		End:       seg.EndLocation.coordinates(),
		StartTime: start,
		EndTime:   end,
	}
	if seg.WaypointPath != nil {
		for i, wp := range seg.WaypointPath.Waypoints {
			movement.Waypoints = append(movement.Waypoints, domain.Waypoint{
				UserID:   userID,
				Order:    i + 1,
				Location: domain.Coordinates{Lat: ToDegrees(wp.LatE7), Lng: ToDegrees(wp.LngE7)},
			})
		}
	}
	return movement, nil
}

func buildVisit(visit *placeVisit, userID int64) (domain.Visit, error) {
	start, end, err := parseDuration(visit.Duration)
	if err != nil {
		return domain.Visit{}, err
	}
	return domain.Visit{
		UserID:    userID,
		Location:  visit.Location.coordinates(),
		StartTime: start,
		EndTime:   end,
	}, nil
}

// parseDuration treats a missing end timestamp as a zero-length interval.
func parseDuration(d *duration) (time.Time, time.Time, error) {
	start, err := ParseTimestamp(d.StartTimestamp)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if d.EndTimestamp == "" {
		return start, start, nil
	}
	end, err := ParseTimestamp(d.EndTimestamp)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errEndBeforeStart
	}
	return start, end, nil
}

func sortYearDirs(entries []os.DirEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		yi, errI := strconv.Atoi(entries[i].Name())
		yj, errJ := strconv.Atoi(entries[j].Name())
		if errI == nil && errJ == nil {
			return yi < yj
		}
		if (errI == nil) != (errJ == nil) {
			return errI == nil
		}
		return entries[i].Name() < entries[j].Name()
	})
}

var monthIndex = map[string]int{
	"JANUARY": 1, "FEBRUARY": 2, "MARCH": 3, "APRIL": 4, "MAY": 5, "JUNE": 6,
	"JULY": 7, "AUGUST": 8, "SEPTEMBER": 9, "OCTOBER": 10, "NOVEMBER": 11, "DECEMBER": 12,
}

// monthOf reads the month from names such as "2023_JANUARY.json".
func monthOf(name string) int {
	base := strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name)))
	if idx := strings.LastIndexByte(base, '_'); idx >= 0 {
		base = base[idx+1:]
	}
	if m, ok := monthIndex[base]; ok {
		return m
	}
	return 13
}

func sortMonthFiles(entries []os.DirEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		mi, mj := monthOf(entries[i].Name()), monthOf(entries[j].Name())
		if mi != mj {
			return mi < mj
		}
		return entries[i].Name() < entries[j].Name()
	})
}
