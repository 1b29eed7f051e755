package store

import (
	"time"

	"github.com/philwieland/openrail-sub000/internal/railtime"
)

// Sentinel epoch for a live row: deleted > now means live, and
// railtime.NeverDeleted is "never".
const NeverDeleted = int64(railtime.NeverDeleted)

// Schedule is one planned train. update_id zero marks VSTP origin.
type Schedule struct {
	ID       int64
	UpdateID int64
	Created  int64
	Deleted  int64

	TrainUID     string // 6 chars
	STPIndicator byte   // P, O, N, C
	StartDate    int64  // midnight epoch
	EndDate      int64
	DaysRun      string // 7 chars Mon..Sun
	BankHoliday  string
	Status       string
	Category     string
	SignallingID string // 4 chars, the timetable headcode
	Headcode     string // NRS headcode, distinct from signalling id
	ServiceCode  string
	PowerType    string
	TimingLoad   string
	Speed        string
	OpChars      string
	TrainClass   string
	Sleepers     string
	Reservations string
	ConnectInd   string
	Catering     string
	Branding     string

	// BX card
	UICCode             string
	ATOCCode            string
	ApplicableTimetable string

	DeducedHeadcode       string
	DeducedHeadcodeStatus string // "A" from activation, "D" carried forward, "" none
}

// Live reports whether the row is not soft-deleted at the given instant.
func (s *Schedule) Live(now time.Time) bool { return s.Deleted > now.Unix() }

// ScheduleLocation is one calling/passing point of a schedule.
type ScheduleLocation struct {
	ID         int64
	ScheduleID int64

	RecordIdentity string // LO, LI, LT
	Tiploc         string
	TiplocInstance string
	Arrival        string // hhmmH canonical
	Departure      string
	Pass           string
	PublicArrival  string // hhmm, 0000 = suppressed
	PublicDepart   string
	SortTime       int // 15-second units of day
	NextDay        bool
	Platform       string
	Line           string
	Path           string
	Activity       string // 12 chars of two-char codes
	EngAllowance   string
	PathAllowance  string
	PerfAllowance  string
}

// ChangeEnRoute is a CR card attached to a schedule.
type ChangeEnRoute struct {
	ScheduleID   int64
	Tiploc       string
	TiplocInst   string
	Category     string
	SignallingID string
	Headcode     string
	PowerType    string
	TimingLoad   string
	Speed        string
	OpChars      string
	TrainClass   string
	Sleepers     string
	Reservations string
	ConnectInd   string
	Catering     string
	Branding     string
	UICCode      string
	ServiceCode  string
}

// Association links two schedules at a TIPLOC.
type Association struct {
	ID       int64
	UpdateID int64
	Created  int64
	Deleted  int64

	MainUID       string
	AssocUID      string
	StartDate     int64
	EndDate       int64
	DaysRun       string
	Category      string
	DateIndicator string
	Location      string
	BaseSuffix    string
	AssocSuffix   string
	AssocType     string
	STPIndicator  byte
}

// Tiploc is a location reference row.
type Tiploc struct {
	ID       int64
	UpdateID int64
	Created  int64
	Deleted  int64

	Code           string
	Capitals       string
	NALCO          string
	NLCCheck       string
	TPSDescription string
	Stanox         string
	CRS            string
	Description    string
}

// Activation binds a TRUST train id to a schedule.
type Activation struct {
	Created    int64
	TrainID    string // 10 chars
	ScheduleID int64  // 0 when the schedule never appeared
	Deduced    bool
}

// ActivationExtra is the sidecar row carrying the rest of a 0001 body.
type ActivationExtra struct {
	Created           int64
	TrainID           string
	ScheduleSource    string
	TrainFileAddress  string
	ScheduleEndDate   string
	TPOriginTimestamp string
	CreationTimestamp string
	TPOriginStanox    string
	OriginDepTime     string
	TrainServiceCode  string
	TOCID             string
	CallType          string
	CallMode          string
	ScheduleType      string
	OriginStanox      string
	WTTID             string
	ScheduleStartDate string
}

// MovementFacts is the unpacked view of a movement's flags word.
type MovementFacts struct {
	EventKind  int // 1 dep/dep, 2 arr/arr, 3 arr/destination
	Manual     bool
	Variation  int // 0 early, 1 on time, 2 late, 3 off route
	OffRoute   bool
	Terminated bool
	Correction bool
}

// Pack encodes the facts into the historical bit layout, which is stored
// verbatim so archived rows stay comparable with the legacy database.
func (f MovementFacts) Pack() int {
	v := f.EventKind & 0x3
	if f.Manual {
		v |= 1 << 2
	}
	v |= (f.Variation & 0x3) << 3
	if f.OffRoute {
		v |= 1 << 5
	}
	if f.Terminated {
		v |= 1 << 6
	}
	if f.Correction {
		v |= 1 << 7
	}
	return v
}

// UnpackMovementFacts decodes a stored flags word.
func UnpackMovementFacts(v int) MovementFacts {
	return MovementFacts{
		EventKind:  v & 0x3,
		Manual:     v&(1<<2) != 0,
		Variation:  (v >> 3) & 0x3,
		OffRoute:   v&(1<<5) != 0,
		Terminated: v&(1<<6) != 0,
		Correction: v&(1<<7) != 0,
	}
}

// Movement is a 0003 step event.
type Movement struct {
	Created          int64
	TrainID          string
	PlannedTimestamp int64
	ActualTimestamp  int64
	Variation        int // minutes
	Stanox           string
	Platform         string
	NextReportStanox string
	NextReportRun    string
	Flags            int
}

// Cancellation covers 0002 and, with Reinstate set, 0005.
type Cancellation struct {
	Created         int64
	TrainID         string
	Reason          string
	Stanox          string
	CancelTimestamp int64
	Reinstate       bool
}

// ChangeOfOrigin is a 0006 audit row.
type ChangeOfOrigin struct {
	Created   int64
	TrainID   string
	Reason    string
	Stanox    string
	DepTime   int64
	OrigTime  int64
}

// ChangeOfID is a 0007 audit row.
type ChangeOfID struct {
	Created int64
	TrainID string
	NewID   string
}

// ChangeOfLocation is a 0008 audit row.
type ChangeOfLocation struct {
	Created      int64
	TrainID      string
	Stanox       string
	OrigStanox   string
	DepTime      int64
}

// UpdateBatch heads one applied feed file.
// Source: 0 VSTP, 1 daily update, 2 full extract.
type UpdateBatch struct {
	ID      int64
	Time    int64 // extract timestamp
	Source  int
	Applied int64
}
