// Package vstp ingests very-short-term-plan schedule messages. VSTP rows
// share the schedule store and STP model with the bulk CIF loader but carry
// update_id zero.
package vstp

import (
	"encoding/json"
	"strings"
)

// Frame is the outer envelope of one VSTP broker message.
type Frame struct {
	Msg *Message `json:"VSTPCIFMsgV1"`
}

// Message carries the transaction and its schedule. Unknown members are
// ignored throughout; the feed adds fields without notice.
type Message struct {
	Timestamp   string   `json:"timestamp"`
	OriginMsgID string   `json:"originMsgId"`
	Schedule    Schedule `json:"schedule"`
}

// Schedule is the VSTP rendering of a CIF basic schedule.
type Schedule struct {
	TransactionType string     `json:"transaction_type"`
	TrainUID        string     `json:"CIF_train_uid"`
	StartDate       string     `json:"schedule_start_date"`
	EndDate         string     `json:"schedule_end_date"`
	DaysRun         string     `json:"schedule_days_runs"`
	BankHoliday     string     `json:"CIF_bank_holiday_running"`
	TrainStatus     string     `json:"train_status"`
	STPIndicator    string     `json:"CIF_stp_indicator"`
	Applicable      string     `json:"applicable_timetable"`
	Segments        []Segment  `json:"schedule_segment"`
}

// Segment holds the service attributes and the calling pattern.
type Segment struct {
	SignallingID string     `json:"signalling_id"`
	UICCode      string     `json:"uic_code"`
	ATOCCode     string     `json:"atoc_code"`
	Category     string     `json:"CIF_train_category"`
	Headcode     string     `json:"CIF_headcode"`
	ServiceCode  string     `json:"CIF_train_service_code"`
	PowerType    string     `json:"CIF_power_type"`
	TimingLoad   string     `json:"CIF_timing_load"`
	Speed        string     `json:"CIF_speed"`
	OpChars      string     `json:"CIF_operating_characteristics"`
	TrainClass   string     `json:"CIF_train_class"`
	Sleepers     string     `json:"CIF_sleepers"`
	Reservations string     `json:"CIF_reservations"`
	ConnectInd   string     `json:"CIF_connection_indicator"`
	Catering     string     `json:"CIF_catering_code"`
	Branding     string     `json:"CIF_service_branding"`
	Locations    []Location `json:"schedule_location"`
}

// Location is one VSTP calling point.
type Location struct {
	Arrival       string   `json:"scheduled_arrival_time"`
	Departure     string   `json:"scheduled_departure_time"`
	Pass          string   `json:"scheduled_pass_time"`
	PublicArrival string   `json:"public_arrival_time"`
	PublicDepart  string   `json:"public_departure_time"`
	Platform      string   `json:"CIF_platform"`
	Line          string   `json:"CIF_line"`
	Path          string   `json:"CIF_path"`
	Activity      string   `json:"CIF_activity"`
	EngAllowance  string   `json:"CIF_engineering_allowance"`
	PathAllowance string   `json:"CIF_pathing_allowance"`
	PerfAllowance string   `json:"CIF_performance_allowance"`
	Loc           LocWrap  `json:"location"`
}

// LocWrap unwraps the nested location.tiploc.tiploc_id envelope.
type LocWrap struct {
	Tiploc struct {
		ID string `json:"tiploc_id"`
	} `json:"tiploc"`
}

// Parse decodes one frame. A frame that is valid JSON but carries no
// VSTPCIFMsgV1 member returns (nil, nil); the caller counts it as NotVSTP.
func Parse(body []byte) (*Message, error) {
	var f Frame
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, err
	}
	if f.Msg == nil {
		return nil, nil
	}
	return f.Msg, nil
}

// UID returns the train UID with the feed's leading-space padding removed.
func (s *Schedule) UID() string { return strings.TrimSpace(s.TrainUID) }

// STP returns the STP indicator byte, defaulting to 'N' when the feed sends
// an empty field, which it does for some short-notice creations.
func (s *Schedule) STP() byte {
	t := strings.TrimSpace(s.STPIndicator)
	if t == "" {
		return 'N'
	}
	return t[0]
}
