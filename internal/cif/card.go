// Package cif parses the fixed-width Common Interface File format and
// applies it to the schedule store under the STP overlay rules.
package cif

import (
	"fmt"
	"strings"
	"time"
)

// Card is one 80-column CIF record. Field accessors slice by the published
// offsets; a short line is padded so offset arithmetic never goes out of
// range.
type Card string

// NewCard pads a raw line to 80 columns.
func NewCard(line string) Card {
	if len(line) < 80 {
		line = line + strings.Repeat(" ", 80-len(line))
	}
	return Card(line)
}

// Identity returns the two-character record identity (HD, BS, LO…).
func (c Card) Identity() string { return string(c[0:2]) }

// field returns the inclusive column range [from..to] trimmed of trailing
// spaces.
func (c Card) field(from, to int) string {
	return strings.TrimRight(string(c[from:to+1]), " ")
}

// raw returns the inclusive column range untrimmed, for fields where
// interior blanks are significant (activities, days bitmaps).
func (c Card) raw(from, to int) string {
	return string(c[from : to+1])
}

// --- HD header card ---

// HeaderExtractTime assembles the extract timestamp from the header card's
// split date and time fields.
func (c Card) HeaderExtractTime() (time.Time, error) {
	dd, mm, yy := c.raw(22, 23), c.raw(24, 25), c.raw(26, 27)
	hh, mi := c.raw(28, 29), c.raw(30, 31)
	t, err := time.Parse("060102 1504", fmt.Sprintf("%s%s%s %s%s", yy, mm, dd, hh, mi))
	if err != nil {
		return time.Time{}, fmt.Errorf("cif: bad header timestamp: %w", err)
	}
	return t.UTC(), nil
}

// HeaderUpdateIndicator is 'F' for a full extract, 'U' for a daily update.
func (c Card) HeaderUpdateIndicator() byte { return c[46] }

// --- BS basic schedule ---

func (c Card) TransactionType() byte { return c[2] }
func (c Card) TrainUID() string      { return c.raw(3, 8) }
func (c Card) StartDateRaw() string  { return c.raw(9, 14) }
func (c Card) EndDateRaw() string    { return c.raw(15, 20) }
func (c Card) DaysRun() string       { return c.raw(21, 27) }
func (c Card) BankHoliday() string   { return c.field(28, 28) }
func (c Card) TrainStatus() string   { return c.field(29, 29) }
func (c Card) Category() string      { return c.field(30, 31) }
func (c Card) SignallingID() string  { return c.field(32, 35) }
func (c Card) Headcode() string      { return c.field(36, 39) }
func (c Card) ServiceCode() string   { return c.field(41, 48) }
func (c Card) PowerType() string     { return c.field(50, 52) }
func (c Card) TimingLoad() string    { return c.field(53, 56) }
func (c Card) Speed() string         { return c.field(57, 59) }
func (c Card) OpChars() string       { return c.field(60, 65) }
func (c Card) TrainClass() string    { return c.field(66, 66) }
func (c Card) Sleepers() string      { return c.field(67, 67) }
func (c Card) Reservations() string  { return c.field(68, 68) }
func (c Card) ConnectInd() string    { return c.field(69, 69) }
func (c Card) Catering() string      { return c.field(70, 73) }
func (c Card) Branding() string      { return c.field(74, 77) }
func (c Card) STPIndicator() byte    { return c[79] }

// --- BX basic schedule extra ---

func (c Card) BXUICCode() string    { return c.field(6, 10) }
func (c Card) BXATOCCode() string   { return c.field(11, 12) }
func (c Card) BXApplicable() string { return c.field(13, 13) }

// --- LO / LI / LT locations ---

func (c Card) LocTiploc() string   { return c.field(2, 8) }
func (c Card) LocInstance() string { return c.field(9, 9) }

// LO fields.
func (c Card) LODeparture() string    { return c.raw(10, 14) }
func (c Card) LOPublicDep() string    { return c.raw(15, 18) }
func (c Card) LOPlatform() string     { return c.field(19, 21) }
func (c Card) LOLine() string         { return c.field(22, 24) }
func (c Card) LOEngAllowance() string { return c.field(25, 26) }
func (c Card) LOPathAllow() string    { return c.field(27, 28) }
func (c Card) LOActivity() string     { return c.raw(29, 40) }
func (c Card) LOPerfAllow() string    { return c.field(41, 42) }

// LI fields.
func (c Card) LIArrival() string      { return c.raw(10, 14) }
func (c Card) LIDeparture() string    { return c.raw(15, 19) }
func (c Card) LIPass() string         { return c.raw(20, 24) }
func (c Card) LIPublicArr() string    { return c.raw(25, 28) }
func (c Card) LIPublicDep() string    { return c.raw(29, 32) }
func (c Card) LIPlatform() string     { return c.field(33, 35) }
func (c Card) LILine() string         { return c.field(36, 38) }
func (c Card) LIPath() string         { return c.field(39, 41) }
func (c Card) LIActivity() string     { return c.raw(42, 53) }
func (c Card) LIEngAllowance() string { return c.field(54, 55) }
func (c Card) LIPathAllow() string    { return c.field(56, 57) }
func (c Card) LIPerfAllow() string    { return c.field(58, 59) }

// LT fields.
func (c Card) LTArrival() string   { return c.raw(10, 14) }
func (c Card) LTPublicArr() string { return c.raw(15, 18) }
func (c Card) LTPlatform() string  { return c.field(19, 21) }
func (c Card) LTPath() string      { return c.field(22, 24) }
func (c Card) LTActivity() string  { return c.raw(25, 36) }

// --- CR change en route ---

func (c Card) CRTiploc() string       { return c.field(2, 8) }
func (c Card) CRInstance() string     { return c.field(9, 9) }
func (c Card) CRCategory() string     { return c.field(10, 11) }
func (c Card) CRSignallingID() string { return c.field(12, 15) }
func (c Card) CRHeadcode() string     { return c.field(16, 19) }
func (c Card) CRServiceCode() string  { return c.field(21, 28) }
func (c Card) CRPowerType() string    { return c.field(30, 32) }
func (c Card) CRTimingLoad() string   { return c.field(33, 36) }
func (c Card) CRSpeed() string        { return c.field(37, 39) }
func (c Card) CROpChars() string      { return c.field(40, 45) }
func (c Card) CRTrainClass() string   { return c.field(46, 46) }
func (c Card) CRSleepers() string     { return c.field(47, 47) }
func (c Card) CRReservations() string { return c.field(48, 48) }
func (c Card) CRConnectInd() string   { return c.field(49, 49) }
func (c Card) CRCatering() string     { return c.field(50, 53) }
func (c Card) CRBranding() string     { return c.field(54, 57) }
func (c Card) CRUICCode() string      { return c.field(62, 66) }

// --- AA association ---

func (c Card) AAMainUID() string      { return c.raw(3, 8) }
func (c Card) AAAssocUID() string     { return c.raw(9, 14) }
func (c Card) AAStartDateRaw() string { return c.raw(15, 20) }
func (c Card) AAEndDateRaw() string   { return c.raw(21, 26) }
func (c Card) AADaysRun() string      { return c.raw(27, 33) }
func (c Card) AACategory() string     { return c.field(34, 35) }
func (c Card) AADateInd() string      { return c.field(36, 36) }
func (c Card) AALocation() string     { return c.field(37, 43) }
func (c Card) AABaseSuffix() string   { return c.field(44, 44) }
func (c Card) AAAssocSuffix() string  { return c.field(45, 45) }
func (c Card) AAAssocType() string    { return c.field(47, 47) }

// --- TI / TA / TD tiplocs ---

func (c Card) TICode() string        { return c.field(2, 8) }
func (c Card) TICapitals() string    { return c.field(9, 10) }
func (c Card) TINALCO() string       { return c.field(11, 16) }
func (c Card) TINLCCheck() string    { return c.field(17, 17) }
func (c Card) TITPSDesc() string     { return c.field(18, 43) }
func (c Card) TIStanox() string      { return c.field(44, 48) }
func (c Card) TICRS() string         { return c.field(53, 55) }
func (c Card) TIDescription() string { return c.field(56, 71) }
func (c Card) TANewCode() string     { return c.field(72, 78) }
