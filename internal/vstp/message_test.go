package vstp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createFrame = `{"VSTPCIFMsgV1":{
  "timestamp":"1685750400000",
  "originMsgId":"2023-06-03T06:00:00-00:00@vstp.networkrail.co.uk",
  "schedule":{
    "transaction_type":"Create",
    "CIF_train_uid":" 12345",
    "schedule_start_date":"2023-06-03",
    "schedule_end_date":"2023-06-03",
    "schedule_days_runs":"0000010",
    "train_status":"1",
    "CIF_stp_indicator":"N",
    "schedule_segment":[{
      "signalling_id":"2Y61",
      "CIF_train_category":"OO",
      "CIF_train_service_code":"22209000",
      "CIF_power_type":"DMU",
      "schedule_location":[
        {"scheduled_departure_time":"100000",
         "location":{"tiploc":{"tiploc_id":"EUSTON"}}},
        {"scheduled_arrival_time":"183030",
         "location":{"tiploc":{"tiploc_id":"GLGC"}}}
      ]
    }]
  }}}`

func TestParseCreate(t *testing.T) {
	msg, err := Parse([]byte(createFrame))
	require.NoError(t, err)
	require.NotNil(t, msg)

	s := &msg.Schedule
	assert.Equal(t, "Create", s.TransactionType)
	assert.Equal(t, "12345", s.UID())
	assert.Equal(t, byte('N'), s.STP())
	assert.Equal(t, "0000010", s.DaysRun)
	require.Len(t, s.Segments, 1)

	seg := s.Segments[0]
	assert.Equal(t, "2Y61", seg.SignallingID)
	require.Len(t, seg.Locations, 2)
	assert.Equal(t, "EUSTON", seg.Locations[0].Loc.Tiploc.ID)
	assert.Equal(t, "100000", seg.Locations[0].Departure)
	assert.Equal(t, "GLGC", seg.Locations[1].Loc.Tiploc.ID)
	assert.Equal(t, "183030", seg.Locations[1].Arrival)
}

func TestParseNotVSTP(t *testing.T) {
	msg, err := Parse([]byte(`{"somethingElse":{"a":1}}`))
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"VSTPCIFMsgV1":`))
	assert.Error(t, err)
}

func TestSTPDefault(t *testing.T) {
	s := &Schedule{STPIndicator: ""}
	assert.Equal(t, byte('N'), s.STP())
	s.STPIndicator = " O "
	assert.Equal(t, byte('O'), s.STP())
}
