package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Command Type strings recognized by this client.
const (
	TypePostLogin      = "POST_LOGIN"
	TypePostSubChanges = "POST_SUB_CHANGES"
	TypeGetDynConnected = "GET_DYN_CONNECTED"
	TypeTakeDynReading = "TAKE_DYN_READING"
	TypeTakeDynTemp    = "TAKE_DYN_TEMP"
	TypeTakeDynBatt    = "TAKE_DYN_BATT"
	TypeGetDynReadings = "GET_DYN_READINGS"
	TypeGetDynTemps    = "GET_DYN_TEMPS"
	TypeGetDynBatts    = "GET_DYN_BATTS"
	TypePing           = "PING"
)

// Response Type strings.
const (
	TypeRtnLogin          = "RTN_LOGIN"
	TypeRtnSubChanges     = "RTN_SUB_CHANGES"
	TypeRtnDynConnected   = "RTN_DYN_CONNECTED"
	TypeRtnTakeDynReading = "RTN_TAKE_DYN_READING"
	TypeRtnTakeDynTemp    = "RTN_TAKE_DYN_TEMP"
	TypeRtnTakeDynBatt    = "RTN_TAKE_DYN_BATT"
	TypeRtnDynReadings    = "RTN_DYN_READINGS"
	TypeRtnDynTemps       = "RTN_DYN_TEMPS"
	TypeRtnDynBatts       = "RTN_DYN_BATTS"
)

// Notification Type strings.
const (
	TypeNotAPConn           = "NOT_AP_CONN"
	TypeNotDynConn          = "NOT_DYN_CONN"
	TypeNotDynReadingStart  = "NOT_DYN_READING_STARTED"
	TypeNotDynReading       = "NOT_DYN_READING"
	TypeNotDynTemp          = "NOT_DYN_TEMP"
	TypeNotDynBatt          = "NOT_DYN_BATT"
)

// ResponseTypeFor maps a command Type to the RTN_* Type that answers it.
// The mapping is not a mechanical prefix transform — TAKE_* commands keep
// their verb in the response (TAKE_DYN_READING -> RTN_TAKE_DYN_READING)
// while POST_*/GET_* commands drop it (POST_LOGIN -> RTN_LOGIN,
// GET_DYN_CONNECTED -> RTN_DYN_CONNECTED) — so it is kept as an explicit
// table rather than derived from the string.
var ResponseTypeFor = map[string]string{
	TypePostLogin:       TypeRtnLogin,
	TypePostSubChanges:  TypeRtnSubChanges,
	TypeGetDynConnected: TypeRtnDynConnected,
	TypeTakeDynReading:  TypeRtnTakeDynReading,
	TypeTakeDynTemp:     TypeRtnTakeDynTemp,
	TypeTakeDynBatt:     TypeRtnTakeDynBatt,
	TypeGetDynReadings:  TypeRtnDynReadings,
	TypeGetDynTemps:     TypeRtnDynTemps,
	TypeGetDynBatts:     TypeRtnDynBatts,
}

// commandTypeFor is the reverse of ResponseTypeFor, built once at init.
var commandTypeFor = func() map[string]string {
	m := make(map[string]string, len(ResponseTypeFor))
	for cmd, rtn := range ResponseTypeFor {
		m[rtn] = cmd
	}
	return m
}()

// CommandTypeFor returns the command Type that a given RTN_* Type answers,
// and whether the response Type is recognized.
func CommandTypeFor(responseType string) (string, bool) {
	cmd, ok := commandTypeFor[responseType]
	return cmd, ok
}

// Serial is a sensor serial number. Gateways are inconsistent about
// whether it travels as a JSON number or a quoted string (compare the
// GET_DYN_CONNECTED inventory, which reports numeric serials, against
// NOT_DYN_BATT notifications, observed carrying a quoted serial) — Serial
// accepts either on the way in and always encodes as a JSON number.
type Serial int64

// UnmarshalJSON accepts both a bare JSON number and a quoted string.
func (s *Serial) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Serial(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("wire: serial is neither number nor string: %s", data)
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return fmt.Errorf("wire: serial %q is not an integer: %w", str, err)
	}
	*s = Serial(n)
	return nil
}

// MarshalJSON always encodes as a bare JSON number.
func (s Serial) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(s))
}

// Envelope is the shape every frame shares: a discriminating Type and a
// raw Data payload decoded lazily by the caller once Type is known.
type Envelope struct {
	Type string `json:"Type"`

	// Outbound command fields.
	From string          `json:"From,omitempty"`
	To   string          `json:"To,omitempty"`

	// Response / notification field.
	Target string `json:"Target,omitempty"`

	Data json.RawMessage `json:"Data,omitempty"`
}

// IsResponse reports whether the envelope's Type marks it as a direct
// RTN_* response.
func (e Envelope) IsResponse() bool {
	return len(e.Type) > 4 && e.Type[:4] == "RTN_"
}

// IsNotification reports whether the envelope's Type marks it as an
// unsolicited NOT_* notification.
func (e Envelope) IsNotification() bool {
	return len(e.Type) > 4 && e.Type[:4] == "NOT_"
}

// NewCommand builds a command envelope with From:"UI", To:"SERV", as
// every outbound frame in this protocol carries those fixed values.
func NewCommand(typ string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: marshal %s data: %w", typ, err)
	}
	return Envelope{Type: typ, From: "UI", To: "SERV", Data: raw}, nil
}

// --- Data payloads -----------------------------------------------------

// LoginData is the POST_LOGIN payload.
type LoginData struct {
	Email    string `json:"Email"`
	Password string `json:"Password"`
}

// LoginResult is the RTN_LOGIN payload.
type LoginResult struct {
	Success bool   `json:"Success"`
	Reason  string `json:"Reason,omitempty"`
}

// SensorInventoryEntryWire is one entry of the RTN_DYN_CONNECTED array.
type SensorInventoryEntryWire struct {
	DynSerial  Serial `json:"DynSerial"`
	PartNumber string `json:"PartNumber"`
	Connected  bool   `json:"Connected"`
}

// ConnectedSensorsResult is the RTN_DYN_CONNECTED payload.
type ConnectedSensorsResult struct {
	Dynamizers []SensorInventoryEntryWire `json:"Dynamizers"`
}

// TakeReadingData is the payload shared by TAKE_DYN_READING, TAKE_DYN_TEMP
// and TAKE_DYN_BATT.
type TakeReadingData struct {
	DynSerial Serial `json:"DynSerial"`
}

// HistoryRequestData is the payload shared by GET_DYN_READINGS,
// GET_DYN_TEMPS and GET_DYN_BATTS.
type HistoryRequestData struct {
	DynSerial Serial `json:"DynSerial"`
	Count     int    `json:"Count"`
}

// VibrationReadingWire is one vibration reading, on the wire and in the
// cache.
type VibrationReadingWire struct {
	ID     int64     `json:"ID"`
	Serial Serial    `json:"Serial"`
	Time   time.Time `json:"Time"`
	X      float64   `json:"X"`
	Y      float64   `json:"Y"`
	Z      float64   `json:"Z"`
}

// VibrationReadingsResult is the RTN_DYN_READINGS payload.
type VibrationReadingsResult struct {
	Readings []VibrationReadingWire `json:"Readings"`
}

// TemperatureReadingWire is one temperature reading. The wire field is
// named Temp (matching NOT_DYN_TEMP notifications); TempC is the Go name
// used throughout the rest of the module.
type TemperatureReadingWire struct {
	ID     int64     `json:"ID"`
	Serial Serial    `json:"Serial"`
	Time   time.Time `json:"Time"`
	TempC  float64   `json:"Temp"`
}

// TemperatureReadingsResult is the RTN_DYN_TEMPS payload.
type TemperatureReadingsResult struct {
	Temperatures []TemperatureReadingWire `json:"Temperatures"`
}

// BatteryReadingWire is one battery reading. The wire field is named Batt
// (matching NOT_DYN_BATT notifications); Percent is the Go name used
// throughout the rest of the module.
type BatteryReadingWire struct {
	ID      int64     `json:"ID"`
	Serial  Serial    `json:"Serial"`
	Time    time.Time `json:"Time"`
	Percent float64   `json:"Batt"`
}

// BatteryReadingsResult is the RTN_DYN_BATTS payload.
type BatteryReadingsResult struct {
	Batteries []BatteryReadingWire `json:"Batteries"`
}

// PingData is the PING payload.
type PingData struct {
	Timestamp int64 `json:"timestamp"`
}

// APConnData is the NOT_AP_CONN payload.
type APConnData struct {
	Connected int `json:"Connected"`
}

// DynConnData is the NOT_DYN_CONN payload.
type DynConnData struct {
	DynSerial Serial `json:"DynSerial"`
	Connected bool   `json:"Connected"`
}

// ReadingStartedData is the NOT_DYN_READING_STARTED payload.
type ReadingStartedData struct {
	DynSerial Serial `json:"DynSerial"`
}
