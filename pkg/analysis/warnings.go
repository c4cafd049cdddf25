package analysis

// WarningCode classifies an analyzer adjustment
type WarningCode string

const (
	WarnTP1Floor       WarningCode = "TP1_FLOOR"
	WarnTP2Floor       WarningCode = "TP2_FLOOR"
	WarnTP3Cap         WarningCode = "TP3_CAP"
	WarnSLFloor        WarningCode = "SL_FLOOR"
	WarnBEFloor        WarningCode = "BE_FLOOR"
	WarnTSTriggerFloor WarningCode = "TS_TRIGGER_FLOOR"
	WarnTSStepFloor    WarningCode = "TS_STEP_FLOOR"
	WarnInfo           WarningCode = "INFO"
)

// codeDescriptions are the human readable code names
var codeDescriptions = map[WarningCode]string{
	WarnTP1Floor:       "TP1 floored to minimum",
	WarnTP2Floor:       "TP2 floored to minimum",
	WarnTP3Cap:         "TP3 capped or floored",
	WarnSLFloor:        "Stop-Loss floored to minimum",
	WarnBEFloor:        "Breakeven floored to minimum",
	WarnTSTriggerFloor: "Trailing Stop trigger floored to minimum",
	WarnTSStepFloor:    "Trailing Stop step floored to minimum",
	WarnInfo:           "Informational",
}

// Describe returns the human readable name of a code
func (c WarningCode) Describe() string {
	if d, ok := codeDescriptions[c]; ok {
		return d
	}
	return string(c)
}

// Warning records a floor, cap or informational adjustment. Value is the
// value in effect after the adjustment.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	Value   float64     `json:"value"`
	Human   string      `json:"human"`
}

// NewWarning builds a warning and its human-readable line
func NewWarning(code WarningCode, value float64, msg string) Warning {
	return Warning{
		Code:    code,
		Message: msg,
		Value:   value,
		Human:   code.Describe() + ": " + msg,
	}
}
