package contracts

// MeterLevels is one metering snapshot, every field in [0,1].
type MeterLevels struct {
	InL  float64 `json:"inL"`
	InR  float64 `json:"inR"`
	OutL float64 `json:"outL"`
	OutR float64 `json:"outR"`
}
