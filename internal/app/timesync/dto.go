package timesync

type Response struct {
	World         string `json:"world"`
	Ticks         int64  `json:"ticks"`
	SecondsOfDay  int64  `json:"seconds_of_day"`
	WallClock     string `json:"wall_clock"`
	OffsetSeconds int64  `json:"offset_seconds"`
}
