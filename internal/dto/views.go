package dto

// LeaderboardDTO 排行榜响应（/api/leaderboard）
type LeaderboardDTO struct {
	Filter  string                `json:"filter"`
	Entries []LeaderboardEntryDTO `json:"entries"`
	Self    *LeaderboardEntryDTO  `json:"self,omitempty"`
}

type LeaderboardEntryDTO struct {
	UserID        string  `json:"user_id"`
	UserName      string  `json:"user_name"`
	TotalCO2Saved float64 `json:"total_co2_saved"`
	TripCount     int     `json:"trip_count"`
	Rank          int     `json:"rank"`
}
