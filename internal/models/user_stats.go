package models

// UserStats holds the gamification counters of a user.
type UserStats struct {
	ID         string  `json:"id" db:"id"`
	UserID     string  `json:"userId" db:"user_id"`
	TotalKg    float64 `json:"totalKg" db:"total_kg"`
	Points     int     `json:"points" db:"points"`
	StreakDays int     `json:"streakDays" db:"streak_days"`
}

// StatsUpdate is a partial update; nil fields are left unchanged.
type StatsUpdate struct {
	TotalKg    *float64
	Points     *int
	StreakDays *int
}

// Apply merges the provided fields over s.
func (u StatsUpdate) Apply(s *UserStats) {
	if u.TotalKg != nil {
		s.TotalKg = *u.TotalKg
	}
	if u.Points != nil {
		s.Points = *u.Points
	}
	if u.StreakDays != nil {
		s.StreakDays = *u.StreakDays
	}
}

// UpdateStatsRequest is the request body for POST /api/stats/update
type UpdateStatsRequest struct {
	TotalKg    *float64 `json:"totalKg,omitempty" validate:"omitempty,gte=0"`
	Points     *int     `json:"points,omitempty" validate:"omitempty,gte=0"`
	StreakDays *int     `json:"streakDays,omitempty" validate:"omitempty,gte=0"`
}

// ToUpdate converts the request into a store update.
func (r UpdateStatsRequest) ToUpdate() StatsUpdate {
	return StatsUpdate{
		TotalKg:    r.TotalKg,
		Points:     r.Points,
		StreakDays: r.StreakDays,
	}
}
