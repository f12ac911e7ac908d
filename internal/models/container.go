package models

import "github.com/lib/pq"

// Container is a recycling collection point. Only FillLevel changes after seeding.
type Container struct {
	ID        string         `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Latitude  float64        `json:"latitude" db:"latitude"`
	Longitude float64        `json:"longitude" db:"longitude"`
	FillLevel int            `json:"fillLevel" db:"fill_level"` // percent, 0-100
	Materials pq.StringArray `json:"materials" db:"materials"`
	Address   string         `json:"address" db:"address"`
}

// NewContainer is the input for creating a container (seed data).
type NewContainer struct {
	Name      string
	Latitude  float64
	Longitude float64
	FillLevel int
	Materials []string
	Address   string
}

// Clone returns a deep copy so callers can't mutate stored materials.
func (c Container) Clone() Container {
	out := c
	if c.Materials != nil {
		out.Materials = append(pq.StringArray(nil), c.Materials...)
	}
	return out
}

// Coordinates implements geo.Locatable.
func (c Container) Coordinates() (lat, lng float64) {
	return c.Latitude, c.Longitude
}

// ContainerWithDistance is what the nearby endpoint returns.
type ContainerWithDistance struct {
	Container
	Distance      float64 `json:"distance"`      // kilometers, 2 decimals
	DistanceLabel string  `json:"distanceLabel"` // "350m" or "1.2km"
}

// ClampFillLevel bounds a fill level to [0,100].
func ClampFillLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
