package catalog

import (
	"fmt"
	"math"

	"github.com/turtacn/topk-planner/pkg/errors"
)

// Item is one selectable catalog entry, e.g. a gym class.
type Item struct {
	ID        string  `json:"id" yaml:"id"`
	Price     float64 `json:"price" yaml:"price"`
	Duration  float64 `json:"duration" yaml:"duration"`
	Timeslot  string  `json:"timeslot" yaml:"timeslot"`
	Category  string  `json:"category" yaml:"category"`
	BaseScore float64 `json:"base_score" yaml:"base_score"`
}

// Validate checks a single item in isolation.
func (it Item) Validate() error {
	if it.ID == "" {
		return errors.InvalidConfig("item id must not be empty")
	}
	if !finite(it.Price) || it.Price < 0 {
		return errors.InvalidConfig("item price must be a finite number >= 0").WithDetail(fmt.Sprintf("id=%s price=%v", it.ID, it.Price))
	}
	if !finite(it.Duration) || it.Duration < 0 {
		return errors.InvalidConfig("item duration must be a finite number >= 0").WithDetail(fmt.Sprintf("id=%s duration=%v", it.ID, it.Duration))
	}
	if it.Timeslot == "" {
		return errors.InvalidConfig("item timeslot must not be empty").WithDetail("id=" + it.ID)
	}
	if it.Category == "" {
		return errors.InvalidConfig("item category must not be empty").WithDetail("id=" + it.ID)
	}
	if !finite(it.BaseScore) {
		return errors.InvalidConfig("item base score must be finite").WithDetail("id=" + it.ID)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
