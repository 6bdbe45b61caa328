package auction

import "time"

// Status represents the lifecycle state of an auction
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the auction status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled,
		StatusActive,
		StatusEnded,
		StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Auction represents a timed sale of a single item
type Auction struct {
	ID            string    `json:"id" bson:"id" example:"b3a1f8c2-4e6d-4f0a-9c2b-7d5e8a1f3c4d"`
	Title         string    `json:"title" bson:"title" validate:"required,min=1,max=200" example:"Genesis Plot #42"`
	Description   string    `json:"description,omitempty" bson:"description,omitempty" validate:"max=2000"`
	TokenRef      string    `json:"token_ref,omitempty" bson:"token_ref,omitempty" validate:"max=200" example:"0xabc123/42"`
	StartTime     int64     `json:"start_time" bson:"start_time" validate:"required,gt=0"`
	DurationHours float64   `json:"duration_hours" bson:"duration_hours" validate:"required,gt=0,lte=720"`
	UserEndTime   int64     `json:"user_end_time" bson:"user_end_time"`
	ActualEndTime int64     `json:"actual_end_time" bson:"actual_end_time"`
	BufferSeconds int64     `json:"buffer_seconds" bson:"buffer_seconds"`
	GraceSeconds  int64     `json:"grace_seconds" bson:"grace_seconds" validate:"gte=0,lte=3600"`
	MinIncrement  float64   `json:"min_increment" bson:"min_increment" validate:"gte=0"`
	Status        Status    `json:"status" bson:"status" example:"active"`
	CreatedBy     string    `json:"created_by" bson:"created_by"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" swaggertype:"string"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at" swaggertype:"string"`
}

// Window returns the auction's deadlines as an EndTimes value.
func (a *Auction) Window() EndTimes {
	return EndTimes{
		UserEndTime:   a.UserEndTime,
		ActualEndTime: a.ActualEndTime,
		BufferSeconds: a.BufferSeconds,
	}
}

// Bid represents a single bid attempt on an auction. ChainTimestamp and
// Accurate record which clock gated the bid, so disputes can be replayed.
type Bid struct {
	ID             string    `json:"id" bson:"id"`
	AuctionID      string    `json:"auction_id" bson:"auction_id" validate:"required"`
	Bidder         string    `json:"bidder" bson:"bidder" validate:"required,min=1,max=200" example:"0x71c7656ec7ab88b098defb751b7401b5f6d8976f"`
	Amount         float64   `json:"amount" bson:"amount" validate:"required,gt=0"`
	ChainTimestamp int64     `json:"chain_timestamp" bson:"chain_timestamp"`
	Accurate       bool      `json:"is_accurate" bson:"is_accurate"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at" swaggertype:"string"`
}
