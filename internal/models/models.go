package models

import "time"

// Membership tiers. Tier changes only as a side effect of application review;
// the rate limiter and write authorization read it fresh on every request.
type MembershipTier string

const (
	TierRegular  MembershipTier = "regular"
	TierPending  MembershipTier = "pending"
	TierApproved MembershipTier = "approved"
)

// Application lifecycle: pending -> approved | rejected, exactly once.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

type User struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	Region         string         `json:"region"`
	MembershipTier MembershipTier `json:"membership_tier"`
	IsReviewer     bool           `json:"is_reviewer"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type MembershipApplication struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Handle      *string           `json:"handle,omitempty"`
	Bio         string            `json:"bio"`
	SampleWork  *string           `json:"sample_work,omitempty"`
	Status      ApplicationStatus `json:"status"`
	AppliedAt   time.Time         `json:"applied_at"`
	ReviewedAt  *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy  *string           `json:"reviewed_by,omitempty"`
	ReviewNotes *string           `json:"review_notes,omitempty"`
}

type Event struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Venue       string     `json:"venue"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Images      []string   `json:"images"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Place struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Rating      float64   `json:"rating"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Images      []string  `json:"images"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Influencer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	Category  string    `json:"category"`
	Followers int       `json:"followers"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
