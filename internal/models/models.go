// Package models defines the core data structures for Reunite.
//
// It includes inbound event and button types shared by the transport and the
// conversation engine, plus the persisted domain entities.
package models

import (
	"errors"
	"time"
)

// EventKind discriminates the shapes of inbound user events.
type EventKind string

const (
	// EventText is a free-text message.
	EventText EventKind = "text"
	// EventOption is a selection of a previously offered option.
	EventOption EventKind = "option"
	// EventImage is an image attachment, downloaded to a local file.
	EventImage EventKind = "image"
)

// Event represents a single inbound user event from the messaging transport.
type Event struct {
	UserID    string    `json:"user_id"`              // canonicalized sender identifier
	Kind      EventKind `json:"kind"`                 // text, option or image
	Text      string    `json:"text,omitempty"`       // message body for text events
	Data      string    `json:"data,omitempty"`       // opaque callback data for option events
	MediaPath string    `json:"media_path,omitempty"` // local file path for image events
	Time      int64     `json:"time"`                 // unix timestamp of receipt
}

// Button represents a labeled option offered to the user. Data is the opaque
// payload delivered back as an option event when the user picks it.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Validation constants for inbound input.
const (
	// MaxTextLength defines the maximum accepted length for free-text input.
	MaxTextLength = 4096
	// MaxOptionsCount defines the maximum number of options per prompt.
	MaxOptionsCount = 10
)

// Error variables for better error handling and testability.
var (
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrNotOwner       = errors.New("entity is not owned by the requesting user")
	ErrNotFound       = errors.New("entity not found")
	ErrDuplicate      = errors.New("entity already exists")
	ErrNotDraft       = errors.New("case is not in draft status")
)

// CaseStatus represents the lifecycle stage of a case.
type CaseStatus string

const (
	CaseStatusDraft      CaseStatus = "draft"
	CaseStatusAdvertised CaseStatus = "advertised"
	CaseStatusClosed     CaseStatus = "closed"
)

// Case is a missing-person report. It accumulates as a draft during the
// intake conversation and becomes advertised only after the reward escrow
// transfer succeeds.
type Case struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"owner_id"`
	Status          CaseStatus `json:"status"`
	ReporterName    string     `json:"reporter_name"`
	MobileNumber    string     `json:"mobile_number"`
	SubjectName     string     `json:"subject_name"`
	Relation        string     `json:"relation"`
	PhotoURL        string     `json:"photo_url"`
	LastSeenCity    string     `json:"last_seen_city"`
	LastSeenCountry string     `json:"last_seen_country"`
	Sex             string     `json:"sex"`
	Age             int        `json:"age"`
	HairColor       string     `json:"hair_color"`
	EyeColor        string     `json:"eye_color"`
	HeightCm        int        `json:"height_cm"`
	WeightKg        int        `json:"weight_kg"`
	Features        string     `json:"features"`
	Reason          string     `json:"reason"`
	RewardAmount    float64    `json:"reward_amount"`
	RewardCurrency  string     `json:"reward_currency"`
	EscrowTxID      string     `json:"escrow_tx_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	AdvertisedAt    *time.Time `json:"advertised_at,omitempty"`
}

// Wallet is a custodial wallet held on behalf of a user. The mnemonic is an
// opaque secret to everything outside the wallet package.
type Wallet struct {
	UserID    string    `json:"user_id"`
	Address   string    `json:"address"`
	Mnemonic  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// MobileNumber is a phone number registered by a user, unique per
// (user, number) pair.
type MobileNumber struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Number    string    `json:"number"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// UserPreference holds the per-user settings persisted to the document store.
// Language persistence is the deliberate exception to session ephemerality.
type UserPreference struct {
	UserID    string    `json:"user_id"`
	Language  string    `json:"language"`
	Country   string    `json:"country"`
	City      string    `json:"city"`
	UpdatedAt time.Time `json:"updated_at"`
}
