// Package models defines state management structures for Reunite flows.
package models

import "time"

// FlowState represents the current state of a user in a flow.
type FlowState struct {
	UserID       string             `json:"user_id"`
	FlowType     FlowType           `json:"flow_type"`
	CurrentState StateType          `json:"current_state"`
	StateData    map[DataKey]string `json:"state_data,omitempty"` // Additional state-specific data
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
