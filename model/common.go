package model

import (
	"time"

	"gorm.io/gorm"

	"github.com/opsyhq/opsy/pkg/utils"
)

const (
	ApiErrorUnknown = iota + 1
	ApiErrorNotFound
	ApiErrorBadRequest
	ApiErrorConflict
)

// Common ..
type Common struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a random identity to rows created without one.
func (c *Common) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = utils.NewID()
	}
	return nil
}

// Response ..
type Response struct {
	Code    uint64      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}
