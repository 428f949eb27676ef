package model

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

type Task struct {
	gorm.Model
	UserID      uint         `json:"user_id" gorm:"index;not null"`
	Title       string       `json:"title" gorm:"not null"`
	Description string       `json:"description" gorm:"type:text"`
	DueDate     *time.Time   `json:"due_date" gorm:"index"`
	Status      TaskStatus   `json:"status" gorm:"size:16;not null"`
	Priority    TaskPriority `json:"priority" gorm:"size:16;not null"`
}
