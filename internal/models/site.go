package models

import (
	"time"
)

// Статусы площадки
const (
	SiteStatusActive    = "active"
	SiteStatusSuspended = "suspended"
)

// Site площадка паблишера; KeyHash - SHA-256 от site-ключа
type Site struct {
	ID        int64     `json:"id"`
	Domain    string    `json:"domain"`
	KeyHash   string    `json:"-"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
