package model

import "time"

// Counter 下载计数，值按字符串保存，与键值存储的约定保持一致
type Counter struct {
	Key       string    `json:"key" gorm:"primaryKey"`
	Value     string    `json:"value" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}
