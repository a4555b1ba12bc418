package models

import "time"

type Vehicle struct {
	ID           int64     `yaml:"id" json:"id"`
	Plate        string    `yaml:"plate" json:"plate"`
	Name         string    `yaml:"name" json:"name"`
	DailyRate    int64     `yaml:"daily_rate" json:"daily_rate"`
	Availability string    `yaml:"availability" json:"availability"`
	CreatedAt    time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at" json:"updated_at"`
}
