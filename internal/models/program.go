package models

import "time"

// Program represents a higher-education program in the catalog
type Program struct {
	ID          int64     `json:"id" db:"id"`
	Institution string    `json:"institution" db:"institution"`
	Field       string    `json:"field" db:"field"`
	Track       string    `json:"track" db:"track"`
	City        string    `json:"city" db:"city"`
	Department  string    `json:"department" db:"department"`
	Seats       int       `json:"seats" db:"seats"`
	Notes       string    `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ProgramFilter captures the catalog listing query
type ProgramFilter struct {
	Search     string   `json:"search"`
	Tracks     []string `json:"tracks"`
	Department string   `json:"department"`
	City       string   `json:"city"`
	SortBy     string   `json:"sort_by"`
	SortDir    string   `json:"sort_dir"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}

// ProgramPage is one page of catalog results with the total match count
type ProgramPage struct {
	Programs []Program `json:"programs"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}
