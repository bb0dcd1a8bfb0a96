package database

import "time"

// Row types mirror the tables in schema.sql.

type Card struct {
	ID            int64
	Digest        string
	HashAlgorithm string
	Content       []byte
	GTime         string
	ContentType   string
	Size          int64
	CreatedAt     time.Time
}

type CardEvent struct {
	ID        string
	Kind      string
	Digest    string
	GTime     string
	Detail    []byte
	CreatedAt time.Time
}

type Handle struct {
	Name          string
	CurrentDigest string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type HandleHistory struct {
	ID             int64
	HandleName     string
	PreviousDigest string
	ChangedAt      time.Time
}
