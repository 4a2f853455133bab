package repository

import (
	"context"
	"errors"
)

var ErrRecordNotFound = errors.New("record not found")

// RecordRepository stores opaque named records. Stores serialize their own
// state; the repository never looks inside a value.
type RecordRepository interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

type Credentials struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}
