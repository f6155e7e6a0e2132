package db

import (
	"time"
)

type Session struct {
	ClientKey    string    `db:"client_key"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	Scope        string    `db:"scope"`
	TokenType    string    `db:"token_type"`
	Expiry       time.Time `db:"expiry"`
	CreatedOn    time.Time `db:"created_on"`
}

type Watch struct {
	ClientKey  string    `db:"client_key"`
	Email      string    `db:"email"`
	Topic      string    `db:"topic"`
	HistoryId  int64     `db:"history_id"`
	Expiration time.Time `db:"expiration"`
	CreatedOn  time.Time `db:"created_on"`
}
