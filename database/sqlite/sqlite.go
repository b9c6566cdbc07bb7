package sqlite

import (
	"context"
	"log"
	"runtime"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/audiovook/audiovook-server/database/model"
)

type SqliteRepo struct {
	// Read db handle
	dbReadHandle *sqlx.DB
	// Handle specifically for writes
	dbWriteHandle *sqlx.DB
}

// Options holds configuration options
type Options struct {
	Filename string
}

// New initializes a sqlite database and creates schema if necessary.
func New(o *Options) (*SqliteRepo, error) {
	if o == nil || o.Filename == "" {
		return nil, model.ErrNoConfiguration
	}

	readDB, err := sqlx.Connect("sqlite3", o.Filename)
	if err != nil {
		return nil, err
	}
	readDB.SetMaxOpenConns(max(4, runtime.NumCPU()))

	writeDB, err := sqlx.Connect("sqlite3", o.Filename)
	if err != nil {
		return nil, err
	}
	// sqlite needs to have a single writer
	writeDB.SetMaxOpenConns(1)

	if err := dbInitSchema(writeDB); err != nil {
		return nil, err
	}

	return &SqliteRepo{
		dbReadHandle:  readDB,
		dbWriteHandle: writeDB,
	}, nil
}

// StartBackgroundJobs starts periodic database maintenance: reaping of
// expired play sessions. Expiry remains evaluated at authorization time;
// the reaper only keeps the table from growing without bound.
func (s *SqliteRepo) StartBackgroundJobs(ctx context.Context) {
	go s.playSessionReaper(ctx, time.Minute)
}

func dbInitSchema(d *sqlx.DB) error {
	tx, err := d.Beginx()
	if err != nil {
		return err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
id TEXT NOT NULL PRIMARY KEY,
email TEXT NOT NULL,
password TEXT NOT NULL,
name TEXT NOT NULL DEFAULT '',
location TEXT NOT NULL DEFAULT '',
isadmin BOOLEAN NOT NULL DEFAULT 0,
created DATETIME NOT NULL);`,

		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (email);`,

		`CREATE TABLE IF NOT EXISTS titles (
id INTEGER PRIMARY KEY AUTOINCREMENT,
title TEXT NOT NULL,
author TEXT NOT NULL DEFAULT '',
language TEXT NOT NULL DEFAULT '',
durationsec INTEGER NOT NULL DEFAULT 0,
coverurl TEXT NOT NULL DEFAULT '',
abssharecode TEXT NOT NULL DEFAULT '',
priceretail REAL NOT NULL DEFAULT 0,
currency TEXT NOT NULL DEFAULT '',
active BOOLEAN NOT NULL DEFAULT 1);`,

		`CREATE UNIQUE INDEX IF NOT EXISTS titles_sharecode_idx
ON titles (abssharecode) WHERE abssharecode != '';`,

		`CREATE TABLE IF NOT EXISTS cards (
qr TEXT NOT NULL PRIMARY KEY,
titleid INTEGER NOT NULL,
userstate INTEGER NOT NULL DEFAULT 0,
owneruserid TEXT NOT NULL DEFAULT '',
borroweruserid TEXT NOT NULL DEFAULT '',
retailstate TEXT NOT NULL DEFAULT 'warehouse',
storeid INTEGER NOT NULL DEFAULT 0,
batchid INTEGER NOT NULL DEFAULT 0,
claimedat DATETIME,
lentat DATETIME,
updatedat DATETIME NOT NULL,
notes TEXT NOT NULL DEFAULT '');`,

		`CREATE INDEX IF NOT EXISTS cards_title_idx ON cards (titleid);`,

		`CREATE TABLE IF NOT EXISTS stores (
id INTEGER PRIMARY KEY AUTOINCREMENT,
name TEXT NOT NULL,
channeltype TEXT NOT NULL DEFAULT '',
city TEXT NOT NULL DEFAULT '',
country TEXT NOT NULL DEFAULT '',
contactemail TEXT NOT NULL DEFAULT '',
externalref TEXT NOT NULL DEFAULT '');`,

		`CREATE TABLE IF NOT EXISTS batches (
id INTEGER PRIMARY KEY AUTOINCREMENT,
titleid INTEGER NOT NULL,
qty INTEGER NOT NULL,
printedon DATETIME,
printervendor TEXT NOT NULL DEFAULT '',
notes TEXT NOT NULL DEFAULT '');`,

		`CREATE TABLE IF NOT EXISTS playsessions (
id INTEGER PRIMARY KEY AUTOINCREMENT,
qr TEXT NOT NULL,
deviceid TEXT NOT NULL DEFAULT '',
issuedat DATETIME NOT NULL,
expiresat DATETIME NOT NULL);`,

		`CREATE INDEX IF NOT EXISTS playsessions_qr_idx ON playsessions (qr, expiresat);`,

		`CREATE TABLE IF NOT EXISTS progress (
userid TEXT NOT NULL,
qr TEXT NOT NULL,
position REAL NOT NULL,
updatedat DATETIME NOT NULL);`,

		`CREATE UNIQUE INDEX IF NOT EXISTS progress_userid_qr_idx ON progress (userid, qr);`,
	}

	for _, query := range schema {
		if _, err = tx.Exec(query); err != nil {
			log.Printf("dbInitSchema error: %s\n", err)
			return tx.Rollback()
		}
	}

	return tx.Commit()
}
