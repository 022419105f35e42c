package database

import (
	"context"
	"database/sql"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// dsn builds the driver DSN.  parseTime maps DATETIME columns onto
// time.Time values and loc pins every scanned timestamp to UTC; the
// booking deadline comparisons rely on both.
func dsn(user, pass, host, port, name string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection before returning.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn(user, pass, host, port, name))
	if err != nil {
		return nil, err
	}

	// Confirmation, cancellation and expiry all serialize on booking
	// row locks, so connections are held briefly but demanded in
	// bursts when a popular showtime opens.  A larger open cap with a
	// modest idle pool and a short lifetime fits that pattern.
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}
