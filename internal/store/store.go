package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/iurnickita/giftcards/internal/model"
	"github.com/iurnickita/giftcards/internal/store/config"
)

// Store is the durable copy of the card collection and the backup target handle.
type Store interface {
	Load(ctx context.Context) ([]model.Card, error)
	Save(ctx context.Context, cards []model.Card) error
	LoadHandle(ctx context.Context) (string, error)
	SaveHandle(ctx context.Context, handle string) error
	Close() error
}

const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"

	settingBackupTarget = "backup_target"
)

var ErrUnknownDriver = errors.New("unknown database driver")

type store struct {
	database *sql.DB
	driver   string
}

func NewStore(cfg config.Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPgx {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(driver, cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// один файл - одно соединение
		db.SetMaxOpenConns(1)
	}

	// Таблица карт.
	// Порядок карт важен для отображения, поэтому хранится явно
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS card (" +
			" id VARCHAR (64) PRIMARY KEY," +
			" position INTEGER NOT NULL," +
			" number VARCHAR (128) NOT NULL UNIQUE," +
			" pin VARCHAR (128) NOT NULL," +
			" balance VARCHAR (64) NOT NULL," +
			" expiry_date VARCHAR (64) NOT NULL," +
			" last_updated VARCHAR (64) NOT NULL" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	// Настройки: ссылка на файл резервной копии
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS setting (" +
			" key VARCHAR (64) PRIMARY KEY," +
			" value TEXT NOT NULL" +
			" );")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &store{
		database: db,
		driver:   driver,
	}, nil
}

func (store *store) Close() error {
	return store.database.Close()
}

func (store *store) Load(ctx context.Context) ([]model.Card, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT id, number, pin, balance, expiry_date, last_updated"+
			" FROM card"+
			" ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []model.Card
	for rows.Next() {
		var (
			card        model.Card
			balance     string
			lastUpdated string
		)
		err := rows.Scan(&card.ID,
			&card.Data.Number,
			&card.Data.PIN,
			&balance,
			&card.Data.ExpiryDate,
			&lastUpdated)
		if err != nil {
			return nil, err
		}
		card.Data.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("card %s balance: %w", card.ID, err)
		}
		if lastUpdated != "" {
			card.Data.LastUpdated, err = time.Parse(time.RFC3339Nano, lastUpdated)
			if err != nil {
				return nil, fmt.Errorf("card %s last_updated: %w", card.ID, err)
			}
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

// Save replaces the stored collection in a single transaction.
func (store *store) Save(ctx context.Context, cards []model.Card) error {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, "DELETE FROM card"); err != nil {
		return err
	}

	query := store.rebind(
		"INSERT INTO card (id, position, number, pin, balance, expiry_date, last_updated)" +
			" VALUES (?, ?, ?, ?, ?, ?, ?)")
	for position, card := range cards {
		_, err = tx.ExecContext(ctx, query,
			card.ID,
			position,
			card.Data.Number,
			card.Data.PIN,
			card.Data.Balance.String(),
			card.Data.ExpiryDate,
			card.Data.LastUpdated.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (store *store) LoadHandle(ctx context.Context) (string, error) {
	row := store.database.QueryRowContext(ctx,
		store.rebind("SELECT value FROM setting WHERE key = ?"),
		settingBackupTarget)
	var handle string
	err := row.Scan(&handle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) { // если нет строки - ок
			return "", nil
		}
		return "", err
	}
	return handle, nil
}

func (store *store) SaveHandle(ctx context.Context, handle string) error {
	_, err := store.database.ExecContext(ctx,
		store.rebind("INSERT INTO setting (key, value) VALUES (?, ?)"+
			" ON CONFLICT (key) DO UPDATE SET value = excluded.value"),
		settingBackupTarget,
		handle)
	return err
}

// rebind converts ? placeholders to $n for postgres.
func (store *store) rebind(query string) string {
	if store.driver != DriverPgx {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
