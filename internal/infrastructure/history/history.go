// Package history ведёт локальный журнал прогонов инспекции в sqlite.
// Это аудит для оператора, а не очередь задач: ничего из журнала
// не возобновляется после перезапуска.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	started_at     INTEGER NOT NULL,
	out_dir        TEXT NOT NULL,
	completed      INTEGER NOT NULL,
	stopped_early  INTEGER NOT NULL DEFAULT 0,
	observation_id INTEGER NOT NULL DEFAULT 0,
	uploaded       INTEGER NOT NULL DEFAULT 0,
	failed         INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Record один прогон в журнале.
type Record struct {
	ID            string    // uuid прогона
	StartedAt     time.Time // момент старта
	OutDir        string    // каталог со снимками
	Completed     int       // снято снимков
	StoppedEarly  bool      // прерван ли прогон
	ObservationID int       // 0 для локальных прогонов без API
	Uploaded      int       // успешных загрузок
	Failed        int       // неудачных загрузок
}

// Store журнал прогонов поверх sqlite-файла.
type Store struct {
	db *sql.DB
}

// Open открывает (и при необходимости создаёт) журнал по пути path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close закрывает журнал.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add записывает прогон и возвращает его идентификатор.
// Пустые ID и StartedAt заполняются автоматически.
func (s *Store) Add(r Record) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, out_dir, completed, stopped_early, observation_id, uploaded, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.Unix(), r.OutDir, r.Completed,
		boolToInt(r.StoppedEarly), r.ObservationID, r.Uploaded, r.Failed,
	)
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	return r.ID, nil
}

// List возвращает последние прогоны, новые первыми.
func (s *Store) List(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, started_at, out_dir, completed, stopped_early, observation_id, uploaded, failed
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var startedAt int64
		var stopped int
		if err := rows.Scan(&r.ID, &startedAt, &r.OutDir, &r.Completed, &stopped, &r.ObservationID, &r.Uploaded, &r.Failed); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(startedAt, 0)
		r.StoppedEarly = stopped != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
