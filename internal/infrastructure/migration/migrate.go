package migration

import (
	"errors"
	"fmt"
	"path/filepath"

	"airsync/migrations"

	"github.com/golang-migrate/migrate/v4"
	// Blank imports register database drivers and the file source for migrations
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Драйверы миграций, совпадают с именами каталогов в migrations/
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Migrator подмножество migrate.Migrate, нужное для прогона миграций
type Migrator interface {
	Up() error
	Down() error
	Close() (error, error)
}

// Source откуда читать миграции. Пустой Dir означает встроенные в бинарник файлы.
type Source struct {
	Driver string
	Dir    string
}

// MigrationEngine создает мигратор для источника и базы
type MigrationEngine func(src Source, databaseURL string) (Migrator, error)

type Migration struct {
	src         Source
	databaseURL string
	engine      MigrationEngine
}

func NewMigration(src Source, databaseURL string, engine MigrationEngine) *Migration {
	if engine == nil {
		engine = DefaultEngine
	}
	return &Migration{
		src:         src,
		databaseURL: databaseURL,
		engine:      engine,
	}
}

// DefaultEngine открывает миграции из каталога или встроенные в бинарник
func DefaultEngine(src Source, databaseURL string) (Migrator, error) {
	if src.Dir != "" {
		return migrate.New("file://"+filepath.Join(src.Dir, src.Driver), databaseURL)
	}
	d, err := iofs.New(migrations.FS, src.Driver)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations for %s: %w", src.Driver, err)
	}
	return migrate.NewWithSourceInstance("iofs", d, databaseURL)
}

// SQLiteURL адрес базы sqlite в формате golang-migrate
func SQLiteURL(path string) string {
	return "sqlite3://" + path
}

func (mg *Migration) Up() error {
	return mg.run(func(m Migrator) error { return m.Up() }, "up")
}

func (mg *Migration) Down() error {
	return mg.run(func(m Migrator) error { return m.Down() }, "down")
}

func (mg *Migration) run(step func(Migrator) error, name string) (err error) {
	m, err := mg.engine(mg.src, mg.databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration source error: %v", err, serr)
			} else {
				err = serr
			}
		}
		if dberr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration database error: %v", err, dberr)
			} else {
				err = dberr
			}
		}
	}()
	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s error: %w", name, err)
	}
	return nil
}
