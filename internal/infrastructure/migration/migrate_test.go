package migration

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMigrator мок интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Down() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func TestMigration_Up(t *testing.T) {
	tests := []struct {
		name      string
		upErr     error
		sourceErr error
		dbErr     error
		wantErr   string
	}{
		{name: "success"},
		// ErrNoChange не должна считаться ошибкой в методе Up()
		{name: "no change", upErr: migrate.ErrNoChange},
		{name: "up fails", upErr: errors.New("dirty database"), wantErr: "migration up error: dirty database"},
		{name: "close fails", sourceErr: errors.New("source closed"), wantErr: "source closed"},
		{
			name:    "up and close fail",
			upErr:   errors.New("dirty database"),
			dbErr:   errors.New("conn reset"),
			wantErr: "migration up error: dirty database; migration database error: conn reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockM := new(MockMigrator)
			mockM.On("Up").Return(tt.upErr)
			mockM.On("Close").Return(tt.sourceErr, tt.dbErr)

			var gotSrc Source
			var gotURL string
			engine := func(src Source, db string) (Migrator, error) {
				gotSrc, gotURL = src, db
				return mockM, nil
			}

			src := Source{Driver: DriverSQLite}
			err := NewMigration(src, SQLiteURL("airsync.db"), engine).Up()

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, src, gotSrc)
			assert.Equal(t, "sqlite3://airsync.db", gotURL)
			mockM.AssertExpectations(t)
		})
	}
}

func TestMigration_Down(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Down").Return(nil)
	mockM.On("Close").Return(nil, nil)

	engine := func(src Source, db string) (Migrator, error) {
		return mockM, nil
	}

	err := NewMigration(Source{Driver: DriverPostgres}, "postgres://localhost/airsync", engine).Down()

	assert.NoError(t, err)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_EngineError(t *testing.T) {
	// Ошибка на этапе создания мигратора (например, неверный драйвер)
	engine := func(src Source, db string) (Migrator, error) {
		return nil, errors.New("engine crash")
	}

	err := NewMigration(Source{Driver: DriverSQLite}, "", engine).Up()

	assert.Error(t, err)
	assert.Equal(t, "engine crash", err.Error())
}

func TestDefaultEngine_EmbeddedSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airsync.db")
	mg := NewMigration(Source{Driver: DriverSQLite}, SQLiteURL(path), nil)

	require.NoError(t, mg.Up())
	// повторный запуск ничего не меняет
	require.NoError(t, mg.Up())
	require.NoError(t, mg.Down())
}
