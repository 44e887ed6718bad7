package migration

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"healthsync/internal/app/server/config"
)

// MockMigrator мок для интерфейса Migrator
type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMigrator) Steps(n int) error {
	args := m.Called(n)
	return args.Error(0)
}

func (m *MockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *MockMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{DB: config.DB{DatabaseURI: "postgres://localhost/test", Migrations: "migrations"}}
}

func engineFor(m Migrator) MigrationEngine {
	return func(source, db string) (Migrator, error) {
		return m, nil
	}
}

func TestMigration_Up_Success(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(nil)
	mockM.On("Close").Return(nil, nil)

	var gotSource, gotDB string
	engine := func(source, db string) (Migrator, error) {
		gotSource, gotDB = source, db
		return mockM, nil
	}

	err := NewMigration(testConfig(), engine).Up()

	assert.NoError(t, err)
	assert.Equal(t, "file://migrations", gotSource)
	assert.Equal(t, "postgres://localhost/test", gotDB)
	mockM.AssertExpectations(t)
}

func TestMigration_Up_NoChange(t *testing.T) {
	mockM := new(MockMigrator)

	// ErrNoChange не должна считаться ошибкой в методе Up()
	mockM.On("Up").Return(migrate.ErrNoChange)
	mockM.On("Close").Return(nil, nil)

	err := NewMigration(testConfig(), engineFor(mockM)).Up()

	assert.NoError(t, err)
}

func TestMigration_Up_EngineError(t *testing.T) {
	// Ошибка на этапе создания мигратора (например, неверный драйвер)
	engine := func(source, db string) (Migrator, error) {
		return nil, errors.New("engine crash")
	}

	err := NewMigration(testConfig(), engine).Up()

	assert.Error(t, err)
	assert.Equal(t, "engine crash", err.Error())
}

func TestMigration_Up_CloseError(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Up").Return(errors.New("syntax error"))
	mockM.On("Close").Return(nil, errors.New("conn reset"))

	err := NewMigration(testConfig(), engineFor(mockM)).Up()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
	assert.Contains(t, err.Error(), "conn reset")
}

func TestMigration_Down(t *testing.T) {
	mockM := new(MockMigrator)
	mockM.On("Steps", -1).Return(nil)
	mockM.On("Close").Return(nil, nil)

	err := NewMigration(testConfig(), engineFor(mockM)).Down()

	assert.NoError(t, err)
	mockM.AssertExpectations(t)
}

func TestMigration_Version(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		mockM := new(MockMigrator)
		mockM.On("Version").Return(uint(1), false, nil)
		mockM.On("Close").Return(nil, nil)

		v, dirty, err := NewMigration(testConfig(), engineFor(mockM)).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(1), v)
		assert.False(t, dirty)
	})

	t.Run("fresh database", func(t *testing.T) {
		mockM := new(MockMigrator)
		mockM.On("Version").Return(uint(0), false, migrate.ErrNilVersion)
		mockM.On("Close").Return(nil, nil)

		v, _, err := NewMigration(testConfig(), engineFor(mockM)).Version()
		require.NoError(t, err)
		assert.Zero(t, v)
	})
}
