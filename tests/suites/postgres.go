package suites

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/joefazee/categorias/app/database"

	// readiness probe and the raw handle behind GORM
	_ "github.com/lib/pq"
)

const (
	postgresImage = "postgres:17.5-alpine3.21"
	postgresPort  = "5432/tcp"
	postgresDB    = "categorias"
	postgresUser  = "categorias"
	postgresPass  = "categorias"
)

// categoryTables are emptied between tests, children first.
var categoryTables = []string{"posts_categorias", "posts", "categorias"}

type PostgresContainer struct {
	testcontainers.Container
	URL string
}

func postgresURL(host string, port nat.Port) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPass, host, port.Port(), postgresDB)
}

// StartPostgres boots a throwaway Postgres and waits until it answers queries.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{postgresPort},
			Cmd:          []string{"postgres", "-c", "fsync=off", "-c", "max_connections=50"},
			Env: map[string]string{
				"POSTGRES_DB":       postgresDB,
				"POSTGRES_USER":     postgresUser,
				"POSTGRES_PASSWORD": postgresPass,
			},
			WaitingFor: wait.ForSQL(postgresPort, "postgres", postgresURL).
				WithStartupTimeout(30 * time.Second).
				WithQuery("SELECT 1"),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres container host: %w", err)
	}
	port, err := container.MappedPort(ctx, postgresPort)
	if err != nil {
		return nil, fmt.Errorf("postgres container port: %w", err)
	}
	return &PostgresContainer{Container: container, URL: postgresURL(host, port)}, nil
}

// RepositoryTestSuite owns one Postgres container for a whole suite. The
// schema is the one the binary migrates to, and the category tables are
// emptied before every test.
type RepositoryTestSuite struct {
	suite.Suite
	Container   *PostgresContainer
	DB          *gorm.DB
	SQLDB       *sql.DB
	AutoMigrate bool
}

func (s *RepositoryTestSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("Skipping database integration tests in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := StartPostgres(ctx)
	s.Require().NoError(err)
	s.Container = container
	s.T().Cleanup(s.shutdown)

	s.SQLDB, err = sql.Open("postgres", container.URL)
	s.Require().NoError(err)
	s.SQLDB.SetMaxOpenConns(10)
	s.SQLDB.SetMaxIdleConns(2)
	s.Require().NoError(s.SQLDB.PingContext(ctx))

	s.DB, err = gorm.Open(postgres.New(postgres.Config{Conn: s.SQLDB}), database.GormConfig(false))
	s.Require().NoError(err)

	if s.AutoMigrate {
		s.Require().NoError(database.Migrate(container.URL), "migrate")
	}
}

func (s *RepositoryTestSuite) SetupTest() {
	if s.DB != nil {
		s.Require().NoError(s.ResetTables())
	}
}

func (s *RepositoryTestSuite) shutdown() {
	if s.SQLDB != nil {
		_ = s.SQLDB.Close()
	}
	if s.Container != nil {
		_ = s.Container.Terminate(context.Background())
	}
}

// ResetTables truncates the category tables and restarts their sequences.
func (s *RepositoryTestSuite) ResetTables() error {
	for _, table := range categoryTables {
		if !s.DB.Migrator().HasTable(table) {
			continue
		}
		if err := s.DB.Exec(fmt.Sprintf(`TRUNCATE TABLE %q RESTART IDENTITY CASCADE`, table)).Error; err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// ForcePostsCount writes a counter behind the service's back to simulate drift.
func (s *RepositoryTestSuite) ForcePostsCount(categoryID int64, n int) error {
	return s.ExecRaw(`UPDATE categorias SET posts_count = ? WHERE id = ?`, n, categoryID)
}

// MembershipRows counts rows of the membership relation for one category.
func (s *RepositoryTestSuite) MembershipRows(categoryID int64) int64 {
	var n int64
	s.DB.Table("posts_categorias").Where("categoria_id = ?", categoryID).Count(&n)
	return n
}

func (s *RepositoryTestSuite) ExecRaw(query string, args ...interface{}) error {
	return s.DB.Exec(query, args...).Error
}
