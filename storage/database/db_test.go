package database

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/KeviinDCV/NotionK4S/core"
)

// openCatalogDB opens an in-memory database carrying fake pg catalog tables,
// enough for the existence checks the bootstrap helpers run.
func openCatalogDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		"CREATE TABLE pg_roles (rolname TEXT NOT NULL)",
		"CREATE TABLE pg_database (datname TEXT NOT NULL)",
	}
	for _, q := range stmts {
		if _, err = db.Exec(q); err != nil {
			t.Fatalf("creating catalog table: %v", err)
		}
	}
	return db
}

func Test_createAppUser(t *testing.T) {
	conf := &core.Config{}
	conf.Database.User = "notionapp"
	conf.Database.Password = "secret"

	t.Run("no app user configured", func(t *testing.T) {
		noUser := &core.Config{}
		if err := createAppUser(openCatalogDB(t), noUser); err != nil {
			t.Errorf("createAppUser() failed: %v", err)
		}
	})
	t.Run("role already exists", func(t *testing.T) {
		db := openCatalogDB(t)
		if _, err := db.Exec("INSERT INTO pg_roles (rolname) VALUES ('notionapp')"); err != nil {
			t.Fatalf("seeding role: %v", err)
		}
		if err := createAppUser(db, conf); err != nil {
			t.Errorf("createAppUser() failed: %v", err)
		}
	})
	t.Run("missing role reaches the create statement", func(t *testing.T) {
		// the fake catalog backend rejects CREATE USER, proving the helper
		// attempted it
		if err := createAppUser(openCatalogDB(t), conf); err == nil {
			t.Error("createAppUser() expected create attempt for missing role")
		}
	})
}

func Test_createDB(t *testing.T) {
	conf := &core.Config{}
	conf.Database.Name = "notionk4s"

	t.Run("database already exists", func(t *testing.T) {
		db := openCatalogDB(t)
		if _, err := db.Exec("INSERT INTO pg_database (datname) VALUES ('notionk4s')"); err != nil {
			t.Fatalf("seeding database row: %v", err)
		}
		if err := createDB(db, conf); err != nil {
			t.Errorf("createDB() failed: %v", err)
		}
	})
	t.Run("missing database reaches the create statement", func(t *testing.T) {
		if err := createDB(openCatalogDB(t), conf); err == nil {
			t.Error("createDB() expected create attempt for missing database")
		}
	})
}
