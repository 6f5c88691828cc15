package sqlstore

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// Dialect holds the statements that differ between the supported drivers.
type Dialect struct {
	Driver       string
	Schema       []string
	InsertIgnore string
}

var SQLite = Dialect{
	Driver: "sqlite3",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			name TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			name TEXT PRIMARY KEY,
			room TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS user_rooms (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			room TEXT NOT NULL REFERENCES rooms(name) ON DELETE CASCADE,
			user TEXT NOT NULL,
			status INTEGER NOT NULL,
			UNIQUE (room, user)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room TEXT NOT NULL REFERENCES rooms(name) ON DELETE CASCADE,
			user TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_room ON messages(room)`,
	},
	InsertIgnore: "INSERT OR IGNORE",
}

var MySQL = Dialect{
	Driver: "mysql",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			name VARCHAR(191) PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			name VARCHAR(191) PRIMARY KEY,
			room VARCHAR(191) NOT NULL DEFAULT ''
		)`,
		"CREATE TABLE IF NOT EXISTS user_rooms (" +
			" seq BIGINT AUTO_INCREMENT PRIMARY KEY," +
			" room VARCHAR(191) NOT NULL," +
			" `user` VARCHAR(191) NOT NULL," +
			" status INT NOT NULL," +
			" UNIQUE KEY room_user (room, `user`)," +
			" FOREIGN KEY (room) REFERENCES rooms(name) ON DELETE CASCADE" +
			")",
		"CREATE TABLE IF NOT EXISTS messages (" +
			" id BIGINT AUTO_INCREMENT PRIMARY KEY," +
			" room VARCHAR(191) NOT NULL," +
			" `user` VARCHAR(191) NOT NULL," +
			" text TEXT NOT NULL," +
			" created_at BIGINT NOT NULL," +
			" INDEX messages_room (room)," +
			" FOREIGN KEY (room) REFERENCES rooms(name) ON DELETE CASCADE" +
			")",
	},
	InsertIgnore: "INSERT IGNORE",
}

// MySQLDSN builds a data source name for the mysql driver.
func MySQLDSN(user, password, addr, database string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = database
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// SQLiteMemoryDSN names a private in-memory database shared by the
// connections of one pool.
func SQLiteMemoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
}
