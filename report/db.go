package report

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"
	"github.com/go-sql-driver/mysql"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/pagesim/hooking"
	"github.com/sarchlab/pagesim/mem/vm/simulator"
)

const (
	accessTable = "accesses"
	frameTable  = "frames"
)

// MySQLCredentials locates the MySQL server that stores the traces.
type MySQLCredentials struct {
	Username string
	Password string
	Address  string
	Port     int
}

// A DBRecorder stores every access and every frame state into SQL tables.
type DBRecorder struct {
	*sql.DB

	dbName    string
	accesses  []accessRow
	frames    []frameRow
	batchSize int
}

// OpenSQLite creates a new SQLite database named name.sqlite3 to record into.
// An empty name gets a unique generated name.
func OpenSQLite(name string) (*DBRecorder, error) {
	if name == "" {
		name = "pagesim_" + xid.New().String()
	}

	filename := name + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	return NewDBRecorder(db, name), nil
}

// OpenMySQL creates a new database on a MySQL server to record into.
func OpenMySQL(c MySQLCredentials) (*DBRecorder, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Address, c.Port)

	server, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	defer server.Close()

	dbName := "pagesim_" + xid.New().String()

	_, err = server.Exec("CREATE DATABASE " + dbName)
	if err != nil {
		return nil, err
	}

	log.Printf("Trace is collected in database: %s\n", dbName)

	cfg.DBName = dbName

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}

	return NewDBRecorder(db, dbName), nil
}

// NewDBRecorder creates a DBRecorder that writes into an opened database.
func NewDBRecorder(db *sql.DB, name string) *DBRecorder {
	return &DBRecorder{
		DB:        db,
		dbName:    name,
		batchSize: 10000,
	}
}

// Name returns the name of the database.
func (r *DBRecorder) Name() string {
	return r.dbName
}

// Init creates the tables. The buffered rows are written when the program
// exits through atexit.
func (r *DBRecorder) Init() error {
	err := r.createTable(accessTable, accessRow{})
	if err != nil {
		return err
	}

	err = r.createTable(frameTable, frameRow{})
	if err != nil {
		return err
	}

	atexit.Register(func() {
		err := r.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to close %s: %v\n", r.dbName, err)
		}
	})

	return nil
}

// Func buffers the snapshot carried by the hook context.
func (r *DBRecorder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case simulator.HookPosInit:
		snapshot := ctx.Item.(simulator.Snapshot)
		r.frames = append(r.frames, frameRows(snapshot)...)
	case simulator.HookPosStep:
		snapshot := ctx.Item.(simulator.Snapshot)
		r.accesses = append(r.accesses, makeAccessRow(snapshot))
		r.frames = append(r.frames, frameRows(snapshot)...)
	default:
		return
	}

	if len(r.accesses)+len(r.frames) >= r.batchSize {
		err := r.Flush()
		if err != nil {
			panic(err)
		}
	}
}

// Flush writes all the buffered rows in one transaction.
func (r *DBRecorder) Flush() error {
	if len(r.accesses) == 0 && len(r.frames) == 0 {
		return nil
	}

	tx, err := r.Begin()
	if err != nil {
		return err
	}

	err = insertRows(tx, accessTable, r.accesses)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	err = insertRows(tx, frameTable, r.frames)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	err = tx.Commit()
	if err != nil {
		return err
	}

	r.accesses = nil
	r.frames = nil

	return nil
}

// Close flushes the remaining rows and closes the database. Closing a closed
// recorder does nothing.
func (r *DBRecorder) Close() error {
	if r.DB == nil {
		return nil
	}

	err := r.Flush()
	if err != nil {
		return err
	}

	err = r.DB.Close()
	r.DB = nil

	return err
}

func (r *DBRecorder) createTable(table string, sampleRow any) error {
	names := structs.Names(sampleRow)
	rowType := reflect.TypeOf(sampleRow)

	columns := make([]string, len(names))
	for i, name := range names {
		field, _ := rowType.FieldByName(name)
		columns[i] = name + " " + sqlType(field.Type.Kind())
	}

	createTableSQL := `CREATE TABLE ` + table +
		` (` + "\n\t" + strings.Join(columns, ", \n\t") + "\n" + `);`

	_, err := r.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	return nil
}

func sqlType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "BOOLEAN"
	case reflect.String:
		return "VARCHAR(16)"
	default:
		return "BIGINT"
	}
}

func insertRows[T any](tx *sql.Tx, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}

	placeholders := structs.Names(rows[0])
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt, err := tx.Prepare("INSERT INTO " + table +
		" VALUES (" + strings.Join(placeholders, ", ") + ")")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		v := reflect.ValueOf(row)

		values := make([]any, 0, v.NumField())
		for i := 0; i < v.NumField(); i++ {
			values = append(values, v.Field(i).Interface())
		}

		_, err := stmt.Exec(values...)
		if err != nil {
			return err
		}
	}

	return nil
}
