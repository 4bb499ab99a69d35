package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	seed := false
	for _, a := range os.Args[1:] {
		switch a {
		case "--list":
			listOnly = true
		case "--seed":
			seed = true
		default:
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	if listOnly {
		rows, err := db.Query("SELECT tablename FROM pg_tables WHERE schemaname='public' ORDER BY tablename")
		if err != nil {
			log.Fatal(err)
		}
		defer rows.Close()
		n := 0
		for rows.Next() {
			var t string
			rows.Scan(&t)
			fmt.Println(" ", t)
			n++
		}
		fmt.Printf("Total: %d tables\n", n)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("read migrations dir %s: %v", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var okCount, errCount int
	for _, f := range files {
		path := filepath.Join(dir, f)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Printf("  %s ... ", f)

		tx, err := db.Begin()
		if err != nil {
			fmt.Printf("BEGIN ERROR: %v\n", err)
			errCount++
			continue
		}
		if _, err := tx.Exec(content); err != nil {
			tx.Rollback()
			fmt.Printf("ERROR: %v\n", err)
			errCount++
		} else {
			tx.Commit()
			fmt.Println("OK")
			okCount++
		}
	}
	log.Printf("Done: %d OK, %d errors", okCount, errCount)

	if seed {
		seedDefaults(db)
	}
}

// seedDefaults inserts the conservative global fallback rule so a fresh
// database never resolves rules to the in-code default alone. Idempotent:
// an existing active global rule is left untouched.
func seedDefaults(db *sql.DB) {
	res, err := db.Exec(`
		INSERT INTO rules (id, scope, scope_key, enabled_strategies, drop_threshold_pct, cooldown_minutes, active)
		SELECT $1, 'global', '*', '{value_reinforcement,no_action}', 5.0, 1440, true
		WHERE NOT EXISTS (
			SELECT 1 FROM rules WHERE scope = 'global' AND scope_key = '*' AND active
		)
	`, uuid.New().String())
	if err != nil {
		log.Fatalf("seed global rule: %v", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Println("Seeded global fallback rule")
	} else {
		log.Println("Global fallback rule already present")
	}
}
