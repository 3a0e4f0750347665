package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"ridgedb/internal/engine"
	"ridgedb/internal/logging"
	"ridgedb/internal/manager"
	"ridgedb/internal/sql"
)

func main() {
	dataDir := flag.String("data", "./data", "directory holding per-table index files")
	bucketCap := flag.Int("hash-bucket-capacity", 0, "extendible hashing bucket capacity (0 = default)")
	bplusOrder := flag.Int("btree-order", 0, "B+Tree order (0 = default)")
	flag.Parse()

	log := logging.New("ridgedb")

	eng := engine.New(*dataDir, manager.Config{
		HashBucketCapacity: *bucketCap,
		BPlusOrder:         *bplusOrder,
	}, log)

	if err := eng.Start(); err != nil {
		log.Error(err, "engine start failed")
		os.Exit(1)
	}
	defer eng.Close()

	fmt.Println("ridgedb server starting (REPL mode)…")
	fmt.Println("Type SQL statements like:")
	fmt.Println(`  CREATE TABLE restaurants FROM FILE "data/zomato.csv" USING ALL;`)
	fmt.Println(`  SELECT * FROM restaurants WHERE restaurant_id = 6317637;`)
	fmt.Println(`  SELECT * FROM restaurants USING HASH WHERE restaurant_id = 6317637;`)
	fmt.Println("Meta commands:")
	fmt.Println("  .tables          - list tables")
	fmt.Println("  .stats <tbl>     - per-index stats")
	fmt.Println("  .rebuild <tbl>   - rebuild every index from current records")
	fmt.Println("  .exit            - quit")
	fmt.Println("  .help            - show this help")
	fmt.Println()

	runREPL(eng)
}

func runREPL(eng *engine.DBEngine) {
	reader := bufio.NewReader(os.Stdin)
	var buffer strings.Builder

	for {
		prompt := "ridgedb> "
		if buffer.Len() > 0 {
			prompt = "...> "
		}

		fmt.Print(prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println("\nExiting.")
				return
			}
			fmt.Println("Read error:", err)
			return
		}

		line = strings.TrimSpace(line)

		if buffer.Len() == 0 && line == "" {
			continue
		}

		// Meta commands start with a dot, like SQLite. Only process them
		// when no SQL is buffered to avoid mixing with multi-line input.
		if buffer.Len() == 0 && strings.HasPrefix(line, ".") {
			if handleMetaCommand(line, eng) {
				return
			}
			continue
		}

		if line != "" {
			if buffer.Len() > 0 {
				buffer.WriteString(" ")
			}
			buffer.WriteString(line)
		}

		if strings.HasSuffix(line, ";") {
			statement := buffer.String()
			buffer.Reset()
			handleSQL(statement, eng)
		}
	}
}

// handleMetaCommand processes commands like .exit, .help.
// Returns true if the REPL should exit.
func handleMetaCommand(line string, eng *engine.DBEngine) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}

	switch strings.ToLower(parts[0]) {
	case ".exit", ".quit":
		fmt.Println("Bye.")
		return true
	case ".help":
		fmt.Println("Supported SQL:")
		fmt.Println()
		fmt.Println(`  CREATE TABLE name FROM FILE "path.csv" [USING ISAM, HASH, AVL, BTREE, RTREE | ALL];`)
		fmt.Println("  INSERT INTO name VALUES (id, 'name', 'city', ...all 17 fields...);")
		fmt.Println("  DELETE FROM name WHERE <pred>;")
		fmt.Println("  SELECT cols FROM name [USING idx] [WHERE <pred>];")
		fmt.Println("  EXPLAIN [ANALYZE] SELECT ...;")
		fmt.Println()
		fmt.Println("  <pred> supports =, >, <, >=, <=, BETWEEN ... AND ..., LIKE '%x%',")
		fmt.Println("  coords IN (POINT [lon, lat], RADIUS km), and AND/OR with parentheses.")
		fmt.Println()
		return false
	case ".tables":
		names := eng.ListTables()
		if len(names) == 0 {
			fmt.Println("(no tables)")
			return false
		}
		fmt.Println(strings.Join(names, "\n"))
		return false
	case ".stats":
		if len(parts) < 2 {
			fmt.Println("Usage: .stats <table>")
			return false
		}
		stats, err := eng.TableStats(parts[1])
		if err != nil {
			fmt.Println("Error loading stats:", err)
			return false
		}
		fmt.Printf("records: %d\n", stats.Records)
		fmt.Printf("isam:    base_pages=%d total_pages=%d height=%d\n",
			stats.ISAM.BasePages, stats.ISAM.TotalPages, stats.ISAM.Height)
		fmt.Printf("hash:    global_depth=%d directory=%d reads=%d writes=%d\n",
			stats.Hash.GlobalDepth, stats.Hash.DirectorySize, stats.Hash.Reads, stats.Hash.Writes)
		fmt.Printf("avl:     count=%d height=%d\n", stats.AVL.Count, stats.AVL.Height)
		fmt.Printf("btree:   height=%d leaves=%d\n", stats.BPlus.Height, stats.BPlus.LeafCount)
		fmt.Printf("rtree:   points=%d\n", stats.RTree.PointCount)
		return false
	case ".rebuild":
		if len(parts) < 2 {
			fmt.Println("Usage: .rebuild <table>")
			return false
		}
		if err := eng.RebuildTable(parts[1]); err != nil {
			fmt.Println("Rebuild failed:", err)
			return false
		}
		fmt.Println("Rebuilt.")
		return false
	default:
		fmt.Printf("Unknown meta command: %s\n", parts[0])
	}
	return false
}

func handleSQL(line string, eng *engine.DBEngine) {
	stmt, err := sql.Parse(line)
	if err != nil {
		fmt.Println("Parse error:", err)
		return
	}

	res, err := eng.Execute(stmt)
	if err != nil {
		fmt.Println("Execution error:", err)
		return
	}

	if res.Status != "ok" {
		fmt.Printf("Error (%s): %s\n", orDash(res.Index), res.Message)
		return
	}
	if len(res.Columns) > 0 {
		printResultSet(res.Columns, res.Rows)
		fmt.Printf("(%d rows, index: %s)\n", len(res.Rows), orDash(res.Index))
		return
	}
	if res.Message != "" {
		fmt.Println(res.Message)
		return
	}
	fmt.Println("OK")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printResultSet(cols []string, rows []map[string]any) {
	fmt.Println(strings.Join(cols, " | "))
	for _, row := range rows {
		parts := make([]string, 0, len(cols))
		for _, c := range cols {
			parts = append(parts, formatValue(row[c]))
		}
		fmt.Println(strings.Join(parts, " | "))
	}
}

// formatValue converts a result cell to a human-readable string.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	case bool:
		return fmt.Sprintf("%t", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
