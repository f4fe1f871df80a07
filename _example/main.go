package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/weftql/weft"
	"github.com/weftql/weft/memory"
	"github.com/weftql/weft/nav"
)

// Translates a navigational query against a fixture catalog and runs it
// on an in-memory database:
//
// ```
// > go run . -fixture campus.yaml '/school{name, count(program)}'
// SQL: SELECT t1.name, COALESCE(t2.c2, 0) FROM school AS t1 LEFT JOIN ...
// Empty College | 0
// North Science | 2
// South Arts | 1
// ```
func main() {
	fixture := flag.String("fixture", "", "YAML catalog fixture")
	flag.Parse()
	if *fixture == "" || flag.NArg() != 1 {
		log.Fatal("usage: -fixture <file> <query>")
	}

	data, err := os.ReadFile(*fixture)
	if err != nil {
		log.Fatal(err)
	}
	db, err := memory.Load(data)
	if err != nil {
		log.Fatal(err)
	}
	conn, err := memory.Connect(db)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	engine := weft.New(db.Catalog)
	ctx := context.Background()

	plan, err := engine.Translate(ctx, flag.Arg(0), nil)
	if err != nil {
		var terr *nav.Error
		if errors.As(err, &terr) {
			log.Fatalf("%v", terr)
		}
		log.Fatal(err)
	}
	fmt.Println("SQL:", plan.SQL)

	product, err := engine.Query(ctx, conn, flag.Arg(0), nil)
	if err != nil {
		log.Fatal(err)
	}
	for _, row := range product.Rows {
		for i, v := range row {
			if i > 0 {
				fmt.Print(" | ")
			}
			fmt.Print(v)
		}
		fmt.Println()
	}
}
