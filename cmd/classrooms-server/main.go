// classrooms-server runs the HTTP service, grounded directly on
// gopatchy-rooms/main.go's startup sequence: required env vars checked
// up front, an optional Postgres connection opened and pinged, then
// http.ListenAndServe on the routes internal/httpapi registers.
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/nlevy/classrooms-go/internal/httpapi"
	"github.com/nlevy/classrooms-go/internal/orchestrate"
	"github.com/nlevy/classrooms-go/internal/store"
)

func main() {
	cfg := orchestrate.ConfigFromEnv()
	orch := orchestrate.New(cfg)

	var st *store.Store
	if pgConn := os.Getenv("PGCONN"); pgConn != "" {
		var err error
		st, err = store.Open(pgConn)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer st.Close()
		log.Println("connected to database")
	} else {
		log.Println("PGCONN not set, running without roster/assignment persistence")
	}

	server := httpapi.New(orch, st, os.Getenv("GOOGLE_CLIENT_ID"))

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, server.Handler()))
}
