package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"

	"github.com/mfadel/go-collab-engine/collab"
	"github.com/mfadel/go-collab-engine/server"
	"github.com/mfadel/go-collab-engine/store"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	project := flag.String("project", "", "GCP project for Firestore persistence (empty for in-memory)")
	flush := flag.Duration("flush", 5*time.Second, "write-behind cache flush interval")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var st store.DocumentStore = store.NewMemoryStore()
	if *project != "" {
		client, err := firestore.NewClient(context.Background(), *project)
		if err != nil {
			log.Fatal().Err(err).Msg("firestore client")
		}
		cached := store.NewCachedStore(store.NewFirestoreStore(client), *flush, log)
		defer cached.Close()
		st = cached
	}

	manager := collab.NewManager()
	engine := &collab.SequentialEngine{}
	hub := server.NewHub(manager, engine, st, log)
	go hub.Run()

	handler := server.NewHandler(hub, st, log)

	log.Info().Str("addr", *addr).Msg("starting server")
	if err := http.ListenAndServe(*addr, handler); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
