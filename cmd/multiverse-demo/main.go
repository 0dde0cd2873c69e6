// Command multiverse-demo seeds two universes with differently shaped user
// records and streams them through the shared universal schema, printing
// transport progress as batches flush.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"

	"github.com/bingomanatee/multiverse/pkg/journal"
	"github.com/bingomanatee/multiverse/pkg/multiverse"
	"github.com/bingomanatee/multiverse/pkg/sun"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults used when empty)")
	records := flag.Int("records", 100, "number of records to seed in the source universe")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg := multiverse.DefaultConfig()
	if *configPath != "" {
		cfg, err = multiverse.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
	}

	jrn, err := journal.New(cfg.Journal, logger)
	if err != nil {
		logger.Fatal("failed to create journal", zap.Error(err))
	}

	mv := multiverse.New(
		multiverse.WithLogger(logger),
		multiverse.WithJournal(jrn),
	)

	if err := mv.RegisterSchema(userSchema()); err != nil {
		logger.Fatal("failed to register universal schema", zap.Error(err))
	}

	flat, nested, err := buildUniverses(mv, cfg)
	if err != nil {
		logger.Fatal("failed to assemble universes", zap.Error(err))
	}

	ctx := context.Background()
	if err := seed(ctx, flat, *records); err != nil {
		logger.Fatal("failed to seed source universe", zap.Error(err))
	}

	// Move one record by key first, then stream the whole collection.
	req := multiverse.TransportRequest{Collection: "users", From: "flatland", To: "deepspace"}
	if err := mv.Transport(ctx, "user-0001", req); err != nil {
		logger.Fatal("single transport failed", zap.Error(err))
	}
	logger.Info("transported single record", zap.String("key", "user-0001"))

	err = mv.TransportAll(ctx, req, multiverse.TransportOptions{
		FlushRate: cfg.Transport.FlushRate,
		Listener: func(event multiverse.TransportEvent) {
			if event.Err != nil {
				logger.Warn("transport flush failed",
					zap.String("stream", event.Stream),
					zap.Error(event.Err))
				return
			}
			logger.Info("transport progress",
				zap.String("stream", event.Stream),
				zap.Int("current", event.Current),
				zap.Int("total", event.Total))
		},
	})
	if err != nil {
		logger.Fatal("streaming transport failed", zap.Error(err))
	}

	dst, _ := nested.Get("users")
	count, err := dst.Count(ctx)
	if err != nil {
		logger.Fatal("failed to count destination", zap.Error(err))
	}
	logger.Info("transport complete", zap.Int("destination_records", count))

	if mem, ok := jrn.(*journal.MemoryJournal); ok {
		for _, entry := range mem.Entries() {
			logger.Info("journal entry",
				zap.String("stream", entry.Stream),
				zap.Int("count", entry.Count))
		}
	}
	if jrn != nil {
		if err := jrn.Close(); err != nil {
			logger.Warn("failed to close journal", zap.Error(err))
		}
	}
}

// userSchema is the canonical flattened shape both universes translate
// through.
func userSchema() *multiverse.UniversalSchema {
	return multiverse.NewUniversalSchema("users", map[string]multiverse.UniversalField{
		"name":      {Type: multiverse.FieldString},
		"email":     {Type: multiverse.FieldString},
		"latitude":  {Type: multiverse.FieldNumber},
		"longitude": {Type: multiverse.FieldNumber},
		"plan":      {Type: multiverse.FieldString, Default: "free"},
	})
}

// flatSchema keeps every field at the top level, the way a SQL-backed
// universe would store it.
func flatSchema() (*multiverse.LocalSchema, error) {
	s := multiverse.NewLocalSchema("users")
	fields := map[string]*multiverse.FieldDef{
		"name":      {Type: multiverse.FieldString},
		"email":     {Type: multiverse.FieldString, Validate: validateEmail},
		"latitude":  {Type: multiverse.FieldNumber},
		"longitude": {Type: multiverse.FieldNumber},
		"plan":      {Type: multiverse.FieldString, Default: "free"},
	}
	for _, name := range []string{"name", "email", "latitude", "longitude", "plan"} {
		if err := s.Add(name, fields[name]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// nestedSchema folds the coordinates into a composite "position" object, so
// the two universes disagree about shape but agree about content.
func nestedSchema() (*multiverse.LocalSchema, error) {
	s := multiverse.NewLocalSchema("users")
	if err := s.Add("name", &multiverse.FieldDef{Type: multiverse.FieldString}); err != nil {
		return nil, err
	}
	if err := s.Add("email", &multiverse.FieldDef{Type: multiverse.FieldString, Validate: validateEmail}); err != nil {
		return nil, err
	}
	if err := s.Add("position", &multiverse.FieldDef{
		Type:      multiverse.FieldObject,
		Composite: true,
		SubFields: map[string]string{
			"lat": "latitude",
			"lon": "longitude",
		},
	}); err != nil {
		return nil, err
	}
	if err := s.Add("plan", &multiverse.FieldDef{Type: multiverse.FieldString, Default: "free"}); err != nil {
		return nil, err
	}
	return s, nil
}

func validateEmail(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("email must be a string")
	}
	if !strings.Contains(s, "@") {
		return fmt.Errorf("email %q is missing an @", s)
	}
	return nil
}

// buildUniverses assembles the two universes, placing each collection on the
// configured sun backend (memory when the config names none).
func buildUniverses(mv *multiverse.Multiverse, cfg multiverse.Config) (flat, nested *multiverse.Universe, err error) {
	flatUsers, err := flatSchema()
	if err != nil {
		return nil, nil, err
	}
	nestedUsers, err := nestedSchema()
	if err != nil {
		return nil, nil, err
	}

	deps := sun.Deps{Log: mv.Logger()}

	flat, err = multiverse.NewUniverse("flatland", mv)
	if err != nil {
		return nil, nil, err
	}
	flatSun, err := collectionFor(cfg, "flatland", "users", flatUsers, deps)
	if err != nil {
		return nil, nil, err
	}
	flat.Add(flatSun)
	if err := mv.AddUniverse(flat, false); err != nil {
		return nil, nil, err
	}

	nested, err = multiverse.NewUniverse("deepspace", mv)
	if err != nil {
		return nil, nil, err
	}
	nestedSun, err := collectionFor(cfg, "deepspace", "users", nestedUsers, deps)
	if err != nil {
		return nil, nil, err
	}
	nested.Add(nestedSun)
	if err := mv.AddUniverse(nested, false); err != nil {
		return nil, nil, err
	}
	return flat, nested, nil
}

// collectionFor finds the configured sun for a universe/collection slot, or
// falls back to a memory sun.
func collectionFor(cfg multiverse.Config, universe, collection string, schema *multiverse.LocalSchema, deps sun.Deps) (multiverse.Collection, error) {
	for _, sc := range cfg.Suns {
		if sc.Universe == universe && sc.Collection == collection {
			return sun.Create(sc, schema, deps)
		}
	}
	return sun.NewMemorySun(collection, schema, cfg.Transport.BatchSize), nil
}

func seed(ctx context.Context, u *multiverse.Universe, n int) error {
	c, ok := u.Get("users")
	if !ok {
		return fmt.Errorf("universe %s has no users collection", u.Name())
	}

	recs := make(map[string]multiverse.Record, n)
	for i := 1; i <= n; i++ {
		key := fmt.Sprintf("user-%04d", i)
		recs[key] = multiverse.Record{
			"name":      fmt.Sprintf("User %d", i),
			"email":     fmt.Sprintf("user%d@example.com", i),
			"latitude":  float64(i%90) + 0.5,
			"longitude": float64(i%180) - 90.5,
		}
	}
	return c.SetMany(ctx, recs)
}
