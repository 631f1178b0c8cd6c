package syncx

import (
	"context"
	"testing"

	"github.com/mind-engage/mindengage-exams/internal/db"
)

func TestAppendSince(t *testing.T) {
	ctx := context.Background()
	sqldb, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer sqldb.Close()
	repo := NewEventRepo(sqldb)

	for _, key := range []string{"a-1", "a-2", "a-3"} {
		if err := repo.Append(ctx, Event{Type: TypeAttemptSubmitted, Key: key, DataJSON: `{}`}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.Since(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Key != "a-1" || all[0].SiteID != "local" || all[0].CreatedAt == 0 {
		t.Fatalf("events = %+v", all)
	}

	rest, err := repo.Since(ctx, all[0].Seq, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].Key != "a-2" {
		t.Fatalf("page = %+v", rest)
	}

	tx, err := sqldb.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewEventRepo(tx).Append(ctx, Event{Type: TypeAttemptSubmitted, Key: "rolled-back"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}
	after, _ := repo.Since(ctx, 0, 100)
	if len(after) != 3 {
		t.Fatalf("rolled back event visible: %+v", after)
	}
}
