package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loykin/mongorun/internal/docstore/memstore"
	"github.com/loykin/mongorun/internal/store/connector"
)

func TestStore_EnsureIndexOnCollectionField(t *testing.T) {
	db := memstore.New("app")
	st := New(db, "")
	for i := 0; i < 2; i++ {
		if err := st.EnsureIndex(context.Background()); err != nil {
			t.Fatalf("EnsureIndex #%d: %v", i+1, err)
		}
	}
	idx := db.Indexes("flyway_script_histories")
	if len(idx) != 1 || idx[0].Keys[0].Key != "collection" {
		t.Fatalf("unexpected indexes: %+v", idx)
	}
}

func TestStore_RecordSupersedesFailure(t *testing.T) {
	ctx := context.Background()
	db := memstore.New("app")
	at := time.Date(2024, 2, 3, 4, 5, 6, 789000000, time.UTC)
	st := New(db, "history").WithClock(func() time.Time { return at })

	rec := connector.Record{ID: "items_T_s", Collection: "items", Ticket: "T", Description: "d", ElapsedTime: 5}
	if err := st.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if ok, err := st.HasSucceeded(ctx, rec.ID); err != nil || ok {
		t.Fatalf("HasSucceeded after failure = %v, %v", ok, err)
	}
	rec.IsSuccess = true
	if err := st.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if ok, _ := st.HasSucceeded(ctx, rec.ID); !ok {
		t.Fatal("expected success after retry")
	}
	n, _ := db.Collection("history").CountDocuments(ctx, nil)
	if n != 1 {
		t.Fatalf("upsert kept %d documents", n)
	}
	got, found, err := st.Get(ctx, rec.ID)
	if err != nil || !found {
		t.Fatalf("Get = %v, %v", found, err)
	}
	if !got.CreatedTime.Equal(at) || got.Collection != "items" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	db := memstore.New("app")
	base := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	tick := 0
	st := New(db, "").WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	for _, r := range []connector.Record{
		{ID: "b_T_x", Collection: "b", IsSuccess: true},
		{ID: "a_T_y", Collection: "a"},
		{ID: "a_T_z", Collection: "a", IsSuccess: true},
	} {
		if err := st.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	all, err := st.List(ctx, connector.Filter{})
	if err != nil || len(all) != 3 || all[0].ID != "b_T_x" {
		t.Fatalf("List = %+v, %v", all, err)
	}
	a, _ := st.List(ctx, connector.Filter{Collection: "a"})
	if len(a) != 2 {
		t.Fatalf("collection filter: %+v", a)
	}
	failed, _ := st.List(ctx, connector.Filter{FailedOnly: true})
	if len(failed) != 1 || failed[0].ID != "a_T_y" {
		t.Fatalf("failed filter: %+v", failed)
	}
}

func TestStore_PropagatesErrors(t *testing.T) {
	ctx := context.Background()
	db := memstore.New("app")
	st := New(db, "")
	boom := errors.New("not primary")
	db.Fail("flyway_script_histories", memstore.OpCount, boom)
	if _, err := st.HasSucceeded(ctx, "x"); !errors.Is(err, boom) {
		t.Fatalf("HasSucceeded err = %v", err)
	}
	db.Fail("flyway_script_histories", memstore.OpReplace, boom)
	if err := st.Record(ctx, connector.Record{ID: "x"}); !errors.Is(err, boom) {
		t.Fatalf("Record err = %v", err)
	}
}
