package store

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := openTest(t)
	var vecVersion string
	if err := db.Conn().QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		t.Fatalf("vec_version: %v", err)
	}
	v, ok, err := db.GetMeta("schema_version")
	if err != nil || !ok || v != SchemaVersion {
		t.Errorf("schema_version = %q %v %v", v, ok, err)
	}
}

func TestOpenPathReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "breakdown.db")
	db, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := db.SetMeta(MetaLastReindex, "2025-01-10T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if v, ok, _ := db.GetMeta(MetaLastReindex); !ok || v != "2025-01-10T00:00:00Z" {
		t.Errorf("meta lost across reopen: %q %v", v, ok)
	}
}

func TestMetaMissing(t *testing.T) {
	db := openTest(t)
	if _, ok, err := db.GetMeta("nope"); ok || err != nil {
		t.Errorf("missing meta: ok=%v err=%v", ok, err)
	}
}

func TestViewsAndTrending(t *testing.T) {
	db := openTest(t)
	hits := map[string]int{
		"compliance/aca/open-enrollment": 3,
		"benefits/hsa-limits":            5,
		"dental/cleanings":               1,
	}
	for id, n := range hits {
		for i := 0; i < n; i++ {
			if _, err := db.IncrementView(id); err != nil {
				t.Fatal(err)
			}
		}
	}
	if n, err := db.IncrementView("benefits/hsa-limits"); err != nil || n != 6 {
		t.Errorf("IncrementView = %d, %v", n, err)
	}
	if n, _ := db.Views("compliance/aca/open-enrollment"); n != 3 {
		t.Errorf("Views = %d", n)
	}
	if n, _ := db.Views("unknown"); n != 0 {
		t.Errorf("unknown views = %d", n)
	}
	if _, err := db.IncrementView("  "); err == nil {
		t.Error("expected error for empty id")
	}

	top, err := db.Trending(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].ArticleID != "benefits/hsa-limits" || top[1].ArticleID != "compliance/aca/open-enrollment" {
		t.Errorf("trending = %+v", top)
	}
	all, _ := db.Trending(0)
	if len(all) != 3 {
		t.Errorf("default trending len = %d", len(all))
	}
}

func TestSubscribeLifecycle(t *testing.T) {
	db := openTest(t)

	created, err := db.Subscribe(" Reader@Example.com ", "Reader", "footer")
	if err != nil || !created {
		t.Fatalf("first subscribe: %v %v", created, err)
	}
	created, err = db.Subscribe("reader@example.com", "Other", "popup")
	if err != nil || created {
		t.Fatalf("repeat subscribe should be a no-op: %v %v", created, err)
	}
	subs, _ := db.Subscribers(0)
	if len(subs) != 1 || subs[0].Name != "Reader" || subs[0].Email != "reader@example.com" {
		t.Fatalf("subscribers = %+v", subs)
	}

	if err := db.Unsubscribe("READER@example.com"); err != nil {
		t.Fatal(err)
	}
	if subs, _ := db.Subscribers(0); len(subs) != 0 {
		t.Errorf("unsubscribe should remove the subscription: %+v", subs)
	}
	if _, err := db.Subscribe("reader@example.com", "", ""); !errors.Is(err, ErrUnsubscribed) {
		t.Errorf("resubscribe err = %v, want ErrUnsubscribed", err)
	}
	if _, err := db.Subscribe("", "", ""); err == nil {
		t.Error("expected error for empty email")
	}
}

func TestLeads(t *testing.T) {
	db := openTest(t)
	a, err := db.SaveLead(Lead{Name: "Ana", Email: "ana@example.com", Company: "Acme", Message: "COBRA question"})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == "" || a.CreatedAt.IsZero() {
		t.Fatalf("lead not stamped: %+v", a)
	}
	b, _ := db.SaveLead(Lead{Name: "Bo", Email: "bo@example.com"})
	if a.ID == b.ID {
		t.Fatal("lead IDs must be unique")
	}

	pending, _ := db.PendingLeads(0)
	if len(pending) != 2 {
		t.Fatalf("pending = %d", len(pending))
	}
	if err := db.MarkLeadDelivered(a.ID); err != nil {
		t.Fatal(err)
	}
	pending, _ = db.PendingLeads(0)
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Errorf("pending after delivery = %+v", pending)
	}
	if err := db.MarkLeadDelivered("missing"); err == nil {
		t.Error("expected error for unknown lead")
	}
	if _, err := db.SaveLead(Lead{Name: "x"}); err == nil {
		t.Error("expected error for lead without email")
	}
}

// unit returns a VectorDim vector pointing mostly along axis, with a small
// component along tilt.
func unit(axis, tilt int, amount float64) []float32 {
	v := make([]float32, VectorDim)
	v[axis] = float32(math.Sqrt(1 - amount*amount))
	v[tilt] = float32(amount)
	return v
}

func TestArticlesRelated(t *testing.T) {
	db := openTest(t)
	recs := []struct {
		rec ArticleRecord
		vec []float32
	}{
		{ArticleRecord{ArticleID: "compliance/aca/open-enrollment", Slug: "open-enrollment", Title: "Open Enrollment", Category: "compliance", Tags: []string{"ACA"}, ContentHash: "h1"}, unit(0, 1, 0.0)},
		{ArticleRecord{ArticleID: "compliance/aca/deadlines", Slug: "deadlines", Title: "Deadlines", Category: "compliance", ContentHash: "h2"}, unit(0, 1, 0.2)},
		{ArticleRecord{ArticleID: "compliance/erisa", Slug: "erisa", Title: "ERISA", Category: "compliance", ContentHash: "h3"}, unit(0, 1, 0.6)},
		{ArticleRecord{ArticleID: "dental/cleanings", Slug: "cleanings", Title: "Cleanings", Category: "dental", ContentHash: "h4"}, unit(5, 6, 0.1)},
	}
	for _, r := range recs {
		if err := db.UpsertArticle(r.rec, r.vec); err != nil {
			t.Fatalf("UpsertArticle %s: %v", r.rec.ArticleID, err)
		}
	}

	related, err := db.RelatedArticles("compliance/aca/open-enrollment", 2)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range related {
		ids = append(ids, r.ArticleID)
	}
	if !reflect.DeepEqual(ids, []string{"compliance/aca/deadlines", "compliance/erisa"}) {
		t.Errorf("related = %v", ids)
	}
	if related[0].Distance > related[1].Distance {
		t.Error("related must be ordered by distance")
	}

	if none, err := db.RelatedArticles("missing", 3); err != nil || len(none) != 0 {
		t.Errorf("unknown article: %v %v", none, err)
	}
}

func TestArticlesUpsertAndPrune(t *testing.T) {
	db := openTest(t)
	rec := ArticleRecord{ArticleID: "benefits/hsa", Slug: "hsa", Title: "HSA", ContentHash: "v1"}
	if err := db.UpsertArticle(rec, unit(1, 2, 0)); err != nil {
		t.Fatal(err)
	}
	rec.Title = "HSA Limits"
	rec.ContentHash = "v2"
	if err := db.UpsertArticle(rec, unit(1, 2, 0.3)); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.ArticleCount(); n != 1 {
		t.Fatalf("upsert must not duplicate, count = %d", n)
	}
	got, ok, err := db.GetArticle("benefits/hsa")
	if err != nil || !ok || got.Title != "HSA Limits" || got.Tags == nil {
		t.Fatalf("GetArticle = %+v %v %v", got, ok, err)
	}
	hashes, _ := db.ArticleHashes()
	if hashes["benefits/hsa"] != "v2" {
		t.Errorf("hashes = %v", hashes)
	}

	if err := db.UpsertArticle(ArticleRecord{ArticleID: "x/y", ContentHash: "h"}, unit(3, 4, 0)); err != nil {
		t.Fatal(err)
	}
	removed, err := db.DeleteArticlesExcept([]string{"x/y"})
	if err != nil || removed != 1 {
		t.Fatalf("DeleteArticlesExcept = %d, %v", removed, err)
	}
	if _, ok, _ := db.GetArticle("benefits/hsa"); ok {
		t.Error("pruned article still present")
	}
	if err := db.UpsertArticle(rec, make([]float32, 3)); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
