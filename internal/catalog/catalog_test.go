package catalog

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func scenarioCatalog() []ImageRecord {
	return []ImageRecord{
		{ID: "a", URL: "/a.png", Tags: []string{"acide"}},
		{ID: "b", URL: "/b.png", Tags: []string{}, Caption: "test acide"},
	}
}

func TestKeywordsOrderAndCase(t *testing.T) {
	got := Keywords(Query{
		Title:       "Acides et Bases",
		Description: "pH d'une solution, pH=7",
		Tags:        []string{"Chimie Organique", "", "pH"},
	})
	want := []string{"acides", "et", "bases", "ph", "d", "une", "solution", "ph", "7", "chimie organique", "ph"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestKeywordsUnicodeLetters(t *testing.T) {
	got := Keywords(Query{Title: "Électricité — loi d'Ohm (U=RI)"})
	want := []string{"électricité", "loi", "d", "ohm", "u", "ri"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestKeywordsEmpty(t *testing.T) {
	if got := Keywords(Query{Title: "  --- ", Tags: []string{""}}); len(got) != 0 {
		t.Errorf("expected no keywords, got %q", got)
	}
}

func TestScoreWeights(t *testing.T) {
	rec := ImageRecord{
		ID:      "x",
		URL:     "/images/acide-base.png",
		Caption: "Titrage acide base",
		Tags:    []string{"Acide", "pH"},
	}
	if got := Score(rec, []string{"acide"}); got != 4 {
		t.Errorf("tag+caption+url: got %d, want 4", got)
	}
	if got := Score(rec, []string{"ph"}); got != 2 {
		t.Errorf("tag only: got %d, want 2", got)
	}
	if got := Score(rec, []string{"images"}); got != 1 {
		t.Errorf("url only: got %d, want 1", got)
	}
	if got := Score(rec, []string{"acide", "acide"}); got != 8 {
		t.Errorf("repeated keyword: got %d, want 8", got)
	}
	if got := Score(rec, []string{"zzz"}); got != 0 {
		t.Errorf("no hit: got %d, want 0", got)
	}
}

func TestScoreIgnoresKeywordOrder(t *testing.T) {
	rec := ImageRecord{URL: "/m-canique-forces.jpg", Caption: "forces et mouvement", Tags: []string{"force", "newton"}}
	a := Score(rec, []string{"force", "newton", "mouvement", "jpg"})
	b := Score(rec, []string{"jpg", "mouvement", "newton", "force"})
	if a != b {
		t.Errorf("score depends on order: %d vs %d", a, b)
	}
	if a < 0 {
		t.Errorf("negative score %d", a)
	}
}

func TestScenarioTagBeatsCaption(t *testing.T) {
	records := scenarioCatalog()
	if s := Score(records[0], []string{"acide"}); s != 2 {
		t.Errorf("a: got %d, want 2", s)
	}
	if s := Score(records[1], []string{"acide"}); s != 1 {
		t.Errorf("b: got %d, want 1", s)
	}
	best, ok := BestMatch(records, []string{"acide"})
	if !ok || best.ID != "a" {
		t.Errorf("expected a, got %+v (ok=%v)", best, ok)
	}
}

func TestScenarioNoRelevantRecord(t *testing.T) {
	if best, ok := BestMatch(scenarioCatalog(), []string{"xyz"}); ok {
		t.Errorf("expected no record, got %+v", best)
	}
}

func TestBestMatchEmptyKeywordsReturnsFirst(t *testing.T) {
	best, ok := BestMatch(scenarioCatalog(), nil)
	if !ok || best.ID != "a" {
		t.Errorf("expected first record, got %+v (ok=%v)", best, ok)
	}
	if _, ok := BestMatch(nil, nil); ok {
		t.Error("expected no record for empty catalog")
	}
	if _, ok := BestMatch([]ImageRecord{}, []string{"acide"}); ok {
		t.Error("expected no record for empty catalog with keywords")
	}
}

func TestBestMatchTieKeepsCatalogOrder(t *testing.T) {
	records := []ImageRecord{
		{ID: "low", Caption: "other"},
		{ID: "first", Tags: []string{"ion"}},
		{ID: "second", Tags: []string{"ion"}},
		{ID: "third", Tags: []string{"ion"}},
	}
	best, ok := BestMatch(records, []string{"ion"})
	if !ok || best.ID != "first" {
		t.Errorf("expected first of the tied records, got %+v", best)
	}

	ranked := Rank(records, []string{"ion"})
	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.Record.ID
	}
	want := []string{"first", "second", "third", "low"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("rank order %v, want %v", ids, want)
	}
}

func TestLoadMissing(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "nope.json"))
	if c.Status != StatusMissing {
		t.Errorf("status %q, want %q", c.Status, StatusMissing)
	}
	if c.Records == nil || len(c.Records) != 0 {
		t.Errorf("expected empty non-nil records, got %#v", c.Records)
	}
	if c.Err == nil {
		t.Error("expected cause to be kept")
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.json")
	if err := os.WriteFile(path, []byte(`[{"id": "a",`), 0o644); err != nil {
		t.Fatal(err)
	}
	c := Load(path)
	if c.Status != StatusCorrupt || c.Available() {
		t.Errorf("status %q, want %q", c.Status, StatusCorrupt)
	}
	if len(c.Records) != 0 {
		t.Errorf("expected no records, got %d", len(c.Records))
	}
}

func TestLoadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.json")
	doc := `[
		{"id": "1", "url": "/images/molecules/reaction-hcl.png", "alt": "Réaction HCl", "tags": ["chimie", "acide"],
		 "associatedExercise": {"id": "ex-1", "title": "Addition de HCl"}},
		{"id": "2", "url": "/physique-optique.jpg"}
	]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c := Load(path)
	if !c.Available() || c.Err != nil {
		t.Fatalf("unexpected load result: %+v", c)
	}
	if len(c.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(c.Records))
	}
	if c.Records[0].Caption != "Réaction HCl" || !c.Records[0].HasExercise() {
		t.Errorf("first record decoded wrong: %+v", c.Records[0])
	}
	if c.Records[1].HasExercise() {
		t.Errorf("second record should have no exercise: %+v", c.Records[1])
	}
	first, ok := c.First()
	if !ok || first.ID != "1" {
		t.Errorf("First() = %+v, %v", first, ok)
	}
}

func TestParseNullDocument(t *testing.T) {
	c := Parse([]byte("null"))
	if !c.Available() || c.Records == nil {
		t.Errorf("null document should load as empty catalog, got %+v", c)
	}
}

func TestFilter(t *testing.T) {
	records := []ImageRecord{
		{ID: "1", Caption: "Réaction HCl", Tags: []string{"chimie", "acide"}},
		{ID: "2", Caption: "Optique géométrique", Tags: []string{"physique", "lentille"}},
		{ID: "3", Tags: []string{"physique"}, AssociatedExercise: &AssociatedExercise{ID: "e3", Title: "Loi d'Ohm"}},
	}
	if got := Filter(records, "  "); len(got) != 3 {
		t.Errorf("blank query: got %d records, want 3", len(got))
	}
	if got := Filter(records, "PHYS"); len(got) != 2 || got[0].ID != "2" || got[1].ID != "3" {
		t.Errorf("tag filter: got %+v", got)
	}
	if got := Filter(records, "hcl"); len(got) != 1 || got[0].ID != "1" {
		t.Errorf("caption filter: got %+v", got)
	}
	if got := Filter(records, "ohm"); len(got) != 1 || got[0].ID != "3" {
		t.Errorf("exercise filter: got %+v", got)
	}
	if got := Filter(records, "biologie"); len(got) != 0 {
		t.Errorf("expected nothing, got %+v", got)
	}
}

func TestWithExercises(t *testing.T) {
	records := []ImageRecord{
		{ID: "1", AssociatedExercise: &AssociatedExercise{ID: "e1"}},
		{ID: "2"},
		{ID: "3", AssociatedExercise: &AssociatedExercise{ID: "e3"}},
		{ID: "4", AssociatedExercise: &AssociatedExercise{}},
	}
	got := WithExercises(records, nil)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("without match: got %+v", got)
	}

	matched := records[2]
	got = WithExercises(records, &matched)
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "1" {
		t.Errorf("with match: got %+v", got)
	}

	for _, i := range []int{1, 3} {
		plain := records[i]
		got = WithExercises(records, &plain)
		if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
			t.Errorf("match %s without exercise: got %+v", plain.ID, got)
		}
	}
}
