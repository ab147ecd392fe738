package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const pipeline = `
levels: 2
corpus: data/corpus.txt
utterances: data/utterances.txt
scores: /abs/scores.csv
bench:
  seed: 9
  tests: [rel, sim]
per_level:
  - tokenizer:
      vocab_size: 500
      use_model: models/l1.model
    embedding:
      dim: 16
    cluster_threshold: 0.6
publish:
  s3:
    bucket: runs
    prefix: exp1
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	if err := os.WriteFile(path, []byte(pipeline), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if f.Levels != 2 {
		t.Errorf("Levels = %d", f.Levels)
	}
	if want := filepath.Join(dir, "data/corpus.txt"); f.Corpus != want {
		t.Errorf("Corpus = %q, want %q", f.Corpus, want)
	}
	if f.Scores != "/abs/scores.csv" {
		t.Errorf("Scores = %q", f.Scores)
	}
	if want := filepath.Join(dir, "out"); f.Output != want {
		t.Errorf("Output = %q, want %q", f.Output, want)
	}
	if want := filepath.Join(dir, DefaultHistory); f.History != want {
		t.Errorf("History = %q, want %q", f.History, want)
	}
	if f.Bench.Seed != 9 || strings.Join(f.Bench.Tests, ",") != "rel,sim" {
		t.Errorf("Bench = %+v", f.Bench)
	}
	if len(f.PerLevel) != 1 {
		t.Fatalf("PerLevel = %+v", f.PerLevel)
	}
	lc := f.PerLevel[0]
	if lc.Tokenizer.VocabSize != 500 || lc.Embedding.Dim != 16 || lc.ClusterThreshold != 0.6 {
		t.Errorf("level 1 = %+v", lc)
	}
	if want := filepath.Join(dir, "models/l1.model"); lc.Tokenizer.UseModel != want {
		t.Errorf("UseModel = %q, want %q", lc.Tokenizer.UseModel, want)
	}
	if f.Publish.S3 == nil || f.Publish.S3.Bucket != "runs" || f.Publish.S3.Prefix != "exp1" {
		t.Errorf("Publish = %+v", f.Publish)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no corpus", "utterances: u\nlevels: 1\n", "corpus"},
		{"no utterances", "corpus: c\nlevels: 1\n", "utterances"},
		{"no levels", "corpus: c\nutterances: u\n", "levels"},
		{"negative levels", "corpus: c\nutterances: u\nlevels: -1\n", "negative"},
		{"both mirrors", "corpus: c\nutterances: u\nlevels: 1\npublish:\n  dir: m\n  s3: {bucket: b}\n", "exclusive"},
		{"no bucket", "corpus: c\nutterances: u\nlevels: 1\npublish:\n  s3: {prefix: p}\n", "bucket"},
		{"unknown field", "corpus: c\nutterances: u\nlevels: 1\nlevles: 2\n", "levles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestPerLevelOnly(t *testing.T) {
	f, err := Parse([]byte("corpus: c\nutterances: u\nper_level:\n  - cluster_threshold: 0.3\n  - {}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if f.Levels != 0 || len(f.PerLevel) != 2 {
		t.Errorf("Levels = %d, PerLevel = %d", f.Levels, len(f.PerLevel))
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "p.yaml")
	in := &File{Levels: 3, Corpus: "/c.txt", Utterances: "/u.txt", Output: "/out", History: "/h"}
	if err := in.Save(path); err != nil {
		t.Fatal(err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if out.Levels != 3 || out.Corpus != "/c.txt" || out.Output != "/out" || out.History != "/h" {
		t.Errorf("Load = %+v", out)
	}
}
