// levelwise builds multi-level symbolic abstractions of a corpus.
//
// Each level trains a subword tokenizer and unit embeddings on the current
// corpus, clusters the embedding into a small symbol alphabet, rewrites
// the corpus in those symbols and evaluates the level against human
// relatedness judgments and ABX discrimination.
//
// Usage:
//
//	levelwise prepare --out prepared --corpus corpus.txt books/*.txt
//	levelwise train -c pipeline.yaml
//	levelwise results out/level2/results.json -o table
//	levelwise runs
package main

import (
	"os"

	"github.com/nachokelkar/audio-semantics/cmd/levelwise/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
