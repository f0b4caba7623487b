package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB
	maxFuzzInput = 1 << 16  // 64 KiB
)

func addCorpusSeeds(f *testing.F) {
	addPreludeSeed(f)
	addLanguageSeeds(f)
	addTestdataSeeds(f)
}

func addPreludeSeed(f *testing.F) {
	// #nosec G304 -- path is a fixed repository location
	src, err := os.ReadFile(filepath.Join("..", "driver", "Prelude.ard"))
	if err != nil {
		return
	}
	f.Add(clampSeed(src))
}

func addLanguageSeeds(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte("\\func main => 0\n"))
	f.Add([]byte("\\import Data.List\n\\open Data.List\n\\func len (xs : List) : Nat => xs\n"))
	f.Add([]byte("\\func f {A : \\Type} (a : A) : A => \\let b => a \\in b\n  \\where \\func g => f\n"))
	f.Add([]byte("\\data T (n : Nat)\n  | leaf\n  | node T T\n\\lemma l : T => leaf\n"))
	f.Add([]byte("\\func h => \\lam x y => x\n\\func k (p : \\Pi (n : Nat) -> Nat) => p zero\n"))
	f.Add([]byte("-- comment\n{- block {- nested -} -}\n\\func x => 1\r\n"))
	f.Add([]byte("\\func f => )\n\\func g => \\where {\n\\func été => \U0001F600\n"))
}

// addTestdataSeeds adds every module under testdata/ when the directory exists.
func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".ard" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}

func clampInput(input []byte) []byte {
	if len(input) > maxFuzzInput {
		return append([]byte(nil), input[:maxFuzzInput]...)
	}
	return append([]byte(nil), input...)
}
