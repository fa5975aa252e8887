package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten_NestedStructureYieldsEveryLeaf(t *testing.T) {
	tree := Map{
		"bam": Path("output/a.bam"),
		"reads": List{
			Path("input/r1.fq.gz"),
			List{Path("input/r2.fq.gz"), Map{"idx": Path("temp/a.bai")}},
		},
		"empty": List{},
	}

	got := Flatten(tree)

	assert.ElementsMatch(t, []Path{
		"output/a.bam",
		"input/r1.fq.gz",
		"input/r2.fq.gz",
		"temp/a.bai",
	}, got)
}

func TestFlatten_MapOrderIsDeterministic(t *testing.T) {
	tree := Map{"z": Path("z"), "a": Path("a"), "m": List{Path("m1"), Path("m2")}}

	first := Flatten(tree)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Flatten(tree))
	}
	assert.Equal(t, []Path{"a", "m1", "m2", "z"}, first)
}

func TestFlatten_NilAndScalar(t *testing.T) {
	assert.Nil(t, Flatten(nil))
	assert.Equal(t, []Path{"x/y"}, Flatten(Path("x/y")))
}

func TestPlain_PreservesContainerShape(t *testing.T) {
	tree := Map{
		"one":  Path("a"),
		"many": List{Path("b"), Map{"c": Path("c")}},
	}

	got := Plain(tree)

	assert.Equal(t, map[string]any{
		"one":  "a",
		"many": []any{"b", map[string]any{"c": "c"}},
	}, got)
	assert.Nil(t, Plain(nil))
}

func TestPath_Under(t *testing.T) {
	cases := []struct {
		path Path
		root string
		want bool
	}{
		{"output/x.txt", "output", true},
		{"output", "output", true},
		{"./output/x.txt", "output", true},
		{"outputs/x.txt", "output", false},
		{"temp/output/x.txt", "output", false},
	}
	for _, tc := range cases {
		t.Run(string(tc.path), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.path.Under(tc.root))
		})
	}
}

func TestPath_DirAndAbs(t *testing.T) {
	assert.Equal(t, "a", Path("a/b.txt").Dir())
	assert.Equal(t, ".", Path("b.txt").Dir())
	assert.True(t, Path("/data/ref.fa").IsAbs())
	assert.False(t, Path("data/ref.fa").IsAbs())
}

func TestMap_MergeOverwrites(t *testing.T) {
	m := Map{"a": Path("1"), "b": Path("2")}
	m.Merge(Map{"b": Path("3"), "c": Path("4")})

	assert.Equal(t, Map{"a": Path("1"), "b": Path("3"), "c": Path("4")}, m)
	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())
}
