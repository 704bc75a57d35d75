package interactions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestDataset(t *testing.T) (fastaPath, linksDir string) {
	t.Helper()
	var dir = t.TempDir()

	fastaPath = filepath.Join(dir, "proteins.fasta")
	var fa = ">P1\nMKV\n>P2\nAGQ\n>P3\nLKC\n>P4\nYWH\n"
	require.NoError(t, os.WriteFile(fastaPath, []byte(fa), 0o644))

	linksDir = filepath.Join(dir, "links")
	require.NoError(t, os.Mkdir(linksDir, 0o755))

	var alpha = "protein1\tprotein2\tTraining\n" +
		"P1\tP2\tTrain\n" +
		"P2\tP3\tTrain\n" +
		"P3\tP4\tTest\n"
	require.NoError(t, os.WriteFile(filepath.Join(linksDir, "alpha.txt"), []byte(alpha), 0o644))

	var beta = "protein1\tprotein2\tTraining\n" +
		"P4\tP1\tTrain\n" +
		"P1\tP3\tValid\n"
	require.NoError(t, os.WriteFile(filepath.Join(linksDir, "beta.txt"), []byte(beta), 0o644))

	return fastaPath, linksDir
}

func TestDirectoryProviderLoad(t *testing.T) {
	fastaPath, linksDir := writeTestDataset(t)
	var dp = &DirectoryProvider{
		FastaPath:      fastaPath,
		LinksDir:       linksDir,
		TrainingColumn: "Training",
		BatchSize:      1,
		Workers:        4,
	}
	dir, err := dp.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, dir.Len())

	var shards = dir.Shards()
	// directory order, not worker completion order
	assert.Equal(t, "alpha", shards[0].Name)
	assert.Equal(t, "beta", shards[1].Name)

	assert.Equal(t, 2, shards[0].Train.Pairs())
	assert.Equal(t, 1, shards[0].Test.Pairs())
	assert.Nil(t, shards[0].Valid)

	assert.Equal(t, 1, shards[1].Train.Pairs())
	assert.Equal(t, 0, shards[1].Test.Pairs())
	require.NotNil(t, shards[1].Valid)
	assert.Equal(t, 1, shards[1].Valid.Pairs())

	assert.Equal(t, 5, dir.Total())
}

func TestDirectoryProviderErrors(t *testing.T) {
	fastaPath, linksDir := writeTestDataset(t)

	t.Run("bad batch size", func(t *testing.T) {
		var dp = &DirectoryProvider{FastaPath: fastaPath, LinksDir: linksDir}
		_, err := dp.Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing fasta", func(t *testing.T) {
		var dp = &DirectoryProvider{
			FastaPath: filepath.Join(t.TempDir(), "nope.fasta"),
			LinksDir:  linksDir,
			BatchSize: 1,
		}
		_, err := dp.Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("empty links dir", func(t *testing.T) {
		var dp = &DirectoryProvider{
			FastaPath: fastaPath,
			LinksDir:  t.TempDir(),
			BatchSize: 1,
		}
		_, err := dp.Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("bad links file", func(t *testing.T) {
		var dir = t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.txt"),
			[]byte("protein1\tprotein2\nP1\tP9\n"), 0o644))
		var dp = &DirectoryProvider{
			FastaPath: fastaPath,
			LinksDir:  dir,
			BatchSize: 1,
			Workers:   2,
		}
		_, err := dp.Load(context.Background())
		assert.Error(t, err)
	})
}

func TestLinksFilesSkipsHidden(t *testing.T) {
	var dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	paths, err := linksFiles(dir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "a", shardName(paths[0]))
}
